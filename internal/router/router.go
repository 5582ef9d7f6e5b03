package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/stroke-api/internal/handler"
	"github.com/jwalitptl/stroke-api/internal/middleware"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
)

// Handler registers routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// ProtectedHandler also owns routes that need a signed-in caller.
type ProtectedHandler interface {
	Handler
	RegisterProtectedRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	h         *handler.Handler
	authH     ProtectedHandler
	patientH  Handler
	exchangeH Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	RateEnabled    bool
	RequestTimeout time.Duration
	SizeLimit      middleware.SizeLimitConfig
	CORSConfig     middleware.CORSConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	h *handler.Handler,
	authH ProtectedHandler,
	patientH Handler,
	exchangeH Handler,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	middleware.RegisterValidation()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine:    engine,
		auth:      auth,
		h:         h,
		authH:     authH,
		patientH:  patientH,
		exchangeH: exchangeH,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	r.setup(config)
	return r
}

func (r *Router) setup(config RouterConfig) {
	r.h.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SizeLimit(config.SizeLimit),
		middleware.NoStore(),
	)

	// Public routes
	r.authH.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.authH.RegisterProtectedRoutes(protected)
	r.patientH.RegisterRoutes(protected)
	r.exchangeH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
