package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/stroke-api/internal/config"
	"github.com/jwalitptl/stroke-api/internal/email"
	"github.com/jwalitptl/stroke-api/internal/handler"
	authhandler "github.com/jwalitptl/stroke-api/internal/handler/auth"
	exchangehandler "github.com/jwalitptl/stroke-api/internal/handler/exchange"
	patienthandler "github.com/jwalitptl/stroke-api/internal/handler/patient"
	"github.com/jwalitptl/stroke-api/internal/middleware"
	"github.com/jwalitptl/stroke-api/internal/router"
	authsvc "github.com/jwalitptl/stroke-api/internal/service/auth"
	"github.com/jwalitptl/stroke-api/pkg/auth"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
	"github.com/jwalitptl/stroke-api/pkg/security"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:           "stroke-api",
		Short:         "Stroke patient records API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer, "stroke", "api")
	a, err := newApp(ctx, configDir, m)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret (or JWT_SECRET) must be set")
	}

	denylist, err := newDenylist(ctx, cfg)
	if err != nil {
		return err
	}
	defer denylist.Close()

	authService := authsvc.NewService(
		a.store.Users(),
		security.NewBcryptHasher(0),
		auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour),
		denylist,
		newMailer(cfg),
		authsvc.Config{ResetURL: cfg.SMTP.ResetURL},
		m,
		a.logger,
	)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authService),
		handler.NewHandler(a.store, prometheus.DefaultGatherer),
		authhandler.NewHandler(authService),
		patienthandler.NewHandler(a.patients),
		exchangehandler.NewHandler(a.exchange),
		m,
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RateEnabled:    cfg.RateLimit.Enabled,
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			RequestTimeout: cfg.Server.RequestTimeout,
			SizeLimit: middleware.SizeLimitConfig{
				MaxBodySize:   cfg.Server.MaxBodyBytes,
				MaxUploadSize: cfg.Server.MaxUploadBytes,
			},
			CORSConfig: corsConfig,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	a.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info().Msg("server exited")
	return nil
}

func newDenylist(ctx context.Context, cfg *config.Config) (auth.Denylist, error) {
	if cfg.Redis.URL == "" {
		return auth.NewMemoryDenylist(10 * time.Minute), nil
	}
	return auth.NewRedisDenylist(ctx, auth.RedisConfig{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
	}, log.Logger)
}

func newMailer(cfg *config.Config) email.Service {
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("smtp.host not set; password reset links are logged instead of sent")
		return email.NewLogService(log.Logger)
	}
	return email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}
