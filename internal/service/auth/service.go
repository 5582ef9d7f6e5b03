package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/stroke-api/internal/email"
	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
	"github.com/jwalitptl/stroke-api/pkg/auth"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
	"github.com/jwalitptl/stroke-api/pkg/security"
)

const (
	resetTokenExpiry = 30 * time.Minute
	resetTokenBytes  = 32
)

// AuthService manages accounts and the access tokens issued to them.
type AuthService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
	Logout(ctx context.Context, principal *model.Principal) error
	ChangePassword(ctx context.Context, userID uuid.UUID, req *model.ChangePasswordRequest) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

type Config struct {
	// ResetURL is the page that receives the reset token as its "token"
	// query parameter.
	ResetURL string
}

type Service struct {
	users    repository.UserRepository
	hasher   security.PasswordHasher
	jwtSvc   auth.JWTService
	denylist auth.Denylist
	emailSvc email.Service
	cfg      Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(users repository.UserRepository, hasher security.PasswordHasher, jwtSvc auth.JWTService,
	denylist auth.Denylist, emailSvc email.Service, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		jwtSvc:   jwtSvc,
		denylist: denylist,
		emailSvc: emailSvc,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With().Str("service", "auth").Logger(),
		now:      time.Now,
	}
}

var _ AuthService = (*Service)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid email or password", model.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.logger.Warn().Str("user_id", user.ID.String()).Msg("failed login attempt")
		return nil, apperrors.Unauthorized("invalid email or password", model.ErrInvalidCredentials)
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(s.now()).Seconds()),
	}, nil
}

// Logout revokes the caller's token until it would have expired.
func (s *Service) Logout(ctx context.Context, principal *model.Principal) error {
	if err := s.denylist.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		s.metrics.DenylistOperations.WithLabelValues("revoke", "error").Inc()
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.metrics.DenylistOperations.WithLabelValues("revoke", "success").Inc()
	s.logger.Info().Str("user_id", principal.UserID.String()).Msg("user logged out")
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req *model.ChangePasswordRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return apperrors.BadRequest("new password and confirmation do not match", nil)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("user", err)
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.BadRequest("current password is incorrect", err)
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("password changed")
	return nil
}

// ForgotPassword emails a single-use reset link. Unknown addresses succeed
// silently so the endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, address string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(address))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}
	expiry := s.now().Add(resetTokenExpiry)
	user.ResetToken = &token
	user.ResetTokenExpiry = &expiry
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.emailSvc.SendPasswordReset(ctx, user.Email, s.resetLink(token)); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to send password reset email")
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	if req.NewPassword != req.ConfirmPassword {
		return apperrors.BadRequest("new password and confirmation do not match", nil)
	}

	user, err := s.users.GetByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.BadRequest("invalid or expired reset token", err)
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.HasValidResetToken(req.Token, s.now()) {
		return apperrors.BadRequest("invalid or expired reset token", nil)
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ClearResetToken()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("password reset")
	return nil
}

// Authenticate validates a bearer token and checks it has not been
// revoked. A denylist that cannot be reached rejects the request.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("token has expired", err)
		}
		return nil, apperrors.Unauthorized("invalid token", err)
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		s.metrics.DenylistOperations.WithLabelValues("check", "error").Inc()
		return nil, apperrors.Internal(fmt.Errorf("failed to check token revocation: %w", err))
	}
	s.metrics.DenylistOperations.WithLabelValues("check", "success").Inc()
	if revoked {
		return nil, apperrors.Unauthorized("token has been revoked", auth.ErrTokenRevoked)
	}

	return &model.Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	switch {
	case errors.Is(err, security.ErrPasswordTooShort):
		return "", apperrors.Validation("invalid password",
			[]string{fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen)}, err)
	case errors.Is(err, security.ErrPasswordTooLong):
		return "", apperrors.Validation("invalid password",
			[]string{fmt.Sprintf("password must be at most %d characters", security.MaxPasswordLen)}, err)
	case err != nil:
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) resetLink(token string) string {
	sep := "?"
	if strings.Contains(s.cfg.ResetURL, "?") {
		sep = "&"
	}
	return s.cfg.ResetURL + sep + "token=" + url.QueryEscape(token)
}

func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
