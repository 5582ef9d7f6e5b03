package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/stroke-api/internal/model"
)

const userColumns = `id, email, password_hash, reset_token, reset_token_expiry, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, reset_token, reset_token_expiry, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	_, err := r.ext.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.ResetToken,
		user.ResetTokenExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := sqlx.GetContext(ctx, r.ext, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", mapError(err))
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user model.User
	if err := sqlx.GetContext(ctx, r.ext, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", mapError(err))
	}
	return &user, nil
}

func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1`

	var user model.User
	if err := sqlx.GetContext(ctx, r.ext, &user, query, token); err != nil {
		return nil, fmt.Errorf("failed to get user by reset token: %w", mapError(err))
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			email = $1,
			password_hash = $2,
			reset_token = $3,
			reset_token_expiry = $4,
			updated_at = $5
		WHERE id = $6
	`

	user.UpdatedAt = time.Now().UTC()
	result, err := r.ext.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.ResetToken,
		user.ResetTokenExpiry,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapError(err))
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
