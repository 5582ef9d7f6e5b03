package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables and indexes the service needs. Every
// statement is idempotent, so running it against an existing database is
// a no-op.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	log.Info().Msg("running database migrations")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("database migrations completed")
	return nil
}
