package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/stroke-api/internal/repository"
)

type store struct {
	BaseRepository
}

// NewStore returns a repository.Store backed by PostgreSQL.
func NewStore(db *sqlx.DB) repository.Store {
	return &store{NewBaseRepository(db)}
}

func (s *store) Patients() repository.PatientRepository {
	return &patientRepository{s.BaseRepository}
}

func (s *store) Datasets() repository.DatasetRepository {
	return &datasetRepository{s.BaseRepository}
}

func (s *store) Users() repository.UserRepository {
	return &userRepository{s.BaseRepository}
}

func (s *store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.BaseRepository.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&store{BaseRepository{db: s.db, ext: tx}})
	})
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *store) Close() error {
	if s.InTx() {
		return nil
	}
	return s.db.Close()
}
