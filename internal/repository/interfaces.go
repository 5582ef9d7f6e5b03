package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/stroke-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup by key matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write would break a uniqueness
	// constraint, such as a second patient with the same external id.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	// PatientRepository is the patient store. FindAll returns the records
	// matching every clause of pred, ordered by ascending surrogate id.
	PatientRepository interface {
		FindAll(ctx context.Context, pred model.Predicate) ([]*model.Patient, error)
		Get(ctx context.Context, id int64) (*model.Patient, error)
		FindByExternalID(ctx context.Context, externalID int64) (*model.Patient, error)
		ExistsByExternalID(ctx context.Context, externalID int64) (bool, error)
		Create(ctx context.Context, patient *model.Patient) error
		CreateBatch(ctx context.Context, patients []*model.Patient) error
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id int64) error
		Count(ctx context.Context) (int64, error)
	}

	DatasetRepository interface {
		Create(ctx context.Context, dataset *model.Dataset) error
		Get(ctx context.Context, id int64) (*model.Dataset, error)
		List(ctx context.Context) ([]*model.Dataset, error)
		// Delete removes the dataset and every patient linked to it.
		Delete(ctx context.Context, id int64) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByResetToken(ctx context.Context, token string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
	}

	// Store bundles the repositories over one backing store. WithTx runs fn
	// against a transactional view of the store: every write made through
	// the Store passed to fn is committed when fn returns nil and discarded
	// otherwise.
	Store interface {
		Patients() PatientRepository
		Datasets() DatasetRepository
		Users() UserRepository
		WithTx(ctx context.Context, fn func(tx Store) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
