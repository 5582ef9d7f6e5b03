// Package exchange moves patient records between the store and CSV files,
// and manages the datasets that CSV uploads create.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
	"github.com/jwalitptl/stroke-api/internal/service/patient"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
	"github.com/jwalitptl/stroke-api/pkg/validator"
)

// ExchangeService is the CSV import/export and dataset API.
type ExchangeService interface {
	Import(ctx context.Context, r io.Reader, opts ImportOptions) (*model.ImportResult, error)
	Export(ctx context.Context, w io.Writer, params model.PatientSearchParams) (int, error)
	ListDatasets(ctx context.Context) ([]*model.Dataset, error)
	DeleteDataset(ctx context.Context, id int64) error
}

// Config holds the import defaults.
type Config struct {
	// Strict validates every imported row against the same rules as
	// single-record entry and rejects the whole file on any failure.
	Strict bool
}

// ImportOptions describe one upload.
type ImportOptions struct {
	// Name is stored on the dataset created for the upload, normally the
	// uploaded file name.
	Name       string
	UploadedBy *uuid.UUID
	// Strict overrides Config.Strict when set.
	Strict *bool
}

type Service struct {
	store     repository.Store
	patients  patient.PatientService
	validator validator.Validator
	cfg       Config
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewService(store repository.Store, patients patient.PatientService, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		patients:  patients,
		validator: validator.New(),
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With().Str("service", "exchange").Logger(),
	}
}

var _ ExchangeService = (*Service)(nil)

func (s *Service) ListDatasets(ctx context.Context) ([]*model.Dataset, error) {
	datasets, err := s.store.Datasets().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, nil
}

// DeleteDataset removes the dataset together with every patient it brought
// in.
func (s *Service) DeleteDataset(ctx context.Context, id int64) error {
	if err := s.store.Datasets().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("dataset", err)
		}
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	s.logger.Info().Int64("dataset_id", id).Msg("dataset deleted")
	return nil
}
