package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
	"github.com/jwalitptl/stroke-api/pkg/validator"
)

// PatientService is the patient records API used by handlers and the CSV
// exchange.
type PatientService interface {
	Search(ctx context.Context, params model.PatientSearchParams) ([]*model.Patient, error)
	CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id int64) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id int64, req *model.PatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id int64) error
	Dashboard(ctx context.Context) (*model.DashboardStats, error)
}

type Service struct {
	repo      repository.PatientRepository
	builder   QueryBuilder
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewService(repo repository.PatientRepository, builder QueryBuilder, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		builder:   builder,
		validator: validator.New(),
		metrics:   m,
		logger:    logger.With().Str("service", "patient").Logger(),
	}
}

var _ PatientService = (*Service)(nil)

// Search runs the composed query. A numeric search term also runs the
// external id branch; the union is deduplicated by surrogate id.
func (s *Service) Search(ctx context.Context, params model.PatientSearchParams) ([]*model.Patient, error) {
	q := s.builder.Build(params)

	patients, err := s.repo.FindAll(ctx, q.Primary)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}

	branch := "false"
	if q.ByExternalID != nil {
		branch = "true"
		byID, err := s.repo.FindAll(ctx, q.ByExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to search patients by external id: %w", err)
		}
		patients = mergeByID(patients, byID)
	}

	s.metrics.PatientSearches.WithLabelValues(branch).Inc()
	s.metrics.PatientSearchHits.Observe(float64(len(patients)))
	return patients, nil
}

func (s *Service) CreatePatient(ctx context.Context, req *model.PatientRequest) (*model.Patient, error) {
	patient := req.ToPatient()
	if err := s.validatePatient(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		s.metrics.PatientWrites.WithLabelValues("create", "error").Inc()
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(
				fmt.Sprintf("patient with external id %d already exists", patient.ExternalID), err)
		}
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.metrics.PatientWrites.WithLabelValues("create", "success").Inc()
	s.logger.Info().Int64("patient_id", patient.ID).Int64("external_id", patient.ExternalID).Msg("patient created")
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

// UpdatePatient replaces every field of the record, external id included.
// The dataset link is kept.
func (s *Service) UpdatePatient(ctx context.Context, id int64, req *model.PatientRequest) (*model.Patient, error) {
	existing, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	patient := req.ToPatient()
	patient.ID = existing.ID
	patient.DatasetID = existing.DatasetID
	if err := s.validatePatient(patient); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		s.metrics.PatientWrites.WithLabelValues("update", "error").Inc()
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict(
				fmt.Sprintf("patient with external id %d already exists", patient.ExternalID), err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	s.metrics.PatientWrites.WithLabelValues("update", "success").Inc()
	s.logger.Info().Int64("patient_id", patient.ID).Msg("patient updated")
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.metrics.PatientWrites.WithLabelValues("delete", "error").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("patient", err)
		}
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	s.metrics.PatientWrites.WithLabelValues("delete", "success").Inc()
	s.logger.Info().Int64("patient_id", id).Msg("patient deleted")
	return nil
}

func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	return &model.DashboardStats{
		TotalPatients: count,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

func (s *Service) validatePatient(p *model.Patient) error {
	if err := s.validator.Validate(p); err != nil {
		return apperrors.Validation("invalid patient data", validator.Messages(err), err)
	}
	return nil
}
