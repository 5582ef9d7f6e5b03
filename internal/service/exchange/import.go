package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/validator"
)

// Columns a row must carry in strict mode. The flag columns default to
// false and bmi to unknown, so they may be left out.
var requiredColumns = []string{
	"id",
	"gender",
	"age",
	"ever_married",
	"work_type",
	"residence_type",
	"avg_glucose_level",
	"smoking_status",
}

// Import reads a CSV upload and inserts every row whose external id is not
// yet stored. Rows whose external id already exists, in the store or
// earlier in the same file, are counted as skipped and left alone.
//
// The existence checks and inserts share one store transaction: either
// every new row is stored or, on any error, none is.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ImportOptions) (*model.ImportResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	rows, err := s.readRows(r)
	if err != nil {
		s.metrics.ImportFailures.WithLabelValues("malformed").Inc()
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid csv file: %v", err), err)
	}

	strict := s.cfg.Strict
	if opts.Strict != nil {
		strict = *opts.Strict
	}
	if strict {
		if details := s.validateRows(rows); len(details) > 0 {
			s.metrics.ImportFailures.WithLabelValues("validation").Inc()
			return nil, apperrors.Validation(
				fmt.Sprintf("%d invalid rows in csv file", len(details)), details, nil)
		}
	}

	result := &model.ImportResult{}
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		result = &model.ImportResult{}

		fresh, err := s.partition(ctx, tx.Patients(), rows, result)
		if err != nil {
			return err
		}
		if len(fresh) == 0 {
			return nil
		}

		dataset := &model.Dataset{
			Name:       datasetName(opts.Name),
			UploadedAt: time.Now().UTC(),
			UploadedBy: opts.UploadedBy,
		}
		if err := tx.Datasets().Create(ctx, dataset); err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}
		for _, p := range fresh {
			p.DatasetID = &dataset.ID
		}
		if err := tx.Patients().CreateBatch(ctx, fresh); err != nil {
			return fmt.Errorf("failed to store imported patients: %w", err)
		}
		result.DatasetID = &dataset.ID
		return nil
	})
	if err != nil {
		s.metrics.ImportFailures.WithLabelValues("store").Inc()
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("csv import collided with a concurrent write, retry the upload", err)
		}
		return nil, fmt.Errorf("failed to import patients: %w", err)
	}

	s.metrics.ImportRows.WithLabelValues("imported").Add(float64(result.Imported))
	s.metrics.ImportRows.WithLabelValues("skipped").Add(float64(result.Skipped))

	event := s.logger.Info().
		Str("name", opts.Name).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped)
	if result.DatasetID != nil {
		event = event.Int64("dataset_id", *result.DatasetID)
	}
	event.Msg("csv import completed")

	return result, nil
}

func (s *Service) readRows(r io.Reader) ([]*row, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, err
	}

	var rows []*row
	for {
		rw, err := dec.next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rw)
	}
}

// partition splits rows into new patients and skipped duplicates.
func (s *Service) partition(ctx context.Context, repo repository.PatientRepository, rows []*row, result *model.ImportResult) ([]*model.Patient, error) {
	seen := make(map[int64]struct{}, len(rows))
	fresh := make([]*model.Patient, 0, len(rows))

	for _, rw := range rows {
		id := rw.patient.ExternalID
		if _, dup := seen[id]; dup {
			result.Skipped++
			continue
		}
		seen[id] = struct{}{}

		exists, err := repo.ExistsByExternalID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check external id %d: %w", id, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		p := rw.patient
		fresh = append(fresh, &p)
		result.Imported++
	}
	return fresh, nil
}

func (s *Service) validateRows(rows []*row) []string {
	var details []string
	for _, rw := range rows {
		var msgs []string
		for _, column := range requiredColumns {
			if !rw.present[column] {
				msgs = append(msgs, column+" is required")
			}
		}
		if err := s.validator.Validate(&rw.patient); err != nil {
			msgs = append(msgs, validator.Messages(err)...)
		}

		seen := make(map[string]struct{}, len(msgs))
		for _, msg := range msgs {
			if _, dup := seen[msg]; dup {
				continue
			}
			seen[msg] = struct{}{}
			details = append(details, fmt.Sprintf("line %d: %s", rw.line, msg))
		}
	}
	return details
}

func datasetName(name string) string {
	if name != "" {
		return name
	}
	return "import-" + time.Now().UTC().Format("20060102T150405Z")
}
