package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/stroke-api/internal/model"
)

type datasetRepository struct {
	BaseRepository
}

func (r *datasetRepository) Create(ctx context.Context, dataset *model.Dataset) error {
	query := `
		INSERT INTO datasets (name, uploaded_at, uploaded_by)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if dataset.UploadedAt.IsZero() {
		dataset.UploadedAt = time.Now().UTC()
	}

	err := sqlx.GetContext(ctx, r.ext, &dataset.ID, query,
		dataset.Name,
		dataset.UploadedAt,
		dataset.UploadedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", mapError(err))
	}
	return nil
}

func (r *datasetRepository) Get(ctx context.Context, id int64) (*model.Dataset, error) {
	query := `
		SELECT d.id, d.name, d.uploaded_at, d.uploaded_by, COUNT(p.id) AS patient_count
		FROM datasets d
		LEFT JOIN patients p ON p.dataset_id = d.id
		WHERE d.id = $1
		GROUP BY d.id
	`
	var dataset model.Dataset
	if err := sqlx.GetContext(ctx, r.ext, &dataset, query, id); err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", mapError(err))
	}
	return &dataset, nil
}

func (r *datasetRepository) List(ctx context.Context) ([]*model.Dataset, error) {
	query := `
		SELECT d.id, d.name, d.uploaded_at, d.uploaded_by, COUNT(p.id) AS patient_count
		FROM datasets d
		LEFT JOIN patients p ON p.dataset_id = d.id
		GROUP BY d.id
		ORDER BY d.uploaded_at DESC, d.id DESC
	`
	datasets := []*model.Dataset{}
	if err := sqlx.SelectContext(ctx, r.ext, &datasets, query); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, nil
}

// Delete relies on ON DELETE CASCADE to remove the dataset's patients.
func (r *datasetRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.ext.ExecContext(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}
