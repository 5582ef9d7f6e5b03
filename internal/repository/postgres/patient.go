package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/stroke-api/internal/model"
)

// batchSize keeps a multi-row insert well below the 65535 bind parameter
// limit of the wire protocol.
const batchSize = 500

type patientRepository struct {
	BaseRepository
}

func (r *patientRepository) FindAll(ctx context.Context, pred model.Predicate) ([]*model.Patient, error) {
	query, args, err := buildPatientQuery(pred)
	if err != nil {
		return nil, err
	}

	patients := []*model.Patient{}
	if err := sqlx.SelectContext(ctx, r.ext, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", mapError(err))
	}
	return &patient, nil
}

func (r *patientRepository) FindByExternalID(ctx context.Context, externalID int64) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE external_id = $1`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext, &patient, query, externalID); err != nil {
		return nil, fmt.Errorf("failed to get patient by external id: %w", mapError(err))
	}
	return &patient, nil
}

func (r *patientRepository) ExistsByExternalID(ctx context.Context, externalID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM patients WHERE external_id = $1)`
	if err := sqlx.GetContext(ctx, r.ext, &exists, query, externalID); err != nil {
		return false, fmt.Errorf("failed to check patient existence: %w", err)
	}
	return exists, nil
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			external_id, gender, age, hypertension, ever_married, work_type,
			residence_type, avg_glucose_level, bmi, smoking_status, stroke, dataset_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := sqlx.GetContext(ctx, r.ext, &patient.ID, query, patientArgs(patient)...)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", mapError(err))
	}
	return nil
}

// CreateBatch inserts patients with multi-row statements. Callers wanting
// all-or-nothing semantics run it inside Store.WithTx.
func (r *patientRepository) CreateBatch(ctx context.Context, patients []*model.Patient) error {
	for start := 0; start < len(patients); start += batchSize {
		end := start + batchSize
		if end > len(patients) {
			end = len(patients)
		}
		if err := r.insertChunk(ctx, patients[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *patientRepository) insertChunk(ctx context.Context, chunk []*model.Patient) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO patients (
		external_id, gender, age, hypertension, ever_married, work_type,
		residence_type, avg_glucose_level, bmi, smoking_status, stroke, dataset_id
	) VALUES `)

	args := make([]interface{}, 0, len(chunk)*12)
	for i, p := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < 12; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+j+1)
		}
		sb.WriteString(")")
		args = append(args, patientArgs(p)...)
	}
	sb.WriteString(" RETURNING id, external_id")

	rows, err := r.ext.QueryxContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("failed to insert patients: %w", mapError(err))
	}
	defer rows.Close()

	// external_id is unique, so it identifies each returned row.
	byExternal := make(map[int64]*model.Patient, len(chunk))
	for _, p := range chunk {
		byExternal[p.ExternalID] = p
	}
	for rows.Next() {
		var id, externalID int64
		if err := rows.Scan(&id, &externalID); err != nil {
			return fmt.Errorf("failed to scan inserted patient: %w", err)
		}
		if p, ok := byExternal[externalID]; ok {
			p.ID = id
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to insert patients: %w", mapError(err))
	}
	return nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			external_id = $1,
			gender = $2,
			age = $3,
			hypertension = $4,
			ever_married = $5,
			work_type = $6,
			residence_type = $7,
			avg_glucose_level = $8,
			bmi = $9,
			smoking_status = $10,
			stroke = $11,
			dataset_id = $12
		WHERE id = $13
	`
	args := append(patientArgs(patient), patient.ID)
	result, err := r.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", mapError(err))
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.ext.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := sqlx.GetContext(ctx, r.ext, &count, `SELECT COUNT(*) FROM patients`); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}

func patientArgs(p *model.Patient) []interface{} {
	return []interface{}{
		p.ExternalID,
		p.Gender,
		p.Age,
		p.Hypertension,
		p.EverMarried,
		p.WorkType,
		p.ResidenceType,
		p.AvgGlucoseLevel,
		p.BMI,
		p.SmokingStatus,
		p.Stroke,
		p.DatasetID,
	}
}
