package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
)

type patientRepository struct {
	s *Store
}

func (r *patientRepository) FindAll(ctx context.Context, pred model.Predicate) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	patients := []*model.Patient{}
	for _, p := range r.s.state.patients {
		if pred.Matches(&p) {
			c := clonePatient(p)
			patients = append(patients, &c)
		}
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].ID < patients[j].ID })
	return patients, nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.state.patients[id]
	if !ok {
		return nil, fmt.Errorf("failed to get patient: %w", repository.ErrNotFound)
	}
	c := clonePatient(p)
	return &c, nil
}

func (r *patientRepository) FindByExternalID(ctx context.Context, externalID int64) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.state.byExternalID[externalID]
	if !ok {
		return nil, fmt.Errorf("failed to get patient by external id: %w", repository.ErrNotFound)
	}
	c := clonePatient(r.s.state.patients[id])
	return &c, nil
}

func (r *patientRepository) ExistsByExternalID(ctx context.Context, externalID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.state.byExternalID[externalID]
	return ok, nil
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.insert(patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// CreateBatch either inserts every patient or none of them.
func (r *patientRepository) CreateBatch(ctx context.Context, patients []*model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[int64]struct{}, len(patients))
	for _, p := range patients {
		if _, dup := seen[p.ExternalID]; dup {
			return fmt.Errorf("failed to insert patients: %w: external id %d", repository.ErrDuplicate, p.ExternalID)
		}
		if _, exists := r.s.state.byExternalID[p.ExternalID]; exists {
			return fmt.Errorf("failed to insert patients: %w: external id %d", repository.ErrDuplicate, p.ExternalID)
		}
		if err := r.checkDataset(p); err != nil {
			return fmt.Errorf("failed to insert patients: %w", err)
		}
		seen[p.ExternalID] = struct{}{}
	}

	for _, p := range patients {
		if err := r.insert(p); err != nil {
			return fmt.Errorf("failed to insert patients: %w", err)
		}
	}
	return nil
}

// insert must be called with the write lock held.
func (r *patientRepository) insert(p *model.Patient) error {
	st := r.s.state
	if _, exists := st.byExternalID[p.ExternalID]; exists {
		return fmt.Errorf("%w: external id %d", repository.ErrDuplicate, p.ExternalID)
	}
	if err := r.checkDataset(p); err != nil {
		return err
	}

	st.nextPatientID++
	p.ID = st.nextPatientID
	st.patients[p.ID] = clonePatient(*p)
	st.byExternalID[p.ExternalID] = p.ID
	return nil
}

func (r *patientRepository) checkDataset(p *model.Patient) error {
	if p.DatasetID == nil {
		return nil
	}
	if _, ok := r.s.state.datasets[*p.DatasetID]; !ok {
		return fmt.Errorf("dataset %d: %w", *p.DatasetID, repository.ErrNotFound)
	}
	return nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st := r.s.state
	current, ok := st.patients[patient.ID]
	if !ok {
		return fmt.Errorf("failed to update patient: %w", repository.ErrNotFound)
	}
	if owner, taken := st.byExternalID[patient.ExternalID]; taken && owner != patient.ID {
		return fmt.Errorf("failed to update patient: %w: external id %d", repository.ErrDuplicate, patient.ExternalID)
	}
	if err := r.checkDataset(patient); err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}

	delete(st.byExternalID, current.ExternalID)
	st.patients[patient.ID] = clonePatient(*patient)
	st.byExternalID[patient.ExternalID] = patient.ID
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st := r.s.state
	p, ok := st.patients[id]
	if !ok {
		return fmt.Errorf("failed to delete patient: %w", repository.ErrNotFound)
	}
	delete(st.patients, id)
	delete(st.byExternalID, p.ExternalID)
	return nil
}

func (r *patientRepository) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.s.state.patients)), nil
}
