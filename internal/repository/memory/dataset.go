package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
)

type datasetRepository struct {
	s *Store
}

func (r *datasetRepository) Create(ctx context.Context, dataset *model.Dataset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st := r.s.state
	if dataset.UploadedAt.IsZero() {
		dataset.UploadedAt = time.Now().UTC()
	}
	st.nextDatasetID++
	dataset.ID = st.nextDatasetID
	st.datasets[dataset.ID] = *dataset
	return nil
}

func (r *datasetRepository) Get(ctx context.Context, id int64) (*model.Dataset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.state.datasets[id]
	if !ok {
		return nil, fmt.Errorf("failed to get dataset: %w", repository.ErrNotFound)
	}
	d.PatientCount = r.countPatients(id)
	return &d, nil
}

func (r *datasetRepository) List(ctx context.Context) ([]*model.Dataset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	datasets := make([]*model.Dataset, 0, len(r.s.state.datasets))
	for _, d := range r.s.state.datasets {
		d := d
		d.PatientCount = r.countPatients(d.ID)
		datasets = append(datasets, &d)
	}
	sort.Slice(datasets, func(i, j int) bool {
		if !datasets[i].UploadedAt.Equal(datasets[j].UploadedAt) {
			return datasets[i].UploadedAt.After(datasets[j].UploadedAt)
		}
		return datasets[i].ID > datasets[j].ID
	})
	return datasets, nil
}

func (r *datasetRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st := r.s.state
	if _, ok := st.datasets[id]; !ok {
		return fmt.Errorf("failed to delete dataset: %w", repository.ErrNotFound)
	}
	for pid, p := range st.patients {
		if p.DatasetID != nil && *p.DatasetID == id {
			delete(st.patients, pid)
			delete(st.byExternalID, p.ExternalID)
		}
	}
	delete(st.datasets, id)
	return nil
}

func (r *datasetRepository) countPatients(id int64) int64 {
	var n int64
	for _, p := range r.s.state.patients {
		if p.DatasetID != nil && *p.DatasetID == id {
			n++
		}
	}
	return n
}
