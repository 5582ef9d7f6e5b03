// Package memory provides an in-process repository.Store. Transactions run
// against a cloned state that replaces the live state on commit, so a
// failed WithTx leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
)

type state struct {
	patients      map[int64]model.Patient
	byExternalID  map[int64]int64
	datasets      map[int64]model.Dataset
	users         map[uuid.UUID]model.User
	nextPatientID int64
	nextDatasetID int64
}

func newState() *state {
	return &state{
		patients:     map[int64]model.Patient{},
		byExternalID: map[int64]int64{},
		datasets:     map[int64]model.Dataset{},
		users:        map[uuid.UUID]model.User{},
	}
}

func (s *state) clone() *state {
	c := &state{
		patients:      make(map[int64]model.Patient, len(s.patients)),
		byExternalID:  make(map[int64]int64, len(s.byExternalID)),
		datasets:      make(map[int64]model.Dataset, len(s.datasets)),
		users:         make(map[uuid.UUID]model.User, len(s.users)),
		nextPatientID: s.nextPatientID,
		nextDatasetID: s.nextDatasetID,
	}
	for k, v := range s.patients {
		c.patients[k] = clonePatient(v)
	}
	for k, v := range s.byExternalID {
		c.byExternalID[k] = v
	}
	for k, v := range s.datasets {
		c.datasets[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// Store is a repository.Store held entirely in memory.
type Store struct {
	mu    sync.RWMutex
	state *state
	inTx  bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{s}
}

func (s *Store) Datasets() repository.DatasetRepository {
	return &datasetRepository{s}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{s}
}

// WithTx holds the store's write lock for the whole of fn, which makes
// transactions serialisable with respect to every other caller.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &Store{state: s.state.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func clonePatient(p model.Patient) model.Patient {
	if p.BMI != nil {
		bmi := *p.BMI
		p.BMI = &bmi
	}
	if p.DatasetID != nil {
		id := *p.DatasetID
		p.DatasetID = &id
	}
	return p
}
