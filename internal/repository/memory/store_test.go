package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
)

func newPatient(externalID int64, gender string, age int) *model.Patient {
	return &model.Patient{
		ExternalID:    externalID,
		Gender:        gender,
		Age:           age,
		EverMarried:   "Yes",
		WorkType:      model.WorkTypePrivate,
		ResidenceType: model.ResidenceUrban,
		SmokingStatus: model.SmokingNever,
	}
}

func TestPatientRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Patients()

	p := newPatient(100, model.GenderFemale, 50)
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, int64(1), p.ID)

	exists, err := repo.ExistsByExternalID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Create(ctx, newPatient(100, model.GenderMale, 20))
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	got, err := repo.FindByExternalID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	got.Age = 51
	got.ExternalID = 101
	require.NoError(t, repo.Update(ctx, got))

	exists, err = repo.ExistsByExternalID(ctx, 100)
	require.NoError(t, err)
	assert.False(t, exists)

	reloaded, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 51, reloaded.Age)
	assert.Equal(t, int64(101), reloaded.ExternalID)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, p.ID), repository.ErrNotFound))
}

func TestPatientRepository_SurrogateIDsNotReused(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Patients()

	first := newPatient(1, model.GenderMale, 30)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Delete(ctx, first.ID))

	second := newPatient(2, model.GenderMale, 30)
	require.NoError(t, repo.Create(ctx, second))
	assert.Greater(t, second.ID, first.ID)
}

func TestPatientRepository_FindAllOrdersByID(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Patients()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repo.Create(ctx, newPatient(i*10, model.GenderFemale, int(20+i))))
	}

	got, err := repo.FindAll(ctx, model.Predicate{model.AgeAtLeast{Age: 23}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID, got[i].ID)
	}

	// Returned records are copies.
	got[0].Gender = "changed"
	again, err := repo.Get(ctx, got[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.GenderFemale, again.Gender)
}

func TestPatientRepository_CreateBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Patients()

	require.NoError(t, repo.Create(ctx, newPatient(3, model.GenderMale, 40)))

	err := repo.CreateBatch(ctx, []*model.Patient{
		newPatient(1, model.GenderMale, 40),
		newPatient(3, model.GenderMale, 40),
	})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx repository.Store) error {
		ds := &model.Dataset{Name: "a.csv"}
		require.NoError(t, tx.Datasets().Create(ctx, ds))
		require.NoError(t, tx.Patients().Create(ctx, newPatient(7, model.GenderOther, 70)))
		return boom
	})
	assert.Equal(t, boom, err)

	count, err := store.Patients().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	datasets, err := store.Datasets().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestStore_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithTx(ctx, func(tx repository.Store) error {
		ds := &model.Dataset{Name: "b.csv"}
		if err := tx.Datasets().Create(ctx, ds); err != nil {
			return err
		}
		p := newPatient(8, model.GenderOther, 70)
		p.DatasetID = &ds.ID
		return tx.Patients().CreateBatch(ctx, []*model.Patient{p})
	})
	require.NoError(t, err)

	datasets, err := store.Datasets().List(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, int64(1), datasets[0].PatientCount)
}

func TestDatasetRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	ds := &model.Dataset{Name: "c.csv"}
	require.NoError(t, store.Datasets().Create(ctx, ds))

	linked := newPatient(1, model.GenderMale, 60)
	linked.DatasetID = &ds.ID
	require.NoError(t, store.Patients().Create(ctx, linked))
	require.NoError(t, store.Patients().Create(ctx, newPatient(2, model.GenderMale, 60)))

	require.NoError(t, store.Datasets().Delete(ctx, ds.ID))

	remaining, err := store.Patients().FindAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), remaining[0].ExternalID)

	exists, err := store.Patients().ExistsByExternalID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_EmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	require.NoError(t, users.Create(ctx, &model.User{Email: "Ann@Example.com", PasswordHash: "x"}))

	err := users.Create(ctx, &model.User{Email: "ann@example.com", PasswordHash: "y"})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))

	u, err := users.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann@Example.com", u.Email)
}
