package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
)

func validRequest(externalID int64) *model.PatientRequest {
	age := 54
	glucose := 105.92
	bmi := 32.5
	return &model.PatientRequest{
		ExternalID:      externalID,
		Gender:          model.GenderFemale,
		Age:             &age,
		Hypertension:    true,
		EverMarried:     "Yes",
		WorkType:        model.WorkTypeSelfEmployed,
		ResidenceType:   model.ResidenceUrban,
		AvgGlucoseLevel: &glucose,
		BMI:             &bmi,
		SmokingStatus:   model.SmokingNever,
		Stroke:          true,
	}
}

func TestService_CreatePatient(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.NewStore(), false)

	created, err := svc.CreatePatient(ctx, validRequest(9046))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(9046), created.ExternalID)
	assert.Equal(t, 54, created.Age)
	require.NotNil(t, created.BMI)
	assert.Equal(t, 32.5, *created.BMI)

	got, err := svc.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	t.Run("duplicate external id is a conflict", func(t *testing.T) {
		_, err := svc.CreatePatient(ctx, validRequest(9046))
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	})

	t.Run("invalid vocabulary is a validation error", func(t *testing.T) {
		req := validRequest(9047)
		req.WorkType = "Astronaut"
		_, err := svc.CreatePatient(ctx, req)
		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrValidation, appErr.Code)
		assert.NotEmpty(t, appErr.Details)
	})

	t.Run("age out of range is a validation error", func(t *testing.T) {
		req := validRequest(9048)
		age := 130
		req.Age = &age
		_, err := svc.CreatePatient(ctx, req)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
	})
}

func TestService_GetPatientNotFound(t *testing.T) {
	svc := newTestService(memory.NewStore(), false)

	_, err := svc.GetPatient(context.Background(), 404)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestService_UpdatePatient(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newTestService(store, false)

	dataset := &model.Dataset{Name: "upload"}
	require.NoError(t, store.Datasets().Create(ctx, dataset))

	linked := testPatient(1, model.GenderMale, 40, model.SmokingSmokes, false)
	linked.DatasetID = &dataset.ID
	seedPatients(t, store, linked, testPatient(2, model.GenderMale, 41, model.SmokingSmokes, false))

	t.Run("replaces fields and keeps dataset link", func(t *testing.T) {
		req := validRequest(100)
		updated, err := svc.UpdatePatient(ctx, linked.ID, req)
		require.NoError(t, err)
		assert.Equal(t, linked.ID, updated.ID)
		assert.Equal(t, int64(100), updated.ExternalID)
		assert.Equal(t, model.GenderFemale, updated.Gender)
		require.NotNil(t, updated.DatasetID)
		assert.Equal(t, dataset.ID, *updated.DatasetID)

		got, err := svc.GetPatient(ctx, linked.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("taking another record's external id is a conflict", func(t *testing.T) {
		_, err := svc.UpdatePatient(ctx, linked.ID, validRequest(2))
		assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
	})

	t.Run("missing record is not found", func(t *testing.T) {
		_, err := svc.UpdatePatient(ctx, 999, validRequest(300))
		assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	})
}

func TestService_DeletePatient(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newTestService(store, false)

	p := testPatient(7, model.GenderOther, 20, model.SmokingUnknown, false)
	seedPatients(t, store, p)

	require.NoError(t, svc.DeletePatient(ctx, p.ID))

	_, err := svc.GetPatient(ctx, p.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	err = svc.DeletePatient(ctx, p.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newTestService(store, false)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPatients)

	seedPatients(t, store,
		testPatient(1, model.GenderMale, 40, model.SmokingSmokes, false),
		testPatient(2, model.GenderFemale, 50, model.SmokingNever, true),
	)

	stats, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalPatients)
	assert.False(t, stats.GeneratedAt.IsZero())
}
