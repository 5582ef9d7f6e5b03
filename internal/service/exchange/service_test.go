package exchange

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository/memory"
	"github.com/jwalitptl/stroke-api/internal/service/patient"
	apperrors "github.com/jwalitptl/stroke-api/pkg/errors"
	"github.com/jwalitptl/stroke-api/pkg/logger"
	"github.com/jwalitptl/stroke-api/pkg/metrics"
)

const sampleHeader = "id,gender,age,hypertension,ever_married,work_type,residence_type,avg_glucose_level,bmi,smoking_status,stroke\n"

const sampleCSV = sampleHeader +
	"9046,Male,67,0,Yes,Private,Urban,228.69,36.6,formerly smoked,1\n" +
	"51676,Female,61,0,Yes,Self-employed,Rural,202.21,N/A,never smoked,1\n" +
	"31112,Male,80,0,Yes,Private,Rural,105.92,32.5,never smoked,1\n" +
	"60182,Female,49,0,Yes,Private,Urban,171.23,34.4,smokes,1\n" +
	"1665,Female,79,1,Yes,Self-employed,Rural,174.12,24,never smoked,1\n" +
	"56669,Male,81,0,Yes,Private,Urban,186.21,29,formerly smoked,0\n"

type fixture struct {
	store    *memory.Store
	patients *patient.Service
	svc      *Service
}

func newFixture(cfg Config) *fixture {
	store := memory.NewStore()
	m := metrics.NewNop()
	patients := patient.NewService(store.Patients(), patient.QueryBuilder{}, m, logger.Nop())
	return &fixture{
		store:    store,
		patients: patients,
		svc:      NewService(store, patients, cfg, m, logger.Nop()),
	}
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Patients().Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestImport_StoresNewRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})
	uploader := uuid.New()

	result, err := f.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{Name: "stroke.csv", UploadedBy: &uploader})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	require.NotNil(t, result.DatasetID)
	assert.Equal(t, int64(6), f.count(t))

	dataset, err := f.store.Datasets().Get(ctx, *result.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "stroke.csv", dataset.Name)
	assert.Equal(t, int64(6), dataset.PatientCount)
	require.NotNil(t, dataset.UploadedBy)
	assert.Equal(t, uploader, *dataset.UploadedBy)

	p, err := f.store.Patients().FindByExternalID(ctx, 51676)
	require.NoError(t, err)
	assert.Nil(t, p.BMI)
	require.NotNil(t, p.DatasetID)
	assert.Equal(t, *result.DatasetID, *p.DatasetID)
}

func TestImport_ReimportSkipsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})

	_, err := f.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{Name: "first.csv"})
	require.NoError(t, err)

	result, err := f.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{Name: "second.csv"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 6, result.Skipped)
	assert.Nil(t, result.DatasetID)
	assert.Equal(t, int64(6), f.count(t))

	datasets, err := f.svc.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Len(t, datasets, 1)
}

func TestImport_OneNewOneDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})

	_, err := f.svc.Import(ctx, strings.NewReader(sampleHeader+"1,Male,30,0,No,Private,Urban,90,22,smokes,0\n"), ImportOptions{})
	require.NoError(t, err)
	before := f.count(t)

	input := sampleHeader +
		"1,Male,30,0,No,Private,Urban,90,22,smokes,0\n" +
		"2,Female,40,0,Yes,Govt_job,Rural,95,,Unknown,0\n"
	result, err := f.svc.Import(ctx, strings.NewReader(input), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, &model.ImportResult{Imported: 1, Skipped: 1, DatasetID: result.DatasetID}, result)
	assert.Equal(t, before+1, f.count(t))
}

func TestImport_DuplicateWithinFile(t *testing.T) {
	f := newFixture(Config{})

	input := sampleHeader +
		"5,Male,30,0,No,Private,Urban,90,22,smokes,0\n" +
		"5,Female,40,0,Yes,Govt_job,Rural,95,,Unknown,0\n"
	result, err := f.svc.Import(context.Background(), strings.NewReader(input), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	p, err := f.store.Patients().FindByExternalID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Male", p.Gender)
}

func TestImport_MalformedFileStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})

	inputs := map[string]string{
		"empty":          "",
		"bad quotes":     sampleHeader + "1,\"Male,30\n",
		"too many cells": sampleHeader + "1,Male,30,0,No,Private,Urban,90,22,smokes,0,extra\n",
		"bad number":     sampleHeader + "1,Male,30,0,No,Private,Urban,90,22,smokes,0\n2,Male,old,0,No,Private,Urban,90,22,smokes,0\n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Import(ctx, strings.NewReader(input), ImportOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedCSV)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
			assert.Zero(t, f.count(t))
		})
	}
}

func TestImport_HeaderOnly(t *testing.T) {
	f := newFixture(Config{})

	result, err := f.svc.Import(context.Background(), strings.NewReader(sampleHeader), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, &model.ImportResult{}, result)
}

func TestImport_PermissiveAcceptsInvalidValues(t *testing.T) {
	f := newFixture(Config{})

	input := "ID,Gender,Age\n77,Martian,150\n"
	result, err := f.svc.Import(context.Background(), strings.NewReader(input), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	p, err := f.store.Patients().FindByExternalID(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, "Martian", p.Gender)
	assert.Equal(t, 150, p.Age)
	assert.Empty(t, p.WorkType)
}

func TestImport_Strict(t *testing.T) {
	ctx := context.Background()
	invalid := sampleHeader +
		"1,Male,30,0,No,Private,Urban,90,22,smokes,0\n" +
		"2,Martian,150,0,Yes,Private,Urban,90,,smokes,0\n"

	t.Run("config rejects the whole file", func(t *testing.T) {
		f := newFixture(Config{Strict: true})
		_, err := f.svc.Import(ctx, strings.NewReader(invalid), ImportOptions{})
		require.Error(t, err)

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrValidation, appErr.Code)
		require.Len(t, appErr.Details, 2)
		for _, d := range appErr.Details {
			assert.True(t, strings.HasPrefix(d, "line 3: "), d)
		}
		assert.Zero(t, f.count(t))
	})

	t.Run("missing columns fail", func(t *testing.T) {
		f := newFixture(Config{Strict: true})
		_, err := f.svc.Import(ctx, strings.NewReader("id,gender\n1,Male\n"), ImportOptions{})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
	})

	t.Run("valid file passes", func(t *testing.T) {
		f := newFixture(Config{Strict: true})
		result, err := f.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 6, result.Imported)
	})

	t.Run("option overrides config", func(t *testing.T) {
		strict := true
		f := newFixture(Config{})
		_, err := f.svc.Import(ctx, strings.NewReader(invalid), ImportOptions{Strict: &strict})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

		strict = false
		f = newFixture(Config{Strict: true})
		result, err := f.svc.Import(ctx, strings.NewReader(invalid), ImportOptions{Strict: &strict})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("no matches still writes the header", func(t *testing.T) {
		f := newFixture(Config{})
		var buf bytes.Buffer
		n, err := f.svc.Export(ctx, &buf, model.PatientSearchParams{})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, sampleHeader, buf.String())
	})

	t.Run("rows follow the search result", func(t *testing.T) {
		f := newFixture(Config{})
		_, err := f.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{})
		require.NoError(t, err)

		params := model.PatientSearchParams{Gender: "Female", AgeMin: "50"}
		want, err := f.patients.Search(ctx, params)
		require.NoError(t, err)

		var buf bytes.Buffer
		n, err := f.svc.Export(ctx, &buf, params)
		require.NoError(t, err)
		assert.Equal(t, len(want), n)

		expected := sampleHeader +
			"51676,Female,61,0,Yes,Self-employed,Rural,202.21,,never smoked,1\n" +
			"1665,Female,79,1,Yes,Self-employed,Rural,174.12,24,never smoked,1\n"
		assert.Equal(t, expected, buf.String())
	})

	t.Run("round trip is idempotent", func(t *testing.T) {
		f := newFixture(Config{})
		_, err := f.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{})
		require.NoError(t, err)

		var buf bytes.Buffer
		n, err := f.svc.Export(ctx, &buf, model.PatientSearchParams{})
		require.NoError(t, err)
		assert.Equal(t, 6, n)

		result, err := f.svc.Import(ctx, &buf, ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Imported)
		assert.Equal(t, 6, result.Skipped)
	})

	t.Run("exported file imports into an empty store unchanged", func(t *testing.T) {
		src := newFixture(Config{})
		_, err := src.svc.Import(ctx, strings.NewReader(sampleCSV), ImportOptions{})
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = src.svc.Export(ctx, &buf, model.PatientSearchParams{})
		require.NoError(t, err)

		dst := newFixture(Config{Strict: true})
		_, err = dst.svc.Import(ctx, bytes.NewReader(buf.Bytes()), ImportOptions{})
		require.NoError(t, err)

		var again bytes.Buffer
		_, err = dst.svc.Export(ctx, &again, model.PatientSearchParams{})
		require.NoError(t, err)
		assert.Equal(t, buf.String(), again.String())
	})
}

func TestDatasets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(Config{})

	first, err := f.svc.Import(ctx, strings.NewReader(sampleHeader+"1,Male,30,0,No,Private,Urban,90,22,smokes,0\n"), ImportOptions{Name: "a.csv"})
	require.NoError(t, err)
	second, err := f.svc.Import(ctx, strings.NewReader(sampleHeader+"2,Male,30,0,No,Private,Urban,90,22,smokes,0\n3,Male,30,0,No,Private,Urban,90,22,smokes,0\n"), ImportOptions{Name: "b.csv"})
	require.NoError(t, err)

	datasets, err := f.svc.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 2)

	counts := map[string]int64{}
	for _, d := range datasets {
		counts[d.Name] = d.PatientCount
	}
	assert.Equal(t, map[string]int64{"a.csv": 1, "b.csv": 2}, counts)

	require.NoError(t, f.svc.DeleteDataset(ctx, *second.DatasetID))
	assert.Equal(t, int64(1), f.count(t))

	exists, err := f.store.Patients().ExistsByExternalID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	remaining, err := f.svc.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, *first.DatasetID, remaining[0].ID)

	err = f.svc.DeleteDataset(ctx, *second.DatasetID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}
