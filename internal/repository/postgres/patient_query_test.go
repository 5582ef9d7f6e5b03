package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/stroke-api/internal/model"
	"github.com/jwalitptl/stroke-api/internal/repository"
)

func TestBuildPatientQuery(t *testing.T) {
	tests := []struct {
		name      string
		pred      model.Predicate
		wantParts []string
		wantArgs  []interface{}
	}{
		{
			name:      "empty predicate selects everything",
			pred:      nil,
			wantParts: []string{"WHERE 1=1 ORDER BY id"},
			wantArgs:  []interface{}{},
		},
		{
			name: "text search reuses one placeholder",
			pred: model.Predicate{model.TextSearch{Term: "smok"}},
			wantParts: []string{
				"gender ILIKE '%' || $1 || '%' OR smoking_status ILIKE '%' || $1 || '%'",
			},
			wantArgs: []interface{}{"smok"},
		},
		{
			name: "all filters numbered in order",
			pred: model.Predicate{
				model.GenderEquals{Gender: "Female"},
				model.StrokeEquals{Stroke: true},
				model.AgeAtLeast{Age: 40},
				model.AgeAtMost{Age: 60},
			},
			wantParts: []string{
				"AND gender = $1",
				"AND stroke = $2",
				"AND age >= $3",
				"AND age <= $4",
				"ORDER BY id",
			},
			wantArgs: []interface{}{"Female", true, 40, 60},
		},
		{
			name:      "external id",
			pred:      model.Predicate{model.ExternalIDEquals{ExternalID: 9046}},
			wantParts: []string{"AND external_id = $1"},
			wantArgs:  []interface{}{int64(9046)},
		},
		{
			name:      "like metacharacters are escaped",
			pred:      model.Predicate{model.TextSearch{Term: "50%_"}},
			wantParts: []string{"ILIKE"},
			wantArgs:  []interface{}{`50\%\_`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildPatientQuery(tt.pred)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(query, "SELECT "))
			for _, part := range tt.wantParts {
				assert.Contains(t, query, part)
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

type unknownClause struct{}

func (unknownClause) Matches(*model.Patient) bool { return true }

func TestBuildPatientQuery_UnknownClause(t *testing.T) {
	_, _, err := buildPatientQuery(model.Predicate{unknownClause{}})
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	dup := mapError(&pq.Error{Code: uniqueViolation, Constraint: "patients_external_id_key"})
	assert.True(t, errors.Is(dup, repository.ErrDuplicate))
	assert.Contains(t, dup.Error(), "patients_external_id_key")

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}
