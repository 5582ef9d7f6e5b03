package exchange

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/stroke-api/internal/model"
)

func decodeAll(t *testing.T, input string) ([]*row, error) {
	t.Helper()
	dec, err := newDecoder(strings.NewReader(input))
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

func TestDecoder_NormalisesHeader(t *testing.T) {
	input := "\ufeff ID ,Gender, AGE,Hypertension,ever_married,work_type,Residence_Type,avg_glucose_level,BMI,smoking_status, Stroke \n" +
		"9046,Male,67,0,Yes,Private,Urban,228.69,36.6,formerly smoked,1\n"

	rows, err := decodeAll(t, input)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	p := rows[0].patient
	assert.Equal(t, int64(9046), p.ExternalID)
	assert.Equal(t, "Male", p.Gender)
	assert.Equal(t, 67, p.Age)
	assert.False(t, p.Hypertension)
	assert.Equal(t, "Yes", p.EverMarried)
	assert.Equal(t, "Private", p.WorkType)
	assert.Equal(t, "Urban", p.ResidenceType)
	assert.Equal(t, 228.69, p.AvgGlucoseLevel)
	require.NotNil(t, p.BMI)
	assert.Equal(t, 36.6, *p.BMI)
	assert.Equal(t, "formerly smoked", p.SmokingStatus)
	assert.True(t, p.Stroke)
	assert.Equal(t, 2, rows[0].line)
}

func TestDecoder_Coercion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, p model.Patient)
	}{
		{
			name:  "blank and absent flags default to false",
			input: "id,hypertension\n1,\n",
			check: func(t *testing.T, p model.Patient) {
				assert.False(t, p.Hypertension)
				assert.False(t, p.Stroke)
			},
		},
		{
			name:  "non-zero flag is true",
			input: "id,hypertension,stroke\n1,2,1.0\n",
			check: func(t *testing.T, p model.Patient) {
				assert.True(t, p.Hypertension)
				assert.True(t, p.Stroke)
			},
		},
		{
			name:  "integral float age",
			input: "id,age\n1,45.0\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Equal(t, 45, p.Age)
			},
		},
		{
			name:  "blank bmi is unknown",
			input: "id,bmi\n1,\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Nil(t, p.BMI)
			},
		},
		{
			name:  "N/A bmi is unknown",
			input: "id,bmi\n1,N/A\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Nil(t, p.BMI)
			},
		},
		{
			name:  "absent columns keep zero values",
			input: "id\n7\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Equal(t, int64(7), p.ExternalID)
				assert.Empty(t, p.Gender)
				assert.Zero(t, p.Age)
				assert.Zero(t, p.AvgGlucoseLevel)
				assert.Nil(t, p.BMI)
			},
		},
		{
			name:  "strings are copied verbatim",
			input: "id,gender,work_type\n1, martian ,Astronaut\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Equal(t, " martian ", p.Gender)
				assert.Equal(t, "Astronaut", p.WorkType)
			},
		},
		{
			name:  "short rows are padded",
			input: "id,gender,age\n1,Female\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Equal(t, "Female", p.Gender)
				assert.Zero(t, p.Age)
			},
		},
		{
			name:  "unknown columns are ignored",
			input: "id,notes\n1,hello\n",
			check: func(t *testing.T, p model.Patient) {
				assert.Equal(t, int64(1), p.ExternalID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := decodeAll(t, tt.input)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			tt.check(t, rows[0].patient)
		})
	}
}

func TestDecoder_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		column string
	}{
		{name: "empty input", input: ""},
		{name: "unbalanced quotes", input: "id,gender\n1,\"Male\n"},
		{name: "row longer than header", input: "id,gender\n1,Male,extra\n"},
		{name: "non-numeric id", input: "id\nabc\n", column: "id"},
		{name: "fractional age", input: "id,age\n1,45.5\n", column: "age"},
		{name: "age out of range", input: "id,age\n1,99999999999\n", column: "age"},
		{name: "non-numeric glucose", input: "id,avg_glucose_level\n1,high\n", column: "avg_glucose_level"},
		{name: "non-numeric flag", input: "id,stroke\n1,yes\n", column: "stroke"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeAll(t, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedCSV)

			if tt.column != "" {
				var rowErr *RowError
				require.ErrorAs(t, err, &rowErr)
				assert.Equal(t, tt.column, rowErr.Column)
				assert.Equal(t, 2, rowErr.Line)
			}
		})
	}
}

func TestEncodeRecord(t *testing.T) {
	bmi := 28.1
	p := &model.Patient{
		ExternalID:      31112,
		Gender:          "Male",
		Age:             80,
		Hypertension:    false,
		EverMarried:     "Yes",
		WorkType:        "Private",
		ResidenceType:   "Rural",
		AvgGlucoseLevel: 105.92,
		BMI:             &bmi,
		SmokingStatus:   "never smoked",
		Stroke:          true,
	}
	assert.Equal(t,
		[]string{"31112", "Male", "80", "0", "Yes", "Private", "Rural", "105.92", "28.1", "never smoked", "1"},
		encodeRecord(p))

	p.BMI = nil
	p.AvgGlucoseLevel = 100
	record := encodeRecord(p)
	assert.Equal(t, "", record[8])
	assert.Equal(t, "100", record[7])
}
