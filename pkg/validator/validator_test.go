package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string `json:"name" validate:"required"`
	Age     int    `json:"age" validate:"min=0,max=120"`
	Smoking string `json:"smoking_status" validate:"oneof='never smoked' smokes"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&sample{Name: "a", Age: 30, Smoking: "never smoked"}))

	err := v.Validate(&sample{Age: 130, Smoking: "sometimes"})
	require.Error(t, err)

	var errs Errors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 3)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "required", errs[0].Rule)
	assert.Equal(t, "age", errs[1].Field)
	assert.Equal(t, "smoking_status", errs[2].Field)

	msgs := Messages(err)
	assert.Equal(t, "name is required", msgs[0])
	assert.Contains(t, msgs[1], "at most 120")
}

func TestMessages_PlainError(t *testing.T) {
	assert.Equal(t, []string{"boom"}, Messages(errors.New("boom")))
}
