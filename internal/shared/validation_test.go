package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleForm struct {
	Email  string `form:"email" validate:"required,email"`
	Pin    string `form:"pinCode" validate:"required,numeric,min=4,max=10"`
	Gender string `form:"gender" validate:"omitempty,oneof=male female other"`
	DOB    string `form:"dob" validate:"required,datetime=2006-01-02"`
}

func TestValidateForm(t *testing.T) {
	err := ValidateForm(sampleForm{Email: "nope", Pin: "12", Gender: "x", DOB: "12/04/1990"})
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"email":   "Enter a valid email address.",
		"pinCode": "Must be at least 4 characters.",
		"gender":  "Choose one of: male, female, other.",
		"dob":     "Enter a date as YYYY-MM-DD.",
	}, FieldErrors(err))
	assert.Contains(t, err.Error(), "validation failed")

	assert.NoError(t, ValidateForm(sampleForm{Email: "a@b.io", Pin: "560001", DOB: "1990-04-12"}))
	assert.Nil(t, FieldErrors(errors.New("other")))
}
