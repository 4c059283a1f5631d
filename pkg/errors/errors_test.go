package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", Clone(ErrJobNotReady, "job abc is RUNNING"))

	appErr := FromError(wrapped)
	assert.Equal(t, "JOB_NOT_READY", appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "job abc is RUNNING", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestIsComparesCodes(t *testing.T) {
	cause := errors.New("no seed")
	err := Wrap(cause, ErrNoSolutionFound.Code, ErrNoSolutionFound.Status, "resolve failed")

	assert.True(t, Is(err, ErrNoSolutionFound))
	assert.False(t, Is(err, ErrInvariantViolation))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, Is(cause, ErrNoSolutionFound))
}

func TestValidationListsFields(t *testing.T) {
	type payload struct {
		View   string `validate:"required,oneof=teacher class"`
		Format string `validate:"required"`
	}
	err := validator.New().Struct(payload{View: "room"})

	appErr := Validation(err, "invalid export request")
	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, []FieldError{
		{Field: "payload.View", Rule: "oneof", Param: "teacher class"},
		{Field: "payload.Format", Rule: "required"},
	}, appErr.Details)

	plain := Validation(errors.New("bad csv"), "bad csv")
	assert.Empty(t, plain.Details)
}
