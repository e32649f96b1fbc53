package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		code     string
		sentinel error
	}{
		{"not found", NotFound("offer", "off-1"), http.StatusNotFound, "NOT_FOUND", ErrNotFound},
		{"already exists", AlreadyExists("offer", "code", "SUMMER"), http.StatusConflict, "ALREADY_EXISTS", ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, "INVALID_INPUT", ErrInvalidInput},
		{"conflict", Conflict("limit reached"), http.StatusConflict, "CONFLICT", ErrConflict},
		{"unauthorized", Unauthorized("no"), http.StatusUnauthorized, "UNAUTHORIZED", ErrUnauthorized},
		{"forbidden", Forbidden("no"), http.StatusForbidden, "FORBIDDEN", ErrForbidden},
		{"unavailable", Unavailable("down"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", ErrServiceUnavail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.ErrorIs(t, tc.err, tc.sentinel)
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("offer", "off-42")
	assert.Equal(t, "offer with id off-42 not found", err.Message)
	assert.Equal(t, "NOT_FOUND: offer with id off-42 not found: resource not found", err.Error())
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("get offer: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("redeem: %w", ErrConflict)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("x: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestHTTPStatus_WrappedAppError(t *testing.T) {
	err := fmt.Errorf("update offer: %w", InvalidInput("end date must be after start date"))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "end date must be after start date", appErr.Message)
}
