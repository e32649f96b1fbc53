package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tourhub/offers/pkg/errors"
	"github.com/tourhub/offers/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteError(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"app error", apperrors.NotFound("offer", "o1"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped app error", fmt.Errorf("redeem: %w", apperrors.Conflict("usage limit reached")), http.StatusConflict, "CONFLICT"},
		{"bare sentinel", fmt.Errorf("get: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"unavailable sentinel", apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(logger.WithCorrelationID(r.Context(), "req-1"))

			WriteError(rec, r, tc.err, quiet)

			assert.Equal(t, tc.wantCode, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantErr, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password leaked"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestNewPaginatedResponse(t *testing.T) {
	p := NewPaginatedResponse[int](nil, 45, 2, 20)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.NotNil(t, p.Data)

	last := NewPaginatedResponse([]int{1}, 41, 3, 20)
	assert.False(t, last.HasNext)
}
