package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/tourhub/offers/pkg/errors"
)

type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response body and maps
// it to an AppError, preserving the envelope's code and message.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", service, resp.StatusCode, err)
	}

	var env downstreamError
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, body)
	}

	msg := env.Error.Message
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &apperrors.AppError{Code: env.Error.Code, Message: msg, Status: http.StatusNotFound, Err: apperrors.ErrNotFound}
	case http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusServiceUnavailable:
		return apperrors.Unavailable(service + ": " + msg)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s server error (%d/%s): %s", service, resp.StatusCode, env.Error.Code, msg)
	}
	return &apperrors.AppError{Code: env.Error.Code, Message: msg, Status: resp.StatusCode}
}
