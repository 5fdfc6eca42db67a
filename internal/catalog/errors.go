package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"uploadflow/internal/upload"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrUnprocessable  = errors.New("unprocessable entity")
	ErrInternalServer = errors.New("internal server error")
	ErrRequest        = errors.New("request error")
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the catalog API or the storage behind an
// upload URL. It unwraps to one of the sentinel errors above.
type APIError struct {
	StatusCode int
	Status     string
	Response   upload.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Response.Message)
	}

	return e.Status
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case http.StatusInternalServerError:
		return ErrInternalServer
	default:
		return ErrRequest
	}
}

// checkResponse maps a non-2xx response to an *APIError, decoding the JSON
// error envelope when there is one.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) > 0 {
		var envelope upload.ErrorResponse
		if err := json.Unmarshal(body, &envelope); err == nil {
			apiErr.Response = envelope
		}
	}

	return apiErr
}
