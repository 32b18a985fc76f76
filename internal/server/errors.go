package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/openai"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotConfigured indicates a feature whose configuration is missing.
type ErrNotConfigured struct {
	Feature string
}

func (e *ErrNotConfigured) Error() string {
	return fmt.Sprintf("%s not configured", e.Feature)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		upstream   *openai.UpstreamError
		unavail    *bullhorn.UnavailableError
	)

	switch {
	case errors.Is(err, credential.ErrUnauthenticated):
		return http.StatusBadRequest
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return upstream.StatusCode
	case errors.As(err, &unavail):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the client-facing message for err.
func errorMessage(err error) string {
	if errors.Is(err, credential.ErrUnauthenticated) {
		return notConnectedMessage
	}
	return err.Error()
}
