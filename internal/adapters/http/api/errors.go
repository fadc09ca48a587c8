package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/plusolver/internal/adapters/easyplu"
	"github.com/okian/plusolver/internal/adapters/repository"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/domain/inflight"
	"github.com/okian/plusolver/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing or invalid api key")
	ErrStreaming    = errors.New("streaming unsupported")
)

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, model.ErrMissingCredentials),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, easyplu.ErrAuth):
		return http.StatusUnauthorized, "vendor_unauthorized"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, inflight.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, service.ErrSafetyBound):
		return http.StatusUnprocessableEntity, "max_attempts"
	case errors.Is(err, easyplu.ErrUpstream), errors.Is(err, easyplu.ErrTransport):
		return http.StatusBadGateway, "upstream"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
