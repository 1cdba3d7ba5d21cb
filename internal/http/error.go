package http

import (
	"errors"
	"net/http"

	inErr "github.com/commercelab/storefront/internal/errors"
)

// ErrorStatusCode maps the domain error taxonomy to HTTP status codes.
// Anything outside the taxonomy is an internal error.
func ErrorStatusCode(err error) int {
	switch {
	case errors.Is(err, inErr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inErr.ErrUnauthorized),
		errors.Is(err, inErr.ErrEmptyAuth),
		errors.Is(err, inErr.ErrTokenInvalid),
		errors.Is(err, inErr.ErrPasswordMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, inErr.ErrEmailTaken),
		errors.Is(err, inErr.ErrEmptyCart),
		errors.Is(err, inErr.ErrOutOfStock),
		errors.Is(err, inErr.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, inErr.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, inErr.ErrProviderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, inErr.ErrProviderError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
