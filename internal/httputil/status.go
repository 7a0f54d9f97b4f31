package httputil

import (
	"errors"
	"net/http"

	"github.com/justin13888/beam/internal/apperr"
)

// WriteAppError maps a sentinel apperr error to its HTTP status code and
// writes it as a Response. Unrecognized errors map to 500.
func WriteAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidID), errors.Is(err, apperr.ErrValidation):
		WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrPathNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, apperr.ErrUserAlreadyExists):
		WriteError(w, http.StatusBadRequest, "user_already_exists", err.Error())
	case errors.Is(err, apperr.ErrUnauthorized), errors.Is(err, apperr.ErrInvalidToken):
		WriteError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, apperr.ErrRangeNotSatisfiable):
		WriteError(w, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
