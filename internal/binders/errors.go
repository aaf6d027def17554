package binders

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/binder/internal/templates"
)

var (
	ErrNotFound   = errors.New("binder not found")
	ErrValidation = errors.New("invalid binder")
	ErrNotReady   = errors.New("binder is not ready")
	ErrDuplicate  = errors.New("binder already exists")
)

// MapHTTPStatus maps binder domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
