package fields

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for field value operations.
var (
	ErrNotFound     = errors.New("section not found")
	ErrConflict     = errors.New("section was modified concurrently")
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid field value")
)

func unknownField(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownField, name)
}

func invalidValue(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
}

// MapHTTPStatus maps field domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownField), errors.Is(err, ErrInvalidValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
