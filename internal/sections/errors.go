package sections

import (
	"errors"
	"net/http"
)

// Domain errors for section operations.
var (
	ErrNotFound            = errors.New("section not found")
	ErrDocumentNotFound    = errors.New("supporting document not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrValidation          = errors.New("validation failed")
	ErrRequiredFieldsEmpty = errors.New("required fields are empty")
	ErrConflict            = errors.New("section status changed concurrently")
	ErrStorage             = errors.New("storage operation failed")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
)

// MapHTTPStatus maps section domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrRequiredFieldsEmpty):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
