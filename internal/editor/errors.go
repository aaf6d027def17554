package editor

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/binder/internal/autofill"
)

var (
	ErrSessionNotFound = errors.New("editor session not found")
	ErrSessionOpen     = errors.New("section already has an open editor session")
	ErrSessionClosed   = errors.New("editor session closed")
	ErrSaveInFlight    = errors.New("a save is in progress for this section")
)

// MapHTTPStatus maps editor errors, and the domain errors they wrap, to
// HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionOpen), errors.Is(err, ErrSessionClosed), errors.Is(err, ErrSaveInFlight):
		return http.StatusConflict
	default:
		return autofill.MapHTTPStatus(err)
	}
}
