package autofill

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
)

var (
	// ErrDataSource reports an unreachable provider or an unusable response.
	ErrDataSource = errors.New("auto-fill data source error")
	// ErrNoSource is returned for sections without a configured data source.
	ErrNoSource = errors.New("section has no auto-fill data source")
)

// MapHTTPStatus maps auto-fill errors, and the field and section errors
// they wrap, to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrDataSource):
		return http.StatusBadGateway
	case errors.Is(err, ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, sections.ErrNotFound), errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	default:
		return fields.MapHTTPStatus(err)
	}
}
