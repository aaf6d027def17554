package render

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
)

var (
	ErrRender = errors.New("pdf render failed")
	ErrClosed = errors.New("render coordinator closed")
)

func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, sections.ErrNotFound), errors.Is(err, templates.ErrNotFound), errors.Is(err, fields.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRender):
		return http.StatusBadGateway
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
