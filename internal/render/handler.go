package render

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/pkg/handlers"
	"github.com/JaimeStill/binder/pkg/routes"
)

// Handler provides HTTP endpoints for section PDFs.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "render"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sections",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/pdf", Handler: h.View},
			{Method: "GET", Pattern: "/{id}/pdf/download", Handler: h.Download},
			{Method: "DELETE", Pattern: "/{id}/pdf", Handler: h.Release},
		},
	}
}

// View renders the section and serves the held artifact inline.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	art, f, err := h.sys.Open(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", art.Filename))
	http.ServeContent(w, r, art.Filename, art.RenderedAt, f)
}

// Download streams a freshly rendered copy as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	art, rc, err := h.sys.Download(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(art.SizeBytes, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("pdf download interrupted", "section", id, "error", err)
	}
}

// Release drops the section's held artifact.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	h.sys.Release(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return id, true
}
