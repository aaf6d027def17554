package editor

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/pkg/handlers"
	"github.com/JaimeStill/binder/pkg/routes"
)

// Handler provides HTTP endpoints for section fields and editor sessions.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "editor"),
	}
}

// Routes returns the field endpoints under /sections and the session
// endpoints under /sessions.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/sections",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{id}/fields", Handler: h.Schema},
					{Method: "PUT", Pattern: "/{id}/fields", Handler: h.SaveFields},
					{Method: "POST", Pattern: "/{id}/fields/reset", Handler: h.ResetFields},
					{Method: "POST", Pattern: "/{id}/autofill/apply", Handler: h.ApplyAutoFill},
					{Method: "POST", Pattern: "/{id}/sessions", Handler: h.Open},
				},
			},
			{
				Prefix: "/sessions",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{sid}", Handler: h.Get},
					{Method: "PATCH", Pattern: "/{sid}/fields", Handler: h.SetFields},
					{Method: "POST", Pattern: "/{sid}/save", Handler: h.Save},
					{Method: "POST", Pattern: "/{sid}/reset", Handler: h.Reset},
					{Method: "DELETE", Pattern: "/{sid}", Handler: h.Close},
				},
			},
		},
	}
}

type saveRequest struct {
	Values  map[string]string `json:"values"`
	Version int64             `json:"version"`
}

type applyRequest struct {
	Overrides map[string]string `json:"overrides"`
}

type valuesRequest struct {
	Values map[string]string `json:"values"`
}

// Schema returns the field schema merged with committed values.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	schema, err := h.sys.Schema(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, schema)
}

// SaveFields commits {values, version?} as user overrides.
func (h *Handler) SaveFields(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[saveRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	schema, err := h.sys.SaveFields(r.Context(), id, req.Values, req.Version)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, schema)
}

// ResetFields restores auto-fill data or schema defaults.
func (h *Handler) ResetFields(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	schema, err := h.sys.ResetFields(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, schema)
}

// ApplyAutoFill merges fresh provider data with optional {overrides}.
func (h *Handler) ApplyAutoFill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[applyRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	sec, err := h.sys.ApplyAutoFill(r.Context(), id, req.Overrides)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	sec.HasUnsavedChanges = h.sys.Unsaved(id)
	handlers.RespondJSON(w, http.StatusOK, sec)
}

// Open starts an editor session for a section.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.sys.Open(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, s.Schema())
}

// Get returns a session's working copy.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s.Schema())
}

// SetFields updates the working copy with {values}.
func (h *Handler) SetFields(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[valuesRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := s.SetFields(req.Values); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s.Schema())
}

// Save commits dirty fields, or an explicit {values} map.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[valuesRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if _, err := s.Save(r.Context(), req.Values); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s.Schema())
}

// Reset discards local edits and restores defaults.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Reset(r.Context()); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s.Schema())
}

// Close ends a session. Unsaved edits are discarded.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.Close(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, ok := h.pathID(w, r, "sid")
	if !ok {
		return nil, false
	}

	s, err := h.sys.Session(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return nil, false
	}
	return s, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := handlers.PathID(r, name)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return id, true
}
