package sections

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/pkg/handlers"
	"github.com/JaimeStill/binder/pkg/routes"
)

// Handler provides HTTP endpoints for section operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
	unsaved       func(uuid.UUID) bool
}

// NewHandler creates a Handler. A nil unsaved func reports no unsaved changes.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64, unsaved func(uuid.UUID) bool) *Handler {
	if unsaved == nil {
		unsaved = func(uuid.UUID) bool { return false }
	}
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "sections"),
		maxUploadSize: maxUploadSize,
		unsaved:       unsaved,
	}
}

// Routes returns the route group definition for section endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sections",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PUT", Pattern: "/{id}/sop", Handler: h.UpdateSOP},
			{Method: "PUT", Pattern: "/{id}/notes", Handler: h.UpdateNotes},
			{Method: "POST", Pattern: "/{id}/complete", Handler: h.Complete},
			{Method: "POST", Pattern: "/{id}/not-applicable", Handler: h.NotApplicable},
			{Method: "POST", Pattern: "/{id}/reset-status", Handler: h.ResetStatus},
			{Method: "POST", Pattern: "/{id}/documents", Handler: h.UploadDocument},
			{Method: "GET", Pattern: "/{id}/documents/{docId}/download", Handler: h.DownloadDocument},
			{Method: "DELETE", Pattern: "/{id}/documents/{docId}", Handler: h.DeleteDocument},
		},
	}
}

type sopRequest struct {
	Content string `json:"content"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type completeRequest struct {
	Force bool `json:"force"`
}

type notApplicableRequest struct {
	Reason string `json:"reason"`
}

// Find returns a section with its committed fields and supporting documents.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sec, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	h.respond(w, sec)
}

// UpdateSOP replaces the section's SOP text.
func (h *Handler) UpdateSOP(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, ok := decode[sopRequest](h, w, r)
	if !ok {
		return
	}

	sec, err := h.sys.UpdateSOP(r.Context(), id, req.Content)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	h.respond(w, sec)
}

// UpdateNotes replaces the section's notes.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, ok := decode[notesRequest](h, w, r)
	if !ok {
		return
	}

	sec, err := h.sys.UpdateNotes(r.Context(), id, req.Notes)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	h.respond(w, sec)
}

// Complete marks the section complete. Force is accepted from the body or ?force=true.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, ok := decode[completeRequest](h, w, r)
	if !ok {
		return
	}
	if f, err := strconv.ParseBool(r.URL.Query().Get("force")); err == nil && f {
		req.Force = true
	}

	sec, err := h.sys.Complete(r.Context(), id, req.Force)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	h.respond(w, sec)
}

// NotApplicable marks the section not applicable with an optional reason.
func (h *Handler) NotApplicable(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, ok := decode[notApplicableRequest](h, w, r)
	if !ok {
		return
	}

	sec, err := h.sys.NotApplicable(r.Context(), id, req.Reason)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	h.respond(w, sec)
}

// ResetStatus returns a complete or not-applicable section to not_started.
func (h *Handler) ResetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sec, err := h.sys.ResetStatus(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	h.respond(w, sec)
}

// UploadDocument attaches a multipart "file" with optional name, description,
// and uploaded_by form values.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrValidation, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: file required", ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrValidation, err))
		return
	}

	cmd := UploadCommand{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		UploadedBy:  r.FormValue("uploaded_by"),
		Filename:    header.Filename,
		ContentType: detectContentType(header.Header.Get("Content-Type"), data),
		Data:        data,
	}

	doc, err := h.sys.AddDocument(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, doc)
}

// DownloadDocument streams a supporting document.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	docID, err := handlers.PathID(r, "docId")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	doc, rc, err := h.sys.OpenDocument(r.Context(), id, docID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("document download interrupted", "document", docID, "error", err)
	}
}

// DeleteDocument removes a supporting document and its blob.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	docID, err := handlers.PathID(r, "docId")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.sys.DeleteDocument(r.Context(), id, docID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, sec *Section) {
	sec.HasUnsavedChanges = h.unsaved(sec.ID)
	handlers.RespondJSON(w, http.StatusOK, sec)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return id, true
}

func decode[T any](h *Handler, w http.ResponseWriter, r *http.Request) (T, bool) {
	req, err := handlers.DecodeJSON[T](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return req, false
	}
	return req, true
}

func detectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}
