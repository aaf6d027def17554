package sections_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/pkg/routes"
)

type fakeSystem struct {
	sections.System
	sec      *sections.Section
	err      error
	force    bool
	reason   string
	uploaded *sections.UploadCommand
}

func (f *fakeSystem) Find(ctx context.Context, id uuid.UUID) (*sections.Section, error) {
	return f.sec, f.err
}

func (f *fakeSystem) Complete(ctx context.Context, id uuid.UUID, force bool) (*sections.Section, error) {
	f.force = force
	if f.err != nil {
		return nil, f.err
	}
	f.sec.Status = sections.StatusComplete
	return f.sec, nil
}

func (f *fakeSystem) NotApplicable(ctx context.Context, id uuid.UUID, reason string) (*sections.Section, error) {
	f.reason = reason
	return f.sec, f.err
}

func (f *fakeSystem) ResetStatus(ctx context.Context, id uuid.UUID) (*sections.Section, error) {
	return f.sec, f.err
}

func (f *fakeSystem) UpdateSOP(ctx context.Context, id uuid.UUID, content string) (*sections.Section, error) {
	if len(content) > sections.MaxTextSize {
		return nil, sections.ErrValidation
	}
	f.sec.SOPContent = content
	return f.sec, nil
}

func (f *fakeSystem) AddDocument(ctx context.Context, id uuid.UUID, cmd sections.UploadCommand) (*sections.SupportingDocument, error) {
	f.uploaded = &cmd
	if f.err != nil {
		return nil, f.err
	}
	return &sections.SupportingDocument{ID: uuid.New(), SectionID: id, Name: cmd.Name, Filename: cmd.Filename}, nil
}

func setup(t *testing.T, sys *fakeSystem, unsaved func(uuid.UUID) bool) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	routes.Register(mux, sections.NewHandler(sys, logger, 1<<20, unsaved).Routes())
	return mux
}

func TestFindReportsUnsaved(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{sec: &sections.Section{ID: id, Status: sections.StatusInProgress}}
	mux := setup(t, sys, func(got uuid.UUID) bool { return got == id })

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/sections/"+id.String(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		HasUnsavedChanges bool `json:"has_unsaved_changes"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if !body.HasUnsavedChanges {
		t.Error("has_unsaved_changes should be true")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sections.ErrNotFound, http.StatusNotFound},
		{sections.ErrRequiredFieldsEmpty, http.StatusBadRequest},
		{sections.ErrInvalidTransition, http.StatusConflict},
		{sections.ErrStorage, http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			id := uuid.New()
			sys := &fakeSystem{sec: &sections.Section{ID: id}, err: tt.err}
			mux := setup(t, sys, nil)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/sections/"+id.String()+"/complete", nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			json.NewDecoder(rec.Body).Decode(&body)
			if body["error"] == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestCompleteForce(t *testing.T) {
	id := uuid.New()

	for _, tc := range []struct {
		name, path, body string
	}{
		{"query", "/complete?force=true", ""},
		{"body", "/complete", `{"force":true}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sys := &fakeSystem{sec: &sections.Section{ID: id}}
			mux := setup(t, sys, nil)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/sections/"+id.String()+tc.path, strings.NewReader(tc.body)))

			if rec.Code != http.StatusOK || !sys.force {
				t.Errorf("status = %d, force = %v", rec.Code, sys.force)
			}
		})
	}
}

func TestNotApplicableReason(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{sec: &sections.Section{ID: id}}
	mux := setup(t, sys, nil)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"reason":"no pesticides used this season"}`)
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/sections/"+id.String()+"/not-applicable", body))

	if rec.Code != http.StatusOK || sys.reason != "no pesticides used this season" {
		t.Errorf("status = %d, reason = %q", rec.Code, sys.reason)
	}
}

func TestUpdateSOPTooLarge(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{sec: &sections.Section{ID: id}}
	mux := setup(t, sys, nil)

	payload, _ := json.Marshal(map[string]string{"content": strings.Repeat("a", sections.MaxTextSize+1)})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("PUT", "/sections/"+id.String()+"/sop", bytes.NewReader(payload)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{sec: &sections.Section{ID: id}}
	mux := setup(t, sys, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "Water lab report")
	mw.WriteField("uploaded_by", "jo@acme.example")
	fw, _ := mw.CreateFormFile("file", "lab.pdf")
	fw.Write([]byte("%PDF-1.4 fake"))
	mw.Close()

	req := httptest.NewRequest("POST", "/sections/"+id.String()+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if sys.uploaded == nil || sys.uploaded.Filename != "lab.pdf" || sys.uploaded.UploadedBy != "jo@acme.example" {
		t.Errorf("upload command = %+v", sys.uploaded)
	}
	if sys.uploaded.ContentType != "application/pdf" {
		t.Errorf("content type = %q, want sniffed application/pdf", sys.uploaded.ContentType)
	}
}

func TestInvalidID(t *testing.T) {
	mux := setup(t, &fakeSystem{}, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/sections/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
