// Package sections implements the per-document section lifecycle of a binder:
// completion status, SOP text, notes, and supporting document attachments.
package sections

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/templates"
)

// MaxTextSize bounds SOP content and notes.
const MaxTextSize = 64 * 1024

// Section is one document of a binder.
type Section struct {
	ID          uuid.UUID       `json:"id"`
	BinderID    uuid.UUID       `json:"binder_id"`
	DocNumber   int             `json:"doc_number"`
	Title       string          `json:"title"`
	Group       templates.Group `json:"group"`
	Kind        templates.Kind  `json:"kind"`
	Status      Status          `json:"status"`
	NAReason    *string         `json:"na_reason,omitempty"`
	SOPContent  string          `json:"sop_content"`
	Notes       string          `json:"notes"`
	DataSource  *string         `json:"data_source,omitempty"`
	Version     int64           `json:"version"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`

	TemplateID string  `json:"template_id"`
	SeasonYear int     `json:"season_year"`
	FarmID     *string `json:"farm_id,omitempty"`

	Fields            map[string]string    `json:"fields,omitempty"`
	Documents         []SupportingDocument `json:"documents,omitempty"`
	HasUnsavedChanges bool                 `json:"has_unsaved_changes"`
}

// Source returns the auto-fill data source, or "" when none is configured.
func (s *Section) Source() string {
	if s.DataSource == nil {
		return ""
	}
	return *s.DataSource
}

// SupportingDocument is an uploaded file attached to a section.
type SupportingDocument struct {
	ID          uuid.UUID `json:"id"`
	SectionID   uuid.UUID `json:"section_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
	StorageKey  string    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
}

// UploadCommand carries a supporting document upload.
type UploadCommand struct {
	Name        string
	Description string
	UploadedBy  string
	Filename    string
	ContentType string
	Data        []byte
}
