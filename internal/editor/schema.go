package editor

import (
	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/templates"
)

// FieldView is one schema field with its current value and provenance.
type FieldView struct {
	Name     string              `json:"name"`
	Label    string              `json:"label"`
	Type     templates.FieldType `json:"type"`
	Value    string              `json:"value"`
	Source   fields.Provenance   `json:"source"`
	Page     int                 `json:"page"`
	Required bool                `json:"required,omitempty"`
	Dirty    bool                `json:"dirty,omitempty"`
}

// Schema is a section's field schema merged with committed values, or with
// a session's working copy when one is open.
type Schema struct {
	SectionID         uuid.UUID   `json:"section_id"`
	SessionID         *uuid.UUID  `json:"session_id,omitempty"`
	Fields            []FieldView `json:"fields"`
	Pages             []int       `json:"pages"`
	Version           int64       `json:"version"`
	HasUnsavedChanges bool        `json:"has_unsaved_changes"`
	Warnings          []string    `json:"warnings,omitempty"`
}

// buildSchema lists fields in schema order. Dirty fields report the pending
// working value as user_override.
func buildSchema(
	sectionID uuid.UUID,
	doc *templates.Document,
	committed map[string]fields.Value,
	working map[string]string,
	dirty map[string]struct{},
	version int64,
) *Schema {
	s := &Schema{
		SectionID:         sectionID,
		Fields:            make([]FieldView, 0, len(doc.Fields)),
		Pages:             doc.Pages(),
		Version:           version,
		HasUnsavedChanges: len(dirty) > 0,
	}

	for _, f := range doc.Fields {
		v := committed[f.Name]
		view := FieldView{
			Name:     f.Name,
			Label:    f.Label,
			Type:     f.Type,
			Value:    v.Value,
			Source:   v.Provenance(),
			Page:     f.Page,
			Required: f.Required,
		}
		if _, ok := dirty[f.Name]; ok {
			view.Value = working[f.Name]
			view.Source = fields.ProvenanceUserOverride
			view.Dirty = true
		}
		s.Fields = append(s.Fields, view)
	}
	return s
}
