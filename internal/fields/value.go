// Package fields stores committed form field values per section and
// implements the pure reconciliation rules between auto-fill output,
// committed overrides, and schema defaults.
package fields

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/templates"
)

// Provenance describes where a committed value came from. It is derived, never stored.
type Provenance string

const (
	ProvenanceUserOverride Provenance = "user_override"
	ProvenanceAutoFill     Provenance = "auto_fill"
	ProvenanceEmpty        Provenance = "empty"
)

// Value is the committed state of one field in one section.
type Value struct {
	SectionID     uuid.UUID           `json:"-"`
	Name          string              `json:"name"`
	Type          templates.FieldType `json:"type"`
	Value         string              `json:"value"`
	Page          int                 `json:"page"`
	AutoFillValue *string             `json:"autofill_value,omitempty"`
	Overridden    bool                `json:"overridden"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Provenance reports user_override for committed local edits, auto_fill when the
// value still matches the last non-empty auto-fill result, and empty otherwise.
func (v Value) Provenance() Provenance {
	if v.Overridden {
		return ProvenanceUserOverride
	}
	if v.AutoFillValue != nil && *v.AutoFillValue != "" && *v.AutoFillValue == v.Value {
		return ProvenanceAutoFill
	}
	return ProvenanceEmpty
}

func (v Value) same(o Value) bool {
	if v.Value != o.Value || v.Overridden != o.Overridden {
		return false
	}
	if (v.AutoFillValue == nil) != (o.AutoFillValue == nil) {
		return false
	}
	return v.AutoFillValue == nil || *v.AutoFillValue == *o.AutoFillValue
}

// Write is a single user edit.
type Write struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Snapshot is the committed state of a section's fields at a version.
type Snapshot struct {
	SectionID uuid.UUID        `json:"section_id"`
	Version   int64            `json:"version"`
	Values    map[string]Value `json:"values"`
}

// Map returns name → committed value.
func (s *Snapshot) Map() map[string]string {
	m := make(map[string]string, len(s.Values))
	for name, v := range s.Values {
		m[name] = v.Value
	}
	return m
}

// Names returns the field names in sorted order.
func (s *Snapshot) Names() []string {
	return slices.Sorted(maps.Keys(s.Values))
}

// Validate checks that every name exists and normalizes each value for its
// field type. The result is sorted by name.
func (s *Snapshot) Validate(values map[string]string) ([]Write, error) {
	writes := make([]Write, 0, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		field, ok := s.Values[name]
		if !ok {
			return nil, unknownField(name)
		}
		v, err := Normalize(field.Type, values[name])
		if err != nil {
			return nil, invalidValue(name, err)
		}
		writes = append(writes, Write{Name: name, Value: v})
	}
	return writes, nil
}
