package fields

import (
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/binder/internal/templates"
)

// Normalize validates raw for the field type. Booleans normalize to
// "true" or "false"; an empty value is always accepted and means unset.
func Normalize(t templates.FieldType, raw string) (string, error) {
	if t != templates.FieldBoolean {
		return raw, nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	b, err := strconv.ParseBool(trimmed)
	if err != nil {
		return "", errors.New("expected true or false")
	}
	return strconv.FormatBool(b), nil
}

// Reconcile merges auto-fill output into committed values. For every field:
// an explicit override wins and is marked overridden; an already overridden
// field keeps its value; a previewed value replaces a non-overridden value;
// anything else is left alone. The last auto-fill value tracks every previewed
// value. Only rows that differ from current are returned, sorted by name, so
// applying the result and reconciling again yields nothing.
func Reconcile(current map[string]Value, preview, overrides map[string]string) []Value {
	var changed []Value

	for _, name := range slices.Sorted(maps.Keys(current)) {
		cur := current[name]
		next := cur

		pv, previewed := preview[name]
		if previewed {
			next.AutoFillValue = &pv
		}

		switch ov, ok := overrides[name]; {
		case ok:
			next.Value = ov
			next.Overridden = true
		case cur.Overridden:
		case previewed:
			next.Value = pv
			next.Overridden = false
		}

		if !next.same(cur) {
			changed = append(changed, next)
		}
	}

	return changed
}

// ResetRows rewrites every field to its previewed value, or its schema default
// when the provider did not supply one, and clears the overridden flag.
func ResetRows(current map[string]Value, defaults, preview map[string]string) []Value {
	rows := make([]Value, 0, len(current))

	for _, name := range slices.Sorted(maps.Keys(current)) {
		next := current[name]
		next.Overridden = false

		if pv, ok := preview[name]; ok {
			next.Value = pv
			next.AutoFillValue = &pv
		} else {
			next.Value = defaults[name]
			next.AutoFillValue = nil
		}
		rows = append(rows, next)
	}

	return rows
}

// Defaults returns name → default value for a document's schema.
func Defaults(doc *templates.Document) map[string]string {
	m := make(map[string]string, len(doc.Fields))
	for _, f := range doc.Fields {
		m[f.Name] = f.Default
	}
	return m
}
