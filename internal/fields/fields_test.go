package fields_test

import (
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/templates"
)

func ptr(s string) *string { return &s }

func TestProvenance(t *testing.T) {
	tests := []struct {
		name string
		v    fields.Value
		want fields.Provenance
	}{
		{"overridden wins", fields.Value{Value: "Acme", AutoFillValue: ptr("Acme"), Overridden: true}, fields.ProvenanceUserOverride},
		{"matches autofill", fields.Value{Value: "Acme", AutoFillValue: ptr("Acme")}, fields.ProvenanceAutoFill},
		{"diverged from autofill", fields.Value{Value: "Other", AutoFillValue: ptr("Acme")}, fields.ProvenanceEmpty},
		{"empty autofill", fields.Value{Value: "", AutoFillValue: ptr("")}, fields.ProvenanceEmpty},
		{"never filled", fields.Value{Value: "default"}, fields.ProvenanceEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Provenance(); got != tt.want {
				t.Errorf("Provenance() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		typ     templates.FieldType
		in      string
		want    string
		wantErr bool
	}{
		{templates.FieldText, " as typed ", " as typed ", false},
		{templates.FieldBoolean, "true", "true", false},
		{templates.FieldBoolean, "FALSE", "false", false},
		{templates.FieldBoolean, "1", "true", false},
		{templates.FieldBoolean, "", "", false},
		{templates.FieldBoolean, "maybe", "", true},
	}

	for _, tt := range tests {
		got, err := fields.Normalize(tt.typ, tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Normalize(%s, %q) = %q, %v", tt.typ, tt.in, got, err)
		}
	}
}

func current() map[string]fields.Value {
	return map[string]fields.Value{
		"farm_name": {Name: "farm_name", Type: templates.FieldText, Value: ""},
		"operator":  {Name: "operator", Type: templates.FieldText, Value: "Jo", Overridden: true},
		"acres":     {Name: "acres", Type: templates.FieldText, Value: "0"},
		"certified": {Name: "certified", Type: templates.FieldBoolean, Value: "false"},
	}
}

func byName(rows []fields.Value) map[string]fields.Value {
	m := make(map[string]fields.Value, len(rows))
	for _, r := range rows {
		m[r.Name] = r
	}
	return m
}

func TestReconcileOverridePrecedence(t *testing.T) {
	preview := map[string]string{"farm_name": "Acme Farms", "operator": "Sam", "acres": "120"}
	overrides := map[string]string{"acres": "125"}

	rows := byName(fields.Reconcile(current(), preview, overrides))

	if r := rows["farm_name"]; r.Value != "Acme Farms" || r.Overridden || r.Provenance() != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v, want auto-filled", r)
	}
	if r := rows["operator"]; r.Value != "Jo" || !r.Overridden || *r.AutoFillValue != "Sam" {
		t.Errorf("operator = %+v, committed override must survive apply", r)
	}
	if r := rows["acres"]; r.Value != "125" || !r.Overridden || *r.AutoFillValue != "120" {
		t.Errorf("acres = %+v, explicit override must win", r)
	}
	if _, ok := rows["certified"]; ok {
		t.Error("unsupplied field must be left unchanged")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	cur := current()
	preview := map[string]string{"farm_name": "Acme Farms", "operator": "Sam"}

	for _, r := range fields.Reconcile(cur, preview, nil) {
		cur[r.Name] = r
	}

	if again := fields.Reconcile(cur, preview, nil); len(again) != 0 {
		t.Errorf("second reconcile produced %d rows, want 0: %+v", len(again), again)
	}
}

func TestReconcileSorted(t *testing.T) {
	preview := map[string]string{"farm_name": "A", "acres": "1", "certified": "true"}
	var names []string
	for _, r := range fields.Reconcile(current(), preview, nil) {
		names = append(names, r.Name)
	}
	if want := []string{"acres", "certified", "farm_name"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestResetRows(t *testing.T) {
	defaults := map[string]string{"farm_name": "", "operator": "", "acres": "0", "certified": "false"}
	preview := map[string]string{"farm_name": "Acme Farms"}

	cur := current()
	cur["acres"] = fields.Value{Name: "acres", Value: "500", Overridden: true, AutoFillValue: ptr("120")}

	rows := byName(fields.ResetRows(cur, defaults, preview))
	if len(rows) != 4 {
		t.Fatalf("ResetRows returned %d rows, want 4", len(rows))
	}

	for name, r := range rows {
		if r.Overridden {
			t.Errorf("%s still overridden after reset", name)
		}
	}
	if rows["farm_name"].Value != "Acme Farms" || rows["farm_name"].Provenance() != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v", rows["farm_name"])
	}
	if rows["acres"].Value != "0" || rows["acres"].AutoFillValue != nil {
		t.Errorf("acres = %+v, want schema default", rows["acres"])
	}
	if rows["operator"].Value != "" {
		t.Errorf("operator = %q, want default", rows["operator"].Value)
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := &fields.Snapshot{Values: current()}

	writes, err := snap.Validate(map[string]string{"certified": "TRUE", "acres": "10"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []fields.Write{{Name: "acres", Value: "10"}, {Name: "certified", Value: "true"}}
	if !reflect.DeepEqual(writes, want) {
		t.Errorf("writes = %+v, want %+v", writes, want)
	}

	if _, err := snap.Validate(map[string]string{"nope": "x"}); !errors.Is(err, fields.ErrUnknownField) {
		t.Errorf("unknown name error = %v", err)
	}
	if _, err := snap.Validate(map[string]string{"certified": "perhaps"}); !errors.Is(err, fields.ErrInvalidValue) {
		t.Errorf("invalid boolean error = %v", err)
	}
	if got := fields.MapHTTPStatus(fields.ErrInvalidValue); got != http.StatusBadRequest {
		t.Errorf("MapHTTPStatus(ErrInvalidValue) = %d", got)
	}
}
