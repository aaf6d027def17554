package editor_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/binder/internal/editor"
	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/pkg/routes"
)

func serve(t *testing.T, f *fixture, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	m := http.NewServeMux()
	routes.Register(m, f.ed.Handler().Routes())

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	m.ServeHTTP(w, req)
	return w
}

func decodeSchema(t *testing.T, w *httptest.ResponseRecorder) editor.Schema {
	t.Helper()
	var s editor.Schema
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	return s
}

func TestHandlerSessionFlow(t *testing.T) {
	f := newFixture(t, editor.Options{})
	base := "/sections/" + f.id.String()

	w := serve(t, f, "POST", base+"/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("open = %d: %s", w.Code, w.Body)
	}
	opened := decodeSchema(t, w)
	if opened.SessionID == nil {
		t.Fatal("open response missing session id")
	}
	sess := "/sessions/" + opened.SessionID.String()

	if w := serve(t, f, "POST", base+"/sessions", ""); w.Code != http.StatusConflict {
		t.Errorf("second open = %d, want 409", w.Code)
	}

	w = serve(t, f, "PATCH", sess+"/fields", `{"values":{"acres":"150"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d: %s", w.Code, w.Body)
	}
	patched := decodeSchema(t, w)
	if !patched.HasUnsavedChanges || !fieldView(t, &patched, "acres").Dirty {
		t.Error("patched field not reported dirty")
	}

	if w := serve(t, f, "PATCH", sess+"/fields", `{"values":{"certified":"maybe"}}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid patch = %d, want 400", w.Code)
	}

	w = serve(t, f, "POST", sess+"/save", "")
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d: %s", w.Code, w.Body)
	}
	saved := decodeSchema(t, w)
	if saved.HasUnsavedChanges {
		t.Error("save left unsaved changes")
	}
	if v := fieldView(t, &saved, "acres"); v.Value != "150" || v.Source != fields.ProvenanceUserOverride {
		t.Errorf("acres = %+v", v)
	}

	if w := serve(t, f, "DELETE", sess, ""); w.Code != http.StatusNoContent {
		t.Errorf("close = %d, want 204", w.Code)
	}
	if w := serve(t, f, "GET", sess, ""); w.Code != http.StatusNotFound {
		t.Errorf("get closed session = %d, want 404", w.Code)
	}
}

func TestHandlerStatelessFields(t *testing.T) {
	f := newFixture(t, editor.Options{})
	base := "/sections/" + f.id.String()

	w := serve(t, f, "GET", base+"/fields", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema = %d", w.Code)
	}
	schema := decodeSchema(t, w)

	stale := `{"values":{"operator":"Jo"},"version":` + "99" + `}`
	if w := serve(t, f, "PUT", base+"/fields", stale); w.Code != http.StatusConflict {
		t.Errorf("stale save = %d, want 409", w.Code)
	}
	if w := serve(t, f, "PUT", base+"/fields", `{"values":{"silo":"3"}}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}

	body, _ := json.Marshal(map[string]any{"values": map[string]string{"operator": "Jo"}, "version": schema.Version})
	w = serve(t, f, "PUT", base+"/fields", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d: %s", w.Code, w.Body)
	}
	if got := decodeSchema(t, w); got.Version != schema.Version+1 {
		t.Errorf("version = %d, want %d", got.Version, schema.Version+1)
	}

	w = serve(t, f, "POST", base+"/fields/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset = %d: %s", w.Code, w.Body)
	}
	reset := decodeSchema(t, w)
	if v := fieldView(t, &reset, "operator"); v.Value != "" || v.Source == fields.ProvenanceUserOverride {
		t.Errorf("operator after reset = %+v", v)
	}
}

func TestHandlerApply(t *testing.T) {
	f := newFixture(t, editor.Options{})
	f.provider.set(map[string]string{"farm_name": "Acme Farms"})

	w := serve(t, f, "POST", "/sections/"+f.id.String()+"/autofill/apply", `{"overrides":{"acres":"150"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("apply = %d: %s", w.Code, w.Body)
	}

	snap := f.load(t)
	if snap.Values["farm_name"].Value != "Acme Farms" {
		t.Errorf("farm_name = %q", snap.Values["farm_name"].Value)
	}
	if a := snap.Values["acres"]; a.Value != "150" || !a.Overridden {
		t.Errorf("acres = %+v", a)
	}
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t, editor.Options{})

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"bad section id", "GET", "/sections/nope/fields", http.StatusBadRequest},
		{"unknown section", "GET", "/sections/00000000-0000-0000-0000-000000000001/fields", http.StatusNotFound},
		{"bad session id", "GET", "/sessions/nope", http.StatusBadRequest},
		{"unknown session", "POST", "/sessions/00000000-0000-0000-0000-000000000001/save", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(t, f, tt.method, tt.path, ""); w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
			}
		})
	}
}
