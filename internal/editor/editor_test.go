package editor_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/JaimeStill/binder/internal/autofill"
	"github.com/JaimeStill/binder/internal/editor"
	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/fields/fieldstest"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/sections/sectionstest"
	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/internal/templates/templatestest"
	"github.com/JaimeStill/binder/pkg/gate"
	"github.com/JaimeStill/binder/pkg/lease"
	"github.com/JaimeStill/binder/pkg/lifecycle"
	"github.com/JaimeStill/binder/pkg/storage/storagetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubProvider struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (p *stubProvider) set(values map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = values
	p.err = nil
}

func (p *stubProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *stubProvider) Fetch(ctx context.Context, req autofill.Request) (*autofill.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	vals := make(map[string]string, len(p.values))
	for k, v := range p.values {
		vals[k] = v
	}
	return &autofill.Result{Values: vals}, nil
}

type artifacts struct {
	mu        sync.Mutex
	refreshed []uuid.UUID
	released  []uuid.UUID
}

func (a *artifacts) Refresh(ctx context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshed = append(a.refreshed, id)
	return nil
}

func (a *artifacts) Release(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, id)
}

func (a *artifacts) counts() (refreshed, released int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.refreshed), len(a.released)
}

// memLeases is a shared in-memory lease table standing in for Redis.
type memLeases struct {
	mu     sync.Mutex
	owners map[string]string
}

func newLeases() *memLeases { return &memLeases{owners: make(map[string]string)} }

func (l *memLeases) Start(*lifecycle.Coordinator) error { return nil }
func (l *memLeases) TTL() time.Duration                { return 2 * time.Minute }

func (l *memLeases) Acquire(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.owners[key]; ok && cur != owner {
		return lease.ErrHeld
	}
	l.owners[key] = owner
	return nil
}

func (l *memLeases) Refresh(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[key] != owner {
		return lease.ErrHeld
	}
	return nil
}

func (l *memLeases) Release(ctx context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[key] == owner {
		delete(l.owners, key)
	}
	return nil
}

func (l *memLeases) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.owners)
}

type fixture struct {
	ed       editor.System
	values   *fieldstest.Memory
	secs     *sectionstest.Memory
	provider *stubProvider
	arts     *artifacts
	leases   *memLeases
	gate     *gate.Gate[uuid.UUID]
	id       uuid.UUID
	deps     deps
}

type deps struct {
	tmpl templates.System
	rec  autofill.System
}

func newFixture(t *testing.T, opts editor.Options) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	tmpl := templates.New(templatestest.Catalog(), storagetest.New(), logger)
	_, doc, err := tmpl.Document("acme", 2)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		values:   fieldstest.New(),
		secs:     sectionstest.New(),
		provider: &stubProvider{},
		arts:     &artifacts{},
		leases:   newLeases(),
		gate:     gate.New[uuid.UUID](),
		id:       uuid.New(),
	}

	source := "farm_profile"
	f.secs.Add(sections.Section{
		ID:         f.id,
		BinderID:   uuid.New(),
		DocNumber:  2,
		Kind:       templates.KindAutoFill,
		DataSource: &source,
		TemplateID: "acme",
		SeasonYear: 2026,
	})
	f.values.AddSection(f.id, doc.Fields)

	rec := autofill.New(f.secs, tmpl, f.values, f.provider, logger)
	f.deps = deps{tmpl: tmpl, rec: rec}
	f.ed = f.newEditor(opts)
	return f
}

// newEditor builds a second editor over the same stores, as another replica would.
func (f *fixture) newEditor(opts editor.Options) editor.System {
	logger := slog.New(slog.DiscardHandler)
	return editor.New(f.secs, f.deps.tmpl, f.values, f.deps.rec, f.arts, f.gate, f.leases, opts, logger)
}

func (f *fixture) open(t *testing.T) *editor.Session {
	t.Helper()
	s, err := f.ed.Open(context.Background(), f.id)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func (f *fixture) load(t *testing.T) *fields.Snapshot {
	t.Helper()
	snap, err := f.values.Load(context.Background(), f.id)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func (f *fixture) commits() []fieldstest.Call {
	var out []fieldstest.Call
	for _, c := range f.values.Calls() {
		if c.Op == "commit" {
			out = append(out, c)
		}
	}
	return out
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func names(writes []fields.Write) []string {
	out := make([]string, len(writes))
	for i, w := range writes {
		out[i] = w.Name
	}
	return out
}

func fieldView(t *testing.T, s *editor.Schema, name string) editor.FieldView {
	t.Helper()
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %s not in schema", name)
	return editor.FieldView{}
}

func TestSaveIsDeltaOnly(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	before := f.load(t)
	s := f.open(t)

	if err := s.SetField("acres", "150"); err != nil {
		t.Fatal(err)
	}
	version, err := s.Save(ctx, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	commits := f.commits()
	if len(commits) != 1 || !slices.Equal(names(commits[0].Writes), []string{"acres"}) {
		t.Fatalf("commits = %+v", commits)
	}

	after := f.load(t)
	for name, v := range before.Values {
		if name == "acres" {
			continue
		}
		if after.Values[name].Value != v.Value || after.Values[name].Overridden != v.Overridden {
			t.Errorf("field %s changed by save of acres", name)
		}
	}
	if a := after.Values["acres"]; a.Value != "150" || a.Provenance() != fields.ProvenanceUserOverride {
		t.Errorf("acres = %+v", a)
	}

	if len(s.Dirty()) != 0 || version != after.Version || s.Version() != version {
		t.Errorf("dirty = %v, version = %d, session version = %d, stored = %d", s.Dirty(), version, s.Version(), after.Version)
	}
	if f.secs.Status(f.id) != sections.StatusInProgress {
		t.Errorf("status = %s, want in_progress after save", f.secs.Status(f.id))
	}
	if refreshed, _ := f.arts.counts(); refreshed != 1 {
		t.Errorf("refreshes = %d, want 1", refreshed)
	}
}

func TestSaveWithoutChangesIsNoop(t *testing.T) {
	f := newFixture(t, editor.Options{})
	s := f.open(t)

	version, err := s.Save(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.values.Calls()) != 0 {
		t.Error("clean save should not write")
	}
	if version != f.load(t).Version {
		t.Errorf("version = %d", version)
	}
	if f.secs.Status(f.id) != sections.StatusNotStarted {
		t.Error("no-op save must not begin the section")
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	s := f.open(t)

	s.SetField("operator", "Jo")
	f.values.Fail(errors.New("database unavailable"))

	if _, err := s.Save(ctx, nil); err == nil {
		t.Fatal("expected save error")
	}
	if !slices.Equal(s.Dirty(), []string{"operator"}) {
		t.Errorf("dirty after failure = %v", s.Dirty())
	}
	if f.load(t).Values["operator"].Value != "" {
		t.Error("failed save changed stored state")
	}

	if _, err := s.Save(ctx, nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(s.Dirty()) != 0 || f.load(t).Values["operator"].Value != "Jo" {
		t.Error("retry did not commit")
	}
}

func TestSaveExplicitValues(t *testing.T) {
	f := newFixture(t, editor.Options{})
	s := f.open(t)

	s.SetField("acres", "150")
	if _, err := s.Save(context.Background(), map[string]string{"operator": "Jo", "certified": "YES"}); err == nil {
		t.Fatal("invalid boolean should be rejected")
	}

	if _, err := s.Save(context.Background(), map[string]string{"operator": "Jo", "certified": "1"}); err != nil {
		t.Fatal(err)
	}

	commits := f.commits()
	if len(commits) != 1 || !slices.Equal(names(commits[0].Writes), []string{"certified", "operator"}) {
		t.Fatalf("commits = %+v", commits)
	}
	if commits[0].Writes[0].Value != "true" {
		t.Errorf("certified not normalized: %q", commits[0].Writes[0].Value)
	}
	if !slices.Equal(s.Dirty(), []string{"acres"}) {
		t.Errorf("dirty = %v, want [acres]", s.Dirty())
	}
}

func TestSetFieldValidation(t *testing.T) {
	f := newFixture(t, editor.Options{})
	s := f.open(t)

	if err := s.SetField("silo_count", "3"); !errors.Is(err, fields.ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}
	if err := s.SetFields(map[string]string{"operator": "Jo", "certified": "perhaps"}); !errors.Is(err, fields.ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
	if len(s.Dirty()) != 0 {
		t.Errorf("rejected edits marked dirty: %v", s.Dirty())
	}
}

func TestAutosaveDebounce(t *testing.T) {
	f := newFixture(t, editor.Options{AutosaveDelay: 40 * time.Millisecond})
	s := f.open(t)

	s.SetField("farm_name", "Acme")
	time.Sleep(10 * time.Millisecond)
	s.SetField("operator", "Jo")

	eventually(t, func() bool { return len(f.commits()) == 1 })
	time.Sleep(60 * time.Millisecond)

	commits := f.commits()
	if len(commits) != 1 {
		t.Fatalf("commits = %d, want a single debounced save", len(commits))
	}
	if !slices.Equal(names(commits[0].Writes), []string{"farm_name", "operator"}) {
		t.Errorf("autosave wrote %v", names(commits[0].Writes))
	}
	if len(s.Dirty()) != 0 {
		t.Errorf("dirty after autosave = %v", s.Dirty())
	}
}

func TestAutosaveDisabled(t *testing.T) {
	f := newFixture(t, editor.Options{})
	s := f.open(t)

	s.SetField("operator", "Jo")
	time.Sleep(30 * time.Millisecond)

	if len(f.values.Calls()) != 0 {
		t.Error("autosave ran with a zero delay")
	}
}

func TestQueuedSavesCoalesce(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	s := f.open(t)

	block := make(chan struct{})
	started := make(chan fieldstest.Call, 2)
	f.values.Block = block
	f.values.Started = started

	s.SetField("farm_name", "Acme")
	first := make(chan error, 1)
	go func() {
		_, err := s.Save(ctx, nil)
		first <- err
	}()
	<-started

	s.SetField("operator", "Jo")
	second := make(chan error, 1)
	go func() {
		_, err := s.Save(ctx, nil)
		second <- err
	}()
	time.Sleep(10 * time.Millisecond)
	s.SetField("acres", "150")

	close(block)
	if err := <-first; err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second save: %v", err)
	}

	commits := f.commits()
	if len(commits) != 2 {
		t.Fatalf("commits = %d, want 2", len(commits))
	}
	if !slices.Equal(names(commits[0].Writes), []string{"farm_name"}) {
		t.Errorf("first commit = %v", names(commits[0].Writes))
	}
	if !slices.Equal(names(commits[1].Writes), []string{"acres", "operator"}) {
		t.Errorf("second commit = %v, want the dirty set at run time", names(commits[1].Writes))
	}
	if len(s.Dirty()) != 0 {
		t.Errorf("dirty = %v", s.Dirty())
	}
}

func TestApplyRejectedDuringSave(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	s := f.open(t)

	block := make(chan struct{})
	f.values.Block = block

	s.SetField("operator", "Jo")
	done := make(chan error, 1)
	go func() {
		_, err := s.Save(ctx, nil)
		done <- err
	}()
	eventually(t, func() bool { return f.gate.Held(f.id) })

	if _, err := f.ed.ApplyAutoFill(ctx, f.id, nil); !errors.Is(err, editor.ErrSaveInFlight) {
		t.Errorf("apply err = %v, want ErrSaveInFlight", err)
	}
	if err := s.Reset(ctx); !errors.Is(err, editor.ErrSaveInFlight) {
		t.Errorf("reset err = %v, want ErrSaveInFlight", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	f.values.Block = nil

	if _, err := f.ed.ApplyAutoFill(ctx, f.id, nil); err != nil {
		t.Errorf("apply after save: %v", err)
	}
}

func TestSessionReset(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	f.provider.set(map[string]string{"farm_name": "Acme Farms"})
	s := f.open(t)

	s.SetFields(map[string]string{"acres": "150", "certified": "true"})
	if _, err := s.Save(ctx, nil); err != nil {
		t.Fatal(err)
	}
	s.SetField("operator", "Jo")
	beginsBefore := len(f.secs.Begins())

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if len(s.Dirty()) != 0 {
		t.Errorf("dirty after reset = %v", s.Dirty())
	}
	schema := s.Schema()
	for _, fv := range schema.Fields {
		if fv.Source == fields.ProvenanceUserOverride {
			t.Errorf("%s is user_override after reset", fv.Name)
		}
	}
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms" || v.Source != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v", v)
	}
	if v := fieldView(t, schema, "acres"); v.Value != "0" {
		t.Errorf("acres = %q, want default 0", v.Value)
	}
	if v := fieldView(t, schema, "operator"); v.Value != "" {
		t.Errorf("operator = %q, local edit should be discarded", v.Value)
	}
	if len(f.secs.Begins()) != beginsBefore {
		t.Error("reset must not begin the section")
	}
	if schema.Version != f.load(t).Version {
		t.Errorf("session version %d, stored %d", schema.Version, f.load(t).Version)
	}
}

func TestCloseReleasesResources(t *testing.T) {
	f := newFixture(t, editor.Options{AutosaveDelay: 20 * time.Millisecond})
	ctx := context.Background()

	s, err := f.ed.Open(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	s.SetField("operator", "Jo")
	if !f.ed.Unsaved(f.id) {
		t.Error("Unsaved should report dirty session")
	}

	s.Close(ctx)
	s.Close(ctx)
	time.Sleep(40 * time.Millisecond)

	if len(f.values.Calls()) != 0 {
		t.Error("autosave fired after close")
	}
	if _, released := f.arts.counts(); released != 1 {
		t.Errorf("artifact releases = %d, want 1", released)
	}
	if f.leases.held() != 0 {
		t.Error("lease not released")
	}
	if _, err := f.ed.Session(s.ID); !errors.Is(err, editor.ErrSessionNotFound) {
		t.Errorf("Session after close: %v", err)
	}
	if f.ed.Unsaved(f.id) {
		t.Error("closed session still reports unsaved")
	}
	if err := s.SetField("operator", "x"); !errors.Is(err, editor.ErrSessionClosed) {
		t.Errorf("SetField after close: %v", err)
	}

	again, err := f.ed.Open(ctx, f.id)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close(ctx)
}

func TestCloseWaitsForInflightSave(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()

	s, err := f.ed.Open(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}

	block := make(chan struct{})
	f.values.Block = block

	s.SetField("operator", "Jo")
	saved := make(chan error, 1)
	go func() {
		_, err := s.Save(ctx, nil)
		saved <- err
	}()
	eventually(t, func() bool { return f.gate.Held(f.id) })

	closed := make(chan struct{})
	go func() {
		s.Close(ctx)
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a save was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(block)
	<-closed
	if err := <-saved; err != nil {
		t.Fatalf("in-flight save: %v", err)
	}
	if f.load(t).Values["operator"].Value != "Jo" {
		t.Error("in-flight save did not complete")
	}
}

func TestOneSessionPerSection(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	f.open(t)

	if _, err := f.ed.Open(ctx, f.id); !errors.Is(err, editor.ErrSessionOpen) {
		t.Errorf("second open err = %v, want ErrSessionOpen", err)
	}

	replica := f.newEditor(editor.Options{})
	if _, err := replica.Open(ctx, f.id); !errors.Is(err, editor.ErrSessionOpen) {
		t.Errorf("replica open err = %v, want ErrSessionOpen", err)
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t, editor.Options{IdleTimeout: time.Minute})
	ctx := context.Background()

	s, err := f.ed.Open(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	s.SetField("operator", "Jo")

	f.ed.Sweep(ctx, time.Now())
	if _, err := f.ed.Session(s.ID); err != nil {
		t.Fatalf("active session closed by sweep: %v", err)
	}

	f.ed.Sweep(ctx, time.Now().Add(2*time.Minute))
	if _, err := f.ed.Session(s.ID); !errors.Is(err, editor.ErrSessionNotFound) {
		t.Errorf("idle session not closed: %v", err)
	}
	if f.load(t).Values["operator"].Value != "Jo" {
		t.Error("idle close did not flush dirty fields")
	}
}

func TestSweepClosesLostLease(t *testing.T) {
	f := newFixture(t, editor.Options{IdleTimeout: time.Hour})
	ctx := context.Background()

	s, err := f.ed.Open(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}

	f.leases.mu.Lock()
	for k := range f.leases.owners {
		f.leases.owners[k] = "someone-else"
	}
	f.leases.mu.Unlock()

	f.ed.Sweep(ctx, time.Now())
	if _, err := f.ed.Session(s.ID); !errors.Is(err, editor.ErrSessionNotFound) {
		t.Errorf("session with lost lease still open: %v", err)
	}
}

func TestShutdownFlushes(t *testing.T) {
	f := newFixture(t, editor.Options{AutosaveDelay: time.Hour})
	lc := lifecycle.New()
	if err := f.ed.Start(lc); err != nil {
		t.Fatal(err)
	}

	s, err := f.ed.Open(context.Background(), f.id)
	if err != nil {
		t.Fatal(err)
	}
	s.SetField("acres", "150")

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if f.load(t).Values["acres"].Value != "150" {
		t.Error("shutdown did not flush dirty fields")
	}
	if _, err := f.ed.Session(s.ID); !errors.Is(err, editor.ErrSessionNotFound) {
		t.Error("session still open after shutdown")
	}
}

func TestStatelessSaveFields(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	version := f.load(t).Version

	if _, err := f.ed.SaveFields(ctx, f.id, map[string]string{"operator": "Jo"}, version+5); !errors.Is(err, fields.ErrConflict) {
		t.Errorf("stale version err = %v, want ErrConflict", err)
	}
	if editor.MapHTTPStatus(fields.ErrConflict) != 409 {
		t.Error("conflict should map to 409")
	}

	schema, err := f.ed.SaveFields(ctx, f.id, map[string]string{"operator": "Jo"}, version)
	if err != nil {
		t.Fatal(err)
	}
	if v := fieldView(t, schema, "operator"); v.Value != "Jo" || v.Source != fields.ProvenanceUserOverride {
		t.Errorf("operator = %+v", v)
	}
	if schema.Version != version+1 || schema.SessionID != nil {
		t.Errorf("schema = %+v", schema)
	}
	if f.secs.Status(f.id) != sections.StatusInProgress {
		t.Error("stateless save should begin the section")
	}
}

func TestStatelessSaveRoutesToSession(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	s := f.open(t)

	schema, err := f.ed.SaveFields(ctx, f.id, map[string]string{"operator": "Jo"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if schema.SessionID == nil || *schema.SessionID != s.ID {
		t.Error("save not routed through the open session")
	}
	if s.Version() != f.load(t).Version {
		t.Error("session version not advanced")
	}
}

func TestSchemaPages(t *testing.T) {
	f := newFixture(t, editor.Options{})

	schema, err := f.ed.Schema(context.Background(), f.id)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(schema.Pages, []int{1, 2}) {
		t.Errorf("pages = %v", schema.Pages)
	}

	want := []string{"farm_name", "operator", "certified", "acres"}
	got := make([]string, len(schema.Fields))
	for i, fv := range schema.Fields {
		got[i] = fv.Name
	}
	if !slices.Equal(got, want) {
		t.Errorf("field order = %v, want %v", got, want)
	}
	if v := fieldView(t, schema, "certified"); v.Value != "false" || v.Source != fields.ProvenanceEmpty || v.Type != templates.FieldBoolean {
		t.Errorf("certified = %+v", v)
	}
}

func TestApplyRefreshesSession(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	s := f.open(t)
	s.SetField("operator", "Jo")

	f.provider.set(map[string]string{"farm_name": "Acme Farms", "operator": "Provider Op"})
	if _, err := f.ed.ApplyAutoFill(ctx, f.id, nil); err != nil {
		t.Fatal(err)
	}

	schema := s.Schema()
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms" || v.Source != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v", v)
	}
	if v := fieldView(t, schema, "operator"); v.Value != "Jo" || !v.Dirty {
		t.Errorf("dirty operator edit lost on refresh: %+v", v)
	}

	if _, err := s.Save(ctx, nil); err != nil {
		t.Fatalf("save after apply: %v", err)
	}
}

// Schema {farm_name: "", acres: "0"}; provider {Acme Farms, 120}; operator
// overrides acres to 150; provider later reports {Acme Farms LLC, 120}.
func TestAcmeFarmsScenario(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()

	f.provider.set(map[string]string{"farm_name": "Acme Farms", "acres": "120"})

	s := f.open(t)
	s.SetField("acres", "150")
	if _, err := s.Save(ctx, nil); err != nil {
		t.Fatal(err)
	}

	schema := s.Schema()
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms" || v.Source != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v", v)
	}
	if v := fieldView(t, schema, "acres"); v.Value != "150" || v.Source != fields.ProvenanceUserOverride {
		t.Errorf("acres = %+v", v)
	}

	f.provider.set(map[string]string{"farm_name": "Acme Farms LLC", "acres": "120"})
	if _, err := f.ed.ApplyAutoFill(ctx, f.id, nil); err != nil {
		t.Fatal(err)
	}

	schema = s.Schema()
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms LLC" || v.Source != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v, want Acme Farms LLC auto_fill", v)
	}
	if v := fieldView(t, schema, "acres"); v.Value != "150" || v.Source != fields.ProvenanceUserOverride {
		t.Errorf("acres = %+v, want 150 user_override", v)
	}
}

func TestOpenSeedsFromAutoFill(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	f.provider.set(map[string]string{"farm_name": "Acme Farms", "acres": "120"})

	s := f.open(t)
	schema := s.Schema()
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms" || v.Source != fields.ProvenanceAutoFill || v.Dirty {
		t.Errorf("farm_name = %+v, want committed auto_fill", v)
	}
	if v := fieldView(t, schema, "acres"); v.Value != "120" || v.Source != fields.ProvenanceAutoFill {
		t.Errorf("acres = %+v", v)
	}
	if len(schema.Warnings) != 0 {
		t.Errorf("warnings = %v", schema.Warnings)
	}
	if s.Version() != f.load(t).Version {
		t.Errorf("session version %d, stored %d", s.Version(), f.load(t).Version)
	}
	if f.secs.Status(f.id) != sections.StatusNotStarted {
		t.Error("opening a session must not begin the section")
	}
	if refreshed, _ := f.arts.counts(); refreshed != 1 {
		t.Errorf("artifact refreshes = %d, want 1 after seeding", refreshed)
	}

	s.SetField("acres", "150")
	if _, err := s.Save(ctx, nil); err != nil {
		t.Fatal(err)
	}
	snap := f.load(t)
	if v := snap.Values["farm_name"]; v.Value != "Acme Farms" || v.Provenance() != fields.ProvenanceAutoFill {
		t.Errorf("stored farm_name = %+v", v)
	}
	if v := snap.Values["acres"]; v.Value != "150" || v.Provenance() != fields.ProvenanceUserOverride {
		t.Errorf("stored acres = %+v", v)
	}
}

func TestOpenSeedKeepsOverrides(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()

	if _, err := f.ed.SaveFields(ctx, f.id, map[string]string{"operator": "Jo"}, 0); err != nil {
		t.Fatal(err)
	}
	f.provider.set(map[string]string{"farm_name": "Acme Farms", "operator": "Provider Op"})

	s := f.open(t)
	schema := s.Schema()
	if v := fieldView(t, schema, "operator"); v.Value != "Jo" || v.Source != fields.ProvenanceUserOverride {
		t.Errorf("operator = %+v, override must survive seeding", v)
	}
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms" || v.Source != fields.ProvenanceAutoFill {
		t.Errorf("farm_name = %+v", v)
	}
}

func TestOpenSeedIsIdempotent(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	f.provider.set(map[string]string{"farm_name": "Acme Farms"})

	s, err := f.ed.Open(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	version := s.Version()
	s.Close(ctx)

	s = f.open(t)
	if s.Version() != version {
		t.Errorf("reopen version = %d, want unchanged %d", s.Version(), version)
	}

	puts := 0
	for _, c := range f.values.Calls() {
		if c.Op == "put" {
			puts++
		}
	}
	if puts != 1 {
		t.Errorf("puts = %d, want one write for unchanged provider data", puts)
	}
}

func TestOpenSurvivesProviderFailure(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()
	f.provider.fail(fmt.Errorf("%w: farm_profile unreachable", autofill.ErrDataSource))

	s := f.open(t)
	schema := s.Schema()
	if len(schema.Warnings) != 1 || !strings.Contains(schema.Warnings[0], "farm_profile unreachable") {
		t.Errorf("warnings = %v, want the provider failure", schema.Warnings)
	}
	if v := fieldView(t, schema, "farm_name"); v.Value != "" || v.Source != fields.ProvenanceEmpty {
		t.Errorf("farm_name = %+v, want committed default", v)
	}
	if len(f.values.Calls()) != 0 {
		t.Error("failed seeding wrote fields")
	}

	f.provider.set(map[string]string{"farm_name": "Acme Farms"})
	if _, err := f.ed.ApplyAutoFill(ctx, f.id, nil); err != nil {
		t.Fatal(err)
	}
	schema = s.Schema()
	if len(schema.Warnings) != 0 {
		t.Errorf("warnings after a successful apply = %v", schema.Warnings)
	}
	if v := fieldView(t, schema, "farm_name"); v.Value != "Acme Farms" {
		t.Errorf("farm_name = %+v", v)
	}
}

func TestStatusResetKeepsFields(t *testing.T) {
	f := newFixture(t, editor.Options{})
	ctx := context.Background()

	if _, err := f.ed.SaveFields(ctx, f.id, map[string]string{"farm_name": "Acme", "acres": "150"}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.secs.Complete(ctx, f.id, false); err != nil {
		t.Fatal(err)
	}
	sec, err := f.secs.ResetStatus(ctx, f.id)
	if err != nil {
		t.Fatal(err)
	}
	if sec.Status != sections.StatusNotStarted {
		t.Errorf("status = %s", sec.Status)
	}

	snap := f.load(t)
	if snap.Values["farm_name"].Value != "Acme" || snap.Values["acres"].Value != "150" {
		t.Errorf("status reset cleared fields: %+v", snap.Map())
	}
}
