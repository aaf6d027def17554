package editor

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/templates"
)

// Session is an open editor for one section: a working copy of its fields,
// the set of fields edited since the last successful save, and the version
// of the committed state the working copy was built from.
type Session struct {
	ID        uuid.UUID
	SectionID uuid.UUID
	OpenedAt  time.Time

	ed  *editor
	doc *templates.Document

	mu        sync.Mutex
	committed map[string]fields.Value
	working   map[string]string
	dirty     map[string]struct{}
	version   int64
	timer     *time.Timer
	warnings  []string
	lastUsed  time.Time
	closed    bool
	inflight  sync.WaitGroup
}

func newSession(ed *editor, sectionID uuid.UUID, doc *templates.Document, snap *fields.Snapshot) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New(),
		SectionID: sectionID,
		OpenedAt:  now,
		ed:        ed,
		doc:       doc,
		dirty:     make(map[string]struct{}),
		lastUsed:  now,
	}
	s.adopt(snap)
	return s
}

// Schema returns the working copy in schema order.
func (s *Session) Schema() *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema := buildSchema(s.SectionID, s.doc, s.committed, s.working, s.dirty, s.version)
	id := s.ID
	schema.SessionID = &id
	schema.Warnings = slices.Clone(s.warnings)
	return schema
}

// Dirty returns the names of fields edited since the last save, sorted.
func (s *Session) Dirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.dirty))
}

// Version returns the committed version the working copy is based on.
func (s *Session) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetField updates one working value. See SetFields.
func (s *Session) SetField(name, value string) error {
	return s.SetFields(map[string]string{name: value})
}

// SetFields validates and stores values in the working copy and marks them
// dirty. With autosave enabled it restarts the debounce timer. Nothing is
// stored when any value is invalid.
func (s *Session) SetFields(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	writes, err := s.validate(values)
	if err != nil {
		return err
	}
	for _, w := range writes {
		s.working[w.Name] = w.Value
		s.dirty[w.Name] = struct{}{}
	}
	s.lastUsed = time.Now()

	if delay := s.ed.opts.AutosaveDelay; delay > 0 && len(writes) > 0 {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.timer = time.AfterFunc(delay, s.autosave)
	}
	return nil
}

// Save commits dirty fields, or exactly values when non-nil, and returns the
// new version. Saves for a section are serialized; a Save that had to wait
// sends whatever is dirty once it runs, so queued saves coalesce. With
// nothing to send Save is a no-op. A failed Save leaves every sent field dirty.
func (s *Session) Save(ctx context.Context, values map[string]string) (int64, error) {
	if !s.enter() {
		return 0, ErrSessionClosed
	}
	defer s.inflight.Done()

	if values != nil {
		s.mu.Lock()
		writes, err := s.validate(values)
		if err != nil {
			s.mu.Unlock()
			return 0, err
		}
		for _, w := range writes {
			s.working[w.Name] = w.Value
			s.dirty[w.Name] = struct{}{}
		}
		s.mu.Unlock()
		return s.save(ctx, slices.Sorted(maps.Keys(values)))
	}

	return s.save(ctx, nil)
}

// Reset restores the section's fields to fresh auto-fill data or schema
// defaults, then discards local edits and reloads the working copy. It fails
// with ErrSaveInFlight while a save runs. Local edits survive a failed reset.
func (s *Session) Reset(ctx context.Context) error {
	if !s.enter() {
		return ErrSessionClosed
	}
	defer s.inflight.Done()

	return s.ed.reset(ctx, s.SectionID, func(ctx context.Context) error {
		snap, err := s.ed.values.Load(ctx, s.SectionID)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		clear(s.dirty)
		s.adopt(snap)
		s.warnings = nil
		s.lastUsed = time.Now()
		return nil
	})
}

// Close cancels autosave, waits for an in-flight save to finish, and releases
// the section's PDF artifact and editor lease. Unsaved edits are discarded.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.inflight.Wait()
	s.ed.release(ctx, s)
}

func (s *Session) save(ctx context.Context, only []string) (int64, error) {
	release, err := s.ed.gate.Acquire(ctx, s.SectionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	names := only
	if names == nil {
		names = slices.Sorted(maps.Keys(s.dirty))
	}
	writes := make([]fields.Write, 0, len(names))
	for _, name := range names {
		writes = append(writes, fields.Write{Name: name, Value: s.working[name]})
	}
	version := s.version
	s.lastUsed = time.Now()
	s.mu.Unlock()

	if len(writes) == 0 {
		release()
		return version, nil
	}

	wctx, cancel := s.ed.detach(ctx)
	defer cancel()

	next, err := s.ed.values.Commit(wctx, s.SectionID, writes, version)
	if err != nil {
		release()
		s.ed.logger.Warn("session save failed", "session", s.ID, "section", s.SectionID, "fields", len(writes), "error", err)
		return 0, err
	}

	// Adopt the result before releasing so a queued save sees the new
	// version and only what is still dirty.
	s.mu.Lock()
	for _, w := range writes {
		cur := s.committed[w.Name]
		cur.Value = w.Value
		cur.Overridden = true
		s.committed[w.Name] = cur
		if s.working[w.Name] == w.Value {
			delete(s.dirty, w.Name)
		}
	}
	s.version = next
	remaining := len(s.dirty)
	s.mu.Unlock()
	release()

	s.ed.logger.Info("session saved", "session", s.ID, "section", s.SectionID, "fields", len(writes), "version", next, "dirty", remaining)
	s.ed.afterWrite(wctx, s.SectionID, true)
	return next, nil
}

// autosave runs on the debounce timer's goroutine.
func (s *Session) autosave() {
	if !s.enter() {
		return
	}
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.ed.opts.SaveTimeout)
	defer cancel()

	if _, err := s.save(ctx, nil); err != nil {
		s.ed.logger.Warn("autosave failed", "session", s.ID, "error", err)
	}
}

// refresh adopts newly committed values for every field that is not dirty.
func (s *Session) refresh(ctx context.Context) error {
	snap, err := s.ed.values.Load(ctx, s.SectionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopt(snap)
	s.warnings = nil
	return nil
}

// seed merges fresh provider data into the committed fields of a section
// with a data source and adopts the result. Overrides are kept. A provider
// failure leaves committed state alone and is reported on the schema.
func (s *Session) seed(ctx context.Context, source string) {
	if source == "" {
		return
	}

	release, err := s.ed.gate.Acquire(ctx, s.SectionID)
	if err != nil {
		s.warn(err)
		return
	}

	wctx, cancel := s.ed.detach(ctx)
	defer cancel()

	before := s.Version()
	version, err := s.ed.reconciler.Apply(wctx, s.SectionID, nil)
	if err == nil && version != before {
		err = s.refresh(wctx)
	}
	release()
	if err != nil {
		s.warn(err)
		return
	}

	if version != before {
		s.ed.logger.Info("session seeded from auto-fill", "session", s.ID, "section", s.SectionID, "source", source, "version", version)
		s.ed.afterWrite(wctx, s.SectionID, false)
	}
}

func (s *Session) warn(err error) {
	s.ed.logger.Warn("auto-fill on open failed", "session", s.ID, "section", s.SectionID, "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, "auto-fill unavailable: "+err.Error())
}

// adopt replaces committed state from snap and rebuilds working values for
// clean fields. Callers hold s.mu or own s exclusively.
func (s *Session) adopt(snap *fields.Snapshot) {
	prev := s.working
	s.committed = snap.Values
	s.version = snap.Version
	s.working = make(map[string]string, len(snap.Values))
	for name, v := range snap.Values {
		if _, ok := s.dirty[name]; ok {
			s.working[name] = prev[name]
			continue
		}
		s.working[name] = v.Value
	}
}

func (s *Session) validate(values map[string]string) ([]fields.Write, error) {
	snap := fields.Snapshot{SectionID: s.SectionID, Version: s.version, Values: s.committed}
	return snap.Validate(values)
}

// enter registers an operation that Close must wait for.
func (s *Session) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.inflight.Add(1)
	return true
}

func (s *Session) idle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeout > 0 && now.Sub(s.lastUsed) > timeout
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) hasDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}
