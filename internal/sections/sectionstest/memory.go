// Package sectionstest provides an in-memory sections.System for tests.
package sectionstest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/sections"
)

// Memory is a goroutine-safe sections.System that applies the real state
// machine without a database.
type Memory struct {
	mu       sync.Mutex
	sections map[uuid.UUID]*sections.Section
	blobs    map[uuid.UUID][]byte
	hooks    []sections.StatusHook
	begins   []uuid.UUID
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{
		sections: make(map[uuid.UUID]*sections.Section),
		blobs:    make(map[uuid.UUID][]byte),
	}
}

// Add stores a copy of sec, defaulting its status to not_started.
func (m *Memory) Add(sec sections.Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sec.Status == "" {
		sec.Status = sections.StatusNotStarted
	}
	m.sections[sec.ID] = &sec
}

// Begins returns the section ids Begin was called with, in order.
func (m *Memory) Begins() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.begins...)
}

// Status returns the current status of a section.
func (m *Memory) Status(id uuid.UUID) sections.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sections[id]; ok {
		return s.Status
	}
	return ""
}

func (m *Memory) Handler(maxUploadSize int64, unsaved func(uuid.UUID) bool) *sections.Handler {
	return sections.NewHandler(m, slog.New(slog.DiscardHandler), maxUploadSize, unsaved)
}

func (m *Memory) OnStatusChange(fn sections.StatusHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

func (m *Memory) Find(ctx context.Context, id uuid.UUID) (*sections.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, sections.ErrNotFound
	}
	cp := *s
	cp.Documents = append([]sections.SupportingDocument(nil), s.Documents...)
	return &cp, nil
}

func (m *Memory) ListByBinder(ctx context.Context, binderID uuid.UUID) ([]sections.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sections.Section
	for _, s := range m.sections {
		if s.BinderID == binderID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *Memory) Begin(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.begins = append(m.begins, id)
	m.mu.Unlock()

	_, err := m.apply(ctx, id, sections.EventBegin, nil)
	return err
}

func (m *Memory) Complete(ctx context.Context, id uuid.UUID, force bool) (*sections.Section, error) {
	return m.apply(ctx, id, sections.EventComplete, nil)
}

func (m *Memory) NotApplicable(ctx context.Context, id uuid.UUID, reason string) (*sections.Section, error) {
	return m.apply(ctx, id, sections.EventNotApplicable, &reason)
}

func (m *Memory) ResetStatus(ctx context.Context, id uuid.UUID) (*sections.Section, error) {
	return m.apply(ctx, id, sections.EventReset, nil)
}

func (m *Memory) UpdateSOP(ctx context.Context, id uuid.UUID, content string) (*sections.Section, error) {
	return m.text(ctx, id, func(s *sections.Section) { s.SOPContent = content }, content)
}

func (m *Memory) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*sections.Section, error) {
	return m.text(ctx, id, func(s *sections.Section) { s.Notes = notes }, notes)
}

func (m *Memory) AddDocument(ctx context.Context, id uuid.UUID, cmd sections.UploadCommand) (*sections.SupportingDocument, error) {
	m.mu.Lock()
	s, ok := m.sections[id]
	if !ok {
		m.mu.Unlock()
		return nil, sections.ErrNotFound
	}
	doc := sections.SupportingDocument{
		ID:          uuid.New(),
		SectionID:   id,
		Name:        cmd.Name,
		Description: cmd.Description,
		UploadedBy:  cmd.UploadedBy,
		UploadedAt:  time.Now().UTC(),
		Filename:    cmd.Filename,
		ContentType: cmd.ContentType,
		SizeBytes:   int64(len(cmd.Data)),
	}
	s.Documents = append(s.Documents, doc)
	m.blobs[doc.ID] = append([]byte(nil), cmd.Data...)
	m.mu.Unlock()

	return &doc, m.Begin(ctx, id)
}

func (m *Memory) OpenDocument(ctx context.Context, id, docID uuid.UUID) (*sections.SupportingDocument, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, nil, sections.ErrNotFound
	}
	for _, d := range s.Documents {
		if d.ID == docID {
			return &d, io.NopCloser(bytes.NewReader(m.blobs[docID])), nil
		}
	}
	return nil, nil, sections.ErrDocumentNotFound
}

func (m *Memory) DeleteDocument(ctx context.Context, id, docID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return sections.ErrNotFound
	}
	for i, d := range s.Documents {
		if d.ID == docID {
			s.Documents = append(s.Documents[:i], s.Documents[i+1:]...)
			delete(m.blobs, docID)
			return nil
		}
	}
	return sections.ErrDocumentNotFound
}

func (m *Memory) text(ctx context.Context, id uuid.UUID, set func(*sections.Section), text string) (*sections.Section, error) {
	if len(text) > sections.MaxTextSize {
		return nil, fmt.Errorf("%w: text exceeds %d bytes", sections.ErrValidation, sections.MaxTextSize)
	}
	m.mu.Lock()
	s, ok := m.sections[id]
	if !ok {
		m.mu.Unlock()
		return nil, sections.ErrNotFound
	}
	set(s)
	m.mu.Unlock()

	if err := m.Begin(ctx, id); err != nil {
		return nil, err
	}
	return m.Find(ctx, id)
}

func (m *Memory) apply(ctx context.Context, id uuid.UUID, ev sections.Event, reason *string) (*sections.Section, error) {
	m.mu.Lock()
	s, ok := m.sections[id]
	if !ok {
		m.mu.Unlock()
		return nil, sections.ErrNotFound
	}

	next, err := sections.Next(s.Status, ev)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	changed := next != s.Status
	s.Status = next
	if ev == sections.EventNotApplicable {
		s.NAReason = reason
	}
	if ev == sections.EventReset {
		s.NAReason = nil
		s.CompletedAt = nil
	}
	binderID := s.BinderID
	hooks := append([]sections.StatusHook(nil), m.hooks...)
	m.mu.Unlock()

	if changed {
		for _, fn := range hooks {
			fn(ctx, binderID)
		}
	}
	return m.Find(ctx, id)
}
