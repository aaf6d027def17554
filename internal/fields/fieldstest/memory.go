// Package fieldstest provides an in-memory fields.Store for tests.
package fieldstest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/templates"
)

type section struct {
	version int64
	values  map[string]fields.Value
}

// Call records one write against the store.
type Call struct {
	Op      string
	Section uuid.UUID
	Writes  []fields.Write
	Rows    []fields.Value
}

// Memory is a goroutine-safe fields.Store with fault injection and call recording.
type Memory struct {
	mu       sync.Mutex
	sections map[uuid.UUID]*section
	calls    []Call

	// Err, when set, is returned by the next write and then cleared.
	Err error
	// Block, when set, makes writes wait for a receive before committing.
	Block chan struct{}
	// Started, when set, receives each write before it waits on Block.
	Started chan Call
}

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{sections: make(map[uuid.UUID]*section)}
}

// AddSection seeds a section at version 1 with schema defaults.
func (m *Memory) AddSection(id uuid.UUID, schema []templates.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &section{version: 1, values: make(map[string]fields.Value, len(schema))}
	for _, f := range schema {
		s.values[f.Name] = fields.Value{
			SectionID: id,
			Name:      f.Name,
			Type:      f.Type,
			Value:     f.Default,
			Page:      f.Page,
		}
	}
	m.sections[id] = s
}

// Calls returns a copy of the recorded writes.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Fail makes the next write return err.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

func (m *Memory) Load(ctx context.Context, id uuid.UUID) (*fields.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sections[id]
	if !ok {
		return nil, fields.ErrNotFound
	}

	snap := &fields.Snapshot{SectionID: id, Version: s.version, Values: make(map[string]fields.Value, len(s.values))}
	for k, v := range s.values {
		if v.AutoFillValue != nil {
			af := *v.AutoFillValue
			v.AutoFillValue = &af
		}
		snap.Values[k] = v
	}
	return snap, nil
}

func (m *Memory) Commit(ctx context.Context, id uuid.UUID, writes []fields.Write, expected int64) (int64, error) {
	return m.write(ctx, Call{Op: "commit", Section: id, Writes: writes}, expected, func(s *section) error {
		for _, w := range writes {
			v, ok := s.values[w.Name]
			if !ok {
				return fields.ErrUnknownField
			}
			v.Value = w.Value
			v.Overridden = true
			v.UpdatedAt = time.Now()
			s.values[w.Name] = v
		}
		return nil
	})
}

func (m *Memory) Put(ctx context.Context, id uuid.UUID, rows []fields.Value, expected int64) (int64, error) {
	return m.write(ctx, Call{Op: "put", Section: id, Rows: rows}, expected, func(s *section) error {
		for _, r := range rows {
			v, ok := s.values[r.Name]
			if !ok {
				return fields.ErrUnknownField
			}
			v.Value = r.Value
			v.Overridden = r.Overridden
			v.AutoFillValue = nil
			if r.AutoFillValue != nil {
				af := *r.AutoFillValue
				v.AutoFillValue = &af
			}
			v.UpdatedAt = time.Now()
			s.values[r.Name] = v
		}
		return nil
	})
}

func (m *Memory) write(ctx context.Context, call Call, expected int64, apply func(*section) error) (int64, error) {
	m.mu.Lock()
	block, started := m.Block, m.Started
	m.mu.Unlock()

	if started != nil {
		started <- call
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)

	if err := m.Err; err != nil {
		m.Err = nil
		return 0, err
	}

	s, ok := m.sections[call.Section]
	if !ok {
		return 0, fields.ErrNotFound
	}
	if expected != 0 && expected != s.version {
		return 0, fields.ErrConflict
	}

	staged := &section{version: s.version, values: make(map[string]fields.Value, len(s.values))}
	for k, v := range s.values {
		staged.values[k] = v
	}
	if err := apply(staged); err != nil {
		return 0, err
	}

	staged.version++
	m.sections[call.Section] = staged
	return staged.version, nil
}
