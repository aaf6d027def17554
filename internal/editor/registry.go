package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/pkg/lease"
	"github.com/JaimeStill/binder/pkg/lifecycle"
)

const minSweepInterval = time.Second

func leaseKey(sectionID uuid.UUID) string {
	return "section:" + sectionID.String()
}

func (e *editor) Open(ctx context.Context, sectionID uuid.UUID) (*Session, error) {
	if e.open(sectionID) != nil {
		return nil, ErrSessionOpen
	}

	sec, doc, snap, err := e.load(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	s := newSession(e, sectionID, doc, snap)

	if err := e.leases.Acquire(ctx, leaseKey(sectionID), s.ID.String()); err != nil {
		if errors.Is(err, lease.ErrHeld) {
			return nil, fmt.Errorf("%w: held by another instance", ErrSessionOpen)
		}
		return nil, fmt.Errorf("acquire editor lease: %w", err)
	}

	e.mu.Lock()
	if _, exists := e.bySection[sectionID]; exists {
		e.mu.Unlock()
		e.releaseLease(ctx, s)
		return nil, ErrSessionOpen
	}
	e.sessions[s.ID] = s
	e.bySection[sectionID] = s
	e.mu.Unlock()

	e.logger.Info("session opened", "session", s.ID, "section", sectionID, "version", snap.Version)
	s.seed(ctx, sec.Source())
	return s, nil
}

func (e *editor) Session(id uuid.UUID) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (e *editor) Unsaved(sectionID uuid.UUID) bool {
	s := e.open(sectionID)
	return s != nil && s.hasDirty()
}

func (e *editor) Sweep(ctx context.Context, now time.Time) {
	var idle, active []*Session
	for _, s := range e.list() {
		if s.idle(now, e.opts.IdleTimeout) {
			idle = append(idle, s)
		} else {
			active = append(active, s)
		}
	}

	for _, s := range idle {
		e.logger.Info("closing idle session", "session", s.ID, "section", s.SectionID)
		e.flush(ctx, s)
		s.Close(ctx)
	}

	for _, s := range active {
		err := e.leases.Refresh(ctx, leaseKey(s.SectionID), s.ID.String())
		if err == nil {
			continue
		}
		if errors.Is(err, lease.ErrHeld) {
			e.logger.Warn("editor lease lost, closing session", "session", s.ID, "section", s.SectionID)
			s.Close(ctx)
			continue
		}
		e.logger.Warn("editor lease refresh failed", "session", s.ID, "error", err)
	}
}

func (e *editor) Shutdown(ctx context.Context) {
	sessions := e.list()
	for _, s := range sessions {
		e.flush(ctx, s)
		s.Close(ctx)
	}
	if len(sessions) > 0 {
		e.logger.Info("editor sessions closed", "count", len(sessions))
	}
}

func (e *editor) Start(lc *lifecycle.Coordinator) error {
	interval := e.leases.TTL() / 3
	if idle := e.opts.IdleTimeout / 2; idle > 0 && idle < interval {
		interval = idle
	}
	interval = max(interval, minSweepInterval)

	lc.OnBackground(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				e.Sweep(ctx, now)
			}
		}
	})

	lc.OnDrain(e.Shutdown)
	return nil
}

func (e *editor) flush(ctx context.Context, s *Session) {
	if !s.hasDirty() {
		return
	}
	if _, err := s.Save(ctx, nil); err != nil {
		e.logger.Error("session flush failed, edits lost", "session", s.ID, "section", s.SectionID, "dirty", s.Dirty(), "error", err)
	}
}

// release runs once per session from Close.
func (e *editor) release(ctx context.Context, s *Session) {
	e.mu.Lock()
	delete(e.sessions, s.ID)
	if cur, ok := e.bySection[s.SectionID]; ok && cur == s {
		delete(e.bySection, s.SectionID)
	}
	e.mu.Unlock()

	e.artifacts.Release(s.SectionID)
	e.releaseLease(ctx, s)
	e.logger.Info("session closed", "session", s.ID, "section", s.SectionID)
}

func (e *editor) releaseLease(ctx context.Context, s *Session) {
	lctx, cancel := e.detach(ctx)
	defer cancel()
	if err := e.leases.Release(lctx, leaseKey(s.SectionID), s.ID.String()); err != nil {
		e.logger.Warn("editor lease release failed", "session", s.ID, "error", err)
	}
}

// open returns the section's live session, or nil. A session that is
// closing counts as absent.
func (e *editor) open(sectionID uuid.UUID) *Session {
	e.mu.Lock()
	s := e.bySection[sectionID]
	e.mu.Unlock()

	if s == nil || s.isClosed() {
		return nil
	}
	return s
}

func (e *editor) list() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}
