// Package editor coordinates every write to a section's committed fields.
//
// Saves, auto-fill applies, and resets for a section are ordered through a
// shared per-section gate that the render coordinator also observes, so a
// render never runs concurrently with a write it is meant to reflect.
// Editor sessions hold a working copy with dirty tracking and debounced
// autosave; the stateless operations serve clients without a session.
package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/autofill"
	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/pkg/gate"
	"github.com/JaimeStill/binder/pkg/lease"
	"github.com/JaimeStill/binder/pkg/lifecycle"
)

// Options tunes session behavior. An AutosaveDelay of zero disables autosave.
type Options struct {
	AutosaveDelay time.Duration
	IdleTimeout   time.Duration
	SaveTimeout   time.Duration
}

// Artifacts is the part of the render coordinator driven by field writes.
type Artifacts interface {
	// Refresh re-renders the section's held artifact, if any.
	Refresh(ctx context.Context, sectionID uuid.UUID) error
	// Release drops the section's held artifact.
	Release(sectionID uuid.UUID)
}

// System is the write coordinator and session registry for section fields.
type System interface {
	Handler() *Handler
	// Start registers the idle janitor and the shutdown flush.
	Start(lc *lifecycle.Coordinator) error

	Schema(ctx context.Context, sectionID uuid.UUID) (*Schema, error)
	// SaveFields commits values as user overrides. A non-zero version must
	// match the committed version. With an open session the values are
	// routed through it.
	SaveFields(ctx context.Context, sectionID uuid.UUID, values map[string]string, version int64) (*Schema, error)
	// ResetFields restores the section's fields to fresh auto-fill data or schema defaults.
	ResetFields(ctx context.Context, sectionID uuid.UUID) (*Schema, error)
	// ApplyAutoFill merges fresh provider data and overrides. It fails with
	// ErrSaveInFlight instead of waiting for a running save.
	ApplyAutoFill(ctx context.Context, sectionID uuid.UUID, overrides map[string]string) (*sections.Section, error)

	Open(ctx context.Context, sectionID uuid.UUID) (*Session, error)
	Session(id uuid.UUID) (*Session, error)
	// Unsaved reports whether an open session for the section has dirty fields.
	Unsaved(sectionID uuid.UUID) bool
	// Sweep flushes and closes idle sessions and refreshes the leases of the rest.
	Sweep(ctx context.Context, now time.Time)
	// Shutdown flushes dirty fields of every open session, then closes them.
	Shutdown(ctx context.Context)
}

type editor struct {
	sections   sections.System
	templates  templates.System
	values     fields.Store
	reconciler autofill.System
	artifacts  Artifacts
	gate       *gate.Gate[uuid.UUID]
	leases     lease.System
	opts       Options
	logger     *slog.Logger

	mu        sync.Mutex
	sessions  map[uuid.UUID]*Session
	bySection map[uuid.UUID]*Session
}

// New creates the editor. g must be the same gate the render coordinator waits on.
func New(
	secs sections.System,
	tmpl templates.System,
	values fields.Store,
	reconciler autofill.System,
	artifacts Artifacts,
	g *gate.Gate[uuid.UUID],
	leases lease.System,
	opts Options,
	logger *slog.Logger,
) System {
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 30 * time.Second
	}
	return &editor{
		sections:   secs,
		templates:  tmpl,
		values:     values,
		reconciler: reconciler,
		artifacts:  artifacts,
		gate:       g,
		leases:     leases,
		opts:       opts,
		logger:     logger.With("system", "editor"),
		sessions:   make(map[uuid.UUID]*Session),
		bySection:  make(map[uuid.UUID]*Session),
	}
}

func (e *editor) Handler() *Handler {
	return NewHandler(e, e.logger)
}

func (e *editor) Schema(ctx context.Context, sectionID uuid.UUID) (*Schema, error) {
	if s := e.open(sectionID); s != nil {
		return s.Schema(), nil
	}

	_, doc, snap, err := e.load(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return buildSchema(sectionID, doc, snap.Values, nil, nil, snap.Version), nil
}

func (e *editor) SaveFields(ctx context.Context, sectionID uuid.UUID, values map[string]string, version int64) (*Schema, error) {
	if s := e.open(sectionID); s != nil {
		if _, err := s.Save(ctx, values); err != nil {
			return nil, err
		}
		return s.Schema(), nil
	}

	snap, err := e.values.Load(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	writes, err := snap.Validate(values)
	if err != nil {
		return nil, err
	}

	if len(writes) > 0 {
		release, err := e.gate.Acquire(ctx, sectionID)
		if err != nil {
			return nil, err
		}

		wctx, cancel := e.detach(ctx)
		defer cancel()

		_, err = e.values.Commit(wctx, sectionID, writes, version)
		release()
		if err != nil {
			return nil, err
		}

		e.logger.Info("fields saved", "section", sectionID, "fields", len(writes))
		e.afterWrite(wctx, sectionID, true)
	}

	return e.Schema(ctx, sectionID)
}

func (e *editor) ResetFields(ctx context.Context, sectionID uuid.UUID) (*Schema, error) {
	if s := e.open(sectionID); s != nil {
		if err := s.Reset(ctx); err != nil {
			return nil, err
		}
		return s.Schema(), nil
	}

	if err := e.reset(ctx, sectionID, nil); err != nil {
		return nil, err
	}
	return e.Schema(ctx, sectionID)
}

func (e *editor) ApplyAutoFill(ctx context.Context, sectionID uuid.UUID, overrides map[string]string) (*sections.Section, error) {
	release, ok := e.gate.TryAcquire(sectionID)
	if !ok {
		return nil, ErrSaveInFlight
	}

	wctx, cancel := e.detach(ctx)
	defer cancel()

	_, err := e.reconciler.Apply(wctx, sectionID, overrides)
	if err != nil {
		release()
		return nil, err
	}

	if s := e.open(sectionID); s != nil {
		if err := s.refresh(wctx); err != nil {
			e.logger.Warn("session refresh after apply failed", "session", s.ID, "error", err)
		}
	}
	release()
	e.afterWrite(wctx, sectionID, true)

	return e.sections.Find(ctx, sectionID)
}

// reset runs the reconciler reset under the gate without waiting for it.
// reload, when set, also runs under the gate after a successful reset.
func (e *editor) reset(ctx context.Context, sectionID uuid.UUID, reload func(context.Context) error) error {
	release, ok := e.gate.TryAcquire(sectionID)
	if !ok {
		return ErrSaveInFlight
	}

	wctx, cancel := e.detach(ctx)
	defer cancel()

	_, err := e.reconciler.Reset(wctx, sectionID)
	if err == nil && reload != nil {
		err = reload(wctx)
	}
	release()
	if err != nil {
		return err
	}

	e.afterWrite(wctx, sectionID, false)
	return nil
}

// afterWrite runs once the gate is released. Field edits move a not_started
// section to in_progress; resets do not. A held PDF is always re-rendered.
func (e *editor) afterWrite(ctx context.Context, sectionID uuid.UUID, begin bool) {
	if begin {
		if err := e.sections.Begin(ctx, sectionID); err != nil {
			e.logger.Warn("section begin failed", "section", sectionID, "error", err)
		}
	}
	if err := e.artifacts.Refresh(ctx, sectionID); err != nil {
		e.logger.Warn("pdf refresh failed", "section", sectionID, "error", err)
	}
}

func (e *editor) load(ctx context.Context, sectionID uuid.UUID) (*sections.Section, *templates.Document, *fields.Snapshot, error) {
	sec, err := e.sections.Find(ctx, sectionID)
	if err != nil {
		return nil, nil, nil, err
	}
	_, doc, err := e.templates.Document(sec.TemplateID, sec.DocNumber)
	if err != nil {
		return nil, nil, nil, err
	}
	snap, err := e.values.Load(ctx, sectionID)
	if err != nil {
		return nil, nil, nil, err
	}
	return sec, doc, snap, nil
}

// detach keeps a write running when the caller goes away, bounded by SaveTimeout.
func (e *editor) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.opts.SaveTimeout)
}
