package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/pkg/formatting"
	"github.com/JaimeStill/binder/pkg/gate"
	"github.com/JaimeStill/binder/pkg/lifecycle"
)

// System renders sections and owns their transient PDF artifacts.
type System interface {
	Handler() *Handler
	// Start registers artifact cleanup with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error

	// Render waits for any in-flight save, renders the committed fields,
	// and holds the result as the section's artifact.
	Render(ctx context.Context, sectionID uuid.UUID) (*Artifact, error)
	// Open renders the section and opens its held artifact for reading.
	Open(ctx context.Context, sectionID uuid.UUID) (*Artifact, *os.File, error)
	// Download renders a one-off copy. Closing the reader removes it. The
	// held artifact is not touched.
	Download(ctx context.Context, sectionID uuid.UUID) (*Artifact, io.ReadCloser, error)
	// Refresh re-renders the section only if it holds an artifact or has a
	// render in progress.
	Refresh(ctx context.Context, sectionID uuid.UUID) error
	// Release removes the section's held artifact.
	Release(sectionID uuid.UUID)
	Held(sectionID uuid.UUID) (*Artifact, bool)
	// Close removes every held artifact. Later renders fail with ErrClosed.
	Close()
}

// Options configures the coordinator. HTML, when set, prints the documents
// it handles instead of the backend.
type Options struct {
	TempDir string
	HTML    *HTMLPrinter
}

type coordinator struct {
	sections  sections.System
	templates templates.System
	values    fields.Store
	backend   Renderer
	html      *HTMLPrinter
	gate      *gate.Gate[uuid.UUID]
	dir       string
	logger    *slog.Logger

	mu      sync.Mutex
	held    map[uuid.UUID]*Artifact
	pending map[uuid.UUID]int
	closed  bool
}

// New creates the coordinator. g must be the gate the editor writes through.
func New(
	secs sections.System,
	tmpl templates.System,
	values fields.Store,
	backend Renderer,
	g *gate.Gate[uuid.UUID],
	opts Options,
	logger *slog.Logger,
) System {
	dir := opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &coordinator{
		sections:  secs,
		templates: tmpl,
		values:    values,
		backend:   backend,
		html:      opts.HTML,
		gate:      g,
		dir:       dir,
		logger:    logger.With("system", "render"),
		held:      make(map[uuid.UUID]*Artifact),
		pending:   make(map[uuid.UUID]int),
	}
}

func (c *coordinator) Handler() *Handler {
	return NewHandler(c, c.logger)
}

func (c *coordinator) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		c.Close()
	})
	return nil
}

// Render marks the section as rendering before releasing its artifact, so a
// save that commits meanwhile still triggers a Refresh. An artifact older
// than the one already held is discarded in favor of the held one.
func (c *coordinator) Render(ctx context.Context, sectionID uuid.UUID) (*Artifact, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[sectionID]++
	c.mu.Unlock()
	defer c.done(sectionID)

	c.Release(sectionID)

	art, err := c.produce(ctx, sectionID)
	if err != nil {
		c.logger.Warn("render failed", "section", sectionID, "error", err)
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.remove(art.path)
		return nil, ErrClosed
	}
	prev := c.held[sectionID]
	if prev != nil && prev.Version > art.Version {
		cp := *prev
		c.mu.Unlock()
		c.remove(art.path)
		c.logger.Debug("discarded superseded render", "section", sectionID, "version", art.Version, "held", prev.Version)
		return &cp, nil
	}
	c.held[sectionID] = art
	c.mu.Unlock()

	if prev != nil {
		c.remove(prev.path)
	}

	c.logger.Info("section rendered", "section", sectionID, "pages", art.Pages, "size", formatting.FormatBytes(art.SizeBytes, 1), "version", art.Version)
	cp := *art
	return &cp, nil
}

func (c *coordinator) done(sectionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[sectionID]--; c.pending[sectionID] <= 0 {
		delete(c.pending, sectionID)
	}
}

func (c *coordinator) Open(ctx context.Context, sectionID uuid.UUID) (*Artifact, *os.File, error) {
	if _, err := c.Render(ctx, sectionID); err != nil {
		return nil, nil, err
	}

	// The held artifact may already be a newer render. Opening under the
	// lock keeps it from being removed first.
	c.mu.Lock()
	defer c.mu.Unlock()

	art, ok := c.held[sectionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: artifact released during render", ErrRender)
	}
	f, err := os.Open(art.path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	cp := *art
	return &cp, f, nil
}

func (c *coordinator) Download(ctx context.Context, sectionID uuid.UUID) (*Artifact, io.ReadCloser, error) {
	if c.isClosed() {
		return nil, nil, ErrClosed
	}

	art, err := c.produce(ctx, sectionID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(art.path)
	if err != nil {
		c.remove(art.path)
		return nil, nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return art, &tempFile{File: f, remove: c.remove}, nil
}

func (c *coordinator) Refresh(ctx context.Context, sectionID uuid.UUID) error {
	c.mu.Lock()
	_, held := c.held[sectionID]
	active := held || c.pending[sectionID] > 0
	c.mu.Unlock()
	if !active {
		return nil
	}
	_, err := c.Render(ctx, sectionID)
	return err
}

func (c *coordinator) Release(sectionID uuid.UUID) {
	c.mu.Lock()
	art, ok := c.held[sectionID]
	delete(c.held, sectionID)
	c.mu.Unlock()

	if ok {
		c.remove(art.path)
	}
}

func (c *coordinator) Held(sectionID uuid.UUID) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	art, ok := c.held[sectionID]
	if !ok {
		return nil, false
	}
	cp := *art
	return &cp, true
}

func (c *coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	held := c.held
	c.held = make(map[uuid.UUID]*Artifact)
	c.mu.Unlock()

	for _, art := range held {
		c.remove(art.path)
	}
	if len(held) > 0 {
		c.logger.Info("render artifacts released", "count", len(held))
	}
}

// produce renders committed state into a verified temp file. It waits for
// an in-flight save to commit and then reads one consistent snapshot. Every
// failure removes the partial file.
func (c *coordinator) produce(ctx context.Context, sectionID uuid.UUID) (_ *Artifact, err error) {
	if err := c.gate.Wait(ctx, sectionID); err != nil {
		return nil, err
	}

	in, version, err := c.input(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(c.dir, "binder-section-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrRender, err)
	}
	path := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			c.remove(path)
		}
	}()

	if err := c.renderer(in.Document).Render(ctx, in, f); err != nil {
		if !errors.Is(err, ErrRender) {
			err = fmt.Errorf("%w: %w", ErrRender, err)
		}
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	pages, err := api.PageCount(f, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pdf: %w", ErrRender, err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	return &Artifact{
		SectionID:  sectionID,
		Filename:   Filename(in.Document),
		Pages:      pages,
		SizeBytes:  info.Size(),
		Version:    version,
		RenderedAt: time.Now(),
		path:       path,
	}, nil
}

func (c *coordinator) input(ctx context.Context, sectionID uuid.UUID) (Input, int64, error) {
	sec, err := c.sections.Find(ctx, sectionID)
	if err != nil {
		return Input{}, 0, err
	}
	tmpl, doc, err := c.templates.Document(sec.TemplateID, sec.DocNumber)
	if err != nil {
		return Input{}, 0, err
	}
	snap, err := c.values.Load(ctx, sectionID)
	if err != nil {
		return Input{}, 0, err
	}
	return Input{Section: sec, Template: tmpl, Document: doc, Values: snap.Map()}, snap.Version, nil
}

func (c *coordinator) renderer(doc *templates.Document) Renderer {
	if c.html != nil && c.html.Handles(doc) {
		return c.html
	}
	return c.backend
}

func (c *coordinator) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("remove render artifact failed", "path", path, "error", err)
	}
}

func (c *coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// tempFile removes its file on Close.
type tempFile struct {
	*os.File
	remove func(string)
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	t.remove(t.Name())
	return err
}
