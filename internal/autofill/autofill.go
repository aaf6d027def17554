// Package autofill merges data from external auto-fill providers into
// committed section fields. Overrides always win over provider data.
package autofill

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
)

// PreviewField is one field the provider supplied a value for.
type PreviewField struct {
	Name   string              `json:"name"`
	Label  string              `json:"label"`
	Type   templates.FieldType `json:"type"`
	Value  string              `json:"value"`
	Source fields.Provenance   `json:"source"`
	Page   int                 `json:"page"`
}

// Preview is the provider's current output mapped onto a section's schema.
type Preview struct {
	SectionID uuid.UUID      `json:"section_id"`
	Source    string         `json:"data_source"`
	Fields    []PreviewField `json:"fields"`
	Warnings  []string       `json:"warnings"`
}

// Values returns name → previewed value.
func (p *Preview) Values() map[string]string {
	m := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// System defines the reconciler contract. Apply and Reset perform no
// locking of their own; callers serialize them against saves.
type System interface {
	Handler() *Handler

	// Preview fetches fresh provider data without changing anything.
	Preview(ctx context.Context, sectionID uuid.UUID) (*Preview, error)
	// Apply merges a fresh preview and explicit overrides into committed
	// fields and returns the section version after the write.
	Apply(ctx context.Context, sectionID uuid.UUID, overrides map[string]string) (int64, error)
	// Reset rewrites every field to fresh provider data or its schema default
	// and clears all overrides.
	Reset(ctx context.Context, sectionID uuid.UUID) (int64, error)
}

type reconciler struct {
	sections  sections.System
	templates templates.System
	values    fields.Store
	provider  Provider
	logger    *slog.Logger
}

// New creates a reconciler backed by provider.
func New(
	secs sections.System,
	tmpl templates.System,
	values fields.Store,
	provider Provider,
	logger *slog.Logger,
) System {
	return &reconciler{
		sections:  secs,
		templates: tmpl,
		values:    values,
		provider:  provider,
		logger:    logger.With("system", "autofill"),
	}
}

func (r *reconciler) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *reconciler) Preview(ctx context.Context, sectionID uuid.UUID) (*Preview, error) {
	sec, doc, err := r.target(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec.Source() == "" {
		return nil, fmt.Errorf("%w: document %d", ErrNoSource, sec.DocNumber)
	}
	return r.fetch(ctx, sec, doc)
}

func (r *reconciler) Apply(ctx context.Context, sectionID uuid.UUID, overrides map[string]string) (int64, error) {
	sec, doc, err := r.target(ctx, sectionID)
	if err != nil {
		return 0, err
	}
	if sec.Source() == "" {
		return 0, fmt.Errorf("%w: document %d", ErrNoSource, sec.DocNumber)
	}

	var (
		snap    *fields.Snapshot
		preview *Preview
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = r.values.Load(gctx, sectionID)
		return err
	})
	g.Go(func() error {
		var err error
		preview, err = r.fetch(gctx, sec, doc)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	writes, err := snap.Validate(overrides)
	if err != nil {
		return 0, err
	}
	explicit := make(map[string]string, len(writes))
	for _, w := range writes {
		explicit[w.Name] = w.Value
	}

	rows := fields.Reconcile(snap.Values, preview.Values(), explicit)
	if len(rows) == 0 {
		r.logger.Debug("auto-fill apply unchanged", "section", sectionID, "version", snap.Version)
		return snap.Version, nil
	}

	version, err := r.values.Put(ctx, sectionID, rows, snap.Version)
	if err != nil {
		return 0, err
	}

	r.logger.Info("auto-fill applied",
		"section", sectionID,
		"source", sec.Source(),
		"changed", len(rows),
		"overrides", len(explicit),
		"version", version,
	)
	return version, nil
}

func (r *reconciler) Reset(ctx context.Context, sectionID uuid.UUID) (int64, error) {
	sec, doc, err := r.target(ctx, sectionID)
	if err != nil {
		return 0, err
	}

	var fresh map[string]string
	if sec.Source() != "" {
		preview, err := r.fetch(ctx, sec, doc)
		if err != nil {
			return 0, err
		}
		fresh = preview.Values()
	}

	snap, err := r.values.Load(ctx, sectionID)
	if err != nil {
		return 0, err
	}

	rows := fields.ResetRows(snap.Values, fields.Defaults(doc), fresh)
	if len(rows) == 0 {
		return snap.Version, nil
	}

	version, err := r.values.Put(ctx, sectionID, rows, snap.Version)
	if err != nil {
		return 0, err
	}

	r.logger.Info("section fields reset", "section", sectionID, "fields", len(rows), "version", version)
	return version, nil
}

func (r *reconciler) target(ctx context.Context, sectionID uuid.UUID) (*sections.Section, *templates.Document, error) {
	sec, err := r.sections.Find(ctx, sectionID)
	if err != nil {
		return nil, nil, err
	}
	_, doc, err := r.templates.Document(sec.TemplateID, sec.DocNumber)
	if err != nil {
		return nil, nil, err
	}
	return sec, doc, nil
}

// fetch calls the provider and maps its output onto the document schema in
// schema order. Unknown names and invalid values are dropped with a warning.
func (r *reconciler) fetch(ctx context.Context, sec *sections.Section, doc *templates.Document) (*Preview, error) {
	req := Request{
		Source:     sec.Source(),
		Document:   sec.DocNumber,
		SeasonYear: sec.SeasonYear,
	}
	if sec.FarmID != nil {
		req.FarmID = *sec.FarmID
	}

	res, err := r.provider.Fetch(ctx, req)
	if err != nil {
		r.logger.Warn("auto-fill fetch failed", "section", sec.ID, "source", req.Source, "error", err)
		return nil, err
	}

	preview := &Preview{
		SectionID: sec.ID,
		Source:    req.Source,
		Fields:    []PreviewField{},
		Warnings:  append([]string{}, res.Warnings...),
	}

	for _, name := range slices.Sorted(maps.Keys(res.Values)) {
		if _, ok := doc.Field(name); !ok {
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("ignored value for unknown field %q from %s", name, req.Source))
		}
	}

	for _, f := range doc.Fields {
		raw, ok := res.Values[f.Name]
		if !ok {
			continue
		}
		v, err := fields.Normalize(f.Type, raw)
		if err != nil {
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("ignored invalid value for %s from %s: %v", f.Name, req.Source, err))
			continue
		}
		preview.Fields = append(preview.Fields, PreviewField{
			Name:   f.Name,
			Label:  f.Label,
			Type:   f.Type,
			Value:  v,
			Source: fields.ProvenanceAutoFill,
			Page:   f.Page,
		})
	}

	if len(preview.Fields) == 0 {
		preview.Warnings = append(preview.Warnings, "no matching records found for "+req.Source)
	}
	return preview, nil
}
