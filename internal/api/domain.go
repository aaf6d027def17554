package api

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/autofill"
	"github.com/JaimeStill/binder/internal/binders"
	"github.com/JaimeStill/binder/internal/config"
	"github.com/JaimeStill/binder/internal/editor"
	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/render"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/pkg/gate"
	"github.com/JaimeStill/binder/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Templates templates.System
	Fields    fields.Store
	Sections  sections.System
	Binders   binders.System
	Autofill  autofill.System
	Render    render.System
	Editor    editor.System
}

// NewDomain creates all domain systems from the API runtime. Saves, applies,
// and renders for a section are ordered through one shared gate.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	catalog, err := loadCatalog(&cfg.Templates)
	if err != nil {
		return nil, err
	}

	db := runtime.Database.Connection()
	logger := runtime.Logger
	sectionGate := gate.New[uuid.UUID]()

	tmpl := templates.New(catalog, runtime.Storage, logger)
	values := fields.New(db, logger)
	secs := sections.New(db, runtime.Storage, tmpl, values, logger)
	bnd := binders.New(db, runtime.Storage, tmpl, secs, logger, runtime.Pagination)

	provider := autofill.NewHTTPProvider(cfg.Autofill.BaseURL, cfg.Autofill.TimeoutDuration())
	reconciler := autofill.New(secs, tmpl, values, provider, logger)

	rnd := render.New(secs, tmpl, values, newRenderer(&cfg.Render, tmpl, logger), sectionGate, renderOptions(&cfg.Render), logger)

	ed := editor.New(secs, tmpl, values, reconciler, rnd, sectionGate, runtime.Leases, editor.Options{
		AutosaveDelay: cfg.Editor.AutosaveDelayDuration(),
		IdleTimeout:   cfg.Editor.IdleTimeoutDuration(),
		SaveTimeout:   cfg.Editor.SaveTimeoutDuration(),
	}, logger)

	return &Domain{
		Templates: tmpl,
		Fields:    values,
		Sections:  secs,
		Binders:   bnd,
		Autofill:  reconciler,
		Render:    rnd,
		Editor:    ed,
	}, nil
}

// Start registers the editor janitor and shutdown flush, and render cleanup.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	if err := d.Editor.Start(lc); err != nil {
		return fmt.Errorf("editor start failed: %w", err)
	}
	if err := d.Render.Start(lc); err != nil {
		return fmt.Errorf("render start failed: %w", err)
	}
	return nil
}

func loadCatalog(cfg *config.TemplatesConfig) (*templates.Catalog, error) {
	if cfg.CatalogPath == "" {
		catalog, err := templates.Embedded()
		if err != nil {
			return nil, fmt.Errorf("load embedded catalog: %w", err)
		}
		return catalog, nil
	}

	catalog, err := templates.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
	}
	return catalog, nil
}
