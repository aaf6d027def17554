package binders

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/readiness"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/pkg/pagination"
	"github.com/JaimeStill/binder/pkg/query"
	"github.com/JaimeStill/binder/pkg/repository"
	"github.com/JaimeStill/binder/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	templates  templates.System
	sections   sections.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a binder repository implementing the System interface.
// It registers itself with secs so every section status change re-derives
// the owning binder's status.
func New(
	db *sql.DB,
	store storage.System,
	tmpl templates.System,
	secs sections.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	r := &repo{
		db:         db,
		storage:    store,
		templates:  tmpl,
		sections:   secs,
		logger:     logger.With("system", "binders"),
		pagination: pagination,
	}
	secs.OnStatusChange(r.RefreshStatus)
	return r
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Binder], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "TemplateID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count binders: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	binders, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanBinder)
	if err != nil {
		return nil, fmt.Errorf("query binders: %w", err)
	}

	result := pagination.NewPageResult(binders, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Binder, error) {
	b, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	secs, err := r.sections.ListByBinder(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Sections = secs
	return b, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Binder, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	tmpl, err := r.templates.Find(cmd.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	const insertBinder = `
		INSERT INTO binders(id, template_id, template_version, name, season_year, farm_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	const insertSection = `
		INSERT INTO sections(id, binder_id, doc_number, title, doc_group, kind, data_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	id := uuid.New()

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, insertBinder,
			id, tmpl.ID, tmpl.Version, cmd.Name, cmd.SeasonYear, cmd.FarmID, StatusDraft,
		); err != nil {
			return struct{}{}, err
		}

		for _, doc := range tmpl.Documents {
			secID := uuid.New()
			var source *string
			if doc.DataSource != "" {
				source = &doc.DataSource
			}

			if _, err := tx.ExecContext(ctx, insertSection,
				secID, id, doc.Number, doc.Title, doc.Group, doc.Kind, source,
			); err != nil {
				return struct{}{}, fmt.Errorf("insert section %d: %w", doc.Number, err)
			}
			if err := fields.Seed(ctx, tx, secID, doc.Fields); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("binder created",
		"id", id,
		"template", tmpl.ID,
		"version", tmpl.Version,
		"sections", len(tmpl.Documents),
	)
	return r.Find(ctx, id)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	const keysQuery = `
		SELECT d.storage_key
		FROM supporting_documents d
		JOIN sections s ON s.id = d.section_id
		WHERE s.binder_id = $1`

	keys, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]string, error) {
		keys, err := repository.QueryMany(ctx, tx, keysQuery, []any{id}, scanKey)
		if err != nil {
			return nil, err
		}
		if err := repository.ExecExpectOne(ctx, tx, "DELETE FROM binders WHERE id = $1", id); err != nil {
			return nil, err
		}
		return keys, nil
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	for _, key := range keys {
		if err := r.storage.Delete(ctx, key); err != nil {
			r.logger.Warn("supporting document blob delete failed", "key", key, "error", err)
		}
	}

	r.logger.Info("binder deleted", "id", id, "blobs", len(keys))
	return nil
}

func (r *repo) Sections(ctx context.Context, id uuid.UUID) ([]sections.Section, error) {
	if _, err := r.find(ctx, id); err != nil {
		return nil, err
	}
	return r.sections.ListByBinder(ctx, id)
}

func (r *repo) Readiness(ctx context.Context, id uuid.UUID) (*readiness.Report, error) {
	secs, err := r.Sections(ctx, id)
	if err != nil {
		return nil, err
	}
	report := readiness.Compute(secs)
	return &report, nil
}

func (r *repo) ExportReadiness(ctx context.Context, id uuid.UUID, w io.Writer) error {
	var (
		b    *Binder
		secs []sections.Section
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b, err = r.find(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		secs, err = r.sections.ListByBinder(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	title := fmt.Sprintf("%s (%d)", b.Name, b.SeasonYear)
	return readiness.Export(w, title, secs)
}

func (r *repo) Submit(ctx context.Context, id uuid.UUID) (*Binder, error) {
	b, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	switch DeriveStatus(b.Status, b.Sections) {
	case StatusSubmitted:
		return b, nil
	case StatusReady:
	default:
		return nil, fmt.Errorf("%w: %d of %d sections outstanding", ErrNotReady, outstanding(b.Sections), len(b.Sections))
	}

	const q = `
		UPDATE binders
		SET status = $2, submitted_at = $3, updated_at = NOW()
		WHERE id = $1`

	if err := repository.ExecExpectOne(ctx, r.db, q, id, StatusSubmitted, time.Now().UTC()); err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("binder submitted", "id", id)
	return r.Find(ctx, id)
}

func (r *repo) RefreshStatus(ctx context.Context, id uuid.UUID) error {
	b, err := r.find(ctx, id)
	if err != nil {
		return err
	}

	secs, err := r.sections.ListByBinder(ctx, id)
	if err != nil {
		return err
	}

	next := DeriveStatus(b.Status, secs)
	if next == b.Status {
		return nil
	}

	const q = `
		UPDATE binders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`

	n, err := repository.ExecAffected(ctx, r.db, q, id, next, b.Status)
	if err != nil {
		return fmt.Errorf("update binder status: %w", err)
	}
	if n == 0 {
		r.logger.Debug("binder status changed concurrently", "id", id)
		return nil
	}

	r.logger.Info("binder status changed", "id", id, "from", b.Status, "to", next)
	return nil
}

func (r *repo) find(ctx context.Context, id uuid.UUID) (*Binder, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	b, err := repository.QueryOne(ctx, r.db, q, args, scanBinder)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &b, nil
}

func outstanding(secs []sections.Section) int {
	var n int
	for _, s := range secs {
		if s.Status != sections.StatusComplete && s.Status != sections.StatusNotApplicable {
			n++
		}
	}
	return n
}

func scanKey(s repository.Scanner) (string, error) {
	var key string
	err := s.Scan(&key)
	return key, err
}
