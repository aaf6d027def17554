package sections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/fields"
	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/pkg/query"
	"github.com/JaimeStill/binder/pkg/repository"
	"github.com/JaimeStill/binder/pkg/storage"
)

type repo struct {
	db        *sql.DB
	storage   storage.System
	templates templates.System
	fields    fields.Store
	logger    *slog.Logger

	mu    sync.RWMutex
	hooks []StatusHook
}

// New creates a section repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	tmpl templates.System,
	values fields.Store,
	logger *slog.Logger,
) System {
	return &repo{
		db:        db,
		storage:   store,
		templates: tmpl,
		fields:    values,
		logger:    logger.With("system", "sections"),
	}
}

func (r *repo) Handler(maxUploadSize int64, unsaved func(uuid.UUID) bool) *Handler {
	return NewHandler(r, r.logger, maxUploadSize, unsaved)
}

func (r *repo) OnStatusChange(fn StatusHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Section, error) {
	sec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	snap, err := r.fields.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	sec.Fields = snap.Map()
	sec.Version = snap.Version

	docs, err := repository.QueryMany(
		ctx, r.db,
		"SELECT "+documentColumns+" FROM supporting_documents WHERE section_id = $1 ORDER BY uploaded_at",
		[]any{id}, scanDocument,
	)
	if err != nil {
		return nil, fmt.Errorf("query supporting documents: %w", err)
	}
	sec.Documents = docs

	return sec, nil
}

func (r *repo) ListByBinder(ctx context.Context, binderID uuid.UUID) ([]Section, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("BinderID", binderID).
		Build()

	secs, err := repository.QueryMany(ctx, r.db, q, args, scanSection)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	return secs, nil
}

func (r *repo) Begin(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE sections
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING binder_id`

	var binderID uuid.UUID
	err := r.db.QueryRowContext(ctx, q, id, StatusInProgress, StatusNotStarted).Scan(&binderID)
	if errors.Is(err, sql.ErrNoRows) {
		_, err := r.find(ctx, id)
		return err
	}
	if err != nil {
		return fmt.Errorf("begin section: %w", err)
	}

	r.logger.Info("section started", "id", id)
	r.notify(ctx, binderID)
	return nil
}

func (r *repo) Complete(ctx context.Context, id uuid.UUID, force bool) (*Section, error) {
	sec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !force && sec.Kind == templates.KindAutoFill && sec.Source() != "" {
		if err := r.checkRequired(ctx, sec); err != nil {
			return nil, err
		}
	}

	return r.transition(ctx, sec, EventComplete, nil)
}

func (r *repo) NotApplicable(ctx context.Context, id uuid.UUID, reason string) (*Section, error) {
	sec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if len(reason) > MaxTextSize {
		return nil, fmt.Errorf("%w: reason exceeds %d bytes", ErrValidation, MaxTextSize)
	}

	var na *string
	if reason != "" {
		na = &reason
	}
	return r.transition(ctx, sec, EventNotApplicable, na)
}

func (r *repo) ResetStatus(ctx context.Context, id uuid.UUID) (*Section, error) {
	sec, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.transition(ctx, sec, EventReset, nil)
}

func (r *repo) UpdateSOP(ctx context.Context, id uuid.UUID, content string) (*Section, error) {
	return r.updateText(ctx, id, "sop_content", content)
}

func (r *repo) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Section, error) {
	return r.updateText(ctx, id, "notes", notes)
}

// updateText writes one of the free-text columns. column is never user input.
func (r *repo) updateText(ctx context.Context, id uuid.UUID, column, text string) (*Section, error) {
	if len(text) > MaxTextSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, column, MaxTextSize)
	}

	q := fmt.Sprintf("UPDATE sections SET %s = $2, updated_at = now() WHERE id = $1", column)
	if err := repository.ExecExpectOne(ctx, r.db, q, id, text); err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}

	if err := r.Begin(ctx, id); err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

func (r *repo) transition(ctx context.Context, sec *Section, ev Event, reason *string) (*Section, error) {
	next, err := Next(sec.Status, ev)
	if err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if next == StatusComplete {
		now := time.Now().UTC()
		completedAt = &now
	}

	const q = `
		UPDATE sections
		SET status = $2, na_reason = $3, completed_at = $4, updated_at = now()
		WHERE id = $1 AND status = $5`

	n, err := repository.ExecAffected(ctx, r.db, q, sec.ID, next, reason, completedAt, sec.Status)
	if err != nil {
		return nil, fmt.Errorf("update section status: %w", err)
	}
	if n == 0 {
		return nil, ErrConflict
	}

	r.logger.Info("section status changed", "id", sec.ID, "from", sec.Status, "to", next)
	r.notify(ctx, sec.BinderID)

	return r.Find(ctx, sec.ID)
}

func (r *repo) checkRequired(ctx context.Context, sec *Section) error {
	_, doc, err := r.templates.Document(sec.TemplateID, sec.DocNumber)
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}

	snap, err := r.fields.Load(ctx, sec.ID)
	if err != nil {
		return fmt.Errorf("load fields: %w", err)
	}

	if missing := RequiredMissing(doc, snap.Map()); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrRequiredFieldsEmpty, strings.Join(missing, ", "))
	}
	return nil
}

// RequiredMissing returns the names of required schema fields whose value is blank.
func RequiredMissing(doc *templates.Document, values map[string]string) []string {
	var missing []string
	for _, f := range doc.Fields {
		if f.Required && strings.TrimSpace(values[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

func (r *repo) find(ctx context.Context, id uuid.UUID) (*Section, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	sec, err := repository.QueryOne(ctx, r.db, q, args, scanSection)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrConflict)
	}
	return &sec, nil
}

// notify runs status hooks. Hook failures are logged; the transition already committed.
func (r *repo) notify(ctx context.Context, binderID uuid.UUID) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()

	for _, fn := range hooks {
		if err := fn(ctx, binderID); err != nil {
			r.logger.Error("status hook failed", "binder", binderID, "error", err)
		}
	}
}
