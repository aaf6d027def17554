package sections

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// StatusHook runs after a section's status changes. Binders use it to
// re-derive their own status.
type StatusHook func(ctx context.Context, binderID uuid.UUID) error

// System defines the public contract for section domain operations.
type System interface {
	// Handler builds the HTTP handler. unsaved reports whether an open
	// editor session holds uncommitted edits for a section.
	Handler(maxUploadSize int64, unsaved func(uuid.UUID) bool) *Handler

	Find(ctx context.Context, id uuid.UUID) (*Section, error)
	ListByBinder(ctx context.Context, binderID uuid.UUID) ([]Section, error)

	// Begin moves a not_started section to in_progress. Any other status is left alone.
	Begin(ctx context.Context, id uuid.UUID) error
	// Complete rejects auto-fill sections with empty required fields unless force is set.
	Complete(ctx context.Context, id uuid.UUID, force bool) (*Section, error)
	NotApplicable(ctx context.Context, id uuid.UUID, reason string) (*Section, error)
	ResetStatus(ctx context.Context, id uuid.UUID) (*Section, error)

	UpdateSOP(ctx context.Context, id uuid.UUID, content string) (*Section, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Section, error)

	AddDocument(ctx context.Context, id uuid.UUID, cmd UploadCommand) (*SupportingDocument, error)
	OpenDocument(ctx context.Context, id, docID uuid.UUID) (*SupportingDocument, io.ReadCloser, error)
	DeleteDocument(ctx context.Context, id, docID uuid.UUID) error

	OnStatusChange(fn StatusHook)
}
