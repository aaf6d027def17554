package binders

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/readiness"
	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/pkg/pagination"
)

// System defines the public contract for binder operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Binder], error)
	// Find returns the binder with its sections ordered by document number.
	Find(ctx context.Context, id uuid.UUID) (*Binder, error)
	// Create snapshots the template into sections seeded with schema defaults.
	Create(ctx context.Context, cmd CreateCommand) (*Binder, error)
	// Delete removes the binder and everything it owns. Blob cleanup is best effort.
	Delete(ctx context.Context, id uuid.UUID) error

	Sections(ctx context.Context, id uuid.UUID) ([]sections.Section, error)
	Readiness(ctx context.Context, id uuid.UUID) (*readiness.Report, error)
	ExportReadiness(ctx context.Context, id uuid.UUID, w io.Writer) error

	// Submit marks a ready binder submitted.
	Submit(ctx context.Context, id uuid.UUID) (*Binder, error)
	// RefreshStatus re-derives the binder status from its sections.
	RefreshStatus(ctx context.Context, id uuid.UUID) error
}
