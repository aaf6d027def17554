package sections

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/pkg/repository"
	"github.com/JaimeStill/binder/pkg/storage"
)

func (r *repo) AddDocument(ctx context.Context, id uuid.UUID, cmd UploadCommand) (*SupportingDocument, error) {
	if _, err := r.find(ctx, id); err != nil {
		return nil, err
	}

	name := cmd.Name
	if name == "" {
		name = cmd.Filename
	}
	if name == "" {
		return nil, fmt.Errorf("%w: document name required", ErrValidation)
	}

	filename := cmd.Filename
	if base := path.Base(filename); base == "." || base == "/" || base == ".." {
		filename = "document"
	}

	docID := uuid.New()
	key := storage.Key("sections", id.String(), "documents", docID.String(), filename)

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	q := `
		INSERT INTO supporting_documents(id, section_id, name, description, uploaded_by, storage_key, filename, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + documentColumns

	args := []any{
		docID, id, name, cmd.Description, cmd.UploadedBy,
		key, path.Base(key), cmd.ContentType, int64(len(cmd.Data)),
	}

	doc, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		if repository.IsForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("insert supporting document: %w", err)
	}

	r.logger.Info("supporting document added", "section", id, "document", docID, "size", doc.SizeBytes)

	if err := r.Begin(ctx, id); err != nil {
		r.logger.Warn("begin after upload failed", "section", id, "error", err)
	}
	return &doc, nil
}

func (r *repo) OpenDocument(ctx context.Context, id, docID uuid.UUID) (*SupportingDocument, io.ReadCloser, error) {
	doc, err := r.findDocument(ctx, id, docID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := r.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return doc, rc, nil
}

// DeleteDocument removes the blob before the row so a storage failure leaves
// the attachment intact. A blob that is already gone does not block the delete.
func (r *repo) DeleteDocument(ctx context.Context, id, docID uuid.UUID) error {
	doc, err := r.findDocument(ctx, id, docID)
	if err != nil {
		return err
	}

	if err := r.storage.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := repository.ExecExpectOne(
		ctx, r.db,
		"DELETE FROM supporting_documents WHERE id = $1 AND section_id = $2",
		docID, id,
	); err != nil {
		return repository.MapError(err, ErrDocumentNotFound, ErrConflict)
	}

	r.logger.Info("supporting document deleted", "section", id, "document", docID)
	return nil
}

func (r *repo) findDocument(ctx context.Context, id, docID uuid.UUID) (*SupportingDocument, error) {
	doc, err := repository.QueryOne(
		ctx, r.db,
		"SELECT "+documentColumns+" FROM supporting_documents WHERE id = $1 AND section_id = $2",
		[]any{docID, id}, scanDocument,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrDocumentNotFound, ErrConflict)
	}
	return &doc, nil
}
