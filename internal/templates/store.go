package templates

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/binder/pkg/storage"
)

type store struct {
	catalog *Catalog
	storage storage.System
	logger  *slog.Logger

	mu       sync.RWMutex
	onUpload []func(string)
}

// New creates a template System over a validated catalog.
func New(catalog *Catalog, blobs storage.System, logger *slog.Logger) System {
	return &store{
		catalog: catalog,
		storage: blobs,
		logger:  logger.With("system", "templates"),
	}
}

func (s *store) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, maxUploadSize)
}

func (s *store) List() []Template {
	return s.catalog.Templates
}

func (s *store) Find(id string) (*Template, error) {
	for i := range s.catalog.Templates {
		if s.catalog.Templates[i].ID == id {
			return &s.catalog.Templates[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *store) Document(id string, number int) (*Template, *Document, error) {
	t, err := s.Find(id)
	if err != nil {
		return nil, nil, err
	}

	d, ok := t.Document(number)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s document %d", ErrNotFound, id, number)
	}
	return t, d, nil
}

func (s *store) UploadPDF(ctx context.Context, id string, number int, data []byte) (string, error) {
	t, d, err := s.Document(id, number)
	if err != nil {
		return "", err
	}

	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}

	key := t.PDFKey(d)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(data), "application/pdf"); err != nil {
		return "", fmt.Errorf("store template pdf: %w", err)
	}

	s.mu.RLock()
	hooks := s.onUpload
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(key)
	}

	s.logger.Info("template pdf uploaded", "template", id, "document", number, "key", key, "pages", pages)
	return key, nil
}

func (s *store) OpenPDF(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open template pdf %s: %w", key, err)
	}
	return rc, nil
}

func (s *store) OnUpload(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpload = append(s.onUpload, fn)
}
