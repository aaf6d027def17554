package templates

import (
	"context"
	"io"
)

// System defines the public contract for the template catalog.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List() []Template
	Find(id string) (*Template, error)
	Document(id string, number int) (*Template, *Document, error)

	// UploadPDF validates data as a PDF and stores it as the document's blank template.
	UploadPDF(ctx context.Context, id string, number int, data []byte) (string, error)
	// OpenPDF streams a document's blank template. The caller must close the reader.
	OpenPDF(ctx context.Context, key string) (io.ReadCloser, error)
	// OnUpload registers fn to run with the storage key after each successful upload.
	OnUpload(fn func(key string))
}
