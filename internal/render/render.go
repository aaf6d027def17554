// Package render produces PDF views of sections from their committed fields.
//
// A Renderer turns one section into PDF bytes. The Coordinator owns the
// resulting temp files: each section holds at most one artifact, replaced on
// re-render and removed on release or shutdown.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
)

// Input is everything a renderer needs for one section.
type Input struct {
	Section  *sections.Section
	Template *templates.Template
	Document *templates.Document
	Values   map[string]string
}

// Renderer writes a PDF for in to w.
type Renderer interface {
	Render(ctx context.Context, in Input, w io.Writer) error
}

// Artifact describes a rendered PDF held on disk for a section.
type Artifact struct {
	SectionID  uuid.UUID `json:"section_id"`
	Filename   string    `json:"filename"`
	Pages      int       `json:"pages"`
	SizeBytes  int64     `json:"size_bytes"`
	Version    int64     `json:"version"`
	RenderedAt time.Time `json:"rendered_at"`

	path string
}

// Filename builds a download name such as "02-farm-information.pdf".
func Filename(doc *templates.Document) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(doc.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > 50 {
		slug = strings.TrimSuffix(slug[:50], "-")
	}
	if slug == "" {
		slug = "document"
	}
	return fmt.Sprintf("%02d-%s.pdf", doc.Number, slug)
}
