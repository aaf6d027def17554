package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"

	"github.com/JaimeStill/binder/internal/templates"
)

// FormRenderer fills a document's AcroForm template PDF with field values.
// Template bytes are cached per storage key until the template is re-uploaded.
type FormRenderer struct {
	templates templates.System
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
}

func NewFormRenderer(tmpl templates.System, logger *slog.Logger) *FormRenderer {
	r := &FormRenderer{
		templates: tmpl,
		logger:    logger.With("renderer", "form"),
		cache:     make(map[string][]byte),
	}
	tmpl.OnUpload(r.Invalidate)
	return r
}

// Invalidate drops the cached template for key.
func (r *FormRenderer) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
}

func (r *FormRenderer) Render(ctx context.Context, in Input, w io.Writer) error {
	data, err := r.template(ctx, in.Template.PDFKey(in.Document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}

	if len(in.Document.Fields) == 0 {
		_, err := w.Write(data)
		return err
	}

	payload, err := json.Marshal(formData(in.Document, in.Values))
	if err != nil {
		return fmt.Errorf("%w: encode form data: %w", ErrRender, err)
	}

	if err := api.FillForm(bytes.NewReader(data), bytes.NewReader(payload), w, nil); err != nil {
		return fmt.Errorf("%w: fill form: %w", ErrRender, err)
	}
	return nil
}

func (r *FormRenderer) template(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	data, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	rc, err := r.templates.OpenPDF(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read template pdf %s: %w", key, err)
	}

	r.mu.Lock()
	r.cache[key] = data
	r.mu.Unlock()

	r.logger.Debug("template pdf cached", "key", key, "size", len(data))
	return data, nil
}

// formData maps schema fields onto pdfcpu's form JSON. Field names are the
// AcroForm field names; booleans fill checkboxes.
func formData(doc *templates.Document, values map[string]string) form.FormGroup {
	var f form.Form
	for _, field := range doc.Fields {
		v := values[field.Name]
		if field.Type == templates.FieldBoolean {
			f.CheckBoxes = append(f.CheckBoxes, &form.CheckBox{
				Pages: []int{field.Page},
				Name:  field.Name,
				Value: v == "true",
			})
			continue
		}
		f.TextFields = append(f.TextFields, &form.TextField{
			Pages: []int{field.Page},
			Name:  field.Name,
			Value: v,
		})
	}
	return form.FormGroup{Forms: []form.Form{f}}
}
