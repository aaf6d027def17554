package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

const maxErrorBody = 4 << 10

type remoteRequest struct {
	TemplateID     string            `json:"template_id"`
	DocumentNumber int               `json:"document_number"`
	Values         map[string]string `json:"values"`
}

// RemoteRenderer delegates rendering to an HTTP service that answers a JSON
// POST with application/pdf.
type RemoteRenderer struct {
	url    string
	client *http.Client
}

func NewRemoteRenderer(url string, timeout time.Duration) *RemoteRenderer {
	return &RemoteRenderer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *RemoteRenderer) Render(ctx context.Context, in Input, w io.Writer) error {
	values := in.Values
	if values == nil {
		values = map[string]string{}
	}

	body, err := json.Marshal(remoteRequest{
		TemplateID:     in.Template.ID,
		DocumentNumber: in.Document.Number,
		Values:         values,
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", ErrRender, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: render service returned %d: %s", ErrRender, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "application/pdf" {
		return fmt.Errorf("%w: render service returned content type %q", ErrRender, mt)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: read response: %w", ErrRender, err)
	}
	return nil
}
