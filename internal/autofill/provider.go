package autofill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Request identifies the data a section wants from its source.
type Request struct {
	Source     string
	Document   int
	SeasonYear int
	FarmID     string
}

// Result is a provider's answer: stringified values keyed by field name,
// plus any warnings the provider reported.
type Result struct {
	Values   map[string]string
	Warnings []string
}

// Provider fetches current operational data for a source.
type Provider interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

const maxResponseSize = 1 << 20

type httpProvider struct {
	base   string
	client *http.Client
}

// NewHTTPProvider returns a Provider that calls
// GET {baseURL}/sources/{source}?document=N&season=Y[&farm=F].
// An empty baseURL yields a provider that always fails with ErrDataSource.
func NewHTTPProvider(baseURL string, timeout time.Duration) Provider {
	return &httpProvider{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type wireResult struct {
	Values   map[string]json.RawMessage `json:"values"`
	Warnings []string                   `json:"warnings"`
}

func (p *httpProvider) Fetch(ctx context.Context, req Request) (*Result, error) {
	if p.base == "" {
		return nil, fmt.Errorf("%w: no provider configured", ErrDataSource)
	}

	q := url.Values{}
	q.Set("document", strconv.Itoa(req.Document))
	q.Set("season", strconv.Itoa(req.SeasonYear))
	if req.FarmID != "" {
		q.Set("farm", req.FarmID)
	}
	target := fmt.Sprintf("%s/sources/%s?%s", p.base, url.PathEscape(req.Source), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataSource, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s unreachable: %w", ErrDataSource, req.Source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", ErrDataSource, req.Source, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrDataSource, req.Source, resp.StatusCode, snippet(body))
	}

	var wire wireResult
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed %s response: %w", ErrDataSource, req.Source, err)
	}

	result := &Result{
		Values:   make(map[string]string, len(wire.Values)),
		Warnings: wire.Warnings,
	}
	for name, raw := range wire.Values {
		v, ok, err := stringify(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %s: %w", ErrDataSource, req.Source, name, err)
		}
		if ok {
			result.Values[name] = v
		}
	}
	return result, nil
}

// stringify flattens a scalar JSON value. Null reports ok=false.
func stringify(raw json.RawMessage) (string, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false, err
	}

	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case json.Number:
		return t.String(), true, nil
	default:
		return "", false, fmt.Errorf("unsupported value type %T", v)
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
