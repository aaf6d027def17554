package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JaimeStill/binder/internal/templates"
)

var pageTemplate = template.Must(template.New("section").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 11pt; line-height: 1.4; }
h1 { font-size: 16pt; border-bottom: 1px solid #444; padding-bottom: 4pt; }
h2 { font-size: 12pt; margin-top: 18pt; }
.content { white-space: pre-wrap; }
.meta { color: #555; font-size: 9pt; }
</style>
</head>
<body>
<h1>{{.Number}}. {{.Title}}</h1>
<p class="meta">{{.Template}} &middot; season {{.Season}}</p>
{{if .Content}}<div class="content">{{.Content}}</div>{{end}}
{{if .Notes}}<h2>Notes</h2><div class="content">{{.Notes}}</div>{{end}}
</body>
</html>
`))

type pageData struct {
	Number   int
	Title    string
	Template string
	Season   int
	Content  string
	Notes    string
}

// HTMLPrinter prints SOP and reference sections through headless Chrome.
// It is used for documents that have no fillable fields.
type HTMLPrinter struct {
	timeout time.Duration
}

func NewHTMLPrinter(timeout time.Duration) *HTMLPrinter {
	return &HTMLPrinter{timeout: timeout}
}

// Handles reports whether p prints doc instead of the form backend.
func (p *HTMLPrinter) Handles(doc *templates.Document) bool {
	if len(doc.Fields) > 0 {
		return false
	}
	return doc.Kind == templates.KindSOP || doc.Kind == templates.KindReference
}

func (p *HTMLPrinter) Render(ctx context.Context, in Input, w io.Writer) error {
	html, err := pageHTML(in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+dataEscape(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(0.75).
				WithMarginRight(0.75).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: chrome print: %w", ErrRender, err)
	}

	_, err = w.Write(pdf)
	return err
}

func pageHTML(in Input) (string, error) {
	content := in.Section.SOPContent
	if content == "" && in.Document.Kind == templates.KindReference {
		content = "Reference document. See the attached supporting documents."
	}

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		Number:   in.Document.Number,
		Title:    in.Document.Title,
		Template: in.Template.Name,
		Season:   in.Section.SeasonYear,
		Content:  content,
		Notes:    in.Section.Notes,
	})
	return buf.String(), err
}

// dataEscape percent-encodes s for a data URL. Spaces become %20, not +.
func dataEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
