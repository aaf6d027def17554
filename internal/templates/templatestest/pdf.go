// Package templatestest provides template fixtures for tests.
package templatestest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JaimeStill/binder/internal/templates"
)

// MinimalPDF builds a structurally valid, empty PDF with the given number of pages.
func MinimalPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := []int{}

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, pages)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))

	for range pages {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// Catalog returns a small two-template catalog for tests.
// Template "acme" document 2 is an auto-fill document sourced from farm_profile.
func Catalog() *templates.Catalog {
	c, err := templates.Parse([]byte(catalogTOML))
	if err != nil {
		panic(err)
	}
	return c
}

const catalogTOML = `
[[templates]]
id = "acme"
version = 1
name = "Acme Test Manual"

  [[templates.documents]]
  number = 1
  title = "Policy"
  group = "management"
  kind = "sop"

  [[templates.documents]]
  number = 2
  title = "Farm Information"
  group = "management"
  kind = "auto_fill"
  data_source = "farm_profile"

    [[templates.documents.fields]]
    name = "farm_name"
    label = "Farm Name"
    type = "text"
    page = 1
    required = true

    [[templates.documents.fields]]
    name = "operator"
    label = "Operator"
    type = "text"
    page = 1

    [[templates.documents.fields]]
    name = "certified"
    label = "Certified"
    type = "boolean"
    page = 2
    default = "false"

    [[templates.documents.fields]]
    name = "acres"
    label = "Acres"
    type = "text"
    page = 2
    default = "0"

  [[templates.documents]]
  number = 3
  title = "Sanitation Log"
  group = "field_sanitation"
  kind = "partial_fill"

    [[templates.documents.fields]]
    name = "vendor"
    label = "Vendor"
    type = "text"
    page = 1

[[templates]]
id = "mini"
version = 2
name = "Minimal Manual"

  [[templates.documents]]
  number = 1
  title = "Reference"
  group = "training"
  kind = "reference"
`
