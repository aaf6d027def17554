// Package templates holds the catalog of audit manual templates.
//
// A template is an ordered set of numbered documents. Each document belongs to
// a taxonomy group, has a kind that determines how it is filled, and declares
// the form fields that binders seed and the PDF renderer fills. Blank fillable
// PDFs live in blob storage under each document's PDF key.
package templates

import (
	"fmt"
	"slices"
)

// Group is the taxonomy group a document belongs to.
type Group string

const (
	GroupManagement         Group = "management"
	GroupFieldSanitation    Group = "field_sanitation"
	GroupAgriculturalInputs Group = "agricultural_inputs"
	GroupWorkerHealth       Group = "worker_health"
	GroupTraining           Group = "training"
	GroupAuditChecklists    Group = "audit_checklists"
	GroupRiskAssessment     Group = "risk_assessment"
)

// Groups lists every group in binder display order.
var Groups = []Group{
	GroupManagement,
	GroupFieldSanitation,
	GroupAgriculturalInputs,
	GroupWorkerHealth,
	GroupTraining,
	GroupAuditChecklists,
	GroupRiskAssessment,
}

// Valid reports whether g is a known group.
func (g Group) Valid() bool {
	return slices.Contains(Groups, g)
}

// Kind describes how a document is filled.
type Kind string

const (
	KindAutoFill      Kind = "auto_fill"
	KindPartialFill   Kind = "partial_fill"
	KindSOP           Kind = "sop"
	KindBlankTemplate Kind = "blank_template"
	KindReference     Kind = "reference"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAutoFill, KindPartialFill, KindSOP, KindBlankTemplate, KindReference:
		return true
	}
	return false
}

// FieldType is the value type of a form field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldBoolean FieldType = "boolean"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	return t == FieldText || t == FieldBoolean
}

// Field declares one form field. Name is the join key between the schema,
// stored values, and the PDF AcroForm field name.
type Field struct {
	Name     string    `toml:"name" json:"name"`
	Label    string    `toml:"label" json:"label"`
	Type     FieldType `toml:"type" json:"type"`
	Page     int       `toml:"page" json:"page"`
	Default  string    `toml:"default" json:"default"`
	Required bool      `toml:"required" json:"required"`
}

// Document is one numbered entry of the audit manual.
type Document struct {
	Number     int     `toml:"number" json:"number"`
	Title      string  `toml:"title" json:"title"`
	Group      Group   `toml:"group" json:"group"`
	Kind       Kind    `toml:"kind" json:"kind"`
	DataSource string  `toml:"data_source" json:"data_source,omitempty"`
	PDF        string  `toml:"pdf" json:"pdf,omitempty"`
	Fields     []Field `toml:"fields" json:"fields"`
}

// Field returns the field with the given name.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Pages returns the sorted distinct page numbers the document's fields occupy.
func (d *Document) Pages() []int {
	pages := make([]int, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !slices.Contains(pages, f.Page) {
			pages = append(pages, f.Page)
		}
	}
	slices.Sort(pages)
	return pages
}

// Template is a versioned audit manual.
type Template struct {
	ID        string     `toml:"id" json:"id"`
	Version   int        `toml:"version" json:"version"`
	Name      string     `toml:"name" json:"name"`
	Documents []Document `toml:"documents" json:"documents"`
}

// Document returns the document with the given number.
func (t *Template) Document(number int) (*Document, bool) {
	for i := range t.Documents {
		if t.Documents[i].Number == number {
			return &t.Documents[i], true
		}
	}
	return nil, false
}

// PDFKey returns the storage key of a document's blank PDF. Documents
// without an explicit key use templates/{id}/v{version}/{number}.pdf.
func (t *Template) PDFKey(d *Document) string {
	if d.PDF != "" {
		return d.PDF
	}
	return fmt.Sprintf("templates/%s/v%d/%02d.pdf", t.ID, t.Version, d.Number)
}
