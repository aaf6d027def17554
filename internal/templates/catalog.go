package templates

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

//go:embed catalog.toml
var embeddedCatalog []byte

// Catalog is the set of templates the service can instantiate binders from.
type Catalog struct {
	Templates []Template `toml:"templates"`
}

// Embedded returns the catalog compiled into the binary.
func Embedded() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// LoadFile reads and validates a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML catalog. Documents are sorted by number.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	for i := range c.Templates {
		slices.SortFunc(c.Templates[i].Documents, func(a, b Document) int {
			return a.Number - b.Number
		})
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Templates) == 0 {
		return fmt.Errorf("no templates defined")
	}

	ids := make(map[string]bool)
	for _, t := range c.Templates {
		if t.ID == "" {
			return fmt.Errorf("template id required")
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate template id %q", t.ID)
		}
		ids[t.ID] = true

		if t.Version < 1 {
			return fmt.Errorf("template %s: version must be positive", t.ID)
		}
		if err := validateDocuments(t.Documents); err != nil {
			return fmt.Errorf("template %s: %w", t.ID, err)
		}
	}
	return nil
}

func validateDocuments(docs []Document) error {
	if len(docs) == 0 {
		return fmt.Errorf("no documents defined")
	}

	numbers := make(map[int]bool)
	for _, d := range docs {
		if d.Number < 1 {
			return fmt.Errorf("document number must be positive: %d", d.Number)
		}
		if numbers[d.Number] {
			return fmt.Errorf("duplicate document number %d", d.Number)
		}
		numbers[d.Number] = true

		if d.Title == "" {
			return fmt.Errorf("document %d: title required", d.Number)
		}
		if !d.Group.Valid() {
			return fmt.Errorf("document %d: unknown group %q", d.Number, d.Group)
		}
		if !d.Kind.Valid() {
			return fmt.Errorf("document %d: unknown kind %q", d.Number, d.Kind)
		}
		if err := validateFields(d.Fields); err != nil {
			return fmt.Errorf("document %d: %w", d.Number, err)
		}
	}
	return nil
}

func validateFields(fields []Field) error {
	names := make(map[string]bool)
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field name required")
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		names[f.Name] = true

		if !f.Type.Valid() {
			return fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
		}
		if f.Page < 1 {
			return fmt.Errorf("field %s: page must be positive", f.Name)
		}
		if f.Type == FieldBoolean && f.Default != "" && f.Default != "true" && f.Default != "false" {
			return fmt.Errorf("field %s: boolean default must be true or false", f.Name)
		}
	}
	return nil
}
