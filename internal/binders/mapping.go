package binders

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/binder/pkg/query"
	"github.com/JaimeStill/binder/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "binders", "b").
	Project("id", "ID").
	Project("template_id", "TemplateID").
	Project("template_version", "TemplateVersion").
	Project("name", "Name").
	Project("season_year", "SeasonYear").
	Project("farm_id", "FarmID").
	Project("status", "Status").
	Project("submitted_at", "SubmittedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional exact-match criteria for binder queries.
type Filters struct {
	Status     *string `json:"status,omitempty"`
	TemplateID *string `json:"template_id,omitempty"`
	SeasonYear *int    `json:"season_year,omitempty"`
	FarmID     *string `json:"farm_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("TemplateID", f.TemplateID).
		WhereEquals("SeasonYear", f.SeasonYear).
		WhereEquals("FarmID", f.FarmID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if t := values.Get("template_id"); t != "" {
		f.TemplateID = &t
	}
	if y := values.Get("season_year"); y != "" {
		if v, err := strconv.Atoi(y); err == nil {
			f.SeasonYear = &v
		}
	}
	if farm := values.Get("farm_id"); farm != "" {
		f.FarmID = &farm
	}

	return f
}

func scanBinder(s repository.Scanner) (Binder, error) {
	var b Binder
	err := s.Scan(
		&b.ID,
		&b.TemplateID,
		&b.TemplateVersion,
		&b.Name,
		&b.SeasonYear,
		&b.FarmID,
		&b.Status,
		&b.SubmittedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}
