package sections

import (
	"github.com/JaimeStill/binder/pkg/query"
	"github.com/JaimeStill/binder/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "sections", "s").
	Project("id", "ID").
	Project("binder_id", "BinderID").
	Project("doc_number", "DocNumber").
	Project("title", "Title").
	Project("doc_group", "Group").
	Project("kind", "Kind").
	Project("status", "Status").
	Project("na_reason", "NAReason").
	Project("sop_content", "SOPContent").
	Project("notes", "Notes").
	Project("data_source", "DataSource").
	Project("version", "Version").
	Project("completed_at", "CompletedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "binders", "b", "JOIN", "b.id = s.binder_id").
	Project("template_id", "TemplateID").
	Project("season_year", "SeasonYear").
	Project("farm_id", "FarmID")

var defaultSort = query.SortField{Field: "DocNumber"}

func scanSection(s repository.Scanner) (Section, error) {
	var sec Section
	err := s.Scan(
		&sec.ID,
		&sec.BinderID,
		&sec.DocNumber,
		&sec.Title,
		&sec.Group,
		&sec.Kind,
		&sec.Status,
		&sec.NAReason,
		&sec.SOPContent,
		&sec.Notes,
		&sec.DataSource,
		&sec.Version,
		&sec.CompletedAt,
		&sec.UpdatedAt,
		&sec.TemplateID,
		&sec.SeasonYear,
		&sec.FarmID,
	)
	return sec, err
}

const documentColumns = `id, section_id, name, description, uploaded_by, uploaded_at, storage_key, filename, content_type, size_bytes`

func scanDocument(s repository.Scanner) (SupportingDocument, error) {
	var d SupportingDocument
	err := s.Scan(
		&d.ID,
		&d.SectionID,
		&d.Name,
		&d.Description,
		&d.UploadedBy,
		&d.UploadedAt,
		&d.StorageKey,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
	)
	return d, err
}
