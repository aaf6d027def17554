// Package binders manages seasonal compliance binders: creation from a
// template snapshot, derived status, readiness, and submission.
package binders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/sections"
)

// Status is the overall state of a binder, derived from its sections.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusSubmitted  Status = "submitted"
)

// Binder is one compliance package for a season and optional farm scope.
type Binder struct {
	ID              uuid.UUID          `json:"id"`
	TemplateID      string             `json:"template_id"`
	TemplateVersion int                `json:"template_version"`
	Name            string             `json:"name"`
	SeasonYear      int                `json:"season_year"`
	FarmID          *string            `json:"farm_id,omitempty"`
	Status          Status             `json:"status"`
	SubmittedAt     *time.Time         `json:"submitted_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Sections        []sections.Section `json:"sections,omitempty"`
}

// CreateCommand creates a binder from the current version of a template.
type CreateCommand struct {
	TemplateID string  `json:"template_id"`
	Name       string  `json:"name"`
	SeasonYear int     `json:"season_year"`
	FarmID     *string `json:"farm_id,omitempty"`
}

func (c *CreateCommand) validate() error {
	c.TemplateID = strings.TrimSpace(c.TemplateID)
	c.Name = strings.TrimSpace(c.Name)

	var problems []string
	if c.TemplateID == "" {
		problems = append(problems, "template_id required")
	}
	if c.Name == "" {
		problems = append(problems, "name required")
	}
	if c.SeasonYear < 1900 || c.SeasonYear > 9999 {
		problems = append(problems, "season_year must be a four digit year")
	}
	if c.FarmID != nil && strings.TrimSpace(*c.FarmID) == "" {
		c.FarmID = nil
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// DeriveStatus computes a binder's status from its sections.
//
// All sections not started is draft. Every applicable section complete, with
// at least one applicable section, is ready. Anything else is in_progress.
// A submitted binder stays submitted for as long as it would be ready.
func DeriveStatus(current Status, secs []sections.Section) Status {
	var notStarted, applicable, complete int
	for _, s := range secs {
		switch s.Status {
		case sections.StatusNotStarted:
			notStarted++
			applicable++
		case sections.StatusComplete:
			complete++
			applicable++
		case sections.StatusNotApplicable:
		default:
			applicable++
		}
	}

	switch {
	case notStarted == len(secs):
		return StatusDraft
	case applicable > 0 && complete == applicable:
		if current == StatusSubmitted {
			return StatusSubmitted
		}
		return StatusReady
	default:
		return StatusInProgress
	}
}
