// Package readiness computes binder completion summaries. Summaries are
// derived on every request and never persisted.
package readiness

import (
	"math"

	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
)

// Summary counts section statuses for one group or for the whole binder.
type Summary struct {
	Group         templates.Group `json:"group,omitempty"`
	Complete      int             `json:"complete"`
	InProgress    int             `json:"in_progress"`
	NotStarted    int             `json:"not_started"`
	NotApplicable int             `json:"not_applicable"`
	Total         int             `json:"total"`
	Percent       int             `json:"percent"`
}

// Report is the overall summary followed by per-group summaries in
// catalog group order. Groups without sections are omitted.
type Report struct {
	Overall Summary   `json:"overall"`
	Groups  []Summary `json:"groups"`
}

// Compute summarizes secs in a single pass.
func Compute(secs []sections.Section) Report {
	byGroup := make(map[templates.Group]*Summary, len(templates.Groups))
	var overall Summary

	for _, s := range secs {
		g, ok := byGroup[s.Group]
		if !ok {
			g = &Summary{Group: s.Group}
			byGroup[s.Group] = g
		}
		g.add(s.Status)
		overall.add(s.Status)
	}

	report := Report{Overall: overall.finish(), Groups: []Summary{}}
	for _, name := range templates.Groups {
		if g, ok := byGroup[name]; ok {
			report.Groups = append(report.Groups, g.finish())
		}
	}
	return report
}

// Percent returns round(100 * complete / (total - notApplicable)), or 0
// when every section is not applicable.
func Percent(complete, total, notApplicable int) int {
	denom := total - notApplicable
	if denom <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(complete) / float64(denom)))
}

func (s *Summary) add(st sections.Status) {
	s.Total++
	switch st {
	case sections.StatusComplete:
		s.Complete++
	case sections.StatusInProgress:
		s.InProgress++
	case sections.StatusNotApplicable:
		s.NotApplicable++
	default:
		s.NotStarted++
	}
}

func (s *Summary) finish() Summary {
	s.Percent = Percent(s.Complete, s.Total, s.NotApplicable)
	return *s
}
