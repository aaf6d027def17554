package sections_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/JaimeStill/binder/internal/sections"
	"github.com/JaimeStill/binder/internal/templates"
)

func TestNext(t *testing.T) {
	var (
		ns = sections.StatusNotStarted
		ip = sections.StatusInProgress
		c  = sections.StatusComplete
		na = sections.StatusNotApplicable
	)

	tests := []struct {
		from    sections.Status
		ev      sections.Event
		want    sections.Status
		invalid bool
	}{
		{ns, sections.EventBegin, ip, false},
		{ip, sections.EventBegin, ip, false},
		{c, sections.EventBegin, c, false},
		{na, sections.EventBegin, na, false},

		{ns, sections.EventComplete, c, false},
		{ip, sections.EventComplete, c, false},
		{c, sections.EventComplete, c, true},
		{na, sections.EventComplete, na, true},

		{ns, sections.EventNotApplicable, na, false},
		{ip, sections.EventNotApplicable, na, false},
		{c, sections.EventNotApplicable, na, false},
		{na, sections.EventNotApplicable, na, true},

		{c, sections.EventReset, ns, false},
		{na, sections.EventReset, ns, false},
		{ns, sections.EventReset, ns, true},
		{ip, sections.EventReset, ip, true},

		{ns, sections.Event("archive"), ns, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, err := sections.Next(tt.from, tt.ev)
			if tt.invalid {
				if !errors.Is(err, sections.ErrInvalidTransition) {
					t.Fatalf("err = %v, want ErrInvalidTransition", err)
				}
				if got != tt.from {
					t.Errorf("invalid transition changed status to %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Next(%s, %s) = %s, want %s", tt.from, tt.ev, got, tt.want)
			}
		})
	}
}

func TestRequiredMissing(t *testing.T) {
	doc := &templates.Document{
		Fields: []templates.Field{
			{Name: "farm_name", Required: true},
			{Name: "operator", Required: true},
			{Name: "phone"},
		},
	}

	got := sections.RequiredMissing(doc, map[string]string{"farm_name": "Acme Farms", "operator": "  "})
	if !reflect.DeepEqual(got, []string{"operator"}) {
		t.Errorf("RequiredMissing = %v, want [operator]", got)
	}

	if got := sections.RequiredMissing(doc, map[string]string{"farm_name": "a", "operator": "b"}); len(got) != 0 {
		t.Errorf("RequiredMissing = %v, want none", got)
	}
}
