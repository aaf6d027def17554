package sections

import "fmt"

// Status is the completion state of a section.
type Status string

const (
	StatusNotStarted    Status = "not_started"
	StatusInProgress    Status = "in_progress"
	StatusComplete      Status = "complete"
	StatusNotApplicable Status = "not_applicable"
)

// Event is a named status transition.
type Event string

const (
	EventBegin         Event = "begin"
	EventComplete      Event = "complete"
	EventNotApplicable Event = "not_applicable"
	EventReset         Event = "reset"
)

// Next returns the status that results from applying ev to from.
//
//	begin:          not_started → in_progress; any other status is unchanged
//	complete:       not_started | in_progress → complete
//	not_applicable: any status except not_applicable → not_applicable
//	reset:          complete | not_applicable → not_started
//
// Other combinations return ErrInvalidTransition.
func Next(from Status, ev Event) (Status, error) {
	switch ev {
	case EventBegin:
		if from == StatusNotStarted {
			return StatusInProgress, nil
		}
		return from, nil
	case EventComplete:
		if from == StatusNotStarted || from == StatusInProgress {
			return StatusComplete, nil
		}
	case EventNotApplicable:
		if from != StatusNotApplicable {
			return StatusNotApplicable, nil
		}
	case EventReset:
		if from == StatusComplete || from == StatusNotApplicable {
			return StatusNotStarted, nil
		}
	default:
		return from, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
	return from, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, ev, from)
}
