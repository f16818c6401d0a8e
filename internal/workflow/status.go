// Package workflow holds the partnership decision state machine.  Every
// operation takes a partnership value and returns a new one; nothing here
// touches storage.  Callers persist the result with a compare-and-set on
// the status and version they read.
package workflow

import (
	"errors"
	"fmt"

	"github.com/iliyamo/sponsorship-partnerships/internal/model"
)

// Event is a decision applied to a partnership.
type Event string

const (
	EventSuggest  Event = "suggest"
	EventValidate Event = "validate"
	EventDecline  Event = "decline"
)

// ErrConflict is matched by every error caused by the partnership's
// current state rather than by the request itself.
var ErrConflict = errors.New("partnership state conflict")

// ErrPackMismatch is returned when the pack handed to an operation is not
// one the partnership can use: it belongs to another event or is not the
// pack being priced.
var ErrPackMismatch = errors.New("pack mismatch")

// ConflictError carries the status the partnership is actually in so the
// caller can refresh.
type ConflictError struct {
	Status model.PartnershipStatus
	Op     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s not allowed in status %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s not allowed in status %s: %s", e.Op, e.Status, e.Reason)
}

// Is reports a match against ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type edge struct {
	from  model.PartnershipStatus
	event Event
	to    model.PartnershipStatus
}

var edges = []edge{
	{model.StatusRegistered, EventSuggest, model.StatusSuggested},
	{model.StatusRegistered, EventValidate, model.StatusValidated},
	{model.StatusRegistered, EventDecline, model.StatusDeclined},
	{model.StatusSuggested, EventValidate, model.StatusValidated},
	{model.StatusSuggested, EventDecline, model.StatusDeclined},
	{model.StatusValidated, EventSuggest, model.StatusSuggested},
	{model.StatusValidated, EventDecline, model.StatusDeclined},
}

var transitions = mustBuildTable(edges)

// mustBuildTable builds the transition table and panics on any entry that
// names an unknown status or event, or lists the same (status, event) twice.
func mustBuildTable(list []edge) map[model.PartnershipStatus]map[Event]model.PartnershipStatus {
	table, err := buildTable(list)
	if err != nil {
		panic(err)
	}
	return table
}

func buildTable(list []edge) (map[model.PartnershipStatus]map[Event]model.PartnershipStatus, error) {
	table := make(map[model.PartnershipStatus]map[Event]model.PartnershipStatus)
	for _, e := range list {
		if !knownStatus(e.from) || !knownStatus(e.to) {
			return nil, fmt.Errorf("workflow: unknown status in %s -%s-> %s", e.from, e.event, e.to)
		}
		if !knownEvent(e.event) {
			return nil, fmt.Errorf("workflow: unknown event %q", e.event)
		}
		if table[e.from] == nil {
			table[e.from] = make(map[Event]model.PartnershipStatus)
		}
		if _, dup := table[e.from][e.event]; dup {
			return nil, fmt.Errorf("workflow: duplicate transition %s -%s->", e.from, e.event)
		}
		table[e.from][e.event] = e.to
	}
	return table, nil
}

func knownStatus(s model.PartnershipStatus) bool {
	switch s {
	case model.StatusRegistered, model.StatusSuggested, model.StatusValidated, model.StatusDeclined:
		return true
	}
	return false
}

func knownEvent(e Event) bool {
	switch e {
	case EventSuggest, EventValidate, EventDecline:
		return true
	}
	return false
}

// Transition returns the status reached by applying event in state, or a
// *ConflictError when the table has no such entry.
func Transition(state model.PartnershipStatus, event Event) (model.PartnershipStatus, error) {
	if to, ok := transitions[state][event]; ok {
		return to, nil
	}
	return "", &ConflictError{Status: state, Op: string(event)}
}
