package span

import (
	"fmt"
)

// State of a resumable computation.
type State uint8

const (
	StateNotStarted State = iota
	StateActive
	StateSuspended
	StateCompleted
)

var stateValueMap = map[State]string{
	StateNotStarted: "not-started",
	StateActive:     "active",
	StateSuspended:  "suspended",
	StateCompleted:  "completed",
}

func (s State) String() string {
	v, ok := stateValueMap[s]
	if !ok {
		return fmt.Sprintf("state-invalid(%d)", s)
	}

	return v
}

// Resumable binds a span to a computation that runs in steps.
//
// The span is created on the first Resume, entered on every Resume, exited on
// every Suspend and closed by Complete. A computation completed before it was
// ever resumed creates no span at all. Transitions not listed below are
// no-ops, so the span is never exited twice:
//
//	NotStarted -Resume->   Active
//	Active     -Suspend->  Suspended
//	Suspended  -Resume->   Active
//	any        -Complete-> Completed
//
// A Resumable is driven by one goroutine at a time.
type Resumable struct {
	site   *Callsite
	fields []Field

	span  *Span
	guard *Guard
	state State
}

// NewResumable creates a computation state for the callsite. Field values are
// supposed to be captured already, they are recorded when the span is created.
func NewResumable(site *Callsite, fields []Field) *Resumable {
	return &Resumable{
		site:   site,
		fields: fields,
	}
}

// State returns current state.
func (r *Resumable) State() State {
	return r.state
}

// Span returns the span, which is nil before the first Resume.
func (r *Resumable) Span() *Span {
	return r.span
}

// Resume enters the span, creating it if this is the first resumption.
func (r *Resumable) Resume() {
	switch r.state {
	case StateNotStarted:
		r.span = newSpan(Default(), 0, r.site, r.fields)
		r.fields = nil
		fallthrough
	case StateSuspended:
		r.guard = r.span.Enter()
		r.state = StateActive
	}
}

// Suspend exits the span.
func (r *Resumable) Suspend() {
	if r.state != StateActive {
		return
	}

	r.guard.Exit()
	r.guard = nil
	r.state = StateSuspended
}

// Complete exits the span if it is active and closes it.
func (r *Resumable) Complete() {
	switch r.state {
	case StateCompleted:
		return
	case StateActive:
		r.guard.Exit()
		r.guard = nil
		r.span.Close()
	case StateSuspended:
		r.span.Close()
	}

	r.state = StateCompleted
}
