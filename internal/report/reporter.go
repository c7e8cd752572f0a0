package report

import (
	"cmp"
	"fmt"
	"go/token"
	"io"
	"slices"
	"sync"

	"github.com/sirkon/traceinstr/internal/instrules"
)

// Reporter collects diagnostics discovered while instrumenting files.
type Reporter struct {
	mu      sync.Mutex
	reports []Report
}

// Report represents a single diagnostic entry.
type Report struct {
	Phase    Phase
	RuleCode instrules.Rule
	Pos      token.Position
	Message  string
}

func (r Report) String() string {
	return fmt.Sprintf("%s: [%s] %s: %s", r.Pos, r.Phase, r.RuleCode.Code(), r.Message)
}

// Phase marks the instrumentation stage where a report was generated.
type Phase int

const (
	phaseInvalid Phase = iota
	PhaseDirective     // directive comment parsing
	PhaseAnalyze       // function signature analysis
	PhaseResolve       // options resolution and validation
	PhaseCheck         // vet checks over instrumented bodies
)

func (p Phase) String() string {
	switch p {
	case PhaseDirective:
		return "directive"
	case PhaseAnalyze:
		return "analyze"
	case PhaseResolve:
		return "resolve"
	case PhaseCheck:
		return "check"
	default:
		return fmt.Sprintf("unknown-phase(%d)", p)
	}
}

// ReporterPhase binds a Reporter to a fixed phase.
type ReporterPhase struct {
	parent *Reporter
	phase  Phase
}

// Phase returns a phase-bound reporter that automatically
// sets the given phase for all reports produced through it.
func (r *Reporter) Phase(p Phase) *ReporterPhase {
	return &ReporterPhase{parent: r, phase: p}
}

// Report adds a new record to the reporter.
func (r *Reporter) Report(rep Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Report records a new rule violation under the bound phase.
func (rp *ReporterPhase) Report(rule instrules.Rule, message string, pos token.Position) {
	rp.parent.Report(Report{
		Phase:    rp.phase,
		RuleCode: rule,
		Message:  message,
		Pos:      pos,
	})
}

// Reports returns a snapshot of all collected records.
func (r *Reporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Len returns the number of collected records.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// Fprint writes all collected reports ordered by position, one per line.
func (r *Reporter) Fprint(w io.Writer) error {
	reps := r.Reports()
	slices.SortStableFunc(reps, func(a, b Report) int {
		return cmp.Or(
			cmp.Compare(a.Pos.Filename, b.Pos.Filename),
			cmp.Compare(a.Pos.Line, b.Pos.Line),
			cmp.Compare(a.Pos.Column, b.Pos.Column),
		)
	})

	for _, rep := range reps {
		if _, err := fmt.Fprintln(w, rep); err != nil {
			return err
		}
	}

	return nil
}
