package report

import (
	"errors"
	"fmt"
	"go/token"

	"go.uber.org/multierr"

	"github.com/sirkon/traceinstr/internal/instrules"
)

// Error is a rule violation found at the given position.
type Error struct {
	Rule    instrules.Rule
	Pos     token.Pos
	Message string

	// Phase is set by WithPhase, zero means unknown.
	Phase Phase
}

// Errorf creates a rule violation error.
func Errorf(rule instrules.Rule, pos token.Pos, format string, a ...any) error {
	return &Error{
		Rule:    rule,
		Pos:     pos,
		Message: fmt.Sprintf(format, a...),
	}
}

func (e *Error) Error() string {
	return e.Rule.Code() + ": " + e.Message
}

// WithPhase marks rule violations in err which have no phase yet as found
// at p. err is returned as is.
func WithPhase(p Phase, err error) error {
	for _, e := range multierr.Errors(err) {
		var v *Error
		if errors.As(e, &v) && v.Phase == phaseInvalid {
			v.Phase = p
		}
	}

	return err
}

// Collect splits err into rule violations and records them under the phase.
// Violations marked with WithPhase keep their own phase. Errors which are
// not violations are returned combined.
func (rp *ReporterPhase) Collect(fset *token.FileSet, err error) error {
	var rest error
	for _, e := range multierr.Errors(err) {
		var v *Error
		if !errors.As(e, &v) {
			rest = multierr.Append(rest, e)
			continue
		}

		phase := rp.phase
		if v.Phase != phaseInvalid {
			phase = v.Phase
		}
		rp.parent.Report(Report{
			Phase:    phase,
			RuleCode: v.Rule,
			Message:  v.Message,
			Pos:      fset.Position(v.Pos),
		})
	}

	return rest
}
