// Package instrules defines the canonical rule codes (TRI-series) enforced by traceinstr.
// Each rule names a distinct reason to reject or flag an instrumented function.
//
// Rule numbering scheme:
//
//	000–019  Directive syntax and configuration resolution
//	020–039  Behavior warnings of the vet analyzer
package instrules

import "fmt"

// Rule represents a traceinstr rule code (TRI-series).
type Rule int

const (
	ruleInvalid Rule = iota

	TRI001NoBody
	TRI002SkipConflict
	TRI003UnknownSkip
	TRI004FieldSkipCollision
	TRI005DuplicateField
	TRI006BadOption
	TRI007DuplicateOption
	TRI008ErrWithoutError
	TRI009RetWithoutResult
	TRI010ReservedIdentifier
	TRI011InvalidLevel
	TRI020AbandonSkipsExit
)

// String returns the canonical code and short name of the rule.
// Example: "TRI003: UnknownSkip"
func (r Rule) String() string {
	switch r {
	case TRI001NoBody:
		return "TRI001: NoBody"
	case TRI002SkipConflict:
		return "TRI002: SkipConflict"
	case TRI003UnknownSkip:
		return "TRI003: UnknownSkip"
	case TRI004FieldSkipCollision:
		return "TRI004: FieldSkipCollision"
	case TRI005DuplicateField:
		return "TRI005: DuplicateField"
	case TRI006BadOption:
		return "TRI006: BadOption"
	case TRI007DuplicateOption:
		return "TRI007: DuplicateOption"
	case TRI008ErrWithoutError:
		return "TRI008: ErrWithoutError"
	case TRI009RetWithoutResult:
		return "TRI009: RetWithoutResult"
	case TRI010ReservedIdentifier:
		return "TRI010: ReservedIdentifier"
	case TRI011InvalidLevel:
		return "TRI011: InvalidLevel"
	case TRI020AbandonSkipsExit:
		return "TRI020: AbandonSkipsExit"
	default:
		return fmt.Sprintf("rule-unknown(%d)", r)
	}
}

// Code returns the bare code, like "TRI003".
func (r Rule) Code() string {
	s := r.String()
	if len(s) >= 6 && s[:3] == "TRI" {
		return s[:6]
	}

	return s
}

// Description returns the human-readable explanation of the rule.
func (r Rule) Description() string {
	switch r {
	case TRI001NoBody:
		return "Only functions with a body can be instrumented."
	case TRI002SkipConflict:
		return "skip and skip_all cannot be used together."
	case TRI003UnknownSkip:
		return "Every skipped name must be a parameter of the function, or self for methods."
	case TRI004FieldSkipCollision:
		return "An explicit field cannot be named like a skipped parameter."
	case TRI005DuplicateField:
		return "Field names of a span must be unique."
	case TRI006BadOption:
		return "Unknown option or malformed option value."
	case TRI007DuplicateOption:
		return "Every option can be given only once."
	case TRI008ErrWithoutError:
		return "err requires the function to return error as its last result."
	case TRI009RetWithoutResult:
		return "ret requires a synchronous function with results."
	case TRI010ReservedIdentifier:
		return "Identifiers _span and _trace* are reserved for generated code."
	case TRI011InvalidLevel:
		return "Level must be trace, debug, info, warn, error or an expression."
	case TRI020AbandonSkipsExit:
		return "The call terminates execution without running deferred calls, the span will not be exited."
	default:
		return fmt.Sprintf("unknown-rule(%d)", r)
	}
}

// Canonical constructors.

func NoBody() Rule             { return TRI001NoBody }
func SkipConflict() Rule       { return TRI002SkipConflict }
func UnknownSkip() Rule        { return TRI003UnknownSkip }
func FieldSkipCollision() Rule { return TRI004FieldSkipCollision }
func DuplicateField() Rule     { return TRI005DuplicateField }
func BadOption() Rule          { return TRI006BadOption }
func DuplicateOption() Rule    { return TRI007DuplicateOption }
func ErrWithoutError() Rule    { return TRI008ErrWithoutError }
func RetWithoutResult() Rule   { return TRI009RetWithoutResult }
func ReservedIdentifier() Rule { return TRI010ReservedIdentifier }
func InvalidLevel() Rule       { return TRI011InvalidLevel }
func AbandonSkipsExit() Rule   { return TRI020AbandonSkipsExit }
