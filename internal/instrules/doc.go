// Package instrules defines the canonical TRI-series rule codes enforced by traceinstr.
//
// Every rejection of an instrumented function and every warning of the vet
// analyzer carries one of these codes, so that diagnostics can be reported,
// filtered and looked up consistently across the rewriter, the analyzer and
// their output.
//
// # Structure
//
// Rule codes follow the format “TRI<NNN>: <Name>” and are grouped by functional area:
//
//	000–019  Directive syntax and configuration resolution
//	020–039  Behavior warnings of the vet analyzer
//
// Example:
//
//	instrules.TRI003UnknownSkip.String()      → "TRI003: UnknownSkip"
//	instrules.TRI003UnknownSkip.Code()        → "TRI003"
//	instrules.TRI003UnknownSkip.Description() → "Every skipped name must be a parameter ..."
//
// # Notes
//
//   - Rule identifiers are stable; never renumber existing codes.
//   - New rules take the next free slot of their range.
package instrules
