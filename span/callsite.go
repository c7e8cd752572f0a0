package span

import (
	"fmt"
	"slices"
)

// Callsite is static metadata of an instrumented function. Generated code keeps
// one Callsite per function as a package-level variable.
type Callsite struct {
	// Name is a span name. Defaults to the function name.
	Name string

	// Target is a category of the span. Defaults to the package import path.
	Target string

	// Level is span's verbosity.
	Level Level

	// Fields lists every field the span declares, including those
	// which are never populated at creation: skipped parameters,
	// empty fields, the "error" and "return" slots.
	Fields []string

	// File and Line point at the instrumented function declaration.
	File string
	Line int
}

// Declares checks if the given field is declared by the callsite.
func (c *Callsite) Declares(name string) bool {
	if c == nil {
		return false
	}

	return slices.Contains(c.Fields, name)
}

func (c *Callsite) String() string {
	if c == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%s %s (%s:%d)", c.Target, c.Name, c.File, c.Line)
}
