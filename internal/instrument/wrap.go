package instrument

import (
	"fmt"
	"strings"
)

// Wrap builds the new function body, braces included. inner is the original
// body text between its braces, it is kept verbatim.
func Wrap(shape *FunctionShape, cfg *InstrumentConfig, d *SpanDescriptor, inner string) string {
	w := &bodyWriter{}
	w.line("{")
	for _, b := range d.Bindings {
		w.line("%s := %s", b.Var, b.Expr)
	}

	switch {
	case isSequence(shape, cfg):
		w.sequence(shape, cfg, d, inner)
	case cfg.Err || cfg.Ret:
		w.enter(d)
		w.outcome(shape, cfg, inner)
	default:
		w.enter(d)
		w.b.WriteString(inner)
		w.b.WriteString("}")
	}

	return w.b.String()
}

type bodyWriter struct {
	b strings.Builder
}

func (w *bodyWriter) line(format string, a ...any) {
	fmt.Fprintf(&w.b, format, a...)
	w.b.WriteByte('\n')
}

// enter creates the span and defers its exit and closing. Deferred calls run
// in reverse, so the span is exited before it is closed.
func (w *bodyWriter) enter(d *SpanDescriptor) {
	w.line("%s := %s", spanVar, d.Constructor())
	w.line("defer %s.Close()", spanVar)
	w.line("defer %s.Enter().Exit()", spanVar)
	if d.Context != "" {
		w.line("%s = %s.ContextWithSpan(%s, %s)", d.Context, spanPackageName, d.Context, spanVar)
	}
}

// outcome runs the original body as a closure to record its results before
// the span is exited.
func (w *bodyWriter) outcome(shape *FunctionShape, cfg *InstrumentConfig, inner string) {
	vars := make([]string, len(shape.Results))
	for i := range shape.Results {
		vars[i] = fmt.Sprintf("%s%d", resultPrefix, i)
	}
	list := strings.Join(vars, ", ")

	w.line("%s := func() %s {%s}()", list, shape.ResultsText, inner)

	var errVar string
	if shape.ReturnsError() {
		errVar = vars[len(vars)-1]
	}
	if cfg.Err {
		w.line("%s.RecordError(%s)", spanVar, errVar)
	}

	if cfg.Ret {
		values := vars
		if errVar != "" {
			values = vars[:len(vars)-1]
		}

		switch {
		case len(values) == 0:
		case errVar != "":
			w.line("if %s == nil {", errVar)
			w.line("%s.RecordReturn(%s)", spanVar, strings.Join(values, ", "))
			w.line("}")
		default:
			w.line("%s.RecordReturn(%s)", spanVar, strings.Join(values, ", "))
		}
	}

	w.line("return %s", list)
	w.b.WriteString("}")
}

// sequence wraps the sequence the original body constructs. Field values
// are captured right away, the span itself is created by every pass.
func (w *bodyWriter) sequence(shape *FunctionShape, cfg *InstrumentConfig, d *SpanDescriptor, inner string) {
	fields := d.FieldsLiteral()
	if fields != "nil" {
		w.line("%s := %s", fieldsVar, fields)
		fields = fieldsVar
	}

	fn := "InstrumentSeq"
	switch {
	case shape.Resumable == ResumableSeq2 && cfg.Err:
		fn = "InstrumentSeq2Err"
	case shape.Resumable == ResumableSeq2:
		fn = "InstrumentSeq2"
	}

	w.line(
		"return %s.%s(%s, %s, func() %s {%s}())",
		spanPackageName,
		fn,
		d.Site.Var(),
		fields,
		shape.ResultsText,
		inner,
	)
	w.b.WriteString("}")
}
