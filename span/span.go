package span

import (
	"context"
	"fmt"
	"sync/atomic"
)

//nolint:gochecknoglobals
var lastID atomic.Uint64

// Span is a live span. A nil *Span is valid and does nothing, this is what
// New returns when the collector does not enable the callsite.
type Span struct {
	id     ID
	site   *Callsite
	c      Collector
	closed atomic.Bool
}

// New creates a root span for the given callsite using the default collector.
func New(site *Callsite, fields ...Field) *Span {
	return newSpan(Default(), 0, site, fields)
}

// NewContext creates a span whose parent is the span found in ctx, if any.
func NewContext(ctx context.Context, site *Callsite, fields ...Field) *Span {
	var parent ID
	if ctx != nil {
		parent = FromContext(ctx).ID()
	}

	return newSpan(Default(), parent, site, fields)
}

func newSpan(c Collector, parent ID, site *Callsite, fields []Field) *Span {
	if site == nil || !c.Enabled(site) {
		return nil
	}

	s := &Span{
		id:   ID(lastID.Add(1)),
		site: site,
		c:    c,
	}
	c.NewSpan(s.id, parent, site, fields)

	return s
}

// ID returns span's identifier, zero for a nil span.
func (s *Span) ID() ID {
	if s == nil {
		return 0
	}

	return s.id
}

// Callsite returns span's static metadata.
func (s *Span) Callsite() *Callsite {
	if s == nil {
		return nil
	}

	return s.site
}

// Enter marks the span as the active one. The returned guard must be exited
// exactly once, usually with defer s.Enter().Exit().
func (s *Span) Enter() *Guard {
	if s == nil || s.closed.Load() {
		return nil
	}

	s.c.Enter(s.id)
	return &Guard{s: s}
}

// Record sets values of declared fields. Values of undeclared fields are
// silently dropped.
func (s *Span) Record(name string, v any) {
	if s == nil || s.closed.Load() || !s.site.Declares(name) {
		return
	}

	s.c.Record(s.id, []Field{Value(name, v)})
}

// RecordError records error's text into the error field. Nil errors are
// ignored. Typed nil errors and panicking Error methods are rendered the way
// fmt renders them.
func (s *Span) RecordError(err error) {
	if err == nil || s == nil || s.closed.Load() || !s.site.Declares(ErrorField) {
		return
	}

	s.c.Record(s.id, []Field{Value(ErrorField, debugValue(err))})
}

// RecordReturn records debug representation of returned values into the
// return field. Several values are recorded as a list.
func (s *Span) RecordReturn(values ...any) {
	switch len(values) {
	case 0:
		return
	case 1:
		s.Record(ReturnField, debugValue(values[0]))
	default:
		rendered := make([]any, len(values))
		for i, v := range values {
			rendered[i] = debugValue(v)
		}
		s.Record(ReturnField, fmt.Sprintf("%v", rendered))
	}
}

// Close ends the span. Only the first call has an effect.
func (s *Span) Close() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.c.Close(s.id)
}

// Guard marks an entered span.
type Guard struct {
	s      *Span
	exited bool
}

// Exit leaves the span. Only the first call has an effect.
func (g *Guard) Exit() {
	if g == nil || g.exited {
		return
	}

	g.exited = true
	g.s.c.Exit(g.s.id)
}
