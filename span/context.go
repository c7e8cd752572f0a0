package span

import (
	"context"
)

type spanContextKey struct{}

// ContextWithSpan returns a copy of ctx carrying s. It returns ctx unchanged
// when there is no span to carry.
func ContextWithSpan(ctx context.Context, s *Span) context.Context {
	if ctx == nil || s == nil {
		return ctx
	}

	return context.WithValue(ctx, spanContextKey{}, s)
}

// FromContext returns the span carried by ctx or nil.
func FromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}

	s, _ := ctx.Value(spanContextKey{}).(*Span)
	return s
}
