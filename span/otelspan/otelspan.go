// Package otelspan delivers spans to OpenTelemetry.
//
// Span target becomes a tracer name, span name becomes OpenTelemetry span name
// and fields become attributes. Time spent inside the span (between enter and
// exit) and outside of it is reported with busy_ns and idle_ns attributes on
// close.
package otelspan

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sirkon/traceinstr/span"
)

// These are attributes set on every span besides its fields.
const (
	AttrLevel  = "level"
	AttrFile   = "code.filepath"
	AttrLine   = "code.lineno"
	AttrBusyNS = "busy_ns"
	AttrIdleNS = "idle_ns"
)

// Collector is a span.Collector building OpenTelemetry spans.
type Collector struct {
	tp       trace.TracerProvider
	minLevel span.Level
	now      func() time.Time

	mu    sync.Mutex
	spans map[span.ID]*entry
}

type entry struct {
	ctx  context.Context
	span trace.Span

	createdAt time.Time
	enteredAt time.Time
	depth     int
	busy      time.Duration
}

// Option configures the collector.
type Option func(c *Collector)

// WithMinLevel disables spans below the given level.
func WithMinLevel(level span.Level) Option {
	return func(c *Collector) {
		c.minLevel = level
	}
}

// WithClock overrides time source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// New creates a collector using the given tracer provider.
func New(tp trace.TracerProvider, opts ...Option) *Collector {
	c := &Collector{
		tp:       tp,
		minLevel: span.LevelTrace,
		now:      time.Now,
		spans:    make(map[span.ID]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ span.Collector = (*Collector)(nil)

// Enabled implements span.Collector.
func (c *Collector) Enabled(site *span.Callsite) bool {
	return site.Level >= c.minLevel
}

// NewSpan implements span.Collector.
func (c *Collector) NewSpan(id span.ID, parent span.ID, site *span.Callsite, fields []span.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	if p, ok := c.spans[parent]; ok {
		ctx = p.ctx
	}

	attrs := make([]attribute.KeyValue, 0, len(fields)+3)
	attrs = append(attrs,
		attribute.String(AttrLevel, site.Level.String()),
		attribute.String(AttrFile, site.File),
		attribute.Int(AttrLine, site.Line),
	)
	for _, f := range fields {
		attrs = append(attrs, Attribute(f))
	}

	now := c.now()
	ctx, s := c.tp.Tracer(site.Target).Start(
		ctx,
		site.Name,
		trace.WithTimestamp(now),
		trace.WithAttributes(attrs...),
	)
	c.spans[id] = &entry{
		ctx:       ctx,
		span:      s,
		createdAt: now,
	}
}

// Record implements span.Collector.
func (c *Collector) Record(id span.ID, fields []span.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.spans[id]
	if !ok {
		return
	}

	for _, f := range fields {
		e.span.SetAttributes(Attribute(f))
		if f.Name == span.ErrorField {
			e.span.SetStatus(codes.Error, fmt.Sprint(f.Value))
		}
	}
}

// Enter implements span.Collector.
func (c *Collector) Enter(id span.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.spans[id]
	if !ok {
		return
	}

	if e.depth == 0 {
		e.enteredAt = c.now()
	}
	e.depth++
}

// Exit implements span.Collector.
func (c *Collector) Exit(id span.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.spans[id]
	if !ok || e.depth == 0 {
		return
	}

	e.depth--
	if e.depth == 0 {
		e.busy += c.now().Sub(e.enteredAt)
	}
}

// Close implements span.Collector.
func (c *Collector) Close(id span.ID) {
	c.mu.Lock()
	e, ok := c.spans[id]
	delete(c.spans, id)
	c.mu.Unlock()

	if !ok {
		return
	}

	now := c.now()
	total := now.Sub(e.createdAt)
	e.span.SetAttributes(
		attribute.Int64(AttrBusyNS, e.busy.Nanoseconds()),
		attribute.Int64(AttrIdleNS, (total - e.busy).Nanoseconds()),
	)
	e.span.End(trace.WithTimestamp(now))
}

// Attribute converts a field into an attribute. Numbers and booleans keep
// their types, other values are rendered.
func Attribute(f span.Field) attribute.KeyValue {
	switch v := f.Value.(type) {
	case bool:
		return attribute.Bool(f.Name, v)
	case string:
		return attribute.String(f.Name, v)
	case int:
		return attribute.Int(f.Name, v)
	case int8:
		return attribute.Int64(f.Name, int64(v))
	case int16:
		return attribute.Int64(f.Name, int64(v))
	case int32:
		return attribute.Int64(f.Name, int64(v))
	case int64:
		return attribute.Int64(f.Name, v)
	case uint8:
		return attribute.Int64(f.Name, int64(v))
	case uint16:
		return attribute.Int64(f.Name, int64(v))
	case uint32:
		return attribute.Int64(f.Name, int64(v))
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return attribute.Int64(f.Name, int64(v))
		}
	case uint64:
		if v <= math.MaxInt64 {
			return attribute.Int64(f.Name, int64(v))
		}
	case float32:
		return attribute.Float64(f.Name, float64(v))
	case float64:
		return attribute.Float64(f.Name, v)
	case []string:
		return attribute.StringSlice(f.Name, v)
	}

	return attribute.String(f.Name, fmt.Sprint(f.Value))
}
