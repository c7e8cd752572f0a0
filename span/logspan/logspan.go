// Package logspan logs span lifecycle through a logr.Logger.
//
// Span level maps onto logr verbosity: info and above log at V(0), debug at
// V(1) and trace at V(2). Warn and error spans carry their level as a value
// since logr has no such notion.
package logspan

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/sirkon/traceinstr/span"
)

// Collector is a span.Collector logging every event.
type Collector struct {
	log logr.Logger

	mu    sync.Mutex
	spans map[span.ID]logr.Logger
}

// New creates a logging collector.
func New(log logr.Logger) *Collector {
	return &Collector{
		log:   log,
		spans: make(map[span.ID]logr.Logger),
	}
}

var _ span.Collector = (*Collector)(nil)

// Verbosity returns logr verbosity for the level.
func Verbosity(level span.Level) int {
	switch {
	case level <= span.LevelTrace:
		return 2
	case level == span.LevelDebug:
		return 1
	default:
		return 0
	}
}

// Enabled implements span.Collector.
func (c *Collector) Enabled(site *span.Callsite) bool {
	return c.log.V(Verbosity(site.Level)).Enabled()
}

// NewSpan implements span.Collector.
func (c *Collector) NewSpan(id span.ID, parent span.ID, site *span.Callsite, fields []span.Field) {
	log := c.log.V(Verbosity(site.Level)).WithValues(
		"span", site.Name,
		"target", site.Target,
		"span_id", uint64(id),
	)
	if site.Level > span.LevelInfo {
		log = log.WithValues("level", site.Level.String())
	}

	c.mu.Lock()
	c.spans[id] = log
	c.mu.Unlock()

	kv := keysAndValues(fields)
	if parent != 0 {
		kv = append(kv, "parent_id", uint64(parent))
	}
	log.Info("new span", kv...)
}

// Record implements span.Collector.
func (c *Collector) Record(id span.ID, fields []span.Field) {
	if log, ok := c.logger(id, false); ok {
		log.Info("record", keysAndValues(fields)...)
	}
}

// Enter implements span.Collector.
func (c *Collector) Enter(id span.ID) {
	if log, ok := c.logger(id, false); ok {
		log.Info("enter")
	}
}

// Exit implements span.Collector.
func (c *Collector) Exit(id span.ID) {
	if log, ok := c.logger(id, false); ok {
		log.Info("exit")
	}
}

// Close implements span.Collector.
func (c *Collector) Close(id span.ID) {
	if log, ok := c.logger(id, true); ok {
		log.Info("close")
	}
}

func (c *Collector) logger(id span.ID, remove bool) (logr.Logger, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log, ok := c.spans[id]
	if remove {
		delete(c.spans, id)
	}

	return log, ok
}

func keysAndValues(fields []span.Field) []any {
	res := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		res = append(res, f.Name, f.Value)
	}

	return res
}
