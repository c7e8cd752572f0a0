// Package promspan turns spans into Prometheus metrics.
package promspan

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sirkon/traceinstr/span"
)

// Collector is a span.Collector counting spans and measuring time spent in them.
type Collector struct {
	created *prometheus.CounterVec
	active  *prometheus.GaugeVec
	busy    *prometheus.HistogramVec
	now     func() time.Time

	mu    sync.Mutex
	spans map[span.ID]*entry
}

type entry struct {
	labels    []string
	enteredAt time.Time
	depth     int
	busy      time.Duration
}

// Config describes metric naming.
type Config struct {
	Namespace string
	Subsystem string
	Buckets   []float64
}

// DefaultConfig returns default metric naming.
func DefaultConfig() Config {
	return Config{
		Namespace: "traceinstr",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
	}
}

// New creates a collector and registers its metrics.
func New(reg prometheus.Registerer, cfg Config) (*Collector, error) {
	labels := []string{"target", "name", "level"}
	c := &Collector{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "spans_created_total",
			Help:      "Total spans created",
		}, labels),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "spans_active",
			Help:      "Spans created and not closed yet",
		}, labels),
		busy: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "span_busy_seconds",
			Help:      "Time spent inside a span over its whole life",
			Buckets:   cfg.Buckets,
		}, labels),
		now:   time.Now,
		spans: make(map[span.ID]*entry),
	}

	for _, m := range []prometheus.Collector{c.created, c.active, c.busy} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("register span metrics: %w", err)
		}
	}

	return c, nil
}

var _ span.Collector = (*Collector)(nil)

// Enabled implements span.Collector.
func (c *Collector) Enabled(*span.Callsite) bool {
	return true
}

// NewSpan implements span.Collector.
func (c *Collector) NewSpan(id span.ID, _ span.ID, site *span.Callsite, _ []span.Field) {
	labels := []string{site.Target, site.Name, site.Level.String()}
	c.created.WithLabelValues(labels...).Inc()
	c.active.WithLabelValues(labels...).Inc()

	c.mu.Lock()
	c.spans[id] = &entry{labels: labels}
	c.mu.Unlock()
}

// Record implements span.Collector.
func (c *Collector) Record(span.ID, []span.Field) {}

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

	c.active.WithLabelValues(e.labels...).Dec()
	c.busy.WithLabelValues(e.labels...).Observe(e.busy.Seconds())
}
