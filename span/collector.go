package span

import (
	"sync"
)

// ID identifies a span within the process. Zero means no span.
type ID uint64

// Collector receives span events.
//
// For a single span the events come in the order NewSpan, then any number of
// Enter/Exit pairs and Record calls, then Close. Collectors must ignore events
// for IDs they did not see in NewSpan.
type Collector interface {
	// Enabled is asked before a span is created. Nothing is created and
	// no events are sent when it returns false.
	Enabled(site *Callsite) bool

	// NewSpan registers a span with its initial field values. parent
	// is zero for root spans.
	NewSpan(id ID, parent ID, site *Callsite, fields []Field)

	// Record adds values of declared fields.
	Record(id ID, fields []Field)

	Enter(id ID)
	Exit(id ID)

	// Close is the last event of the span.
	Close(id ID)
}

// Discard is a collector that disables every span.
var Discard Collector = discard{}

type discard struct{}

func (discard) Enabled(*Callsite) bool              { return false }
func (discard) NewSpan(ID, ID, *Callsite, []Field) {}
func (discard) Record(ID, []Field)                 {}
func (discard) Enter(ID)                           {}
func (discard) Exit(ID)                            {}
func (discard) Close(ID)                           {}

//nolint:gochecknoglobals
var (
	defaultCollector   = Discard
	defaultCollectorMu sync.RWMutex
)

// Default returns the process-wide collector.
func Default() Collector {
	defaultCollectorMu.RLock()
	defer defaultCollectorMu.RUnlock()

	return defaultCollector
}

// SetDefault sets the process-wide collector and returns a function restoring
// the previous one. A nil collector means Discard.
func SetDefault(c Collector) (restore func()) {
	if c == nil {
		c = Discard
	}

	defaultCollectorMu.Lock()
	prev := defaultCollector
	defaultCollector = c
	defaultCollectorMu.Unlock()

	return func() {
		defaultCollectorMu.Lock()
		defaultCollector = prev
		defaultCollectorMu.Unlock()
	}
}

// WithDefault runs fn with c set as the process-wide collector.
//
// The collector is process-wide, so spans created by other goroutines while fn
// runs get to c as well. Tests using it must not run in parallel.
func WithDefault(c Collector, fn func()) {
	restore := SetDefault(c)
	defer restore()

	fn()
}

// Tee fans events out to several collectors. A span is registered with those
// collectors which enable it.
func Tee(collectors ...Collector) Collector {
	return tee(collectors)
}

type tee []Collector

func (t tee) Enabled(site *Callsite) bool {
	for _, c := range t {
		if c.Enabled(site) {
			return true
		}
	}

	return false
}

func (t tee) NewSpan(id ID, parent ID, site *Callsite, fields []Field) {
	for _, c := range t {
		if c.Enabled(site) {
			c.NewSpan(id, parent, site, fields)
		}
	}
}

func (t tee) Record(id ID, fields []Field) {
	for _, c := range t {
		c.Record(id, fields)
	}
}

func (t tee) Enter(id ID) {
	for _, c := range t {
		c.Enter(id)
	}
}

func (t tee) Exit(id ID) {
	for _, c := range t {
		c.Exit(id)
	}
}

func (t tee) Close(id ID) {
	for _, c := range t {
		c.Close(id)
	}
}
