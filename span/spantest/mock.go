package spantest

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sirkon/traceinstr/span"
)

// EventKind is a kind of span event.
type EventKind int

const (
	eventKindInvalid EventKind = iota
	EventNew
	EventRecord
	EventEnter
	EventExit
	EventClose
)

var eventKindValueMap = map[EventKind]string{
	EventNew:    "new",
	EventRecord: "record",
	EventEnter:  "enter",
	EventExit:   "exit",
	EventClose:  "close",
}

func (k EventKind) String() string {
	v, ok := eventKindValueMap[k]
	if !ok {
		return fmt.Sprintf("event-invalid(%d)", k)
	}

	return v
}

// MarshalText for event dumps.
func (k EventKind) MarshalText() ([]byte, error) {
	v, ok := eventKindValueMap[k]
	if !ok {
		return nil, fmt.Errorf("cannot marshal invalid EventKind(%d)", k)
	}

	return []byte(v), nil
}

// UnmarshalText for event dumps.
func (k *EventKind) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for key, v := range eventKindValueMap {
		if v == text {
			*k = key
			return nil
		}
	}

	return fmt.Errorf("unknown event kind %q", text)
}

type expectation struct {
	kind   EventKind
	span   ExpectedSpan
	fields *ExpectedFields
}

func (e expectation) String() string {
	if e.fields != nil {
		return fmt.Sprintf("%s %s %s", e.kind, e.span, e.fields)
	}

	return fmt.Sprintf("%s %s", e.kind, e.span)
}

// MockBuilder collects an ordered list of expected events.
type MockBuilder struct {
	expected []expectation
	only     bool
}

// Mock starts a new mock collector description.
func Mock() *MockBuilder {
	return &MockBuilder{}
}

// NewSpan expects a span to be created.
func (b *MockBuilder) NewSpan(s ExpectedSpan) *MockBuilder {
	b.expected = append(b.expected, expectation{kind: EventNew, span: s})
	return b
}

// Record expects values being recorded on an existing span.
func (b *MockBuilder) Record(s ExpectedSpan, fields ExpectedFields) *MockBuilder {
	b.expected = append(b.expected, expectation{kind: EventRecord, span: s, fields: &fields})
	return b
}

// Enter expects a span to be entered.
func (b *MockBuilder) Enter(s ExpectedSpan) *MockBuilder {
	b.expected = append(b.expected, expectation{kind: EventEnter, span: s})
	return b
}

// Exit expects a span to be exited.
func (b *MockBuilder) Exit(s ExpectedSpan) *MockBuilder {
	b.expected = append(b.expected, expectation{kind: EventExit, span: s})
	return b
}

// Close expects a span to be closed.
func (b *MockBuilder) Close(s ExpectedSpan) *MockBuilder {
	b.expected = append(b.expected, expectation{kind: EventClose, span: s})
	return b
}

// Only makes any event past the expected ones a failure.
func (b *MockBuilder) Only() *MockBuilder {
	b.only = true
	return b
}

// Run builds the collector and a handle to check it.
func (b *MockBuilder) Run() (*MockCollector, *Handle) {
	c := &MockCollector{
		expected: append([]expectation(nil), b.expected...),
		only:     b.only,
		spans:    newSpanRegistry(),
	}

	return c, &Handle{c: c}
}

// MockCollector checks incoming events against expectations.
type MockCollector struct {
	mu       sync.Mutex
	expected []expectation
	only     bool
	spans    *spanRegistry
	failures []string
}

var _ span.Collector = (*MockCollector)(nil)

// Enabled enables every callsite.
func (c *MockCollector) Enabled(*span.Callsite) bool {
	return true
}

// NewSpan implements span.Collector.
func (c *MockCollector) NewSpan(id span.ID, parent span.ID, site *span.Callsite, fields []span.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := c.spans.add(id, parent, site)
	c.match(EventNew, meta, fields)
}

// Record implements span.Collector.
func (c *MockCollector) Record(id span.ID, fields []span.Field) {
	c.event(EventRecord, id, fields)
}

// Enter implements span.Collector.
func (c *MockCollector) Enter(id span.ID) {
	c.event(EventEnter, id, nil)
}

// Exit implements span.Collector.
func (c *MockCollector) Exit(id span.ID) {
	c.event(EventExit, id, nil)
}

// Close implements span.Collector.
func (c *MockCollector) Close(id span.ID) {
	c.event(EventClose, id, nil)
}

func (c *MockCollector) event(kind EventKind, id span.ID, fields []span.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, ok := c.spans.get(id)
	if !ok {
		c.failures = append(c.failures, fmt.Sprintf("%s event for unknown span %d", kind, id))
		return
	}

	c.match(kind, meta, fields)
}

func (c *MockCollector) match(kind EventKind, meta *spanMeta, fields []span.Field) {
	got := fmt.Sprintf("%s %s", kind, meta)
	if len(c.expected) == 0 {
		if c.only {
			c.failures = append(c.failures, "unexpected event "+got)
		}
		return
	}

	want := c.expected[0]
	c.expected = c.expected[1:]
	if want.kind != kind {
		c.failures = append(c.failures, fmt.Sprintf("expected %s, got %s", want, got))
		return
	}

	var problems []string
	switch kind {
	case EventNew:
		problems = want.span.check(meta, true, fields)
	case EventRecord:
		problems = want.span.check(meta, false, nil)
		problems = append(problems, want.fields.check(fields)...)
	default:
		problems = want.span.check(meta, false, nil)
	}
	if len(problems) > 0 {
		c.failures = append(c.failures, fmt.Sprintf(
			"expected %s, got %s: %s",
			want,
			got,
			strings.Join(problems, "; "),
		))
	}
}

// Handle checks the mock after the code under test is done.
type Handle struct {
	c *MockCollector
}

// AssertFinished fails the test if any event did not match or any expected
// event did not happen.
func (h *Handle) AssertFinished(t testing.TB) {
	t.Helper()

	h.c.mu.Lock()
	defer h.c.mu.Unlock()

	for _, f := range h.c.failures {
		t.Error(f)
	}
	for _, e := range h.c.expected {
		t.Errorf("expected %s did not happen", e)
	}
}
