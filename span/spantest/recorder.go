package spantest

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sirkon/traceinstr/span"
)

type spanMeta struct {
	label      string
	site       *span.Callsite
	parentName string
	parent     string
}

func (m *spanMeta) String() string {
	return m.label
}

// spanRegistry names spans by their creation order: my_fn#1, my_fn#2, etc.
type spanRegistry struct {
	spans map[span.ID]*spanMeta
	count int
}

func newSpanRegistry() *spanRegistry {
	return &spanRegistry{spans: make(map[span.ID]*spanMeta)}
}

func (r *spanRegistry) add(id span.ID, parent span.ID, site *span.Callsite) *spanMeta {
	r.count++
	meta := &spanMeta{
		label: fmt.Sprintf("%s#%d", site.Name, r.count),
		site:  site,
	}
	if p, ok := r.spans[parent]; ok {
		meta.parentName = p.site.Name
		meta.parent = p.label
	}
	r.spans[id] = meta

	return meta
}

func (r *spanRegistry) get(id span.ID) (*spanMeta, bool) {
	meta, ok := r.spans[id]
	return meta, ok
}

// Event is a recorded span event.
type Event struct {
	Kind   EventKind    `yaml:"event"`
	Span   string       `yaml:"span"`
	Target string       `yaml:"target,omitempty"`
	Level  string       `yaml:"level,omitempty"`
	Parent string       `yaml:"parent,omitempty"`
	Fields []FieldValue `yaml:"fields,omitempty"`
}

// FieldValue is a recorded field.
type FieldValue struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteByte(' ')
	b.WriteString(e.Span)
	if e.Target != "" {
		fmt.Fprintf(&b, " target=%s", e.Target)
	}
	if e.Level != "" {
		fmt.Fprintf(&b, " level=%s", e.Level)
	}
	if e.Parent != "" {
		fmt.Fprintf(&b, " parent=%s", e.Parent)
	}
	if len(e.Fields) > 0 {
		b.WriteString(" fields[")
		for i, f := range e.Fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", f.Name, f.Value)
		}
		b.WriteByte(']')
	}

	return b.String()
}

// Recorder is a collector keeping every event it gets.
type Recorder struct {
	mu     sync.Mutex
	spans  *spanRegistry
	events []Event
	active []string
	nested bool
}

var _ span.Collector = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{spans: newSpanRegistry()}
}

// Enabled enables every callsite.
func (r *Recorder) Enabled(*span.Callsite) bool {
	return true
}

// NewSpan implements span.Collector.
func (r *Recorder) NewSpan(id span.ID, parent span.ID, site *span.Callsite, fields []span.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta := r.spans.add(id, parent, site)
	r.events = append(r.events, Event{
		Kind:   EventNew,
		Span:   meta.label,
		Target: site.Target,
		Level:  site.Level.String(),
		Parent: meta.parent,
		Fields: fieldValues(fields),
	})
}

// Record implements span.Collector.
func (r *Recorder) Record(id span.ID, fields []span.Field) {
	r.add(EventRecord, id, fields)
}

// Enter implements span.Collector.
func (r *Recorder) Enter(id span.ID) {
	r.add(EventEnter, id, nil)
}

// Exit implements span.Collector.
func (r *Recorder) Exit(id span.ID) {
	r.add(EventExit, id, nil)
}

// Close implements span.Collector.
func (r *Recorder) Close(id span.ID) {
	r.add(EventClose, id, nil)
}

func (r *Recorder) add(kind EventKind, id span.ID, fields []span.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, ok := r.spans.get(id)
	if !ok {
		return
	}

	switch kind {
	case EventEnter:
		if len(r.active) > 0 {
			r.nested = true
		}
		r.active = append(r.active, meta.label)
	case EventExit:
		for i := len(r.active) - 1; i >= 0; i-- {
			if r.active[i] == meta.label {
				r.active = append(r.active[:i], r.active[i+1:]...)
				break
			}
		}
	}

	r.events = append(r.events, Event{
		Kind:   kind,
		Span:   meta.label,
		Fields: fieldValues(fields),
	})
}

// Events returns a copy of recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Active returns labels of currently entered spans, innermost last.
func (r *Recorder) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.active...)
}

// Nested tells if any span was entered while another one was active.
func (r *Recorder) Nested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.nested
}

// String renders events one per line.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, e := range r.Events() {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	return b.String()
}

// WriteYAML dumps recorded events as a YAML list.
func (r *Recorder) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Events()); err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	return enc.Close()
}

// ReadYAML reads events dumped by WriteYAML.
func ReadYAML(r io.Reader) ([]Event, error) {
	var events []Event
	if err := yaml.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	return events, nil
}

func fieldValues(fields []span.Field) []FieldValue {
	if len(fields) == 0 {
		return nil
	}

	res := make([]FieldValue, len(fields))
	for i, f := range fields {
		res[i] = FieldValue{Name: f.Name, Value: f.Value}
	}

	return res
}
