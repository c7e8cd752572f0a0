package instrument

import (
	"fmt"
	"strings"

	"github.com/sirkon/traceinstr/internal/directive"
	"github.com/sirkon/traceinstr/span"
)

// RenderMode tells how a field value is rendered.
type RenderMode int

const (
	RenderNone RenderMode = iota
	RenderDebug
	RenderPassThrough
)

func (m RenderMode) String() string {
	switch m {
	case RenderNone:
		return "none"
	case RenderDebug:
		return "debug"
	case RenderPassThrough:
		return "pass-through"
	default:
		return fmt.Sprintf("render-mode-invalid(%d)", m)
	}
}

// FieldSource is where a field value comes from. It is one of
// SourceReceiver, SourceParam, SourceOverride or SourceEmpty.
type FieldSource interface {
	fmt.Stringer
	isFieldSource()
}

// SourceReceiver is the method receiver.
type SourceReceiver struct {
	Name string
}

// SourceParam is a parameter at the given index.
type SourceParam struct {
	Index int
	Name  string
}

// SourceOverride is an explicit field expression. It is evaluated once
// into the Binding variable before the span is created.
type SourceOverride struct {
	Expr    *directive.Expr
	Binding string
}

// SourceEmpty is a declared field without value.
type SourceEmpty struct{}

func (SourceReceiver) isFieldSource() {}
func (SourceParam) isFieldSource()    {}
func (SourceOverride) isFieldSource() {}
func (SourceEmpty) isFieldSource()    {}

func (s SourceReceiver) String() string { return "receiver " + s.Name }
func (s SourceParam) String() string    { return fmt.Sprintf("param #%d %s", s.Index, s.Name) }
func (s SourceOverride) String() string { return "override " + s.Expr.Text }
func (SourceEmpty) String() string      { return "empty" }

// FieldEntry is a planned span field.
type FieldEntry struct {
	Name   string
	Source FieldSource
	Mode   RenderMode
}

func (e FieldEntry) String() string {
	if e.Mode == RenderNone {
		return e.Name + " = " + e.Source.String()
	}

	return fmt.Sprintf("%s = %s (%s)", e.Name, e.Source, e.Mode)
}

// FieldPlan is an ordered list of span fields with unique names.
type FieldPlan struct {
	Entries []FieldEntry
}

// Names returns names of all declared fields.
func (p *FieldPlan) Names() []string {
	res := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		res = append(res, e.Name)
	}

	return res
}

// Populated returns entries having values at span creation.
func (p *FieldPlan) Populated() []FieldEntry {
	var res []FieldEntry
	for _, e := range p.Entries {
		if _, ok := e.Source.(SourceEmpty); !ok {
			res = append(res, e)
		}
	}

	return res
}

// Pretty renders the plan, one field per line.
func (p *FieldPlan) Pretty() string {
	if len(p.Entries) == 0 {
		return "no fields\n"
	}

	var b strings.Builder
	for _, e := range p.Entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	return b.String()
}

// Plan decides how every field of the span is populated.
func Plan(shape *FunctionShape, cfg *InstrumentConfig) *FieldPlan {
	p := &planner{
		cfg:   cfg,
		taken: map[string]int{},
	}

	if shape.IsMethod() {
		p.receiver(shape.Receiver)
	}
	for _, param := range shape.Params {
		p.param(param)
	}
	for _, f := range cfg.Fields {
		if _, ok := p.taken[f.Name]; ok {
			continue
		}
		p.override(f)
	}

	if cfg.Err {
		p.add(FieldEntry{Name: span.ErrorField, Source: SourceEmpty{}})
	}
	if cfg.Ret && !isSequence(shape, cfg) {
		p.add(FieldEntry{Name: span.ReturnField, Source: SourceEmpty{}})
	}

	return &FieldPlan{Entries: p.entries}
}

type planner struct {
	cfg      *InstrumentConfig
	entries  []FieldEntry
	taken    map[string]int
	bindings int
}

func (p *planner) add(e FieldEntry) {
	if i, ok := p.taken[e.Name]; ok {
		p.entries[i] = e
		return
	}

	p.taken[e.Name] = len(p.entries)
	p.entries = append(p.entries, e)
}

func (p *planner) receiver(recv Receiver) {
	name := span.SelfField
	switch {
	case p.cfg.Skips(name):
		p.add(FieldEntry{Name: name, Source: SourceEmpty{}})
	case p.hasOverride(name):
		f, _ := p.cfg.Override(name)
		p.override(f)
	case !recv.Readable():
		p.add(FieldEntry{Name: name, Source: SourceEmpty{}})
	default:
		p.add(FieldEntry{
			Name:   name,
			Source: SourceReceiver{Name: recv.Name},
			Mode:   RenderDebug,
		})
	}
}

func (p *planner) param(param Param) {
	switch {
	case p.cfg.Skips(param.Name):
		p.add(FieldEntry{Name: param.Name, Source: SourceEmpty{}})
	case p.hasOverride(param.Name):
		f, _ := p.cfg.Override(param.Name)
		p.override(f)
	case param.Unnamed:
		p.add(FieldEntry{Name: param.Name, Source: SourceEmpty{}})
	default:
		p.add(FieldEntry{
			Name:   param.Name,
			Source: SourceParam{Index: param.Index, Name: param.Name},
			Mode:   RenderDebug,
		})
	}
}

func (p *planner) override(f FieldOverride) {
	if f.Expr == nil {
		p.add(FieldEntry{Name: f.Name, Source: SourceEmpty{}})
		return
	}

	binding := fmt.Sprintf("%sField%d", generatedPrefix, p.bindings)
	p.bindings++
	p.add(FieldEntry{
		Name: f.Name,
		Source: SourceOverride{
			Expr:    f.Expr,
			Binding: binding,
		},
		Mode: RenderPassThrough,
	})
}

func (p *planner) hasOverride(name string) bool {
	_, ok := p.cfg.Override(name)
	return ok
}
