package spantest

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sirkon/traceinstr/span"
)

// ExpectedSpan describes a span to be matched. Unset properties match anything.
type ExpectedSpan struct {
	name   *string
	target *string
	level  *span.Level
	parent *string
	fields *ExpectedFields
}

// Span starts an expected span description.
func Span() ExpectedSpan {
	return ExpectedSpan{}
}

// Named demands span name.
func (e ExpectedSpan) Named(name string) ExpectedSpan {
	e.name = &name
	return e
}

// WithTarget demands span target.
func (e ExpectedSpan) WithTarget(target string) ExpectedSpan {
	e.target = &target
	return e
}

// AtLevel demands span level.
func (e ExpectedSpan) AtLevel(level span.Level) ExpectedSpan {
	e.level = &level
	return e
}

// ChildOf demands a parent span with the given name. An empty name demands a root span.
func (e ExpectedSpan) ChildOf(parent string) ExpectedSpan {
	e.parent = &parent
	return e
}

// WithFields demands field values the span is created with. It only makes
// sense for NewSpan expectations.
func (e ExpectedSpan) WithFields(fields ExpectedFields) ExpectedSpan {
	e.fields = &fields
	return e
}

func (e ExpectedSpan) String() string {
	var parts []string
	if e.name != nil {
		parts = append(parts, fmt.Sprintf("name=%q", *e.name))
	}
	if e.target != nil {
		parts = append(parts, fmt.Sprintf("target=%q", *e.target))
	}
	if e.level != nil {
		parts = append(parts, "level="+e.level.String())
	}
	if e.parent != nil {
		parts = append(parts, fmt.Sprintf("parent=%q", *e.parent))
	}
	if e.fields != nil {
		parts = append(parts, "fields="+e.fields.String())
	}
	if len(parts) == 0 {
		return "span{any}"
	}

	return "span{" + strings.Join(parts, " ") + "}"
}

// check matches span properties, fields are only matched for created spans.
func (e ExpectedSpan) check(got *spanMeta, created bool, fields []span.Field) []string {
	var problems []string
	if e.name != nil && *e.name != got.site.Name {
		problems = append(problems, fmt.Sprintf("name %q, want %q", got.site.Name, *e.name))
	}
	if e.target != nil && *e.target != got.site.Target {
		problems = append(problems, fmt.Sprintf("target %q, want %q", got.site.Target, *e.target))
	}
	if e.level != nil && *e.level != got.site.Level {
		problems = append(problems, fmt.Sprintf("level %s, want %s", got.site.Level, *e.level))
	}
	if e.parent != nil && *e.parent != got.parentName {
		problems = append(problems, fmt.Sprintf("parent %q, want %q", got.parentName, *e.parent))
	}
	if e.fields != nil && created {
		problems = append(problems, e.fields.check(fields)...)
	}

	return problems
}

// ExpectedField describes a single field value.
type ExpectedField struct {
	name     string
	value    any
	hasValue bool
}

// Field demands a field with the given value.
func Field(name string, value any) ExpectedField {
	return ExpectedField{name: name, value: value, hasValue: true}
}

// AnyField demands a field to be present with whatever value.
func AnyField(name string) ExpectedField {
	return ExpectedField{name: name}
}

func (f ExpectedField) String() string {
	if !f.hasValue {
		return f.name + "=*"
	}

	return fmt.Sprintf("%s=%v", f.name, f.value)
}

// ExpectedFields is a set of expected fields.
type ExpectedFields struct {
	fields []ExpectedField
	only   bool
}

// Fields demands the given fields to be recorded. Other fields are allowed.
func Fields(fields ...ExpectedField) ExpectedFields {
	return ExpectedFields{fields: fields}
}

// OnlyFields demands exactly the given fields to be recorded.
func OnlyFields(fields ...ExpectedField) ExpectedFields {
	return Fields(fields...).Only()
}

// NoFields demands no fields at all.
func NoFields() ExpectedFields {
	return ExpectedFields{only: true}
}

// Only forbids fields not listed.
func (f ExpectedFields) Only() ExpectedFields {
	f.only = true
	return f
}

func (f ExpectedFields) String() string {
	parts := make([]string, 0, len(f.fields)+1)
	for _, field := range f.fields {
		parts = append(parts, field.String())
	}
	if f.only {
		parts = append(parts, "only")
	}

	return "[" + strings.Join(parts, " ") + "]"
}

func (f ExpectedFields) check(got []span.Field) []string {
	var problems []string
	values := make(map[string]any, len(got))
	for _, field := range got {
		values[field.Name] = field.Value
	}

	for _, want := range f.fields {
		v, ok := values[want.name]
		if !ok {
			problems = append(problems, fmt.Sprintf("field %s is missing", want.name))
			continue
		}
		if want.hasValue && !reflect.DeepEqual(v, want.value) {
			problems = append(problems, fmt.Sprintf("field %s=%#v, want %#v", want.name, v, want.value))
		}
		delete(values, want.name)
	}

	if f.only {
		for _, field := range got {
			if _, ok := values[field.Name]; ok {
				problems = append(problems, fmt.Sprintf("unexpected field %s", field))
			}
		}
	}

	return problems
}
