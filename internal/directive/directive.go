// Package directive parses instrumentation directives.
//
// A directive is a line comment in a function doc comment:
//
//	//trace:instrument
//	//trace:instrument(level = debug, skip(password), fields(user = u.ID, attempt), err)
//
// Options are comma separated. An option is either a flag (err), a value
// (name = "x") or a list (skip(a, b)). Values and field expressions are Go
// expressions, they are kept as verbatim source text.
package directive

import (
	"go/ast"
	"go/token"
	"strings"
)

// Prefix is the default directive prefix.
const Prefix = "//trace:instrument"

// OptionKind tells how an option is spelled.
type OptionKind int

const (
	optionKindInvalid OptionKind = iota
	OptionFlag
	OptionValue
	OptionList
)

func (k OptionKind) String() string {
	switch k {
	case OptionFlag:
		return "flag"
	case OptionValue:
		return "value"
	case OptionList:
		return "list"
	default:
		return "invalid"
	}
}

// Directive is a parsed directive comment.
type Directive struct {
	// Comment is nil for directives not coming from the source, like config rules.
	Comment *ast.Comment
	Pos     token.Pos
	Options []Option
}

// Option is a single directive option.
type Option struct {
	Key   string
	Pos   token.Pos
	Kind  OptionKind
	Value *Expr
	Items []Item
}

// Item is an element of a list option: either a bare name or name = expr.
type Item struct {
	Name  string
	Pos   token.Pos
	Value *Expr
}

// Expr is a Go expression given in a directive.
type Expr struct {
	Text string
	Node ast.Expr
}

// Option returns the first option with the given key.
func (d *Directive) Option(key string) (Option, bool) {
	for _, opt := range d.Options {
		if opt.Key == key {
			return opt, true
		}
	}

	return Option{}, false
}

// Find looks for a directive comment in a doc comment group.
func Find(doc *ast.CommentGroup, prefix string) *ast.Comment {
	if doc == nil {
		return nil
	}

	for _, c := range doc.List {
		if Matches(c.Text, prefix) {
			return c
		}
	}

	return nil
}

// Matches checks if the comment text is a directive with the given prefix.
func Matches(text, prefix string) bool {
	rest, ok := strings.CutPrefix(text, prefix)
	if !ok {
		return false
	}

	return rest == "" || rest[0] == '(' || rest[0] == ' ' || rest[0] == '\t'
}
