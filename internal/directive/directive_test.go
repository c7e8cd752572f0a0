package directive

import (
	"errors"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirkon/traceinstr/internal/instrules"
	"github.com/sirkon/traceinstr/internal/report"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"//trace:instrument", true},
		{"//trace:instrument(err)", true},
		{"//trace:instrument (err)", true},
		{"//trace:instrumented", false},
		{"// trace:instrument", false},
		{"//go:noinline", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.want, Matches(tt.text, Prefix))
		})
	}
}

func TestParseOptions(t *testing.T) {
	type item struct {
		name  string
		value string
	}
	type option struct {
		key   string
		kind  OptionKind
		value string
		items []item
	}

	tests := []struct {
		name string
		text string
		want []option
	}{
		{
			name: "empty",
			text: "",
		},
		{
			name: "empty-parens",
			text: "()",
		},
		{
			name: "flags",
			text: "(err, ret, skip_all)",
			want: []option{
				{key: "err", kind: OptionFlag},
				{key: "ret", kind: OptionFlag},
				{key: "skip_all", kind: OptionFlag},
			},
		},
		{
			name: "values",
			text: `(name = "lookup", target = pkg.Target(), level = debug, context = false)`,
			want: []option{
				{key: "name", kind: OptionValue, value: `"lookup"`},
				{key: "target", kind: OptionValue, value: "pkg.Target()"},
				{key: "level", kind: OptionValue, value: "debug"},
				{key: "context", kind: OptionValue, value: "false"},
			},
		},
		{
			name: "lists",
			text: "(skip(a, b), fields(user = u.ID, attempt, http.method = r.Method, pair = f(x, y)))",
			want: []option{
				{
					key:  "skip",
					kind: OptionList,
					items: []item{
						{name: "a"},
						{name: "b"},
					},
				},
				{
					key:  "fields",
					kind: OptionList,
					items: []item{
						{name: "user", value: "u.ID"},
						{name: "attempt"},
						{name: "http.method", value: "r.Method"},
						{name: "pair", value: "f(x, y)"},
					},
				},
			},
		},
		{
			name: "composite-value",
			text: "(fields(point = Point{X: 1, Y: 2}, keys = []string{\"a\", \"b\"}))",
			want: []option{
				{
					key:  "fields",
					kind: OptionList,
					items: []item{
						{name: "point", value: "Point{X: 1, Y: 2}"},
						{name: "keys", value: `[]string{"a", "b"}`},
					},
				},
			},
		},
		{
			name: "trailing-comma",
			text: "(skip(a,), err,)",
			want: []option{
				{key: "skip", kind: OptionList, items: []item{{name: "a"}}},
				{key: "err", kind: OptionFlag},
			},
		},
		{
			name: "keyword-name",
			text: "(fields(type = kind))",
			want: []option{
				{key: "fields", kind: OptionList, items: []item{{name: "type", value: "kind"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseOptions(tt.text, func(int) token.Pos { return token.NoPos })
			require.NoError(t, err)

			var got []option
			for _, o := range d.Options {
				opt := option{
					key:  o.Key,
					kind: o.Kind,
				}
				if o.Value != nil {
					opt.value = o.Value.Text
					require.NotNil(t, o.Value.Node)
				}
				for _, it := range o.Items {
					i := item{name: it.Name}
					if it.Value != nil {
						i.value = it.Value.Text
					}
					opt.items = append(opt.items, i)
				}
				got = append(got, opt)
			}

			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseOptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		offset int
	}{
		{
			name:   "no-parens",
			text:   " err",
			offset: 1,
		},
		{
			name:   "unclosed",
			text:   "(err",
			offset: 4,
		},
		{
			name:   "missing-value",
			text:   "(name = )",
			offset: 8,
		},
		{
			name:   "bad-expression",
			text:   "(target = a +)",
			offset: 10,
		},
		{
			name:   "garbage-after",
			text:   "(err) ret",
			offset: 6,
		},
		{
			name:   "bad-item",
			text:   "(skip(1))",
			offset: 6,
		},
		{
			name:   "dangling-dot",
			text:   "(fields(a. = 1))",
			offset: 11,
		},
		{
			name:   "string-not-terminated",
			text:   `(name = "abc)`,
			offset: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const base = 100
			_, err := ParseOptions(tt.text, func(offset int) token.Pos {
				return base + token.Pos(offset)
			})
			require.Error(t, err)

			var rerr *report.Error
			require.True(t, errors.As(err, &rerr))
			require.Equal(t, instrules.BadOption(), rerr.Rule)
			require.Equal(t, token.Pos(base+tt.offset), rerr.Pos, err.Error())
		})
	}
}

func TestParse(t *testing.T) {
	const src = `package p

// Handle handles a request.
//
//trace:instrument(level = warn, skip(req))
func Handle(req string) {}
`

	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, "p.go", src, goparser.ParseComments)
	require.NoError(t, err)

	c := Find(file.Decls[0].(*ast.FuncDecl).Doc, Prefix)
	require.NotNil(t, c)

	d, err := Parse(c, Prefix)
	require.NoError(t, err)
	require.Equal(t, c, d.Comment)
	require.Equal(t, c.Slash, d.Pos)
	require.Len(t, d.Options, 2)

	level, ok := d.Option("level")
	require.True(t, ok)
	require.Equal(t, "warn", level.Value.Text)

	pos := fset.Position(level.Pos)
	require.Equal(t, 5, pos.Line)
	require.Equal(t, len("//trace:instrument(")+1, pos.Column)

	skip, ok := d.Option("skip")
	require.True(t, ok)
	require.Equal(t, "req", skip.Items[0].Name)
	require.Equal(t, len("//trace:instrument(level = warn, skip(")+1, fset.Position(skip.Items[0].Pos).Column)

	_, ok = d.Option("err")
	require.False(t, ok)
}
