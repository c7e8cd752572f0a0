package instrument_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/sirkon/traceinstr/internal/directive"
	"github.com/sirkon/traceinstr/internal/instrument"
)

const planSource = `package demo

import "context"

type Service struct{}

//trace:instrument(skip(token), fields(session = s.session(ctx), started, ctx = "bg"), err, ret)
func (s *Service) Authorize(ctx context.Context, user string, token []byte, _ int) (bool, error) {
	return true, nil
}
`

type analyzed struct {
	shape *instrument.FunctionShape
	cfg   *instrument.InstrumentConfig
}

func analyze(t *testing.T, src string, defaults instrument.Defaults) []analyzed {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, testFile, src, parser.ParseComments)
	require.NoError(t, err)

	a := instrument.NewAnalyzer(fset, file, []byte(src), nil)

	var res []analyzed
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}

		c := directive.Find(fd.Doc, directive.Prefix)
		require.NotNil(t, c, fd.Name.Name)
		d, err := directive.Parse(c, directive.Prefix)
		require.NoError(t, err)

		shape, err := a.Analyze(fd)
		require.NoError(t, err)
		cfg, err := instrument.Resolve(d.Options, shape, defaults)
		require.NoError(t, err)

		res = append(res, analyzed{shape: shape, cfg: cfg})
	}

	return res
}

func TestPlan(t *testing.T) {
	fns := analyze(t, planSource, instrument.Defaults{Target: testPkgPath, Context: true})
	require.Len(t, fns, 1)

	plan := instrument.Plan(fns[0].shape, fns[0].cfg)

	g := goldie.New(t)
	g.Assert(t, "plan", []byte(plan.Pretty()))

	require.Equal(t, []string{"self", "ctx", "user", "token", "_3", "session", "started", "error", "return"}, plan.Names())

	var populated []string
	for _, e := range plan.Populated() {
		populated = append(populated, e.Name)
	}
	require.Equal(t, []string{"self", "ctx", "user", "session"}, populated)
}

func TestPlan_Empty(t *testing.T) {
	fns := analyze(t, "package demo\n\n//trace:instrument\nfunc F() {}\n", instrument.Defaults{})
	plan := instrument.Plan(fns[0].shape, fns[0].cfg)

	require.Empty(t, plan.Entries)
	require.Equal(t, "no fields\n", plan.Pretty())
}

func TestPlan_OverridesBlankParameter(t *testing.T) {
	const src = `package demo

//trace:instrument(fields(_0 = 42, _1))
func Handle(_ int, _ string) {}
`

	fns := analyze(t, src, instrument.Defaults{Target: testPkgPath})
	shape, cfg := fns[0].shape, fns[0].cfg
	plan := instrument.Plan(shape, cfg)

	require.Equal(t, []string{"_0", "_1"}, plan.Names())
	require.Equal(t, "_0 = override 42 (pass-through)\n_1 = empty\n", plan.Pretty())

	d := instrument.Emit(shape, cfg, plan, instrument.NewSiteInfo("", shape.Name, testFile, 4))
	require.Equal(t, []instrument.Binding{{Var: "_traceField0", Expr: "42"}}, d.Bindings)
	require.Equal(t, `_span.New(_traceSite_Handle, _span.Value("_0", _traceField0))`, d.Constructor())
}

func TestEmit(t *testing.T) {
	fns := analyze(t, planSource, instrument.Defaults{Target: testPkgPath, Context: true})
	shape, cfg := fns[0].shape, fns[0].cfg
	plan := instrument.Plan(shape, cfg)

	site := instrument.NewSiteInfo("Service", shape.Name, testFile, 8)
	d := instrument.Emit(shape, cfg, plan, site)

	require.Equal(t, "ctx", d.Context)
	require.Equal(t, []instrument.Binding{{Var: "_traceField0", Expr: `"bg"`}, {Var: "_traceField1", Expr: "s.session(ctx)"}}, d.Bindings)
	require.Equal(
		t,
		`_span.NewContext(ctx, _traceSite_Service_Authorize, _span.Receiver(s), _span.Value("ctx", _traceField0), `+
			`_span.Debug("user", user), _span.Value("session", _traceField1))`,
		d.Constructor(),
	)

	g := goldie.New(t)
	g.Assert(t, "site", []byte(d.SiteDecl()+"\n"))
}

func TestWrap_Sequence(t *testing.T) {
	const src = `package demo

import "iter"

//trace:instrument(skip_all)
func Keys() iter.Seq2[string, int] {
	return nil
}
`

	fns := analyze(t, src, instrument.Defaults{Target: testPkgPath})
	shape, cfg := fns[0].shape, fns[0].cfg
	require.Equal(t, instrument.ResumableSeq2, shape.Resumable)
	require.False(t, shape.YieldsError)

	d := instrument.Emit(shape, cfg, instrument.Plan(shape, cfg), instrument.NewSiteInfo("", shape.Name, testFile, 6))
	body := instrument.Wrap(shape, cfg, d, "\n\treturn nil\n")

	require.True(t, strings.HasPrefix(body, "{\nreturn _span.InstrumentSeq2(_traceSite_Keys, nil, func() iter.Seq2[string, int] {"), body)
	require.True(t, strings.HasSuffix(body, "}())\n}"), body)
}
