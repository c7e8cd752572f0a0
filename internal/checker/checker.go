package checker

import (
	"errors"
	"fmt"
	"go/ast"
	"os"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/sirkon/traceinstr/internal/config"
	"github.com/sirkon/traceinstr/internal/instrules"
	"github.com/sirkon/traceinstr/internal/instrument"
	"github.com/sirkon/traceinstr/internal/report"
)

const doc = `traceinstr reports invalid instrumentation directives

Every function marked with an instrumentation directive or matched by a
configured rule is validated the same way the rewriter does it. Calls
terminating the process from instrumented functions are reported as
their spans are never closed.`

// Analyzer checks instrumented functions with the default configuration.
var Analyzer = New()

// New creates an analyzer. Its -config flag points at a configuration file.
func New() *analysis.Analyzer {
	c := &checker{}
	a := &analysis.Analyzer{
		Name:     "traceinstr",
		Doc:      doc,
		Requires: []*analysis.Analyzer{inspect.Analyzer},
		Run:      c.run,
	}
	a.Flags.StringVar(&c.configPath, "config", "", "path to the traceinstr configuration file")

	return a
}

type checker struct {
	configPath string

	once    sync.Once
	setup   *setup
	loadErr error
}

type setup struct {
	rewriter *instrument.Rewriter
	abandon  *knownAbandonFuncs
}

func (c *checker) load() (*setup, error) {
	c.once.Do(func() {
		cfg := config.Default()
		if c.configPath != "" {
			var err error
			cfg, err = config.Load(c.configPath)
			if err != nil {
				c.loadErr = err
				return
			}
		} else if err := cfg.Validate(); err != nil {
			c.loadErr = err
			return
		}

		custom := map[config.Reference]AbandonKind{}
		for _, ref := range cfg.AbandonFuncs() {
			custom[ref] = AbandonKindSilent
		}

		c.setup = &setup{
			rewriter: instrument.New(instrument.OptionsFromConfig(cfg), nil),
			abandon:  newKnownAbandonFuncs(custom),
		}
	})

	return c.setup, c.loadErr
}

func (c *checker) run(pass *analysis.Pass) (any, error) {
	s, err := c.load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	instrumented := map[*ast.FuncDecl]bool{}
	for _, file := range pass.Files {
		if ast.IsGenerated(file) {
			continue
		}

		fns, err := c.rewrite(pass, s.rewriter, file)
		if err != nil {
			return nil, err
		}
		for _, fn := range fns {
			instrumented[fn.Shape.Decl] = true
		}
	}

	pector := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.FuncDecl)(nil),
	}

	pector.Preorder(nodeFilter, func(node ast.Node) {
		n := node.(*ast.FuncDecl)
		if !instrumented[n] {
			return
		}

		checkAbandon(pass, s.abandon, n)
	})

	return nil, nil
}

// rewrite validates instrumented functions of the file. Rule violations are
// reported as diagnostics.
func (c *checker) rewrite(pass *analysis.Pass, rw *instrument.Rewriter, file *ast.File) ([]*instrument.Function, error) {
	filename := pass.Fset.File(file.Pos()).Name()
	readFile := pass.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	src, err := readFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	res, err := rw.RewriteFile(pass.Fset, file, src, pass.TypesInfo, pass.Pkg.Path())
	if err == nil {
		return res.Functions, nil
	}

	var rest error
	for _, e := range multierr.Errors(err) {
		var v *report.Error
		if !errors.As(e, &v) {
			rest = multierr.Append(rest, e)
			continue
		}

		reportViolation(pass, v)
	}

	return nil, rest
}

func reportViolation(pass *analysis.Pass, v *report.Error) {
	pass.Report(analysis.Diagnostic{
		Pos:      v.Pos,
		Category: v.Rule.Code(),
		Message:  v.Error(),
	})
}

// checkAbandon reports calls skipping deferred span closing. Function
// literals are not looked into, they may run elsewhere.
func checkAbandon(pass *analysis.Pass, known *knownAbandonFuncs, fd *ast.FuncDecl) {
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.CallExpr:
			ref, kind, ok := known.lookup(pass.TypesInfo, v)
			if !ok {
				return true
			}

			reportViolation(pass, &report.Error{
				Rule: instrules.AbandonSkipsExit(),
				Pos:  v.Pos(),
				Message: fmt.Sprintf(
					"%s exits the program (%s), span of %s will not be closed",
					ref,
					kind,
					fd.Name.Name,
				),
				Phase: report.PhaseCheck,
			})
		}

		return true
	})
}
