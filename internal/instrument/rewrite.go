package instrument

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sirkon/traceinstr/internal/config"
	"github.com/sirkon/traceinstr/internal/directive"
	"github.com/sirkon/traceinstr/internal/report"
	"github.com/sirkon/traceinstr/span"
)

// Options of the rewriter.
type Options struct {
	// Prefix of directive comments.
	Prefix string

	Level   span.Level
	Context bool

	// Rules instrument functions having no directive.
	Rules []config.Rule
}

// OptionsFromConfig builds rewriter options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Prefix:  cfg.Directive,
		Level:   cfg.SpanLevel(),
		Context: cfg.Context,
		Rules:   cfg.Rules,
	}
}

// Rewriter instruments functions of Go source files.
type Rewriter struct {
	opts Options
	log  *zap.Logger
}

// New creates a rewriter.
func New(opts Options, log *zap.Logger) *Rewriter {
	if opts.Prefix == "" {
		opts.Prefix = directive.Prefix
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Rewriter{
		opts: opts,
		log:  log,
	}
}

// Function is an instrumented function with every intermediate artifact.
type Function struct {
	Shape  *FunctionShape
	Config *InstrumentConfig
	Plan   *FieldPlan
	Span   *SpanDescriptor
}

// Result of a file rewrite.
type Result struct {
	Filename string

	// Changed is false for files without instrumented functions, Source
	// is the original source then.
	Changed bool
	Source  []byte

	Functions []*Function
}

// Target returns a default span target for the package having the given
// import path. pkgPath may be empty, it is computed from the nearest go.mod
// then, with package name as the last resort.
func Target(filename, pkgPath, pkgName string) string {
	if pkgPath != "" {
		return pkgPath
	}

	modDir, modPath := findModule(filename)
	if modPath == "" {
		return pkgName
	}

	rel, err := filepath.Rel(modDir, filepath.Dir(filename))
	if err != nil || rel == "." {
		return modPath
	}

	return modPath + "/" + filepath.ToSlash(rel)
}

// RewriteSource parses and rewrites a single file without type information.
func (r *Rewriter) RewriteSource(filename string, src []byte) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	return r.RewriteFile(fset, file, src, nil, "")
}

// RewriteFile rewrites a parsed file of the package with the given import
// path, which may be empty. src must be the text file was parsed from and
// info may be nil. All rule violations found are returned as a combination
// of *report.Error.
func (r *Rewriter) RewriteFile(
	fset *token.FileSet,
	file *ast.File,
	src []byte,
	info *types.Info,
	pkgPath string,
) (*Result, error) {
	filename := fset.Position(file.Pos()).Filename
	abs, err := filepath.Abs(filename)
	if err != nil {
		abs = filename
	}
	target := Target(abs, pkgPath, file.Name.Name)
	res := &Result{
		Filename: filename,
		Source:   src,
	}

	if IsGenerated(src) {
		r.log.Debug("skip generated file", zap.String("file", filename))
		return res, nil
	}

	tf := fset.File(file.Pos())
	analyzer := NewAnalyzer(fset, file, src, info)
	asm := newAssembler(tf, src)
	defaults := Defaults{
		Level:   r.opts.Level,
		Target:  target,
		Context: r.opts.Context,
	}

	var errs error
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}

		c := directive.Find(fd.Doc, r.opts.Prefix)
		rule, matched := r.matchRule(fd, target)
		if c == nil && !matched {
			continue
		}

		site := NewSiteInfo(
			receiverTypeName(fd),
			fd.Name.Name,
			filepath.Base(filename),
			fset.Position(fd.Pos()).Line,
		)
		fn, err := r.function(analyzer, asm, fd, c, rule, matched, defaults, site)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		res.Functions = append(res.Functions, fn)
		r.log.Debug(
			"instrument function",
			zap.String("file", filename),
			zap.String("function", fn.Shape.Name),
			zap.String("span", fn.Config.Name),
			zap.Stringer("resumable", fn.Shape.Resumable),
			zap.Strings("fields", fn.Span.Fields),
		)
	}

	if errs != nil {
		return nil, errs
	}
	if len(res.Functions) == 0 {
		return res, nil
	}

	out, err := asm.assemble(filename)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", filename, err)
	}

	res.Changed = true
	res.Source = out
	return res, nil
}

func (r *Rewriter) function(
	analyzer *Analyzer,
	asm *assembler,
	fd *ast.FuncDecl,
	c *ast.Comment,
	rule config.Rule,
	matched bool,
	defaults Defaults,
	site SiteInfo,
) (*Function, error) {
	var opts []directive.Option
	if matched {
		d, err := directive.ParseOptions(rule.OptionsText(), func(int) token.Pos {
			return fd.Pos()
		})
		if err != nil {
			return nil, report.WithPhase(report.PhaseDirective, err)
		}
		opts = d.Options
	}
	if c != nil {
		d, err := directive.Parse(c, r.opts.Prefix)
		if err != nil {
			return nil, report.WithPhase(report.PhaseDirective, err)
		}
		opts = MergeOptions(opts, d.Options)
	}

	shape, err := analyzer.Analyze(fd)
	if err != nil {
		return nil, report.WithPhase(report.PhaseAnalyze, err)
	}

	cfg, err := Resolve(opts, shape, defaults)
	if err != nil {
		return nil, report.WithPhase(report.PhaseResolve, err)
	}

	plan := Plan(shape, cfg)
	desc := Emit(shape, cfg, plan, site)

	asm.replaceBody(fd.Body, Wrap(shape, cfg, desc, asm.inner(fd.Body)))
	if c != nil {
		asm.removeDirective(fd.Doc, c)
	}
	asm.addSite(desc.SiteDecl())

	return &Function{
		Shape:  shape,
		Config: cfg,
		Plan:   plan,
		Span:   desc,
	}, nil
}

func (r *Rewriter) matchRule(fd *ast.FuncDecl, pkgPath string) (config.Rule, bool) {
	typeName := receiverTypeName(fd)
	for _, rule := range r.opts.Rules {
		ref := rule.Ref()
		if ref.Package == pkgPath && ref.Type == typeName && ref.Name == fd.Name.Name {
			return rule, true
		}
	}

	return config.Rule{}, false
}

// receiverTypeName returns base type name of the method receiver.
func receiverTypeName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}

	expr := fd.Recv.List[0].Type
	for {
		switch v := expr.(type) {
		case *ast.StarExpr:
			expr = v.X
		case *ast.ParenExpr:
			expr = v.X
		case *ast.IndexExpr:
			expr = v.X
		case *ast.IndexListExpr:
			expr = v.X
		case *ast.Ident:
			return v.Name
		default:
			return ""
		}
	}
}

// findModule looks for the nearest go.mod up from the file and returns its
// directory and module path.
func findModule(startFile string) (string, string) {
	dir := filepath.Dir(startFile)
	for {
		modPath, ok := readModulePath(filepath.Join(dir, "go.mod"))
		if ok {
			return dir, modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ""
		}
		dir = parent
	}
}

func readModulePath(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), true
		}
	}

	return "", true
}
