package instrument

import (
	"go/ast"
	"go/token"
	"maps"
	"slices"
	"strconv"

	"go.uber.org/multierr"

	"github.com/sirkon/traceinstr/internal/directive"
	"github.com/sirkon/traceinstr/internal/instrules"
	"github.com/sirkon/traceinstr/internal/report"
	"github.com/sirkon/traceinstr/span"
)

// Option keys.
const (
	optName    = "name"
	optTarget  = "target"
	optLevel   = "level"
	optSkip    = "skip"
	optSkipAll = "skip_all"
	optFields  = "fields"
	optErr     = "err"
	optRet     = "ret"
	optContext = "context"
	optSeq     = "seq"
)

// Defaults are used for options missing in a directive.
type Defaults struct {
	Level span.Level

	// Target is the enclosing package path.
	Target string

	// Context enables context propagation.
	Context bool
}

// FieldOverride is an explicit field of a directive.
type FieldOverride struct {
	Name string
	Pos  token.Pos

	// Expr is nil for declared-only fields.
	Expr *directive.Expr
}

// InstrumentConfig is a resolved instrumentation configuration.
type InstrumentConfig struct {
	Name string

	// Target is either a plain string or, with TargetExpr set, an expression text.
	Target     string
	TargetExpr bool

	// Level is either a known level or, with LevelExpr set, an expression text.
	Level     span.Level
	LevelText string
	LevelExpr bool

	Skip    map[string]bool
	SkipAll bool
	Fields  []FieldOverride

	Err     bool
	Ret     bool
	Context bool
	Seq     bool
}

// Skips checks if the parameter (or self) is excluded from recording.
func (c *InstrumentConfig) Skips(name string) bool {
	return c.SkipAll || c.Skip[name]
}

// Override returns an explicit field with the given name.
func (c *InstrumentConfig) Override(name string) (FieldOverride, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return FieldOverride{}, false
}

// MergeOptions overlays explicit directive options over rule ones.
func MergeOptions(rule, explicit []directive.Option) []directive.Option {
	keys := map[string]bool{}
	for _, opt := range explicit {
		keys[opt.Key] = true
	}

	var res []directive.Option
	for _, opt := range rule {
		if !keys[opt.Key] {
			res = append(res, opt)
		}
	}

	return append(res, explicit...)
}

// Resolve merges directive options with defaults and validates them against
// the function shape.
func Resolve(opts []directive.Option, shape *FunctionShape, defaults Defaults) (*InstrumentConfig, error) {
	cfg := &InstrumentConfig{
		Name:      shape.Name,
		Target:    defaults.Target,
		Level:     defaults.Level,
		LevelText: defaults.Level.String(),
		Skip:      map[string]bool{},
		Context:   defaults.Context,
		Seq:       true,
	}

	r := &resolver{
		cfg:   cfg,
		shape: shape,
		seen:  map[string]bool{},
	}
	for _, opt := range opts {
		r.option(opt)
	}
	if r.errs != nil {
		return nil, r.errs
	}

	r.validate()
	if r.errs != nil {
		return nil, r.errs
	}

	return cfg, nil
}

type resolver struct {
	cfg   *InstrumentConfig
	shape *FunctionShape
	seen  map[string]bool

	skipPos    token.Pos
	skipAllPos token.Pos
	errPos     token.Pos
	retPos     token.Pos

	errs error
}

func (r *resolver) errorf(rule instrules.Rule, pos token.Pos, format string, a ...any) {
	r.errs = multierr.Append(r.errs, report.Errorf(rule, pos, format, a...))
}

func (r *resolver) option(opt directive.Option) {
	if r.seen[opt.Key] {
		r.errorf(instrules.DuplicateOption(), opt.Pos, "option %s is given more than once", opt.Key)
		return
	}
	r.seen[opt.Key] = true

	switch opt.Key {
	case optName:
		if v, ok := r.stringValue(opt); ok {
			r.cfg.Name = v
		}

	case optTarget:
		if !r.expectKind(opt, directive.OptionValue) {
			return
		}
		if v, ok := stringLiteral(opt.Value); ok {
			r.cfg.Target = v
			return
		}
		r.cfg.Target = opt.Value.Text
		r.cfg.TargetExpr = true

	case optLevel:
		r.level(opt)

	case optSkip:
		if !r.expectKind(opt, directive.OptionList) {
			return
		}
		r.skipPos = opt.Pos
		for _, item := range opt.Items {
			if item.Value != nil {
				r.errorf(instrules.BadOption(), item.Pos, "skip takes parameter names only")
				continue
			}
			r.cfg.Skip[item.Name] = true
		}

	case optSkipAll:
		if v, ok := r.boolValue(opt); ok {
			r.cfg.SkipAll = v
			r.skipAllPos = opt.Pos
		}

	case optFields:
		if !r.expectKind(opt, directive.OptionList) {
			return
		}
		for _, item := range opt.Items {
			if item.Value != nil {
				r.checkExprReserved(item.Value, item.Pos)
			}
			r.cfg.Fields = append(r.cfg.Fields, FieldOverride{
				Name: item.Name,
				Pos:  item.Pos,
				Expr: item.Value,
			})
		}

	case optErr:
		if v, ok := r.boolValue(opt); ok {
			r.cfg.Err = v
			r.errPos = opt.Pos
		}

	case optRet:
		if v, ok := r.boolValue(opt); ok {
			r.cfg.Ret = v
			r.retPos = opt.Pos
		}

	case optContext:
		if v, ok := r.boolValue(opt); ok {
			r.cfg.Context = v
		}

	case optSeq:
		if v, ok := r.boolValue(opt); ok {
			r.cfg.Seq = v
		}

	default:
		r.errorf(instrules.BadOption(), opt.Pos, "unknown option %s", opt.Key)
	}
}

func (r *resolver) level(opt directive.Option) {
	if !r.expectKind(opt, directive.OptionValue) {
		return
	}

	if v, ok := stringLiteral(opt.Value); ok {
		lvl, err := span.ParseLevel(v)
		if err != nil {
			r.errorf(instrules.InvalidLevel(), opt.Pos, "unknown level %q", v)
			return
		}
		r.cfg.Level = lvl
		r.cfg.LevelText = lvl.String()
		return
	}

	if id, ok := opt.Value.Node.(*ast.Ident); ok {
		if lvl, err := span.ParseLevel(id.Name); err == nil {
			r.cfg.Level = lvl
			r.cfg.LevelText = lvl.String()
			return
		}
	}

	if _, ok := opt.Value.Node.(*ast.BasicLit); ok {
		r.errorf(instrules.InvalidLevel(), opt.Pos, "level must be a keyword or an expression, got %s", opt.Value.Text)
		return
	}

	r.checkExprReserved(opt.Value, opt.Pos)
	r.cfg.LevelText = opt.Value.Text
	r.cfg.LevelExpr = true
}

func (r *resolver) expectKind(opt directive.Option, kind directive.OptionKind) bool {
	if opt.Kind == kind {
		return true
	}

	r.errorf(
		instrules.BadOption(),
		opt.Pos,
		"option %s must be a %s, got %s",
		opt.Key,
		kind,
		opt.Kind,
	)
	return false
}

func (r *resolver) stringValue(opt directive.Option) (string, bool) {
	if !r.expectKind(opt, directive.OptionValue) {
		return "", false
	}

	v, ok := stringLiteral(opt.Value)
	if !ok {
		r.errorf(instrules.BadOption(), opt.Pos, "option %s must be a string literal, got %s", opt.Key, opt.Value.Text)
		return "", false
	}

	return v, true
}

// boolValue accepts both the flag form and key = true/false.
func (r *resolver) boolValue(opt directive.Option) (bool, bool) {
	switch opt.Kind {
	case directive.OptionFlag:
		return true, true
	case directive.OptionValue:
		if id, ok := opt.Value.Node.(*ast.Ident); ok {
			switch id.Name {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		r.errorf(instrules.BadOption(), opt.Pos, "option %s must be true or false, got %s", opt.Key, opt.Value.Text)
		return false, false
	default:
		r.errorf(instrules.BadOption(), opt.Pos, "option %s must be a flag, got %s", opt.Key, opt.Kind)
		return false, false
	}
}

func (r *resolver) checkExprReserved(expr *directive.Expr, pos token.Pos) {
	ast.Inspect(expr.Node, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if ok && isReserved(id.Name) {
			r.errorf(
				instrules.ReservedIdentifier(),
				pos,
				"expression %s refers reserved identifier %s",
				expr.Text,
				id.Name,
			)
			return false
		}

		return true
	})
}

func (r *resolver) validate() {
	cfg, shape := r.cfg, r.shape

	if cfg.SkipAll && len(cfg.Skip) > 0 {
		r.errorf(instrules.SkipConflict(), max(r.skipPos, r.skipAllPos), "skip and skip_all cannot be used together")
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.Skip)) {
		if name == span.SelfField && shape.IsMethod() {
			continue
		}
		if p, ok := shape.Param(name); ok && !p.Unnamed {
			continue
		}

		r.errorf(instrules.UnknownSkip(), r.skipPos, "%s is not a parameter of %s", name, shape.Name)
	}

	if shape.IsMethod() {
		if p, ok := shape.Param(span.SelfField); ok {
			r.errorf(
				instrules.DuplicateField(),
				p.Pos,
				"parameter self collides with the receiver field of method %s",
				shape.Name,
			)
		}
	}

	seen := map[string]bool{}
	for _, f := range cfg.Fields {
		if seen[f.Name] {
			r.errorf(instrules.DuplicateField(), f.Pos, "field %s is declared twice", f.Name)
			continue
		}
		seen[f.Name] = true

		if r.isParamLike(f.Name) && cfg.Skips(f.Name) {
			r.errorf(instrules.FieldSkipCollision(), f.Pos, "field %s is named like a skipped parameter", f.Name)
		}
		if (cfg.Err && f.Name == span.ErrorField) || (cfg.Ret && f.Name == span.ReturnField) {
			r.errorf(instrules.DuplicateField(), f.Pos, "field %s is reserved for the outcome recording", f.Name)
		}
	}

	r.validateOutcome()
}

func (r *resolver) validateOutcome() {
	cfg, shape := r.cfg, r.shape

	if isSequence(shape, cfg) {
		if cfg.Err && !shape.YieldsError {
			r.errorf(
				instrules.ErrWithoutError(),
				r.errPos,
				"err requires %s to yield error as the second value",
				shape.Name,
			)
		}
		if cfg.Ret {
			r.errorf(
				instrules.RetWithoutResult(),
				r.retPos,
				"ret cannot be used with %s returning a sequence, use seq = false",
				shape.Name,
			)
		}
		return
	}

	if cfg.Err && !shape.ReturnsError() {
		r.errorf(instrules.ErrWithoutError(), r.errPos, "err requires %s to return error as its last result", shape.Name)
	}
	if cfg.Ret && len(shape.Results) == 0 {
		r.errorf(instrules.RetWithoutResult(), r.retPos, "ret requires %s to have results", shape.Name)
	}
}

func (r *resolver) isParamLike(name string) bool {
	if name == span.SelfField && r.shape.IsMethod() {
		return true
	}

	p, ok := r.shape.Param(name)
	return ok && !p.Unnamed
}

func stringLiteral(expr *directive.Expr) (string, bool) {
	lit, ok := expr.Node.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}

	v, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}

	return v, true
}
