package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirkon/traceinstr/span"
)

// Identifiers of generated code.
const (
	spanPackageName = "_span"
	spanImportPath  = "github.com/sirkon/traceinstr/span"

	generatedPrefix = "_trace"
	spanVar         = generatedPrefix + "Span"
	fieldsVar       = generatedPrefix + "Fields"
	resultPrefix    = generatedPrefix + "Ret"
	sitePrefix      = generatedPrefix + "Site"
)

var levelConsts = map[span.Level]string{
	span.LevelTrace: "LevelTrace",
	span.LevelDebug: "LevelDebug",
	span.LevelInfo:  "LevelInfo",
	span.LevelWarn:  "LevelWarn",
	span.LevelError: "LevelError",
}

// SiteInfo locates a callsite.
type SiteInfo struct {
	// Key is unique within a package: function name, Type_Method for
	// methods and init_<file>_<line> for init functions. Underscores inside
	// names are written as _0, so a single underscore followed by anything
	// but 0 always separates parts.
	Key  string
	File string
	Line int
}

// NewSiteInfo computes callsite info for a function declared in the file at the line.
func NewSiteInfo(recvType, name, file string, line int) SiteInfo {
	key := escapeIdent(name)
	switch {
	case recvType != "":
		key = escapeIdent(recvType) + "_" + escapeIdent(name)
	case name == "init":
		key = fmt.Sprintf("init_%s_%d", escapeFile(strings.TrimSuffix(file, ".go")), line)
	}

	return SiteInfo{
		Key:  key,
		File: file,
		Line: line,
	}
}

// Var returns the name of the callsite variable.
func (s SiteInfo) Var() string {
	return sitePrefix + "_" + s.Key
}

func escapeIdent(s string) string {
	return strings.ReplaceAll(s, "_", "_0")
}

// escapeFile turns a file name into identifier characters. Runes which
// cannot appear in identifiers are written as _<hex>_.
func escapeFile(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_':
			b.WriteString("_0")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%x_", r)
		}
	}

	return b.String()
}

// Binding is a generated variable holding a field override value.
type Binding struct {
	Var  string
	Expr string
}

// SpanDescriptor is everything needed to create the span of a function.
type SpanDescriptor struct {
	Site SiteInfo

	Name   string
	Target string
	Level  string
	Fields []string

	Bindings []Binding
	Values   []string

	// Context is a name of the context parameter the span is bound to.
	Context string
}

// Emit builds span descriptor for the planned function.
func Emit(shape *FunctionShape, cfg *InstrumentConfig, plan *FieldPlan, site SiteInfo) *SpanDescriptor {
	d := &SpanDescriptor{
		Site:   site,
		Name:   cfg.Name,
		Target: strconv.Quote(cfg.Target),
		Level:  spanPackageName + "." + levelConsts[cfg.Level],
		Fields: plan.Names(),
	}
	if cfg.TargetExpr {
		d.Target = cfg.Target
	}
	if cfg.LevelExpr {
		d.Level = cfg.LevelText
	}

	for _, e := range plan.Populated() {
		switch src := e.Source.(type) {
		case SourceReceiver:
			d.Values = append(d.Values, fmt.Sprintf("%s.Receiver(%s)", spanPackageName, src.Name))
		case SourceParam:
			d.Values = append(d.Values, fmt.Sprintf("%s.Debug(%q, %s)", spanPackageName, e.Name, src.Name))
		case SourceOverride:
			d.Bindings = append(d.Bindings, Binding{Var: src.Binding, Expr: src.Expr.Text})
			d.Values = append(d.Values, fmt.Sprintf("%s.Value(%q, %s)", spanPackageName, e.Name, src.Binding))
		}
	}

	if p, ok := shape.ContextParam(); ok && cfg.Context && !isSequence(shape, cfg) {
		d.Context = p.Name
	}

	return d
}

// Constructor returns the span creation expression.
func (d *SpanDescriptor) Constructor() string {
	args := []string{d.Site.Var()}
	fn := "New"
	if d.Context != "" {
		fn = "NewContext"
		args = append([]string{d.Context}, args...)
	}
	args = append(args, d.Values...)

	return fmt.Sprintf("%s.%s(%s)", spanPackageName, fn, strings.Join(args, ", "))
}

// FieldsLiteral returns the slice of populated fields.
func (d *SpanDescriptor) FieldsLiteral() string {
	if len(d.Values) == 0 {
		return "nil"
	}

	return fmt.Sprintf("[]%s.Field{%s}", spanPackageName, strings.Join(d.Values, ", "))
}

// SiteDecl returns the callsite variable specification for a var block.
func (d *SpanDescriptor) SiteDecl() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = &%s.Callsite{\n", d.Site.Var(), spanPackageName)
	fmt.Fprintf(&b, "\tName: %q,\n", d.Name)
	fmt.Fprintf(&b, "\tTarget: %s,\n", d.Target)
	fmt.Fprintf(&b, "\tLevel: %s,\n", d.Level)
	if len(d.Fields) > 0 {
		quoted := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			quoted[i] = strconv.Quote(f)
		}
		fmt.Fprintf(&b, "\tFields: []string{%s},\n", strings.Join(quoted, ", "))
	}
	fmt.Fprintf(&b, "\tFile: %q,\n", d.Site.File)
	fmt.Fprintf(&b, "\tLine: %d,\n", d.Site.Line)
	b.WriteString("}")

	return b.String()
}

func isSequence(shape *FunctionShape, cfg *InstrumentConfig) bool {
	return cfg.Seq && shape.Resumable != ResumableNone
}
