package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"go.uber.org/multierr"

	"github.com/sirkon/traceinstr/internal/instrules"
	"github.com/sirkon/traceinstr/internal/report"
)

// ReceiverKind describes how a method receives its receiver.
type ReceiverKind int

const (
	ReceiverNone ReceiverKind = iota
	ReceiverValue
	ReceiverPointer
)

func (k ReceiverKind) String() string {
	switch k {
	case ReceiverNone:
		return "none"
	case ReceiverValue:
		return "value"
	case ReceiverPointer:
		return "pointer"
	default:
		return fmt.Sprintf("receiver-kind-invalid(%d)", k)
	}
}

// ResumableKind tells whether a function returns a resumable computation.
type ResumableKind int

const (
	ResumableNone ResumableKind = iota
	ResumableSeq
	ResumableSeq2
)

func (k ResumableKind) String() string {
	switch k {
	case ResumableNone:
		return "none"
	case ResumableSeq:
		return "seq"
	case ResumableSeq2:
		return "seq2"
	default:
		return fmt.Sprintf("resumable-kind-invalid(%d)", k)
	}
}

// Receiver of a method.
type Receiver struct {
	Kind     ReceiverKind
	Name     string
	TypeText string
}

// Readable checks if the receiver can be referred to from the body.
func (r Receiver) Readable() bool {
	return r.Kind != ReceiverNone && isReadableName(r.Name)
}

// Param is a function parameter.
type Param struct {
	// Name is a positional _N for unnamed and blank parameters.
	Name     string
	TypeText string
	Index    int
	Pos      token.Pos

	Unnamed   bool
	Variadic  bool
	IsContext bool
}

// ResultVar is a function result.
type ResultVar struct {
	Name     string
	TypeText string
	IsError  bool
}

// FunctionShape is a decomposed function declaration.
type FunctionShape struct {
	Name string
	Pos  token.Pos

	// TypeParams keeps source text of every type parameter group, like "K comparable".
	TypeParams []string
	Receiver   Receiver
	Params     []Param
	Results    []ResultVar

	// ResultsText is the result list as written, with parentheses if they were there.
	ResultsText string

	Resumable   ResumableKind
	YieldsError bool

	Decl *ast.FuncDecl
	Body *ast.BlockStmt
}

// IsMethod checks if the function has a receiver.
func (s *FunctionShape) IsMethod() bool {
	return s.Receiver.Kind != ReceiverNone
}

// Param looks for a parameter with the given name.
func (s *FunctionShape) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}

	return Param{}, false
}

// ReturnsError checks if the last result is an error.
func (s *FunctionShape) ReturnsError() bool {
	return len(s.Results) > 0 && s.Results[len(s.Results)-1].IsError
}

// ContextParam returns the first readable context.Context parameter.
func (s *FunctionShape) ContextParam() (Param, bool) {
	for _, p := range s.Params {
		if p.IsContext && !p.Unnamed {
			return p, true
		}
	}

	return Param{}, false
}

// Analyzer extracts function shapes from a single file.
type Analyzer struct {
	tf      *token.File
	src     []byte
	info    *types.Info
	imports fileImports
	seqs    *knownSequences
}

// NewAnalyzer creates an analyzer for the file parsed from src. Type
// information is optional, syntactic rules are used when it is nil.
func NewAnalyzer(fset *token.FileSet, file *ast.File, src []byte, info *types.Info) *Analyzer {
	return &Analyzer{
		tf:      fset.File(file.Pos()),
		src:     src,
		info:    info,
		imports: newFileImports(file),
		seqs:    newKnownSequences(nil),
	}
}

// Analyze decomposes the declaration.
func (a *Analyzer) Analyze(decl *ast.FuncDecl) (*FunctionShape, error) {
	if decl.Body == nil {
		return nil, report.Errorf(
			instrules.NoBody(),
			decl.Pos(),
			"function %s has no body",
			decl.Name.Name,
		)
	}

	if err := checkReserved(decl); err != nil {
		return nil, err
	}

	shape := &FunctionShape{
		Name: decl.Name.Name,
		Pos:  decl.Pos(),
		Decl: decl,
		Body: decl.Body,
	}

	if tps := decl.Type.TypeParams; tps != nil {
		for _, field := range tps.List {
			shape.TypeParams = append(shape.TypeParams, a.text(field))
		}
	}

	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		shape.Receiver = a.receiver(decl.Recv.List[0])
	}

	a.params(shape, decl.Type.Params)
	a.results(shape, decl.Type.Results)

	return shape, nil
}

func (a *Analyzer) receiver(field *ast.Field) Receiver {
	recv := Receiver{
		Kind:     ReceiverValue,
		TypeText: a.text(field.Type),
	}
	if _, ok := ast.Unparen(field.Type).(*ast.StarExpr); ok {
		recv.Kind = ReceiverPointer
	}
	if len(field.Names) > 0 {
		recv.Name = field.Names[0].Name
	}

	return recv
}

func (a *Analyzer) params(shape *FunctionShape, list *ast.FieldList) {
	if list == nil {
		return
	}

	var index int
	for _, field := range list.List {
		_, variadic := field.Type.(*ast.Ellipsis)
		base := Param{
			TypeText:  a.text(field.Type),
			Variadic:  variadic,
			IsContext: a.isContext(field.Type),
		}

		if len(field.Names) == 0 {
			p := base
			p.Index = index
			p.Name = positionalName(index)
			p.Pos = field.Pos()
			p.Unnamed = true
			shape.Params = append(shape.Params, p)
			index++
			continue
		}

		for _, name := range field.Names {
			p := base
			p.Index = index
			p.Name = name.Name
			p.Pos = name.Pos()
			if !isReadableName(name.Name) {
				p.Name = positionalName(index)
				p.Unnamed = true
			}
			shape.Params = append(shape.Params, p)
			index++
		}
	}
}

func (a *Analyzer) results(shape *FunctionShape, list *ast.FieldList) {
	if list == nil || len(list.List) == 0 {
		return
	}

	shape.ResultsText = a.text(list)
	for _, field := range list.List {
		res := ResultVar{
			TypeText: a.text(field.Type),
			IsError:  a.isError(field.Type),
		}

		if len(field.Names) == 0 {
			shape.Results = append(shape.Results, res)
			continue
		}
		for _, name := range field.Names {
			r := res
			r.Name = name.Name
			shape.Results = append(shape.Results, r)
		}
	}

	if len(shape.Results) == 1 {
		shape.Resumable, shape.YieldsError = a.resumable(list.List[0].Type)
	}
}

func (a *Analyzer) resumable(expr ast.Expr) (ResumableKind, bool) {
	if a.info != nil {
		if t := a.info.TypeOf(expr); t != nil {
			kind, named := a.seqs.typed(t)
			if kind == ResumableSeq2 {
				args := named.TypeArgs()
				return kind, args.Len() == 2 && isErrorType(args.At(1))
			}

			return kind, false
		}
	}

	kind, args := a.seqs.syntactic(expr, a.imports)
	if kind == ResumableSeq2 && len(args) == 2 {
		return kind, isErrorIdent(args[1])
	}

	return kind, false
}

func (a *Analyzer) isError(expr ast.Expr) bool {
	if a.info != nil {
		if t := a.info.TypeOf(expr); t != nil {
			return isErrorType(t)
		}
	}

	return isErrorIdent(expr)
}

func (a *Analyzer) isContext(expr ast.Expr) bool {
	if a.info != nil {
		if t := a.info.TypeOf(expr); t != nil {
			named, ok := types.Unalias(t).(*types.Named)
			if !ok {
				return false
			}

			obj := named.Obj()
			return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
		}
	}

	pkgPath, name, ok := a.imports.qualified(expr)
	return ok && pkgPath == "context" && name == "Context"
}

// text returns the source text of the node.
func (a *Analyzer) text(n ast.Node) string {
	return string(a.src[a.tf.Offset(n.Pos()):a.tf.Offset(n.End())])
}

// checkReserved rejects identifiers clashing with generated ones.
func checkReserved(decl *ast.FuncDecl) error {
	var errs error
	seen := map[string]bool{}
	ast.Inspect(decl, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok || !isReserved(id.Name) || seen[id.Name] {
			return true
		}

		seen[id.Name] = true
		errs = multierr.Append(errs, report.Errorf(
			instrules.ReservedIdentifier(),
			id.Pos(),
			"identifier %s is reserved for generated code",
			id.Name,
		))
		return true
	})

	return errs
}

func isReserved(name string) bool {
	return name == spanPackageName || strings.HasPrefix(name, generatedPrefix)
}

func isReadableName(name string) bool {
	return name != "" && name != "_"
}

func positionalName(index int) string {
	return fmt.Sprintf("_%d", index)
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

func isErrorIdent(expr ast.Expr) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == "error"
}
