package instrument

import (
	"go/ast"
	"go/types"
	"maps"
	"strconv"
)

type packagedName struct {
	pkgPath string
	name    string
}

// knownSequences maps generic sequence types to the kind of resumable
// computation they represent.
type knownSequences struct {
	known map[packagedName]ResumableKind
}

func newKnownSequences(custom map[packagedName]ResumableKind) *knownSequences {
	predefined := map[packagedName]ResumableKind{
		{pkgPath: "iter", name: "Seq"}:  ResumableSeq,
		{pkgPath: "iter", name: "Seq2"}: ResumableSeq2,
	}

	if custom == nil {
		custom = make(map[packagedName]ResumableKind)
	} else {
		custom = maps.Clone(custom)
	}

	maps.Insert(custom, maps.All(predefined))

	return &knownSequences{known: custom}
}

// typed looks the type up with type information.
func (k *knownSequences) typed(t types.Type) (ResumableKind, *types.Named) {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return ResumableNone, nil
	}

	obj := named.Origin().Obj()
	if obj.Pkg() == nil {
		return ResumableNone, nil
	}

	kind, ok := k.known[packagedName{pkgPath: obj.Pkg().Path(), name: obj.Name()}]
	if !ok {
		return ResumableNone, nil
	}

	return kind, named
}

// syntactic looks the type expression up using file imports only.
func (k *knownSequences) syntactic(expr ast.Expr, imports fileImports) (ResumableKind, []ast.Expr) {
	var (
		base ast.Expr
		args []ast.Expr
	)
	switch v := expr.(type) {
	case *ast.IndexExpr:
		base, args = v.X, []ast.Expr{v.Index}
	case *ast.IndexListExpr:
		base, args = v.X, v.Indices
	default:
		return ResumableNone, nil
	}

	pkgPath, name, ok := imports.qualified(base)
	if !ok {
		return ResumableNone, nil
	}

	kind, ok := k.known[packagedName{pkgPath: pkgPath, name: name}]
	if !ok {
		return ResumableNone, nil
	}

	return kind, args
}

// fileImports maps local package names of a file to import paths.
type fileImports map[string]string

func newFileImports(file *ast.File) fileImports {
	res := fileImports{}
	if file == nil {
		return res
	}

	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		var name string
		switch {
		case spec.Name != nil:
			name = spec.Name.Name
		default:
			name = importBaseName(path)
		}
		if name == "_" || name == "." {
			continue
		}

		res[name] = path
	}

	return res
}

// qualified resolves pkg.Name selector into import path and name.
func (imps fileImports) qualified(expr ast.Expr) (string, string, bool) {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}

	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", "", false
	}

	path, ok := imps[pkg.Name]
	if !ok {
		return "", "", false
	}

	return path, sel.Sel.Name, true
}

// importBaseName guesses package name by its path. Major version suffixes
// and gopkg.in style versions are dropped.
func importBaseName(path string) string {
	name := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			name = path[i+1:]
			if isMajorVersion(name) && i > 0 {
				return importBaseName(path[:i])
			}
			break
		}
	}

	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}

	return name
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}

	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
