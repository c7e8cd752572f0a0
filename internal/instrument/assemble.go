package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"slices"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/imports"
)

// GeneratedHeader marks rewritten files.
const GeneratedHeader = "// Code generated by traceinstr. DO NOT EDIT.\n\n"

// edit replaces src[start:end] with text.
type edit struct {
	start int
	end   int
	text  string
}

// assembler collects edits over a single source file.
type assembler struct {
	tf    *token.File
	src   []byte
	edits []edit
	sites []string
}

func newAssembler(tf *token.File, src []byte) *assembler {
	return &assembler{
		tf:  tf,
		src: src,
	}
}

func (a *assembler) offset(pos token.Pos) int {
	return a.tf.Offset(pos)
}

// inner returns the body text between its braces.
func (a *assembler) inner(body *ast.BlockStmt) string {
	return string(a.src[a.offset(body.Lbrace)+1 : a.offset(body.Rbrace)])
}

// replaceBody replaces the function body with the given text, braces included.
func (a *assembler) replaceBody(body *ast.BlockStmt, text string) {
	a.edits = append(a.edits, edit{
		start: a.offset(body.Lbrace),
		end:   a.offset(body.Rbrace) + 1,
		text:  text,
	})
}

// removeDirective cuts the directive comment line out of the doc comment.
// A blank comment line separating the directive from the documentation is
// removed too.
func (a *assembler) removeDirective(doc *ast.CommentGroup, c *ast.Comment) {
	idx := slices.Index(doc.List, c)
	first := c
	if idx > 0 && idx == len(doc.List)-1 && doc.List[idx-1].Text == "//" {
		first = doc.List[idx-1]
	}

	start := a.offset(first.Slash)
	end := a.offset(c.End())
	for start > 0 && (a.src[start-1] == ' ' || a.src[start-1] == '\t') {
		start--
	}
	if end < len(a.src) && a.src[end] == '\n' {
		end++
	}

	a.edits = append(a.edits, edit{start: start, end: end})
}

func (a *assembler) addSite(decl string) {
	a.sites = append(a.sites, decl)
}

// assemble applies edits, appends callsites, adds the span import and
// formats the result.
func (a *assembler) assemble(filename string) ([]byte, error) {
	edits := slices.Clone(a.edits)
	slices.SortFunc(edits, func(x, y edit) int {
		return x.start - y.start
	})

	var buf bytes.Buffer
	buf.WriteString(GeneratedHeader)

	var last int
	for _, e := range edits {
		if e.start < last {
			return nil, fmt.Errorf("overlapping edits at offset %d", e.start)
		}
		buf.Write(a.src[last:e.start])
		buf.WriteString(e.text)
		last = e.end
	}
	buf.Write(a.src[last:])

	if len(a.sites) > 0 {
		buf.WriteString("\nvar (\n")
		for _, site := range a.sites {
			buf.WriteString(site)
			buf.WriteByte('\n')
		}
		buf.WriteString(")\n")
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, buf.Bytes(), parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse rewritten source: %w", err)
	}
	astutil.AddNamedImport(fset, file, spanPackageName, spanImportPath)

	var formatted bytes.Buffer
	if err := format.Node(&formatted, fset, file); err != nil {
		return nil, fmt.Errorf("format rewritten source: %w", err)
	}

	res, err := imports.Process(filename, formatted.Bytes(), &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		return nil, fmt.Errorf("normalize imports: %w", err)
	}

	return res, nil
}

// IsGenerated checks if the source was produced by the rewriter.
func IsGenerated(src []byte) bool {
	return strings.HasPrefix(string(src), strings.TrimSpace(GeneratedHeader))
}
