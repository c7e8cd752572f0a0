package directive

import (
	"go/ast"
	goparser "go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/sirkon/traceinstr/internal/instrules"
	"github.com/sirkon/traceinstr/internal/report"
)

// Parse parses a directive comment having the given prefix.
func Parse(c *ast.Comment, prefix string) (*Directive, error) {
	base := c.Slash + token.Pos(len(prefix))
	d, err := ParseOptions(strings.TrimPrefix(c.Text, prefix), func(offset int) token.Pos {
		return base + token.Pos(offset)
	})
	if err != nil {
		return nil, err
	}

	d.Comment = c
	d.Pos = c.Slash
	return d, nil
}

// ParseOptions parses options text, which is either empty or a parenthesized
// option list. pos maps byte offsets of the text to file positions.
func ParseOptions(text string, pos func(offset int) token.Pos) (*Directive, error) {
	toks, err := scan(text, pos)
	if err != nil {
		return nil, err
	}

	p := &parser{
		text: text,
		toks: toks,
		pos:  pos,
	}
	d, err := p.parse()
	if err != nil {
		return nil, err
	}

	d.Pos = pos(0)
	return d, nil
}

type scanned struct {
	tok token.Token
	lit string
	off int
	end int
}

func scan(text string, pos func(int) token.Pos) ([]scanned, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(text))

	var (
		s       scanner.Scanner
		scanErr error
	)
	s.Init(file, []byte(text), func(p token.Position, msg string) {
		if scanErr == nil {
			scanErr = report.Errorf(instrules.BadOption(), pos(p.Offset), "%s", msg)
		}
	}, 0)

	var res []scanned
	for {
		p, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			// Automatically inserted.
			continue
		}

		off := file.Offset(p)
		end := off + len(lit)
		if lit == "" {
			end = off + len(tok.String())
		}
		res = append(res, scanned{tok: tok, lit: lit, off: off, end: end})
	}

	if scanErr != nil {
		return nil, scanErr
	}

	return res, nil
}

type parser struct {
	text string
	toks []scanned
	idx  int
	pos  func(int) token.Pos
}

func (p *parser) peek() scanned {
	if p.idx >= len(p.toks) {
		return scanned{tok: token.EOF, off: len(p.text), end: len(p.text)}
	}

	return p.toks[p.idx]
}

func (p *parser) errorf(t scanned, format string, a ...any) error {
	return report.Errorf(instrules.BadOption(), p.pos(t.off), format, a...)
}

func (p *parser) parse() (*Directive, error) {
	d := &Directive{}
	if len(p.toks) == 0 {
		return d, nil
	}

	if t := p.peek(); t.tok != token.LPAREN {
		return nil, p.errorf(t, "directive options must be enclosed in parentheses, got %s", describe(t))
	}
	p.idx++

	for done := false; !done; {
		if p.peek().tok == token.RPAREN {
			p.idx++
			break
		}

		opt, err := p.option()
		if err != nil {
			return nil, err
		}
		d.Options = append(d.Options, opt)

		switch t := p.peek(); t.tok {
		case token.COMMA:
			p.idx++
		case token.RPAREN:
			p.idx++
			done = true
		default:
			return nil, p.errorf(t, "expected , or ) after option %s, got %s", opt.Key, describe(t))
		}
	}

	if t := p.peek(); t.tok != token.EOF {
		return nil, p.errorf(t, "unexpected %s after options", describe(t))
	}

	return d, nil
}

func (p *parser) option() (Option, error) {
	t := p.peek()
	if !isName(t) {
		return Option{}, p.errorf(t, "option name expected, got %s", describe(t))
	}
	p.idx++

	opt := Option{
		Key:  t.lit,
		Pos:  p.pos(t.off),
		Kind: OptionFlag,
	}

	switch p.peek().tok {
	case token.ASSIGN:
		p.idx++
		expr, err := p.expr(opt.Key)
		if err != nil {
			return Option{}, err
		}
		opt.Kind = OptionValue
		opt.Value = expr

	case token.LPAREN:
		p.idx++
		items, err := p.items(opt.Key)
		if err != nil {
			return Option{}, err
		}
		opt.Kind = OptionList
		opt.Items = items
	}

	return opt, nil
}

func (p *parser) items(key string) ([]Item, error) {
	var items []Item
	for {
		if p.peek().tok == token.RPAREN {
			p.idx++
			return items, nil
		}

		item, err := p.item(key)
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		switch t := p.peek(); t.tok {
		case token.COMMA:
			p.idx++
		case token.RPAREN:
			p.idx++
			return items, nil
		default:
			return nil, p.errorf(t, "expected , or ) in %s, got %s", key, describe(t))
		}
	}
}

// item parses name, dotted.name or name = expr.
func (p *parser) item(key string) (Item, error) {
	first := p.peek()
	if !isName(first) {
		return Item{}, p.errorf(first, "name expected in %s, got %s", key, describe(first))
	}
	p.idx++

	name := first.lit
	for p.peek().tok == token.PERIOD {
		p.idx++
		t := p.peek()
		if !isName(t) {
			return Item{}, p.errorf(t, "name expected after . in %s, got %s", key, describe(t))
		}
		p.idx++
		name += "." + t.lit
	}

	item := Item{
		Name: name,
		Pos:  p.pos(first.off),
	}
	if p.peek().tok == token.ASSIGN {
		p.idx++
		expr, err := p.expr(key + "(" + name + ")")
		if err != nil {
			return Item{}, err
		}
		item.Value = expr
	}

	return item, nil
}

// expr consumes tokens up to the closest comma or closing parenthesis on the
// same nesting level.
func (p *parser) expr(owner string) (*Expr, error) {
	start := p.idx
	depth := 0

loop:
	for ; p.idx < len(p.toks); p.idx++ {
		switch p.toks[p.idx].tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RBRACK, token.RBRACE:
			depth--
		case token.RPAREN:
			if depth == 0 {
				break loop
			}
			depth--
		case token.COMMA:
			if depth == 0 {
				break loop
			}
		}
	}

	if p.idx == start {
		return nil, p.errorf(p.peek(), "value expected for %s", owner)
	}

	first, last := p.toks[start], p.toks[p.idx-1]
	text := p.text[first.off:last.end]
	node, err := goparser.ParseExpr(text)
	if err != nil {
		return nil, p.errorf(first, "invalid expression %q for %s", text, owner)
	}

	return &Expr{Text: text, Node: node}, nil
}

func isName(t scanned) bool {
	return t.tok == token.IDENT || t.tok.IsKeyword()
}

func describe(t scanned) string {
	switch {
	case t.tok == token.EOF:
		return "end of directive"
	case t.lit != "":
		return t.lit
	default:
		return t.tok.String()
	}
}
