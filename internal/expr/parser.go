package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chartforge/internal/table"
)

// Parse turns source text into an expression tree. Unknown function
// names are rejected here rather than at evaluation time so that a bad
// spec fails before any data is touched.
//
// Precedence, loosest to tightest: OR, AND, NOT, comparison (including
// LIKE / IN / BETWEEN / IS NULL), additive, multiplicative, unary minus,
// atoms. Parentheses override.
func Parse(src string) (Node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseError{Pos: 0, Message: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errf("unexpected %q", p.peek().text)
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Pos: p.peek().pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) acceptKeyword(kw string) bool {
	if t := p.peek(); t.kind == tokKeyword && t.text == kw {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errf("expected %s, got %q", kw, p.peek().text)
	}
	return nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.acceptKeyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", Expr: inner}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"=": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
}

// parseComparison parses an additive expression optionally followed by a
// single comparison suffix: an operator, LIKE, IS [NOT] NULL, [NOT] IN,
// or [NOT] BETWEEN. Comparisons do not chain.
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch {
	case t.kind == tokOp && comparisonOps[t.text]:
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: t.text, Left: left, Right: right}, nil

	case t.kind == tokKeyword && t.text == "LIKE":
		p.next()
		return p.parseLike(left, false)

	case t.kind == tokKeyword && t.text == "IS":
		p.next()
		negate := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNull{Value: left, Negate: negate}, nil

	case t.kind == tokKeyword && t.text == "IN":
		p.next()
		return p.parseIn(left, false)

	case t.kind == tokKeyword && t.text == "BETWEEN":
		p.next()
		return p.parseBetween(left)

	case t.kind == tokKeyword && t.text == "NOT":
		// x NOT IN (...), x NOT LIKE '...', x NOT BETWEEN a AND b
		p.next()
		switch {
		case p.acceptKeyword("IN"):
			return p.parseIn(left, true)
		case p.acceptKeyword("LIKE"):
			return p.parseLike(left, true)
		case p.acceptKeyword("BETWEEN"):
			b, err := p.parseBetween(left)
			if err != nil {
				return nil, err
			}
			return &Unary{Op: "NOT", Expr: b}, nil
		default:
			return nil, p.errf("expected IN, LIKE, or BETWEEN after NOT")
		}
	}
	return left, nil
}

func (p *parser) parseLike(left Node, negate bool) (Node, error) {
	t := p.peek()
	if t.kind != tokString {
		return nil, p.errf("LIKE requires a string pattern, got %q", t.text)
	}
	p.next()
	re, err := compileLikePattern(t.text)
	if err != nil {
		return nil, &ParseError{Pos: t.pos, Message: err.Error()}
	}
	return &Like{Value: left, Pattern: t.text, Negate: negate, re: re}, nil
}

func (p *parser) parseIn(left Node, negate bool) (Node, error) {
	if p.peek().kind != tokLParen {
		return nil, p.errf("expected ( after IN")
	}
	p.next()
	var set []Node
	for {
		v, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		set = append(set, v)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		break
	}
	if p.peek().kind != tokRParen {
		return nil, p.errf("expected ) to close IN list")
	}
	p.next()
	return &In{Value: left, Set: set, Negate: negate}, nil
}

func (p *parser) parseBetween(left Node) (Node, error) {
	low, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	high, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Between{Value: left, Low: low, High: high}, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Expr: inner}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid number %q", t.text)}
			}
			return &Literal{Value: table.FloatValue(f)}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid number %q", t.text)}
		}
		return &Literal{Value: table.IntValue(n)}, nil

	case tokString:
		p.next()
		return &Literal{Value: table.StringValue(t.text)}, nil

	case tokKeyword:
		switch t.text {
		case "NULL":
			p.next()
			return &Literal{Value: table.Null()}, nil
		case "TRUE":
			p.next()
			return &Literal{Value: table.BoolValue(true)}, nil
		case "FALSE":
			p.next()
			return &Literal{Value: table.BoolValue(false)}, nil
		}
		return nil, p.errf("unexpected keyword %q", t.text)

	case tokIdent:
		p.next()
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return &ColumnRef{Name: t.text}, nil

	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errf("expected )")
		}
		p.next()
		return inner, nil
	}
	return nil, p.errf("unexpected %q", t.text)
}

func (p *parser) parseCall(name token) (Node, error) {
	fn := strings.ToLower(name.text)
	def, ok := functions[fn]
	if !ok {
		return nil, &UnknownFunctionError{Name: name.text}
	}
	p.next() // consume (
	var args []Node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind == tokComma {
				p.next()
				continue
			}
			break
		}
	}
	if p.peek().kind != tokRParen {
		return nil, p.errf("expected ) to close call to %s", fn)
	}
	p.next()
	if len(args) < def.minArgs || (def.maxArgs >= 0 && len(args) > def.maxArgs) {
		return nil, &ParseError{Pos: name.pos, Message: fmt.Sprintf("%s: %s", fn, def.arity)}
	}
	return &Call{Name: fn, Args: args}, nil
}

// compileLikePattern translates a SQL LIKE pattern into an anchored
// regular expression: % matches any run, _ exactly one character.
func compileLikePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString("(?s).*")
		case '_':
			b.WriteString("(?s).")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid LIKE pattern %q: %w", pattern, err)
	}
	return re, nil
}
