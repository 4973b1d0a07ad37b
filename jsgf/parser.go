package jsgf

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type exprKind int

const (
	exprToken exprKind = iota
	exprRef
	exprSeq
	exprAlt
	exprOptional
	exprStar
	exprPlus
	exprNull
	exprVoid
)

// expr is a node of the rule expansion tree.
type expr struct {
	kind    exprKind
	text    string    // token text or referenced rule name
	items   []*expr   // children; unary nodes use items[0]
	weights []float64 // alternation weights, nil when unweighted
	tags    []string
	pos     position
}

type parser struct {
	lex     *lexer
	tok     token
	back    []token
	g       *Grammar
	shadows int
}

func (p *parser) advance() error {
	if n := len(p.back); n > 0 {
		p.tok = p.back[n-1]
		p.back = p.back[:n-1]
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) unread(t token) {
	p.back = append(p.back, p.tok)
	p.tok = t
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.tok.pos.Line, Col: p.tok.pos.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errorf("expected %s, found %s", kind, p.tok.kind)
	}
	t := p.tok
	return t, p.advance()
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokWord && p.tok.text == kw
}

func (p *parser) parseGrammar() error {
	if err := p.advance(); err != nil {
		return err
	}
	if p.tok.kind == tokHeader {
		p.g.header = strings.TrimSpace(p.tok.text)
		if err := p.advance(); err != nil {
			return err
		}
	}
	if p.isKeyword("grammar") {
		if err := p.advance(); err != nil {
			return err
		}
		name, err := p.expect(tokWord)
		if err != nil {
			return err
		}
		p.g.name = name.text
		if _, err := p.expect(tokSemi); err != nil {
			return err
		}
	}
	for p.isKeyword("import") {
		if err := p.advance(); err != nil {
			return err
		}
		ref, err := p.expect(tokRule)
		if err != nil {
			return err
		}
		p.g.imports = append(p.g.imports, ref.text)
		if _, err := p.expect(tokSemi); err != nil {
			return err
		}
	}
	for p.tok.kind != tokEOF {
		if err := p.parseRule(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseRule() error {
	public := false
	if p.isKeyword("public") {
		public = true
		if err := p.advance(); err != nil {
			return err
		}
	}
	head, err := p.expect(tokRule)
	if err != nil {
		return err
	}
	name := head.text
	if name == "NULL" || name == "VOID" {
		return &SyntaxError{Line: head.pos.Line, Col: head.pos.Col, Msg: fmt.Sprintf("cannot define special rule <%s>", name)}
	}

	if p.tok.kind == tokEquals {
		if err := p.advance(); err != nil {
			return err
		}
		if _, dup := p.g.byName[name]; dup {
			return &SyntaxError{Line: head.pos.Line, Col: head.pos.Col, Msg: fmt.Sprintf("rule <%s> redefined", name)}
		}
		body, err := p.parseAlt()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokSemi); err != nil {
			return err
		}
		p.g.define(&Rule{Name: name, Public: public, body: body, pos: head.pos})
		return nil
	}

	// "public <name> expansion;" extends an existing rule: the body starts
	// from the rule's previous definition and the result is public.
	if !public {
		return p.errorf("expected %s, found %s", tokEquals, p.tok.kind)
	}
	old, ok := p.g.byName[name]
	if !ok {
		return &UndefinedRuleError{Name: name, Line: head.pos.Line, Col: head.pos.Col}
	}
	p.unread(head)
	body, err := p.parseAlt()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return err
	}
	p.shadows++
	shadow := fmt.Sprintf("%s~%d", name, p.shadows)
	p.g.hide(old, shadow)
	renameRefs(body, name, shadow)
	p.g.define(&Rule{Name: name, Public: true, body: body, pos: head.pos})
	return nil
}

func renameRefs(e *expr, from, to string) {
	if e.kind == exprRef && e.text == from {
		e.text = to
	}
	for _, c := range e.items {
		renameRefs(c, from, to)
	}
}

func (p *parser) endOfSequence() bool {
	switch p.tok.kind {
	case tokBar, tokRParen, tokRBracket, tokSemi, tokEOF:
		return true
	}
	return false
}

func (p *parser) parseAlt() (*expr, error) {
	pos := p.tok.pos
	var (
		branches []*expr
		weights  []float64
		weighted bool
	)
	for {
		w := 1.0
		if p.tok.kind == tokWeight {
			v, err := strconv.ParseFloat(p.tok.text, 64)
			if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, p.errorf("invalid weight %q", p.tok.text)
			}
			w = v
			weighted = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		seq, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		branches = append(branches, seq)
		weights = append(weights, w)
		if p.tok.kind != tokBar {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if len(branches) == 1 && !weighted {
		return branches[0], nil
	}
	e := &expr{kind: exprAlt, items: branches, pos: pos}
	if weighted {
		e.weights = weights
	}
	return e, nil
}

func (p *parser) parseSeq() (*expr, error) {
	pos := p.tok.pos
	var items []*expr
	for !p.endOfSequence() {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	switch len(items) {
	case 0:
		return nil, p.errorf("empty expansion before %s", p.tok.kind)
	case 1:
		return items[0], nil
	}
	return &expr{kind: exprSeq, items: items, pos: pos}, nil
}

func (p *parser) parseItem() (*expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.kind {
		case tokStar:
			e = &expr{kind: exprStar, items: []*expr{e}, pos: p.tok.pos}
		case tokPlus:
			e = &expr{kind: exprPlus, items: []*expr{e}, pos: p.tok.pos}
		case tokTag:
			e.tags = append(e.tags, p.tok.text)
		default:
			return e, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parsePrimary() (*expr, error) {
	t := p.tok
	switch t.kind {
	case tokWord, tokQuoted:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &expr{kind: exprToken, text: t.text, pos: t.pos}, nil
	case tokRule:
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch t.text {
		case "NULL":
			return &expr{kind: exprNull, pos: t.pos}, nil
		case "VOID":
			return &expr{kind: exprVoid, pos: t.pos}, nil
		}
		return &expr{kind: exprRef, text: t.text, pos: t.pos}, nil
	case tokLParen, tokLBracket:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if t.kind == tokLParen {
			if _, err := p.expect(tokRParen); err != nil {
				return nil, err
			}
			return inner, nil
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		return &expr{kind: exprOptional, items: []*expr{inner}, pos: t.pos}, nil
	}
	return nil, p.errorf("unexpected %s", t.kind)
}
