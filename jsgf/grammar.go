// Package jsgf parses JSGF grammar text and compiles its rules into
// finite-state grammars.
//
// Supported: the "#JSGF" header, grammar and import declarations, public and
// private rules, quoted tokens, alternation with /weights/, grouping,
// [optional] parts, * and + repetition, {tags}, <NULL> and <VOID>, and rule
// references. A reference to a rule currently being expanded is allowed when
// it is the last element of every enclosing expansion and compiles into a
// loop.
package jsgf

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ieee0824/sphinx-go/fsg"
)

// Rule is a named rule definition.
type Rule struct {
	Name   string
	Public bool

	body   *expr
	pos    position
	hidden bool
}

// Grammar is a parsed JSGF grammar.
type Grammar struct {
	name    string
	header  string
	imports []string
	order   []string
	byName  map[string]*Rule

	mu       sync.Mutex
	compiled map[string]*fsg.Model
}

// Parse parses grammar text.
func Parse(text string) (*Grammar, error) {
	g := &Grammar{
		byName:   make(map[string]*Rule),
		compiled: make(map[string]*fsg.Model),
	}
	p := &parser{lex: newLexer(text), g: g}
	if err := p.parseGrammar(); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseFile parses the grammar stored at path.
func ParseFile(path string) (*Grammar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	return Parse(string(b))
}

func (g *Grammar) define(r *Rule) {
	if _, ok := g.byName[r.Name]; !ok {
		g.order = append(g.order, r.Name)
	}
	g.byName[r.Name] = r
}

func (g *Grammar) hide(r *Rule, shadow string) {
	r.Name = shadow
	r.Public = false
	r.hidden = true
	g.byName[shadow] = r
}

// Name returns the declared grammar name, or "" if none.
func (g *Grammar) Name() string { return g.name }

// Header returns the text of the "#JSGF" header line, or "" if absent.
func (g *Grammar) Header() string { return g.header }

// Imports returns the imported rule names as written.
func (g *Grammar) Imports() []string { return append([]string(nil), g.imports...) }

// Rules returns the rules in definition order.
func (g *Grammar) Rules() []*Rule {
	rules := make([]*Rule, 0, len(g.order))
	for _, name := range g.order {
		rules = append(rules, g.byName[name])
	}
	return rules
}

// Rule looks up a rule by name. Qualified names ("grammar.rule") resolve to
// the local rule.
func (g *Grammar) Rule(name string) (*Rule, bool) {
	r := g.lookup(name)
	if r == nil || r.hidden && !strings.Contains(name, "~") {
		return nil, false
	}
	return r, true
}

func (g *Grammar) lookup(name string) *Rule {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "<"), ">")
	if r, ok := g.byName[name]; ok {
		return r
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return g.byName[name[i+1:]]
	}
	return nil
}

// PublicRule returns the first public rule, or nil if there is none.
func (g *Grammar) PublicRule() *Rule {
	for _, name := range g.order {
		if r := g.byName[name]; r.Public {
			return r
		}
	}
	return nil
}

// Unused returns the names of visible rules that cannot be reached from the
// given rule. The result is sorted.
func (g *Grammar) Unused(rule string) []string {
	root := g.lookup(rule)
	if root == nil {
		return nil
	}
	seen := make(map[*Rule]bool)
	var walk func(e *expr)
	visit := func(r *Rule) {
		if r == nil || seen[r] {
			return
		}
		seen[r] = true
		walk(r.body)
	}
	walk = func(e *expr) {
		if e.kind == exprRef {
			visit(g.lookup(e.text))
		}
		for _, c := range e.items {
			walk(c)
		}
	}
	visit(root)
	var unused []string
	for _, name := range g.order {
		if !seen[g.byName[name]] {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	return unused
}

// Compile compiles the named rule into a finite-state grammar. The grammar
// is named after the rule.
func (g *Grammar) Compile(rule string, opts ...CompileOption) (*fsg.Model, error) {
	var o compileOptions
	o.lw = 1
	for _, opt := range opts {
		opt(&o)
	}
	r := g.lookup(rule)
	if r == nil {
		return nil, &UndefinedRuleError{Name: rule}
	}
	c := &compiler{g: g, lw: o.lw}
	return c.compile(r)
}

// CompileFSG compiles the first public rule.
func (g *Grammar) CompileFSG(opts ...CompileOption) (*fsg.Model, error) {
	r := g.PublicRule()
	if r == nil {
		return nil, fmt.Errorf("jsgf: grammar has no public rule")
	}
	return g.Compile(r.Name, opts...)
}

// Matches reports whether the word sequence is accepted by the named rule.
// Compiled rules are cached.
func (g *Grammar) Matches(rule string, words []string) (bool, error) {
	g.mu.Lock()
	m, ok := g.compiled[rule]
	g.mu.Unlock()
	if !ok {
		var err error
		m, err = g.Compile(rule)
		if err != nil {
			return false, err
		}
		g.mu.Lock()
		g.compiled[rule] = m
		g.mu.Unlock()
	}
	return m.Matches(words), nil
}

// CompileOption adjusts compilation.
type CompileOption func(*compileOptions)

type compileOptions struct {
	lw float64
}

// WithLanguageWeight scales every transition log probability by lw.
func WithLanguageWeight(lw float64) CompileOption {
	return func(o *compileOptions) { o.lw = lw }
}
