package jsgf

import (
	"errors"
	"math"
	"sort"

	"github.com/ieee0824/sphinx-go/fsg"
)

// frame is a rule expansion in progress. entry is the state the expansion
// started from; tail is true when the reference that opened the frame was
// the last element of its parent expansion.
type frame struct {
	rule  *Rule
	entry int
	tail  bool
}

type compiler struct {
	g      *Grammar
	lw     float64
	raw    *fsg.Model
	frames []frame
}

func (c *compiler) compile(r *Rule) (*fsg.Model, error) {
	c.raw = fsg.New(r.Name, 1, 0)
	entry := c.raw.AddState()
	_ = c.raw.AddNull(0, entry, 0)
	c.frames = append(c.frames, frame{rule: r, entry: entry, tail: true})
	exit, err := c.build(r.body, entry, true)
	if err != nil {
		return nil, err
	}
	c.frames = c.frames[:0]
	c.raw.SetFinal(exit)

	if err := c.raw.Validate(); err != nil {
		switch {
		case errors.Is(err, fsg.ErrEpsilonCycle):
			return nil, &CycleError{Rule: r.Name}
		case errors.Is(err, fsg.ErrUnreachableFinal):
			// <VOID> paths; the collapsed grammar simply accepts nothing.
		default:
			return nil, err
		}
	}
	return collapse(c.raw, c.lw), nil
}

func (c *compiler) newState() int { return c.raw.AddState() }

func (c *compiler) build(e *expr, from int, tail bool) (int, error) {
	switch e.kind {
	case exprToken:
		to := c.newState()
		_ = c.raw.AddTransition(from, to, e.text, 0)
		return to, nil

	case exprNull:
		return from, nil

	case exprVoid:
		return c.newState(), nil

	case exprSeq:
		cur := from
		for i, item := range e.items {
			var err error
			cur, err = c.build(item, cur, tail && i == len(e.items)-1)
			if err != nil {
				return 0, err
			}
		}
		return cur, nil

	case exprAlt:
		exit := c.newState()
		total := 0.0
		for i := range e.items {
			total += c.weight(e, i)
		}
		for i, branch := range e.items {
			w := c.weight(e, i)
			if w == 0 {
				continue
			}
			start := c.newState()
			_ = c.raw.AddNull(from, start, math.Log(w/total))
			end, err := c.build(branch, start, tail)
			if err != nil {
				return 0, err
			}
			_ = c.raw.AddNull(end, exit, 0)
		}
		return exit, nil

	case exprOptional:
		exit := c.newState()
		end, err := c.build(e.items[0], from, tail)
		if err != nil {
			return 0, err
		}
		_ = c.raw.AddNull(end, exit, 0)
		_ = c.raw.AddNull(from, exit, 0)
		return exit, nil

	case exprStar, exprPlus:
		loop := c.newState()
		_ = c.raw.AddNull(from, loop, 0)
		end, err := c.build(e.items[0], loop, false)
		if err != nil {
			return 0, err
		}
		_ = c.raw.AddNull(end, loop, 0)
		if e.kind == exprStar {
			return loop, nil
		}
		return end, nil

	case exprRef:
		return c.buildRef(e, from, tail)
	}
	return 0, &SyntaxError{Line: e.pos.Line, Col: e.pos.Col, Msg: "unknown expansion"}
}

func (c *compiler) weight(e *expr, i int) float64 {
	if e.weights == nil {
		return 1
	}
	return e.weights[i]
}

func (c *compiler) buildRef(e *expr, from int, tail bool) (int, error) {
	r := c.g.lookup(e.text)
	if r == nil {
		return 0, &UndefinedRuleError{Name: e.text, Line: e.pos.Line, Col: e.pos.Col}
	}
	for k := len(c.frames) - 1; k >= 0; k-- {
		if c.frames[k].rule != r {
			continue
		}
		if !tail {
			return 0, &RecursionError{Rule: r.Name, Line: e.pos.Line, Col: e.pos.Col}
		}
		for _, f := range c.frames[k+1:] {
			if !f.tail {
				return 0, &RecursionError{Rule: r.Name, Line: e.pos.Line, Col: e.pos.Col}
			}
		}
		// Loop back to the active expansion. Nothing follows this reference
		// inside the rule, so its own exit is a dead state.
		_ = c.raw.AddNull(from, c.frames[k].entry, 0)
		return c.newState(), nil
	}
	entry := c.newState()
	_ = c.raw.AddNull(from, entry, 0)
	c.frames = append(c.frames, frame{rule: r, entry: entry, tail: tail})
	exit, err := c.build(r.body, entry, true)
	c.frames = c.frames[:len(c.frames)-1]
	return exit, err
}

type arcKey struct {
	from, to int
	word     string
}

// collapse removes null transitions: every state gains the word transitions
// of the states in its null closure, and becomes final if its closure holds
// a final state. States that are unreachable from the start state or cannot
// reach a final state are dropped.
func collapse(raw *fsg.Model, lw float64) *fsg.Model {
	n := raw.NumStates()
	best := make(map[arcKey]float64)
	final := make([]bool, n)
	for s := 0; s < n; s++ {
		for _, np := range raw.NullClosure(s) {
			if raw.IsFinal(np.To) {
				final[s] = true
			}
			for _, t := range raw.Outgoing(np.To) {
				if t.IsNull() {
					continue
				}
				k := arcKey{s, t.To, t.Word}
				lp := np.LogProb + t.LogProb
				if old, ok := best[k]; !ok || lp > old {
					best[k] = lp
				}
			}
		}
	}

	fwd := make([][]arcKey, n)
	rev := make([][]int, n)
	for k := range best {
		fwd[k.from] = append(fwd[k.from], k)
		rev[k.to] = append(rev[k.to], k.from)
	}
	reach := mark(n, []int{raw.Start()}, func(s int) []int {
		next := make([]int, 0, len(fwd[s]))
		for _, k := range fwd[s] {
			next = append(next, k.to)
		}
		return next
	})
	var finals []int
	for s := 0; s < n; s++ {
		if final[s] {
			finals = append(finals, s)
		}
	}
	coreach := mark(n, finals, func(s int) []int { return rev[s] })

	// Renumber kept states in original order so the start state stays 0.
	id := make([]int, n)
	kept := 0
	for s := 0; s < n; s++ {
		id[s] = -1
		if reach[s] && coreach[s] || s == raw.Start() {
			id[s] = kept
			kept++
		}
	}
	m := fsg.New(raw.Name(), kept, id[raw.Start()])
	keys := make([]arcKey, 0, len(best))
	for k := range best {
		if id[k.from] >= 0 && id[k.to] >= 0 && reach[k.from] && coreach[k.to] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.to != b.to {
			return a.to < b.to
		}
		return a.word < b.word
	})
	for _, k := range keys {
		_ = m.AddTransition(id[k.from], id[k.to], k.word, lw*best[k])
	}
	for s := 0; s < n; s++ {
		if final[s] && id[s] >= 0 {
			m.SetFinal(id[s])
		}
	}
	return m
}

func mark(n int, roots []int, next func(int) []int) []bool {
	seen := make([]bool, n)
	stack := append([]int(nil), roots...)
	for _, r := range roots {
		seen[r] = true
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range next(s) {
			if !seen[t] {
				seen[t] = true
				stack = append(stack, t)
			}
		}
	}
	return seen
}
