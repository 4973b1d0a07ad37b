// Package fsg implements finite-state grammars over words: an arena of
// integer states joined by word-labelled or null transitions, with a single
// start state and a set of final states.
package fsg

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEpsilonCycle is returned when null transitions form a cycle.
	ErrEpsilonCycle = errors.New("fsg: cycle of null transitions")
	// ErrUnreachableFinal is returned when a final state cannot be reached from the start state.
	ErrUnreachableFinal = errors.New("fsg: final state unreachable from start")
	// ErrNoFinal is returned when the grammar has no final state.
	ErrNoFinal = errors.New("fsg: no final state")
)

// Transition is an arc between two states. An empty Word marks a null
// (epsilon) transition.
type Transition struct {
	From    int
	To      int
	Word    string
	LogProb float64 // natural log
}

// IsNull reports whether the transition consumes no word.
func (t Transition) IsNull() bool { return t.Word == "" }

// Model is a finite-state grammar. Build it with New and the Add methods;
// once handed to a decoder it must not be modified.
type Model struct {
	name   string
	nstate int
	start  int
	finals map[int]bool
	out    [][]Transition
	ntrans int
}

// New creates a grammar with numStates states and the given start state.
func New(name string, numStates, start int) *Model {
	if numStates < 1 {
		numStates = 1
	}
	return &Model{
		name:   name,
		nstate: numStates,
		start:  start,
		finals: make(map[int]bool),
		out:    make([][]Transition, numStates),
	}
}

// Name returns the grammar name.
func (m *Model) Name() string { return m.name }

// SetName renames the grammar.
func (m *Model) SetName(name string) { m.name = name }

// NumStates returns the number of states.
func (m *Model) NumStates() int { return m.nstate }

// Start returns the start state.
func (m *Model) Start() int { return m.start }

// NumTransitions returns the number of transitions, null ones included.
func (m *Model) NumTransitions() int { return m.ntrans }

// AddState appends a new state and returns its index.
func (m *Model) AddState() int {
	m.out = append(m.out, nil)
	m.nstate++
	return m.nstate - 1
}

// SetFinal marks s as a final state.
func (m *Model) SetFinal(s int) {
	m.finals[s] = true
}

// IsFinal reports whether s is a final state.
func (m *Model) IsFinal(s int) bool { return m.finals[s] }

// Finals returns the final states in ascending order.
func (m *Model) Finals() []int {
	fs := make([]int, 0, len(m.finals))
	for s := range m.finals {
		fs = append(fs, s)
	}
	sort.Ints(fs)
	return fs
}

// AddTransition adds a word transition. An empty word adds a null transition.
func (m *Model) AddTransition(from, to int, word string, logProb float64) error {
	if from < 0 || from >= m.nstate || to < 0 || to >= m.nstate {
		return fmt.Errorf("fsg: transition %d->%d outside [0,%d)", from, to, m.nstate)
	}
	m.out[from] = append(m.out[from], Transition{From: from, To: to, Word: word, LogProb: logProb})
	m.ntrans++
	return nil
}

// AddNull adds a null transition.
func (m *Model) AddNull(from, to int, logProb float64) error {
	return m.AddTransition(from, to, "", logProb)
}

// Outgoing returns the transitions leaving s. The slice must not be modified.
func (m *Model) Outgoing(s int) []Transition {
	if s < 0 || s >= m.nstate {
		return nil
	}
	return m.out[s]
}

// Transitions returns all transitions ordered by source state.
func (m *Model) Transitions() []Transition {
	ts := make([]Transition, 0, m.ntrans)
	for _, out := range m.out {
		ts = append(ts, out...)
	}
	return ts
}

// Vocabulary returns the distinct words on transitions, sorted.
func (m *Model) Vocabulary() []string {
	seen := make(map[string]bool)
	for _, out := range m.out {
		for _, t := range out {
			if !t.IsNull() {
				seen[t.Word] = true
			}
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// NullPath is a state reachable through null transitions, with the best
// accumulated log probability.
type NullPath struct {
	To      int
	LogProb float64
}

// NullClosure returns every state reachable from s through null transitions,
// s itself included with log probability 0.
func (m *Model) NullClosure(s int) []NullPath {
	best := map[int]float64{s: 0}
	queue := []int{s}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range m.out[cur] {
			if !t.IsNull() {
				continue
			}
			score := best[cur] + t.LogProb
			if old, ok := best[t.To]; !ok || score > old {
				best[t.To] = score
				queue = append(queue, t.To)
			}
		}
	}
	paths := make([]NullPath, 0, len(best))
	for to, lp := range best {
		paths = append(paths, NullPath{To: to, LogProb: lp})
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].To < paths[j].To })
	return paths
}

func (m *Model) closeSet(set map[int]bool) map[int]bool {
	queue := make([]int, 0, len(set))
	for s := range set {
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for _, t := range m.out[cur] {
			if t.IsNull() && !set[t.To] {
				set[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}
	return set
}

// Matches reports whether the word sequence is accepted, i.e. leads from the
// start state to a final state.
func (m *Model) Matches(words []string) bool {
	if m.start < 0 || m.start >= m.nstate {
		return false
	}
	cur := m.closeSet(map[int]bool{m.start: true})
	for _, w := range words {
		next := make(map[int]bool)
		for s := range cur {
			for _, t := range m.out[s] {
				if t.Word == w {
					next[t.To] = true
				}
			}
		}
		if len(next) == 0 {
			return false
		}
		cur = m.closeSet(next)
	}
	for s := range cur {
		if m.finals[s] {
			return true
		}
	}
	return false
}

// Validate checks that the grammar has a final state, that every final state
// is reachable from the start state and that no null cycle exists.
func (m *Model) Validate() error {
	if m.start < 0 || m.start >= m.nstate {
		return fmt.Errorf("fsg: start state %d outside [0,%d)", m.start, m.nstate)
	}
	if len(m.finals) == 0 {
		return ErrNoFinal
	}
	reach := make([]bool, m.nstate)
	reach[m.start] = true
	stack := []int{m.start}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range m.out[s] {
			if !reach[t.To] {
				reach[t.To] = true
				stack = append(stack, t.To)
			}
		}
	}
	for _, f := range m.Finals() {
		if f < 0 || f >= m.nstate || !reach[f] {
			return fmt.Errorf("%w: state %d", ErrUnreachableFinal, f)
		}
	}
	if s, ok := m.findNullCycle(); ok {
		return fmt.Errorf("%w: through state %d", ErrEpsilonCycle, s)
	}
	return nil
}

func (m *Model) findNullCycle() (int, bool) {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, m.nstate)
	var visit func(s int) (int, bool)
	visit = func(s int) (int, bool) {
		color[s] = grey
		for _, t := range m.out[s] {
			if !t.IsNull() {
				continue
			}
			switch color[t.To] {
			case grey:
				return t.To, true
			case white:
				if c, ok := visit(t.To); ok {
					return c, true
				}
			}
		}
		color[s] = black
		return 0, false
	}
	for s := 0; s < m.nstate; s++ {
		if color[s] == white {
			if c, ok := visit(s); ok {
				return c, true
			}
		}
	}
	return 0, false
}

// NewLinear builds a grammar accepting exactly the given word sequence.
func NewLinear(name string, words []string) *Model {
	m := New(name, len(words)+1, 0)
	for i, w := range words {
		_ = m.AddTransition(i, i+1, w, 0)
	}
	m.SetFinal(len(words))
	return m
}
