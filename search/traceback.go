package search

import (
	"math"

	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/logmath"
)

// Entry is one word exit: the word ended at frame End (inclusive) leaving
// grammar state From for To. Scores are natural logs; Score is the best
// path score from the utterance start through this word.
type Entry struct {
	Word   string
	Filler bool
	From   int
	To     int
	Start  int
	End    int
	Score  float64
	Ascr   float64 // acoustic score of the word
	Lscr   float64 // weighted language score of the word arc
	Link   float64 // weighted null-transition score into From on the best path
	Prev   int     // best predecessor, -1 at the utterance start
}

// Traceback is the backpointer table of a finished utterance.
type Traceback struct {
	NumFrames int
	Entries   []Entry
	Best      int  // -1 when nothing was recognized
	Final     bool // Best ends in a final grammar state

	grammar  *fsg.Model
	lw       float64
	closures [][]fsg.NullPath
	byEnd    map[int][]int
}

// NewTraceback builds the table for entries searched over g with language
// weight lw. Entry scores must already include lw.
func NewTraceback(g *fsg.Model, lw float64, numFrames int, entries []Entry) *Traceback {
	tb := &Traceback{
		NumFrames: numFrames,
		Entries:   entries,
		Best:      -1,
		grammar:   g,
		lw:        lw,
		closures:  make([][]fsg.NullPath, g.NumStates()),
		byEnd:     make(map[int][]int),
	}
	for s := range tb.closures {
		tb.closures[s] = g.NullClosure(s)
	}
	for i, e := range entries {
		tb.byEnd[e.End] = append(tb.byEnd[e.End], i)
	}
	tb.selectBest()
	return tb
}

// Grammar returns the grammar the utterance was searched with.
func (tb *Traceback) Grammar() *fsg.Model { return tb.grammar }

// selectBest picks the best entry ending on the last frame in a final
// state, then any entry on the last frame, then the latest entry.
func (tb *Traceback) selectBest() {
	if len(tb.Entries) == 0 {
		return
	}
	bestScore := math.Inf(-1)
	for _, i := range tb.byEnd[tb.NumFrames-1] {
		if fl, ok := tb.FinalLink(i); ok && tb.Entries[i].Score+fl > bestScore {
			bestScore = tb.Entries[i].Score + fl
			tb.Best = i
		}
	}
	if tb.Best >= 0 {
		tb.Final = true
		return
	}
	lastEnd := -1
	for i, e := range tb.Entries {
		if e.End > lastEnd || (e.End == lastEnd && e.Score > tb.Entries[tb.Best].Score) {
			lastEnd = e.End
			tb.Best = i
		}
	}
}

// Score returns the total score of the best path, including the null
// transitions into a final state.
func (tb *Traceback) Score() float64 {
	if tb.Best < 0 {
		return logmath.LogZero
	}
	s := tb.Entries[tb.Best].Score
	if fl, ok := tb.FinalLink(tb.Best); ok && tb.Final {
		s += fl
	}
	return s
}

// BestPath returns the entries of the best path in time order.
func (tb *Traceback) BestPath() []Entry {
	var path []Entry
	for i := tb.Best; i >= 0; i = tb.Entries[i].Prev {
		path = append(path, tb.Entries[i])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// closureScore returns the weighted best null path score from state a to b.
func (tb *Traceback) closureScore(a, b int) (float64, bool) {
	for _, p := range tb.closures[a] {
		if p.To == b {
			return tb.lw * p.LogProb, true
		}
	}
	return 0, false
}

// Link returns the weighted null-transition score for entry i following
// entry j, or following the utterance start when j is -1.
func (tb *Traceback) Link(j, i int) (float64, bool) {
	e := tb.Entries[i]
	if j < 0 {
		if e.Start != 0 {
			return 0, false
		}
		return tb.closureScore(tb.grammar.Start(), e.From)
	}
	p := tb.Entries[j]
	if p.End != e.Start-1 {
		return 0, false
	}
	return tb.closureScore(p.To, e.From)
}

// FinalLink returns the weighted score of reaching a final state from the
// state entry i ends in.
func (tb *Traceback) FinalLink(i int) (float64, bool) {
	best, ok := math.Inf(-1), false
	for _, p := range tb.closures[tb.Entries[i].To] {
		if tb.grammar.IsFinal(p.To) && tb.lw*p.LogProb > best {
			best, ok = tb.lw*p.LogProb, true
		}
	}
	return best, ok
}

// Predecessors returns the entries that can precede entry i, with -1
// standing for the utterance start.
func (tb *Traceback) Predecessors(i int) []int {
	var preds []int
	if _, ok := tb.Link(-1, i); ok {
		preds = append(preds, -1)
	}
	for _, j := range tb.byEnd[tb.Entries[i].Start-1] {
		if _, ok := tb.Link(j, i); ok {
			preds = append(preds, j)
		}
	}
	return preds
}

// EndingAt returns the entries whose word ends on frame t.
func (tb *Traceback) EndingAt(t int) []int { return tb.byEnd[t] }

// Heuristic returns the best score of any path reaching the start of entry
// i, which is exact for the Viterbi search that produced the table.
func (tb *Traceback) Heuristic(i int) float64 {
	e := tb.Entries[i]
	return e.Score - e.Ascr - e.Lscr
}
