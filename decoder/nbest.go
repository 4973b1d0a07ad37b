package decoder

import (
	"container/heap"
	"math"
	"slices"
	"strings"

	"github.com/ieee0824/sphinx-go/search"
)

// tieEps is the score difference below which two paths count as equal.
const tieEps = 1e-9

// npath is a partial path grown backwards from the end of the utterance.
// head is the earliest entry, -1 once the utterance start is reached.
type npath struct {
	head  int
	g     float64 // score of the suffix after the start of head
	f     float64 // g plus the best completion
	next  *npath  // the entry after head
	order int
}

type pathHeap []*npath

func (h pathHeap) Len() int { return len(h) }
func (h pathHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f > h[j].f
	}
	return h[i].order < h[j].order
}
func (h pathHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)   { *h = append(*h, x.(*npath)) }
func (h *pathHeap) Pop() any {
	old := *h
	p := old[len(old)-1]
	*h = old[:len(old)-1]
	return p
}

type nbestItem struct {
	hyp   Hypothesis
	segs  []Segment
	words []string
}

// NBestIter yields distinct word sequences of the sealed utterance in
// order of decreasing score. Sequences with equal scores come out in
// lexicographic word order.
type NBestIter struct {
	cursor
	tb       *search.Traceback
	open     pathHeap
	ready    []nbestItem
	seen     map[string]bool
	cur      nbestItem
	limit    int
	yielded  int
	budget   int
	sequence int
}

// NBest returns an iterator over at most n hypotheses, unbounded when n is
// not positive. The search expands at most nbest_max partial paths.
func (d *Decoder) NBest(n int) (*NBestIter, error) {
	tb, err := d.sealed("NBest")
	if err != nil {
		return nil, err
	}
	it := &NBestIter{
		cursor: cursor{d: d, gen: d.gen},
		tb:     tb,
		seen:   make(map[string]bool),
		limit:  n,
		budget: d.cfg.Int("nbest_max"),
	}
	it.seed()
	return it, nil
}

// seed pushes the entries a complete path can end with: those reaching a
// final state on the last frame, or else those ending where the best
// partial path ends.
func (it *NBestIter) seed() {
	tb := it.tb
	if tb.Best < 0 {
		return
	}
	if tb.Final {
		for _, i := range tb.EndingAt(tb.NumFrames - 1) {
			if fl, ok := tb.FinalLink(i); ok {
				it.extend(i, fl, nil)
			}
		}
		return
	}
	for _, i := range tb.EndingAt(tb.Entries[tb.Best].End) {
		it.extend(i, 0, nil)
	}
}

// extend pushes entry i in front of next. link is the score between the
// end of i and the start of next.
func (it *NBestIter) extend(i int, link float64, next *npath) {
	g := link
	if next != nil {
		g += next.g
	}
	e := it.tb.Entries[i]
	g += e.Ascr + e.Lscr
	it.push(&npath{head: i, g: g, f: g + it.tb.Heuristic(i), next: next})
}

func (it *NBestIter) push(p *npath) {
	p.order = it.sequence
	it.sequence++
	heap.Push(&it.open, p)
}

// expand pushes the predecessors of p's head.
func (it *NBestIter) expand(p *npath) {
	for _, j := range it.tb.Predecessors(p.head) {
		link, _ := it.tb.Link(j, p.head)
		if j < 0 {
			g := p.g + link
			it.push(&npath{head: -1, g: g, f: g, next: p})
			continue
		}
		it.extend(j, link, p)
	}
}

// fill runs the search until a batch of equally scored complete paths is
// ready or the search is exhausted.
func (it *NBestIter) fill() {
	var (
		batch []nbestItem
		score = math.Inf(-1)
	)
	for it.open.Len() > 0 && it.budget > 0 {
		if len(batch) > 0 && it.open[0].f < score-tieEps {
			break
		}
		p := heap.Pop(&it.open).(*npath)
		it.budget--
		if p.head >= 0 {
			it.expand(p)
			continue
		}
		item := it.item(p)
		key := strings.Join(item.words, " ")
		if it.seen[key] {
			continue
		}
		it.seen[key] = true
		if len(batch) == 0 {
			score = p.f
		}
		batch = append(batch, item)
	}
	slices.SortStableFunc(batch, func(a, b nbestItem) int {
		return slices.Compare(a.words, b.words)
	})
	it.ready = append(it.ready, batch...)
}

func (it *NBestIter) item(done *npath) nbestItem {
	d := it.d
	var (
		out   nbestItem
		prev  = -1
		first = true
	)
	for p := done.next; p != nil; p = p.next {
		e := it.tb.Entries[p.head]
		link, _ := it.tb.Link(prev, p.head)
		out.segs = append(out.segs, d.segment(e, link))
		if !e.Filler {
			out.words = append(out.words, e.Word)
		}
		if first {
			out.hyp.Start = e.Start
			first = false
		}
		out.hyp.End = e.End
		prev = p.head
	}
	out.hyp.Text = strings.Join(out.words, " ")
	out.hyp.Score = d.lmath.LnToLog(done.g)
	return out
}

// Next advances to the next hypothesis.
func (it *NBestIter) Next() bool {
	if !it.live() || (it.limit > 0 && it.yielded >= it.limit) {
		return false
	}
	if len(it.ready) == 0 {
		it.fill()
	}
	if len(it.ready) == 0 {
		return false
	}
	it.cur, it.ready = it.ready[0], it.ready[1:]
	it.yielded++
	return true
}

// Hypothesis returns the current hypothesis.
func (it *NBestIter) Hypothesis() *Hypothesis {
	h := it.cur.hyp
	return &h
}

// Segments returns the words of the current hypothesis, fillers included.
func (it *NBestIter) Segments() []Segment { return it.cur.segs }

// Err returns ErrStaleResult if iteration stopped because a new utterance
// started.
func (it *NBestIter) Err() error { return it.err }
