package search

import "sort"

// token represents an active hypothesis: a position inside a word instance
// together with the path that led there.
type token struct {
	score float64
	inst  int // word instance
	phone int // phone position in the word
	state int // emitting state, 1..NumEmittingStates
	start int // frame the word started
	prev  int // entry the word follows, -1 at the utterance start
	base  float64
	link  float64
}

// tokenPool manages pre-allocated token slices to reduce allocations.
type tokenPool struct {
	buf []token
	pos int
}

func newTokenPool(cap int) *tokenPool {
	return &tokenPool{buf: make([]token, cap), pos: 0}
}

func (p *tokenPool) get() *token {
	if p.pos >= len(p.buf) {
		// Grow
		p.buf = append(p.buf, make([]token, len(p.buf))...)
	}
	t := &p.buf[p.pos]
	p.pos++
	return t
}

func (p *tokenPool) reset() {
	p.pos = 0
}

// pruneTokens keeps the tokens within beamWidth of the best, and at most
// maxActive of them.
func pruneTokens(src []*token, dst []*token, beamWidth float64, maxActive int) []*token {
	if len(src) == 0 {
		return dst
	}

	bestScore := src[0].score
	for _, tok := range src[1:] {
		if tok.score > bestScore {
			bestScore = tok.score
		}
	}

	threshold := bestScore - beamWidth
	for _, tok := range src {
		if tok.score >= threshold {
			dst = append(dst, tok)
		}
	}

	if len(dst) > maxActive {
		sort.SliceStable(dst, func(i, j int) bool {
			return dst[i].score > dst[j].score
		})
		dst = dst[:maxActive]
	}

	return dst
}
