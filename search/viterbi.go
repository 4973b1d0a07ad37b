package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/lexicon"
	"github.com/ieee0824/sphinx-go/logmath"
)

const numEmit = acoustic.NumEmittingStates

// wordInst is one pronunciation of one grammar arc, or a filler self-loop
// on a grammar state.
type wordInst struct {
	word   string
	filler bool
	from   int
	to     int
	lscr   float64
	hmms   []*acoustic.PhoneHMM
	ords   []int // index into the engine's unique HMM list
	slot   int   // first token slot; phone p, state s uses slot + p*numEmit + s-1
}

// fsgEngine is a token-passing Viterbi beam search over a grammar whose
// arcs are expanded into phone HMM chains. Filler words may be inserted at
// every grammar state.
type fsgEngine struct {
	am    *acoustic.Model
	dict  *lexicon.Dictionary
	p     Params
	beam  float64
	wbeam float64

	grammar  *fsg.Model
	insts    []wordInst
	byState  [][]int
	closures [][]fsg.NullPath
	hmms     []*acoustic.PhoneHMM
	nslots   int

	started bool
	frame   int
	emit    []float64
	cur     *tokenPool
	next    *tokenPool
	active  []*token
	staged  []*token
	slots   []*token
	entries []Entry
	pending map[int]int // grammar state -> best entry ending on the previous frame
}

// NewFSGEngine is the default Factory.
func NewFSGEngine(am *acoustic.Model, dict *lexicon.Dictionary, p Params) (Engine, error) {
	if am == nil || dict == nil {
		return nil, fmt.Errorf("search: acoustic model and dictionary are required")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &fsgEngine{
		am:    am,
		dict:  dict,
		p:     p,
		beam:  beamWidth(p.Beam),
		wbeam: beamWidth(p.WordBeam),
		cur:   newTokenPool(256),
		next:  newTokenPool(256),
	}, nil
}

var _ Factory = NewFSGEngine

// SetGrammar expands g into word instances. Every word must have a
// pronunciation whose phones the acoustic model knows.
func (e *fsgEngine) SetGrammar(g *fsg.Model) error {
	if g == nil {
		return ErrNoGrammar
	}
	b := &grammarBuilder{e: e, ords: make(map[*acoustic.PhoneHMM]int)}
	byState := make([][]int, g.NumStates())
	fillers := e.fillerWords()
	wordLscr := math.Log(e.p.WIP)
	fillerLscr := e.p.LW * math.Log(e.p.SilProb)

	for s := 0; s < g.NumStates(); s++ {
		for _, t := range g.Outgoing(s) {
			if t.IsNull() {
				continue
			}
			prons := e.dict.Lookup(t.Word)
			if len(prons) == 0 {
				return &MissingWordError{Word: t.Word}
			}
			for _, pr := range prons {
				idx, err := b.add(t.Word, e.dict.IsFiller(t.Word), s, t.To, e.p.LW*t.LogProb+wordLscr, pr.Phones)
				if err != nil {
					return err
				}
				byState[s] = append(byState[s], idx)
			}
		}
		for _, f := range fillers {
			for _, pr := range e.dict.Lookup(f) {
				idx, err := b.add(f, true, s, s, fillerLscr, pr.Phones)
				if err != nil {
					return err
				}
				byState[s] = append(byState[s], idx)
			}
		}
	}

	closures := make([][]fsg.NullPath, g.NumStates())
	for s := range closures {
		closures[s] = g.NullClosure(s)
	}
	e.grammar = g
	e.insts = b.insts
	e.hmms = b.hmms
	e.nslots = b.nslots
	e.byState = byState
	e.closures = closures
	e.emit = make([]float64, len(e.hmms)*numEmit)
	e.slots = make([]*token, e.nslots)
	return nil
}

// fillerWords returns the dictionary fillers the search may insert;
// sentence markers are excluded.
func (e *fsgEngine) fillerWords() []string {
	var out []string
	for _, w := range e.dict.Fillers() {
		if w != lexicon.SentenceStartWord && w != lexicon.SentenceEndWord {
			out = append(out, w)
		}
	}
	return out
}

type grammarBuilder struct {
	e      *fsgEngine
	insts  []wordInst
	hmms   []*acoustic.PhoneHMM
	ords   map[*acoustic.PhoneHMM]int
	nslots int
}

func (b *grammarBuilder) add(word string, filler bool, from, to int, lscr float64, phones []acoustic.Phone) (int, error) {
	if len(phones) == 0 {
		return 0, &MissingWordError{Word: word}
	}
	inst := wordInst{word: word, filler: filler, from: from, to: to, lscr: lscr, slot: b.nslots}
	for _, ph := range phones {
		hmm, ok := b.e.am.HMM(ph)
		if !ok {
			return 0, fmt.Errorf("%w: %s in %q", ErrUnknownPhone, ph, word)
		}
		ord, seen := b.ords[hmm]
		if !seen {
			ord = len(b.hmms)
			b.ords[hmm] = ord
			b.hmms = append(b.hmms, hmm)
		}
		inst.hmms = append(inst.hmms, hmm)
		inst.ords = append(inst.ords, ord)
	}
	b.nslots += len(phones) * numEmit
	b.insts = append(b.insts, inst)
	return len(b.insts) - 1, nil
}

func (e *fsgEngine) Start() error {
	if e.grammar == nil {
		return ErrNoGrammar
	}
	e.started = true
	e.frame = 0
	e.cur.reset()
	e.next.reset()
	e.active = e.active[:0]
	e.entries = nil
	e.pending = nil
	return nil
}

func (e *fsgEngine) NumFrames() int { return e.frame }

func (e *fsgEngine) Feed(frames [][]float64) error {
	if !e.started {
		return ErrNotStarted
	}
	for i, f := range frames {
		if len(f) != e.am.FeatureDim {
			return fmt.Errorf("%w: frame %d has %d values, model expects %d", ErrFrameDim, e.frame+i, len(f), e.am.FeatureDim)
		}
	}
	for _, f := range frames {
		e.step(f)
	}
	return nil
}

func (e *fsgEngine) Finalize(fullUtt bool) (*Traceback, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	e.started = false
	tb := NewTraceback(e.grammar, e.p.LW, e.frame, e.entries)
	e.entries = nil
	e.active = e.active[:0]
	return tb, nil
}

func (e *fsgEngine) computeEmissions(obs []float64) {
	for i, hmm := range e.hmms {
		for s := 1; s <= numEmit; s++ {
			e.emit[i*numEmit+s-1] = hmm.States[s].GMM.LogProb(obs)
		}
	}
}

// push moves a hypothesis into (inst, phone, state) on the current frame,
// keeping only the best per position.
func (e *fsgEngine) push(inst, phone, state int, score float64, from *token) {
	wi := &e.insts[inst]
	score += e.emit[wi.ords[phone]*numEmit+state-1]
	key := wi.slot + phone*numEmit + state - 1
	nt := e.slots[key]
	if nt != nil {
		if nt.score >= score {
			return
		}
	} else {
		nt = e.next.get()
		e.slots[key] = nt
		e.staged = append(e.staged, nt)
	}
	*nt = *from
	nt.score = score
	nt.inst = inst
	nt.phone = phone
	nt.state = state
}

// enter starts every word reachable from grammar state s through null
// transitions, following entry prev whose path score is base.
func (e *fsgEngine) enter(s, prev int, base float64) {
	for _, np := range e.closures[s] {
		link := e.p.LW * np.LogProb
		for _, ii := range e.byState[np.To] {
			wi := &e.insts[ii]
			from := token{start: e.frame, prev: prev, base: base, link: link}
			e.push(ii, 0, 1, base+link+wi.lscr+wi.hmms[0].TransLog[0][1], &from)
		}
	}
}

// step advances the search by one frame.
func (e *fsgEngine) step(obs []float64) {
	e.computeEmissions(obs)
	e.next.reset()
	e.staged = e.staged[:0]

	for _, tok := range e.active {
		wi := &e.insts[tok.inst]
		hmm := wi.hmms[tok.phone]

		// Self-loop: stay in same state
		if tr := hmm.TransLog[tok.state][tok.state]; tr > logmath.LogZero+1 {
			e.push(tok.inst, tok.phone, tok.state, tok.score+tr, tok)
		}
		if tok.state < numEmit {
			// Forward transition within phone HMM
			if tr := hmm.TransLog[tok.state][tok.state+1]; tr > logmath.LogZero+1 {
				e.push(tok.inst, tok.phone, tok.state+1, tok.score+tr, tok)
			}
		} else if tok.phone+1 < len(wi.hmms) {
			// Next phone in current word
			e.push(tok.inst, tok.phone+1, 1, tok.score+hmm.ExitLog(), tok)
		}
	}

	if e.frame == 0 {
		e.enter(e.grammar.Start(), -1, 0)
	} else {
		states := make([]int, 0, len(e.pending))
		for s := range e.pending {
			states = append(states, s)
		}
		sort.Ints(states)
		for _, s := range states {
			idx := e.pending[s]
			e.enter(s, idx, e.entries[idx].Score)
		}
	}

	for _, tok := range e.staged {
		e.slots[e.insts[tok.inst].slot+tok.phone*numEmit+tok.state-1] = nil
	}
	e.active = pruneTokens(e.staged, e.active[:0], e.beam, e.p.MaxActive)
	e.cur, e.next = e.next, e.cur

	e.recordExits()
	e.frame++
}

// recordExits turns tokens leaving the last state of a word on the current
// frame into backpointer entries, one per word instance.
func (e *fsgEngine) recordExits() {
	exits := make(map[int]*token)
	bestExit := math.Inf(-1)
	for _, tok := range e.active {
		wi := &e.insts[tok.inst]
		if tok.phone != len(wi.hmms)-1 || tok.state != numEmit {
			continue
		}
		s := tok.score + wi.hmms[tok.phone].ExitLog()
		if old, ok := exits[tok.inst]; ok && old.score+wi.hmms[old.phone].ExitLog() >= s {
			continue
		}
		exits[tok.inst] = tok
		bestExit = math.Max(bestExit, s)
	}

	insts := make([]int, 0, len(exits))
	for ii := range exits {
		insts = append(insts, ii)
	}
	sort.Ints(insts)

	pending := make(map[int]int)
	for _, ii := range insts {
		tok := exits[ii]
		wi := &e.insts[ii]
		s := tok.score + wi.hmms[tok.phone].ExitLog()
		if s < bestExit-e.wbeam {
			continue
		}
		idx := len(e.entries)
		e.entries = append(e.entries, Entry{
			Word:   wi.word,
			Filler: wi.filler,
			From:   wi.from,
			To:     wi.to,
			Start:  tok.start,
			End:    e.frame,
			Score:  s,
			Ascr:   s - tok.base - tok.link - wi.lscr,
			Lscr:   wi.lscr,
			Link:   tok.link,
			Prev:   tok.prev,
		})
		if old, ok := pending[wi.to]; !ok || e.entries[old].Score < s {
			pending[wi.to] = idx
		}
	}
	e.pending = pending
}
