package decoder

import (
	"strings"

	"github.com/ieee0824/sphinx-go/search"
)

// Hypothesis is a recognized word sequence. Score is in the decoder's log
// base and Start and End are the inclusive frame span of the path.
type Hypothesis struct {
	Text  string
	Score int32
	Start int
	End   int
}

// Words splits the text into words.
func (h *Hypothesis) Words() []string { return strings.Fields(h.Text) }

// Segment is one word of a path. Frames are inclusive.
type Segment struct {
	Word          string
	Start         int
	End           int
	AcousticScore int32
	LanguageScore int32
	Filler        bool
}

// Duration returns the segment length in frames.
func (s Segment) Duration() int { return s.End - s.Start + 1 }

// sealed returns the traceback of the sealed utterance.
func (d *Decoder) sealed(op string) (*search.Traceback, error) {
	if d.state != Sealed || d.utt == nil || d.utt.tb == nil {
		return nil, d.stateErr(op, ErrNoResult)
	}
	return d.utt.tb, nil
}

// GetHyp returns the best hypothesis of the sealed utterance, or nil when
// no word was recognized.
func (d *Decoder) GetHyp() (*Hypothesis, error) {
	if _, err := d.sealed("GetHyp"); err != nil {
		return nil, err
	}
	return d.hypothesis(), nil
}

func (d *Decoder) hypothesis() *Hypothesis {
	tb := d.utt.tb
	path := tb.BestPath()
	var words []string
	for _, e := range path {
		if !e.Filler {
			words = append(words, e.Word)
		}
	}
	if len(words) == 0 {
		return nil
	}
	return &Hypothesis{
		Text:  strings.Join(words, " "),
		Score: d.lmath.LnToLog(tb.Score()),
		Start: path[0].Start,
		End:   path[len(path)-1].End,
	}
}

func (d *Decoder) segment(e search.Entry, link float64) Segment {
	return Segment{
		Word:          e.Word,
		Start:         e.Start,
		End:           e.End,
		AcousticScore: d.lmath.LnToLog(e.Ascr),
		LanguageScore: d.lmath.LnToLog(e.Lscr + link),
		Filler:        e.Filler,
	}
}

func (d *Decoder) segments(tb *search.Traceback) []Segment {
	path := tb.BestPath()
	segs := make([]Segment, len(path))
	for i, e := range path {
		segs[i] = d.segment(e, e.Link)
	}
	return segs
}

// Node is a word exit in the search lattice. Score is the best path score
// from the utterance start through the word.
type Node struct {
	ID     int
	Word   string
	From   int
	To     int
	Start  int
	End    int
	Score  int32
	Filler bool
}

func (d *Decoder) node(tb *search.Traceback, i int) Node {
	e := tb.Entries[i]
	return Node{
		ID:     i,
		Word:   e.Word,
		From:   e.From,
		To:     e.To,
		Start:  e.Start,
		End:    e.End,
		Score:  d.lmath.LnToLog(e.Score),
		Filler: e.Filler,
	}
}

// Lattice is a read-only view of the word exits of a sealed utterance. It
// fails with ErrStaleResult once another utterance starts.
type Lattice struct {
	d   *Decoder
	gen uint64
	tb  *search.Traceback
}

// Lattice returns the word lattice of the sealed utterance.
func (d *Decoder) Lattice() (*Lattice, error) {
	tb, err := d.sealed("Lattice")
	if err != nil {
		return nil, err
	}
	return &Lattice{d: d, gen: d.gen, tb: tb}, nil
}

func (l *Lattice) check() error {
	if l.d.gen != l.gen {
		return ErrStaleResult
	}
	return nil
}

// Nodes returns every word exit.
func (l *Lattice) Nodes() ([]Node, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	nodes := make([]Node, len(l.tb.Entries))
	for i := range nodes {
		nodes[i] = l.d.node(l.tb, i)
	}
	return nodes, nil
}

// NumFrames returns the number of frames searched.
func (l *Lattice) NumFrames() (int, error) {
	if err := l.check(); err != nil {
		return 0, err
	}
	return l.tb.NumFrames, nil
}

// Best returns the last node of the best path. ok is false when nothing
// was recognized.
func (l *Lattice) Best() (n Node, ok bool, err error) {
	if err := l.check(); err != nil {
		return Node{}, false, err
	}
	if l.tb.Best < 0 {
		return Node{}, false, nil
	}
	return l.d.node(l.tb, l.tb.Best), true, nil
}

// Predecessors returns the IDs of the nodes that can precede node id. The
// utterance start is -1.
func (l *Lattice) Predecessors(id int) ([]int, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	return l.tb.Predecessors(id), nil
}
