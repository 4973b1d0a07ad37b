package decoder

import (
	"sort"

	"github.com/ieee0824/sphinx-go/search"
)

// cursor ties an iterator to the utterance it was created for.
type cursor struct {
	d   *Decoder
	gen uint64
	err error
}

func (c *cursor) live() bool {
	if c.err != nil {
		return false
	}
	if c.d.gen != c.gen {
		c.err = ErrStaleResult
		return false
	}
	return true
}

// SegIter walks the segments of the best path, fillers included.
type SegIter struct {
	cursor
	segs []Segment
	pos  int
}

// SegIter returns an iterator over the best path of the sealed utterance.
func (d *Decoder) SegIter() (*SegIter, error) {
	tb, err := d.sealed("SegIter")
	if err != nil {
		return nil, err
	}
	return &SegIter{cursor: cursor{d: d, gen: d.gen}, segs: d.segments(tb), pos: -1}, nil
}

// Next advances to the next segment.
func (it *SegIter) Next() bool {
	if !it.live() || it.pos+1 >= len(it.segs) {
		return false
	}
	it.pos++
	return true
}

// Segment returns the current segment.
func (it *SegIter) Segment() Segment { return it.segs[it.pos] }

// Err returns ErrStaleResult if iteration stopped because a new utterance
// started.
func (it *SegIter) Err() error { return it.err }

// SearchIter walks the lattice nodes active at one frame, best first.
type SearchIter struct {
	cursor
	nodes []Node
	pos   int
}

// SearchIter returns the lattice nodes whose span covers frame.
func (d *Decoder) SearchIter(frame int) (*SearchIter, error) {
	tb, err := d.sealed("SearchIter")
	if err != nil {
		return nil, err
	}
	it := &SearchIter{cursor: cursor{d: d, gen: d.gen}, pos: -1}
	for i, e := range tb.Entries {
		if e.Start <= frame && frame <= e.End {
			it.nodes = append(it.nodes, d.node(tb, i))
		}
	}
	sortNodes(it.nodes, tb)
	return it, nil
}

func sortNodes(nodes []Node, tb *search.Traceback) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := tb.Entries[nodes[i].ID].Score, tb.Entries[nodes[j].ID].Score
		if a != b {
			return a > b
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// Next advances to the next node.
func (it *SearchIter) Next() bool {
	if !it.live() || it.pos+1 >= len(it.nodes) {
		return false
	}
	it.pos++
	return true
}

// Node returns the current node.
func (it *SearchIter) Node() Node { return it.nodes[it.pos] }

// Err returns ErrStaleResult if iteration stopped because a new utterance
// started.
func (it *SearchIter) Err() error { return it.err }
