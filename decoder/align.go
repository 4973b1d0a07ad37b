package decoder

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/search"
)

// Unit is one level of an alignment: a word, a phone or an HMM state.
// Start and Duration are in frames and Score is in the decoder's log base.
type Unit struct {
	Name     string
	Start    int
	Duration int
	Score    int32
	Children []Unit
}

// End returns the last frame of the unit.
func (u Unit) End() int { return u.Start + u.Duration - 1 }

// Alignment is a word, phone and state segmentation of an utterance.
type Alignment struct {
	words []Unit
}

// Words returns the word units, fillers included.
func (a *Alignment) Words() []Unit { return a.words }

// Phones returns the phone units of every word in order.
func (a *Alignment) Phones() []Unit {
	var out []Unit
	for _, w := range a.words {
		out = append(out, w.Children...)
	}
	return out
}

// States returns the state units of every phone in order.
func (a *Alignment) States() []Unit {
	var out []Unit
	for _, p := range a.Phones() {
		out = append(out, p.Children...)
	}
	return out
}

// Align force-aligns words to the audio of the sealed utterance. With no
// words, the recognized hypothesis is aligned. Silence may be inserted
// between words.
func (d *Decoder) Align(words []string) (*Alignment, error) {
	switch {
	case d.state == InUtterance:
		return nil, d.stateErr("Align", ErrNoResult)
	case d.utt == nil || len(d.utt.frames) == 0:
		return nil, ErrNoAcousticData
	}
	if len(words) == 0 {
		if d.utt.tb != nil {
			if h := d.hypothesis(); h != nil {
				words = h.Words()
			}
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("%w: no words to align", ErrAlignment)
		}
	}
	for _, w := range words {
		if len(d.dict.Lookup(w)) == 0 {
			return nil, &WordNotInDictionaryError{Word: w}
		}
	}

	eng, err := d.factory(d.models.AM, d.dict, d.params)
	if err != nil {
		return nil, &EngineError{Op: "create", Err: err}
	}
	tb, err := runEngine(eng, fsg.NewLinear("_align", words), d.utt.frames)
	if err != nil {
		var missing *search.MissingWordError
		if errors.As(err, &missing) {
			return nil, &WordNotInDictionaryError{Word: missing.Word}
		}
		return nil, &EngineError{Op: "align", Err: err}
	}
	if tb.Best < 0 || !tb.Final {
		return nil, fmt.Errorf("%w: words do not fit the audio", ErrAlignment)
	}

	a := &Alignment{}
	for _, e := range tb.BestPath() {
		u, err := d.alignWord(e.Word, e.Start, d.utt.frames[e.Start:e.End+1])
		if err != nil {
			return nil, err
		}
		a.words = append(a.words, u)
	}
	return a, nil
}

func runEngine(eng search.Engine, g *fsg.Model, frames [][]float64) (*search.Traceback, error) {
	if err := eng.SetGrammar(g); err != nil {
		return nil, err
	}
	if err := eng.Start(); err != nil {
		return nil, err
	}
	if err := eng.Feed(frames); err != nil {
		return nil, err
	}
	return eng.Finalize(true)
}

// alignWord aligns the pronunciation of word that best fits frames, which
// start at frame start of the utterance.
func (d *Decoder) alignWord(word string, start int, frames [][]float64) (Unit, error) {
	var (
		best      []acoustic.PhoneSegment
		bestScore = math.Inf(-1)
		lastErr   error
	)
	for _, pron := range d.dict.Lookup(word) {
		segs, err := acoustic.ForcedAlign(d.models.AM, pron.Phones, frames)
		if err != nil {
			lastErr = err
			continue
		}
		score := 0.0
		for _, s := range segs {
			score += s.Score
		}
		if score > bestScore {
			best, bestScore = segs, score
		}
	}
	if best == nil {
		return Unit{}, fmt.Errorf("%w: %s: %v", ErrAlignment, word, lastErr)
	}

	w := Unit{Name: word, Start: start, Duration: len(frames), Score: d.lmath.LnToLog(bestScore)}
	for _, ps := range best {
		p := Unit{
			Name:     string(ps.Phone),
			Start:    start + ps.Start,
			Duration: ps.End - ps.Start,
			Score:    d.lmath.LnToLog(ps.Score),
		}
		for _, ss := range ps.States {
			p.Children = append(p.Children, Unit{
				Name:     strconv.Itoa(ss.State),
				Start:    start + ss.Start,
				Duration: ss.End - ss.Start,
				Score:    d.lmath.LnToLog(ss.Score),
			})
		}
		w.Children = append(w.Children, p)
	}
	return w, nil
}
