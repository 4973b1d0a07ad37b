// Package search defines the decoding engine the decoder drives and
// provides the default engine: a frame-synchronous Viterbi beam search over
// a finite-state grammar expanded into phone HMMs.
package search

import (
	"errors"
	"fmt"
	"math"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/lexicon"
)

// Engine consumes feature frames for one utterance at a time and produces
// a word-exit backpointer table.
type Engine interface {
	// SetGrammar installs the grammar used from the next Start on.
	SetGrammar(g *fsg.Model) error
	// Start begins an utterance.
	Start() error
	// Feed searches frames in order. On error no frame has been consumed.
	Feed(frames [][]float64) error
	// NumFrames returns the frames searched in the current utterance.
	NumFrames() int
	// Finalize ends the utterance. fullUtt reports that all audio was
	// delivered in one piece.
	Finalize(fullUtt bool) (*Traceback, error)
}

// Factory creates an engine over shared read-only models.
type Factory func(am *acoustic.Model, dict *lexicon.Dictionary, p Params) (Engine, error)

// Params holds beam search parameters. Beams are probabilities relative
// to the best score of the frame, as in sphinx configuration files.
type Params struct {
	Beam      float64 // HMM state beam
	WordBeam  float64 // word exit beam
	MaxActive int     // maximum number of active states per frame
	LW        float64 // language weight
	WIP       float64 // word insertion penalty, as a probability
	SilProb   float64 // filler insertion probability
}

// DefaultParams returns the sphinx defaults.
func DefaultParams() Params {
	return Params{
		Beam:      1e-48,
		WordBeam:  7e-29,
		MaxActive: 30000,
		LW:        6.5,
		WIP:       0.65,
		SilProb:   0.005,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Beam <= 0 || p.Beam > 1:
		return fmt.Errorf("beam %g out of (0, 1]", p.Beam)
	case p.WordBeam <= 0 || p.WordBeam > 1:
		return fmt.Errorf("word beam %g out of (0, 1]", p.WordBeam)
	case p.MaxActive <= 0:
		return fmt.Errorf("max active %d", p.MaxActive)
	case p.LW <= 0:
		return fmt.Errorf("language weight %g", p.LW)
	case p.WIP <= 0 || p.WIP > 1:
		return fmt.Errorf("word insertion penalty %g out of (0, 1]", p.WIP)
	case p.SilProb <= 0 || p.SilProb > 1:
		return fmt.Errorf("silence probability %g out of (0, 1]", p.SilProb)
	}
	return nil
}

// beamWidth converts a probability beam to a natural-log width.
func beamWidth(p float64) float64 { return -math.Log(p) }

// Errors reported by engines.
var (
	ErrNoGrammar    = errors.New("search: no grammar set")
	ErrNotStarted   = errors.New("search: utterance not started")
	ErrFrameDim     = errors.New("search: frame dimension mismatch")
	ErrUnknownPhone = errors.New("search: phone not in acoustic model")
)

// MissingWordError reports a grammar word without a pronunciation.
type MissingWordError struct {
	Word string
}

func (e *MissingWordError) Error() string {
	return fmt.Sprintf("search: word %q not in dictionary", e.Word)
}
