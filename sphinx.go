// Package sphinx is the one-call entry point: it decodes whole WAV files or
// sample slices against a grammar with a fresh decoder per call.
package sphinx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ieee0824/sphinx-go/audio"
	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/decoder"
)

// Result is the outcome of decoding one recording.
type Result struct {
	UttID      string
	Hypothesis *decoder.Hypothesis // nil when nothing was recognized
	Segments   []decoder.Segment
	NBest      []decoder.Hypothesis
	Alignment  *decoder.Alignment
	Perf       decoder.Perf
}

// Text returns the recognized text, "" when nothing was recognized.
func (r *Result) Text() string {
	if r.Hypothesis == nil {
		return ""
	}
	return r.Hypothesis.Text
}

// Recognizer decodes recordings with shared models. It is safe for
// concurrent use: every call runs its own decoder.
type Recognizer struct {
	Config *config.Config
	Models *decoder.Models

	log   *zap.Logger
	nbest int
	align bool
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger handed to every decoder.
func WithLogger(log *zap.Logger) Option {
	return func(r *Recognizer) {
		r.log = log
	}
}

// WithNBest requests up to n alternative hypotheses per recording.
func WithNBest(n int) Option {
	return func(r *Recognizer) {
		r.nbest = n
	}
}

// WithAlignment requests a forced alignment of the hypothesis.
func WithAlignment(enabled bool) Option {
	return func(r *Recognizer) {
		r.align = enabled
	}
}

// NewRecognizer loads the acoustic model, dictionary and grammar named by
// the paths. Grammar files ending in .gram or .jsgf are read as JSGF,
// .kws files as keyphrase lists to spot, any other as FSG text.
func NewRecognizer(hmmPath, dictPath, grammarPath string, opts ...Option) (*Recognizer, error) {
	cfg := config.Default()
	if err := cfg.Set("hmm", hmmPath); err != nil {
		return nil, err
	}
	if err := cfg.Set("dict", dictPath); err != nil {
		return nil, err
	}
	if err := cfg.Set(grammarOption(grammarPath), grammarPath); err != nil {
		return nil, err
	}
	return NewRecognizerFromConfig(cfg, opts...)
}

func grammarOption(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gram", ".jsgf":
		return "jsgf"
	case ".kws":
		return "kws"
	}
	return "fsg"
}

// NewRecognizerFromConfig loads the models named by cfg once.
func NewRecognizerFromConfig(cfg *config.Config, opts ...Option) (*Recognizer, error) {
	models, err := decoder.LoadModels(cfg)
	if err != nil {
		return nil, err
	}
	return NewRecognizerFromModels(cfg, models, opts...)
}

// NewRecognizerFromModels creates a Recognizer over preloaded models. The
// config is checked by building a decoder once.
func NewRecognizerFromModels(cfg *config.Config, models *decoder.Models, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{Config: cfg, Models: models, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := r.newDecoder(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recognizer) newDecoder() (*decoder.Decoder, error) {
	return decoder.New(r.Config, decoder.WithModels(r.Models), decoder.WithLogger(r.log))
}

// RecognizeFile decodes a mono 16-bit WAV file.
func (r *Recognizer) RecognizeFile(wavPath string) (*Result, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open WAV: %w", err)
	}
	defer f.Close()
	dec, err := r.newDecoder()
	if err != nil {
		return nil, err
	}
	if _, err := dec.DecodeWAV(f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", wavPath, err)
	}
	return r.collect(dec)
}

// RecognizeSamples decodes samples at the configured rate as one
// utterance.
func (r *Recognizer) RecognizeSamples(samples []int16) (*Result, error) {
	dec, err := r.newDecoder()
	if err != nil {
		return nil, err
	}
	if err := dec.StartUtt(); err != nil {
		return nil, err
	}
	if _, _, err := dec.ProcessRaw(samples, false, true); err != nil {
		return nil, err
	}
	if err := dec.EndUtt(); err != nil {
		return nil, err
	}
	return r.collect(dec)
}

// RecognizeSource decodes an audio source, which must match the
// configured sample rate.
func (r *Recognizer) RecognizeSource(src audio.Source) (*Result, error) {
	dec, err := r.newDecoder()
	if err != nil {
		return nil, err
	}
	if _, err := dec.DecodeSource(src); err != nil {
		return nil, err
	}
	return r.collect(dec)
}

func (r *Recognizer) collect(dec *decoder.Decoder) (*Result, error) {
	res := &Result{UttID: dec.UttID()}
	var err error
	if res.Hypothesis, err = dec.GetHyp(); err != nil {
		return nil, err
	}
	seg, err := dec.SegIter()
	if err != nil {
		return nil, err
	}
	for seg.Next() {
		res.Segments = append(res.Segments, seg.Segment())
	}
	if r.nbest > 0 {
		nb, err := dec.NBest(r.nbest)
		if err != nil {
			return nil, err
		}
		for nb.Next() {
			res.NBest = append(res.NBest, *nb.Hypothesis())
		}
	}
	if r.align && res.Hypothesis != nil {
		if res.Alignment, err = dec.Align(nil); err != nil {
			return nil, fmt.Errorf("align: %w", err)
		}
	}
	res.Perf = dec.UttTime()
	return res, nil
}
