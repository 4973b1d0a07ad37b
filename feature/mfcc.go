package feature

import (
	"errors"
	"fmt"
	"math"
)

// CMNMode selects how cepstral means are removed.
type CMNMode int

const (
	CMNNone  CMNMode = iota
	CMNBatch         // utterance mean, needs the whole utterance
	CMNLive          // running mean carried across utterances
)

// ParseCMNMode maps "none", "batch" and "live" to a mode.
func ParseCMNMode(s string) (CMNMode, error) {
	switch s {
	case "none":
		return CMNNone, nil
	case "batch":
		return CMNBatch, nil
	case "live":
		return CMNLive, nil
	}
	return CMNNone, fmt.Errorf("unknown cmn mode %q", s)
}

func (m CMNMode) String() string {
	switch m {
	case CMNBatch:
		return "batch"
	case CMNLive:
		return "live"
	}
	return "none"
}

// ErrTooShort is returned when there is not enough audio for one frame.
var ErrTooShort = errors.New("audio too short for a single frame")

// Config holds all MFCC extraction parameters.
type Config struct {
	SampleRate    int
	FrameLenMs    float64 // frame length in milliseconds
	FrameShiftMs  float64 // frame shift in milliseconds
	PreEmphCoeff  float64
	NumMelFilters int
	NumCepstra    int
	LowFreq       float64
	HighFreq      float64
	FFTSize       int
	UseDelta      bool
	UseDeltaDelta bool
	CepLifter     int
	CMN           CMNMode
	CMNInit       []float64 // initial live mean, per cepstral dimension
}

// DefaultConfig returns the standard MFCC configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		FrameLenMs:    25.0,
		FrameShiftMs:  10.0,
		PreEmphCoeff:  0.97,
		NumMelFilters: 26,
		NumCepstra:    13,
		LowFreq:       0,
		HighFreq:      8000,
		FFTSize:       512,
		UseDelta:      true,
		UseDeltaDelta: true,
		CepLifter:     22,
		CMN:           CMNLive,
	}
}

// FeatureDim returns the total feature vector dimension.
func (c Config) FeatureDim() int {
	d := c.NumCepstra
	if c.UseDelta {
		d += c.NumCepstra
		if c.UseDeltaDelta {
			d += c.NumCepstra
		}
	}
	return d
}

// FrameLen returns the analysis window length in samples.
func (c Config) FrameLen() int {
	return int(math.Round(c.FrameLenMs * float64(c.SampleRate) / 1000.0))
}

// FrameShift returns the frame advance in samples.
func (c Config) FrameShift() int {
	return int(math.Round(c.FrameShiftMs * float64(c.SampleRate) / 1000.0))
}

// FrameRate returns frames per second.
func (c Config) FrameRate() float64 { return 1000.0 / c.FrameShiftMs }

// Validate checks that the parameters describe a usable pipeline.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate %d", c.SampleRate)
	case c.FrameLen() <= 0 || c.FrameShift() <= 0:
		return fmt.Errorf("frame length %d / shift %d samples", c.FrameLen(), c.FrameShift())
	case c.FrameLen() > c.FFTSize:
		return fmt.Errorf("frame of %d samples exceeds fft size %d", c.FrameLen(), c.FFTSize)
	case c.NumCepstra <= 0 || c.NumCepstra > c.NumMelFilters:
		return fmt.Errorf("%d cepstra from %d filters", c.NumCepstra, c.NumMelFilters)
	case c.HighFreq > float64(c.SampleRate)/2 || c.LowFreq >= c.HighFreq:
		return fmt.Errorf("filter range %.0f-%.0f Hz at %d Hz", c.LowFreq, c.HighFreq, c.SampleRate)
	}
	return nil
}

// delay is the number of cepstral frames of lookahead the deltas need.
func (c Config) delay() int {
	switch {
	case c.UseDelta && c.UseDeltaDelta:
		return 2 * deltaWindow
	case c.UseDelta:
		return deltaWindow
	}
	return 0
}

// cepstrum turns windowed frames into liftered cepstra.
type cepstrum struct {
	spec   *spectrum
	window []float64
	mel    *MelFilterbank
	dct    *dctTable
	lifter []float64
	melBuf []float64
	ncep   int
}

func newCepstrum(cfg Config) *cepstrum {
	return &cepstrum{
		spec:   newSpectrum(cfg.FFTSize),
		window: hamming(cfg.FrameLen()),
		mel:    NewMelFilterbank(cfg.NumMelFilters, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		dct:    newDCTTable(cfg.NumCepstra, cfg.NumMelFilters),
		lifter: newLifter(cfg.NumCepstra, cfg.CepLifter),
		melBuf: make([]float64, cfg.NumMelFilters),
		ncep:   cfg.NumCepstra,
	}
}

// compute returns the cepstrum of one pre-emphasized frame.
func (c *cepstrum) compute(frame []float64) []float64 {
	c.mel.applyInto(c.spec.compute(frame, c.window), c.melBuf)
	out := make([]float64, c.ncep)
	c.dct.applyInto(c.melBuf, out)
	for i, l := range c.lifter {
		out[i] *= l
	}
	return out
}

// Extract computes MFCC features from raw audio samples.
// Returns a matrix of shape [numFrames][numFeatures].
func Extract(samples []float64, cfg Config) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty samples")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1. Pre-emphasis
	emphasized := PreEmphasize(samples, cfg.PreEmphCoeff)

	// 2. Framing
	frames := Frame(emphasized, cfg.FrameLen(), cfg.FrameShift())
	if len(frames) == 0 {
		return nil, ErrTooShort
	}

	// 3. Window, FFT, mel, DCT and lifter per frame
	cc := newCepstrum(cfg)
	mfccs := make([][]float64, len(frames))
	for i, frame := range frames {
		mfccs[i] = cc.compute(frame)
	}

	// 4. Cepstral mean normalization (before delta)
	switch cfg.CMN {
	case CMNBatch:
		ApplyCMN(mfccs)
	case CMNLive:
		live := NewLiveCMN(cfg.NumCepstra, cfg.CMNInit)
		for _, c := range mfccs {
			live.Apply(c)
		}
	}

	// 5. Append deltas
	if cfg.UseDelta && cfg.UseDeltaDelta {
		mfccs = AppendDeltas(mfccs)
	} else if cfg.UseDelta {
		d1 := Delta(mfccs, deltaWindow)
		for t := range mfccs {
			mfccs[t] = append(mfccs[t], d1[t]...)
		}
	}
	return mfccs, nil
}
