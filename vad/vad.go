// Package vad classifies audio frames as speech or non-speech and turns the
// frame decisions into speech segments.
package vad

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Mode sets how aggressively non-speech is rejected.
type Mode int

const (
	Quality Mode = iota
	LowBitrate
	Aggressive
	VeryAggressive
)

// ErrSampleRate is returned for rates the detector does not support.
var ErrSampleRate = errors.New("vad: unsupported sample rate")

// SupportedRate reports whether rate can be used for detection.
func SupportedRate(rate int) bool {
	switch rate {
	case 8000, 16000, 32000, 48000:
		return true
	}
	return false
}

var (
	// dB above the noise floor a frame must reach, per mode
	modeMargin = [...]float64{6, 9, 12, 15}
	// absolute dBFS floor below which a frame is never speech
	modeFloor = [...]float64{-55, -50, -45, -40}
)

const (
	silenceDB = -120.0
	noiseRise = 0.05 // fraction of the gap the floor climbs per non-speech frame
)

// Detector is an energy-based frame classifier with an adaptive noise
// floor.
type Detector struct {
	mode     Mode
	rate     int
	frameLen int
	noise    float64
}

// New creates a detector for frames of frameSec seconds.
func New(mode Mode, sampleRate int, frameSec float64) (*Detector, error) {
	if mode < Quality || mode > VeryAggressive {
		return nil, fmt.Errorf("vad: mode %d out of range 0-3", mode)
	}
	if !SupportedRate(sampleRate) {
		return nil, fmt.Errorf("%w: %d", ErrSampleRate, sampleRate)
	}
	frameLen := int(math.Round(frameSec * float64(sampleRate)))
	if frameLen <= 0 {
		return nil, fmt.Errorf("vad: frame length %gs", frameSec)
	}
	d := &Detector{mode: mode, rate: sampleRate, frameLen: frameLen}
	d.Reset()
	return d, nil
}

// FrameLen returns the frame size in samples.
func (d *Detector) FrameLen() int { return d.frameLen }

// SampleRate returns the rate the detector was built for.
func (d *Detector) SampleRate() int { return d.rate }

// Reset forgets the noise estimate.
func (d *Detector) Reset() { d.noise = modeFloor[d.mode] - modeMargin[d.mode] }

// Energy returns the frame energy in dBFS for samples in [-1, 1].
func Energy(frame []float64) float64 {
	if len(frame) == 0 {
		return silenceDB
	}
	ms := floats.Dot(frame, frame) / float64(len(frame))
	if ms <= 0 {
		return silenceDB
	}
	return math.Max(10*math.Log10(ms), silenceDB)
}

// IsSpeech classifies one frame and updates the noise floor.
func (d *Detector) IsSpeech(frame []float64) bool {
	e := Energy(frame)
	threshold := math.Max(modeFloor[d.mode], d.noise+modeMargin[d.mode])
	speech := e >= threshold
	switch {
	case e < d.noise:
		d.noise = e
	case !speech:
		d.noise += noiseRise * (e - d.noise)
	}
	d.noise = math.Max(d.noise, silenceDB)
	return speech
}
