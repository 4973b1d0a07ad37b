package vad

import (
	"fmt"
	"math"
)

// Kind tags an endpointer output.
type Kind int

const (
	Audio Kind = iota
	SpeechStart
	SpeechEnd
)

func (k Kind) String() string {
	switch k {
	case SpeechStart:
		return "speech_start"
	case SpeechEnd:
		return "speech_end"
	}
	return "audio"
}

// Output is one item produced by the endpointer: speech audio to decode, or
// a boundary with its stream time in seconds.
type Output struct {
	Kind    Kind
	Samples []int16
	Time    float64
}

type heldFrame struct {
	samples []int16
	speech  bool
	index   int64
}

// Endpointer smooths frame decisions over a sliding window. Speech starts
// when the share of speech frames in the window reaches the ratio and ends
// when the share of non-speech frames does. Audio before the start is held
// so the window that triggered it is still delivered.
type Endpointer struct {
	vad       *Detector
	window    int
	threshold int

	pending  []int16
	ring     []heldFrame
	frames   int64
	inSpeech bool
	start    float64
	end      float64
}

// NewEndpointer creates an endpointer over det, with a window of
// windowSec seconds.
func NewEndpointer(det *Detector, windowSec, ratio float64) (*Endpointer, error) {
	frameSec := float64(det.FrameLen()) / float64(det.SampleRate())
	window := int(math.Round(windowSec / frameSec))
	if window < 1 {
		return nil, fmt.Errorf("vad: window %gs shorter than a frame", windowSec)
	}
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("vad: ratio %g out of (0, 1]", ratio)
	}
	return &Endpointer{
		vad:       det,
		window:    window,
		threshold: max(1, int(math.Ceil(ratio*float64(window)-1e-9))),
	}, nil
}

// WindowFrames returns the window size in frames.
func (e *Endpointer) WindowFrames() int { return e.window }

// FrameLen returns the VAD frame size in samples.
func (e *Endpointer) FrameLen() int { return e.vad.FrameLen() }

// InSpeech reports whether a speech segment is open.
func (e *Endpointer) InSpeech() bool { return e.inSpeech }

// SpeechStart returns the time of the latest speech start.
func (e *Endpointer) SpeechStart() float64 { return e.start }

// SpeechEnd returns the time of the latest speech end.
func (e *Endpointer) SpeechEnd() float64 { return e.end }

// Reset returns to the non-speech state and drops held audio. The stream
// clock keeps running.
func (e *Endpointer) Reset() {
	e.pending = e.pending[:0]
	e.ring = e.ring[:0]
	e.inSpeech = false
	e.vad.Reset()
}

// Mark is a snapshot of the endpointer taken with Mark.
type Mark struct {
	pending  []int16
	ring     []heldFrame
	frames   int64
	inSpeech bool
	start    float64
	end      float64
	noise    float64
}

// Mark snapshots the endpointer and its detector.
func (e *Endpointer) Mark() Mark {
	return Mark{
		pending:  append([]int16(nil), e.pending...),
		ring:     append([]heldFrame(nil), e.ring...),
		frames:   e.frames,
		inSpeech: e.inSpeech,
		start:    e.start,
		end:      e.end,
		noise:    e.vad.noise,
	}
}

// Rewind restores a snapshot taken with Mark, as if the samples processed
// since had never arrived.
func (e *Endpointer) Rewind(m Mark) {
	e.pending = append(e.pending[:0], m.pending...)
	e.ring = append(e.ring[:0], m.ring...)
	e.frames = m.frames
	e.inSpeech = m.inSpeech
	e.start = m.start
	e.end = m.end
	e.vad.noise = m.noise
}

func (e *Endpointer) frameTime(index int64) float64 {
	return float64(index) * float64(e.vad.FrameLen()) / float64(e.vad.SampleRate())
}

// Process consumes samples and returns, in stream order, the boundaries
// and the speech audio they enclose. Samples short of a whole frame are
// kept for the next call.
func (e *Endpointer) Process(samples []int16) []Output {
	var out []Output
	n := e.vad.FrameLen()
	e.pending = append(e.pending, samples...)
	pos := 0
	buf := make([]float64, n)
	for len(e.pending)-pos >= n {
		frame := append([]int16(nil), e.pending[pos:pos+n]...)
		pos += n
		for i, s := range frame {
			buf[i] = float64(s) / 32768.0
		}
		out = e.step(out, heldFrame{samples: frame, speech: e.vad.IsSpeech(buf), index: e.frames})
		e.frames++
	}
	e.pending = append(e.pending[:0], e.pending[pos:]...)
	return out
}

func (e *Endpointer) step(out []Output, f heldFrame) []Output {
	if len(e.ring) == e.window {
		e.ring = append(e.ring[:0], e.ring[1:]...)
	}
	e.ring = append(e.ring, f)

	count := 0
	for _, h := range e.ring {
		if h.speech != e.inSpeech {
			count++
		}
	}

	if !e.inSpeech {
		if count < e.threshold {
			return out
		}
		e.inSpeech = true
		e.start = e.frameTime(e.ring[0].index)
		out = append(out, Output{Kind: SpeechStart, Time: e.start})
		var held []int16
		for _, h := range e.ring {
			held = append(held, h.samples...)
		}
		out = append(out, Output{Kind: Audio, Samples: held, Time: e.start})
		e.ring = e.ring[:0]
		return out
	}

	out = append(out, Output{Kind: Audio, Samples: f.samples, Time: e.frameTime(f.index)})
	if count >= e.threshold {
		e.inSpeech = false
		e.end = e.frameTime(f.index + 1)
		out = append(out, Output{Kind: SpeechEnd, Time: e.end})
		e.ring = e.ring[:0]
	}
	return out
}
