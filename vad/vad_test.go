package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func toFloat(s []int16) []float64 {
	f := make([]float64, len(s))
	for i, v := range s {
		f[i] = float64(v) / 32768.0
	}
	return f
}

func TestNewDetector(t *testing.T) {
	d, err := New(Quality, 16000, 0.03)
	require.NoError(t, err)
	assert.Equal(t, 480, d.FrameLen())

	_, err = New(Mode(4), 16000, 0.03)
	assert.Error(t, err)
	_, err = New(Quality, 11025, 0.03)
	assert.ErrorIs(t, err, ErrSampleRate)
	_, err = New(Quality, 16000, 0)
	assert.Error(t, err)
}

func TestEnergy(t *testing.T) {
	assert.Equal(t, silenceDB, Energy(make([]float64, 10)))
	assert.Equal(t, silenceDB, Energy(nil))
	// full-scale square wave is 0 dBFS
	sq := []float64{1, -1, 1, -1}
	assert.InDelta(t, 0, Energy(sq), 1e-9)
}

func TestIsSpeech(t *testing.T) {
	for mode := Quality; mode <= VeryAggressive; mode++ {
		d, err := New(mode, 16000, 0.03)
		require.NoError(t, err)
		assert.False(t, d.IsSpeech(make([]float64, 480)), "mode %d: zeros", mode)
		assert.True(t, d.IsSpeech(toFloat(tone(480, 0.5))), "mode %d: tone", mode)
		assert.False(t, d.IsSpeech(toFloat(tone(480, 0.0005))), "mode %d: faint tone", mode)
	}
}

func TestEndpointer_OneSegment(t *testing.T) {
	d, err := New(Quality, 16000, 0.03)
	require.NoError(t, err)
	ep, err := NewEndpointer(d, 0.3, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 10, ep.WindowFrames())

	var stream []int16
	stream = append(stream, make([]int16, 8000)...)
	stream = append(stream, tone(16000, 0.5)...)
	stream = append(stream, make([]int16, 16000)...)

	var outs []Output
	// odd chunk size so frames straddle calls
	for i := 0; i < len(stream); i += 1234 {
		outs = append(outs, ep.Process(stream[i:min(i+1234, len(stream))])...)
	}

	var starts, ends []Output
	audio := 0
	for _, o := range outs {
		switch o.Kind {
		case SpeechStart:
			starts = append(starts, o)
		case SpeechEnd:
			ends = append(ends, o)
		case Audio:
			audio += len(o.Samples)
		}
	}
	require.Len(t, starts, 1)
	require.Len(t, ends, 1)
	assert.Equal(t, SpeechStart, outs[0].Kind)
	assert.Equal(t, SpeechEnd, outs[len(outs)-1].Kind)
	assert.InDelta(t, 0.45, starts[0].Time, 1e-9)
	assert.InDelta(t, 1.77, ends[0].Time, 1e-9)
	assert.Equal(t, 44*480, audio)
	assert.False(t, ep.InSpeech())
	assert.InDelta(t, 0.45, ep.SpeechStart(), 1e-9)
	assert.InDelta(t, 1.77, ep.SpeechEnd(), 1e-9)
}

func TestEndpointer_SilenceOnly(t *testing.T) {
	d, err := New(Aggressive, 8000, 0.03)
	require.NoError(t, err)
	ep, err := NewEndpointer(d, 0.3, 0.9)
	require.NoError(t, err)
	assert.Empty(t, ep.Process(make([]int16, 16000)))
	assert.False(t, ep.InSpeech())
}

func TestEndpointer_Reset(t *testing.T) {
	d, err := New(Quality, 16000, 0.03)
	require.NoError(t, err)
	ep, err := NewEndpointer(d, 0.3, 0.9)
	require.NoError(t, err)
	ep.Process(tone(480*12, 0.5))
	require.True(t, ep.InSpeech())
	ep.Reset()
	assert.False(t, ep.InSpeech())
}

func TestEndpointer_Rewind(t *testing.T) {
	d, err := New(Quality, 16000, 0.03)
	require.NoError(t, err)
	ep, err := NewEndpointer(d, 0.3, 0.9)
	require.NoError(t, err)

	// leave part of a frame pending and a partial window held
	ep.Process(make([]int16, 8000+100))
	m := ep.Mark()
	chunk := tone(16000, 0.5)
	first := ep.Process(chunk)
	require.True(t, ep.InSpeech())
	start := ep.SpeechStart()

	ep.Rewind(m)
	assert.False(t, ep.InSpeech())
	again := ep.Process(chunk)
	assert.Equal(t, first, again)
	assert.Equal(t, start, ep.SpeechStart())
}

func TestNewEndpointerErrors(t *testing.T) {
	d, err := New(Quality, 16000, 0.03)
	require.NoError(t, err)
	_, err = NewEndpointer(d, 0.001, 0.9)
	assert.Error(t, err)
	_, err = NewEndpointer(d, 0.3, 0)
	assert.Error(t, err)
	_, err = NewEndpointer(d, 0.3, 1.5)
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "speech_start", SpeechStart.String())
	assert.Equal(t, "speech_end", SpeechEnd.String())
	assert.Equal(t, "audio", Audio.String())
}
