package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Int16ToFloat converts PCM samples to floats in [-1.0, 1.0).
func Int16ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// FloatToInt16 converts floats in [-1.0, 1.0] to PCM samples, clipping
// values outside the range.
func FloatToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		v = math.Round(v * 32768.0)
		out[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v)))
	}
	return out
}

// ErrOddLength is returned for a byte buffer that does not hold whole
// 16-bit samples.
var ErrOddLength = errors.New("pcm: odd number of bytes")

// DecodePCM16 decodes little-endian 16-bit samples.
func DecodePCM16(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out, nil
}

// EncodePCM16 encodes samples as little-endian 16-bit PCM.
func EncodePCM16(samples []int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

// Source delivers PCM audio in chunks. Read returns io.EOF once the
// audio is exhausted.
type Source interface {
	Read(buf []int16) (int, error)
	SampleRate() int
}

// PCMReader is a Source over a raw little-endian 16-bit mono stream.
type PCMReader struct {
	r    io.Reader
	rate int
	raw  []byte
	odd  []byte // carried half sample
}

// NewPCMReader wraps r, which carries headerless audio at sampleRate.
func NewPCMReader(r io.Reader, sampleRate int) *PCMReader {
	return &PCMReader{r: r, rate: sampleRate}
}

// SampleRate returns the declared rate of the stream.
func (p *PCMReader) SampleRate() int { return p.rate }

// Read fills buf with up to len(buf) samples. A stream ending in half a
// sample fails with ErrOddLength.
func (p *PCMReader) Read(buf []int16) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	need := 2 * len(buf)
	if cap(p.raw) < need {
		p.raw = make([]byte, need)
	}
	raw := p.raw[:need]
	n := copy(raw, p.odd)
	p.odd = p.odd[:0]
	m, err := p.r.Read(raw[n:])
	n += m
	if n%2 == 1 {
		p.odd = append(p.odd, raw[n-1])
		n--
	}
	for i := 0; i < n/2; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	if errors.Is(err, io.EOF) {
		if len(p.odd) > 0 {
			return n / 2, fmt.Errorf("pcm: %w", ErrOddLength)
		}
		if n > 0 {
			return n / 2, nil
		}
	}
	return n / 2, err
}

// SliceSource is a Source over samples held in memory.
type SliceSource struct {
	samples []int16
	rate    int
}

// NewSliceSource returns a Source reading samples.
func NewSliceSource(samples []int16, sampleRate int) *SliceSource {
	return &SliceSource{samples: samples, rate: sampleRate}
}

// SampleRate returns the declared rate.
func (s *SliceSource) SampleRate() int { return s.rate }

func (s *SliceSource) Read(buf []int16) (int, error) {
	if len(s.samples) == 0 {
		return 0, io.EOF
	}
	n := copy(buf, s.samples)
	s.samples = s.samples[n:]
	return n, nil
}

// ReadAll drains a Source.
func ReadAll(src Source) ([]int16, error) {
	var out []int16
	buf := make([]int16, 4096)
	for {
		n, err := src.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
