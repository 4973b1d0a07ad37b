package feature

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrum computes power spectra of windowed frames with a reusable
// real-input FFT.
type spectrum struct {
	fft    *fourier.FFT
	buf    []float64    // [fftSize] zero-padded windowed frame
	coeffs []complex128 // [fftSize/2+1]
	power  []float64    // [fftSize/2+1]
}

func newSpectrum(fftSize int) *spectrum {
	return &spectrum{
		fft:    fourier.NewFFT(fftSize),
		buf:    make([]float64, fftSize),
		coeffs: make([]complex128, fftSize/2+1),
		power:  make([]float64, fftSize/2+1),
	}
}

// compute writes |FFT(frame*window)|^2 / N into s.power. Frames longer than
// the FFT are truncated.
func (s *spectrum) compute(frame, window []float64) []float64 {
	n := len(s.buf)
	m := min(len(frame), n)
	for i := 0; i < m; i++ {
		s.buf[i] = frame[i] * window[i]
	}
	clear(s.buf[m:])
	s.coeffs = s.fft.Coefficients(s.coeffs, s.buf)
	fn := float64(n)
	for i, c := range s.coeffs {
		r, im := real(c), imag(c)
		s.power[i] = (r*r + im*im) / fn
	}
	return s.power
}

// PowerSpectrum computes |FFT(x)|^2 / N for a real-valued frame, zero-padded
// to fftSize. Returns the fftSize/2+1 non-negative frequency bins.
func PowerSpectrum(frame []float64, fftSize int) []float64 {
	s := newSpectrum(fftSize)
	ones := make([]float64, len(frame))
	for i := range ones {
		ones[i] = 1
	}
	return append([]float64(nil), s.compute(frame, ones)...)
}
