package feature

import "math"

// PreEmphasize applies a first-order high-pass filter: y[n] = x[n] - alpha*x[n-1],
// with x[-1] = 0.
func PreEmphasize(samples []float64, alpha float64) []float64 {
	out := make([]float64, len(samples))
	preEmphasizeInto(out, samples, alpha, 0)
	return out
}

// preEmphasizeInto filters src into dst, using prev as the sample before src[0].
func preEmphasizeInto(dst, src []float64, alpha, prev float64) {
	for i, x := range src {
		dst[i] = x - alpha*prev
		prev = x
	}
}

// Frame splits samples into overlapping frames.
// frameLen and frameShift are in number of samples.
func Frame(samples []float64, frameLen, frameShift int) [][]float64 {
	n := len(samples)
	if n < frameLen {
		return nil
	}
	numFrames := 1 + (n-frameLen)/frameShift
	frames := make([][]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * frameShift
		frames[i] = append([]float64(nil), samples[start:start+frameLen]...)
	}
	return frames
}

// hamming returns the coefficients of an n-point Hamming window.
func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// HammingWindow applies a Hamming window in-place.
func HammingWindow(frame []float64) {
	for i, c := range hamming(len(frame)) {
		frame[i] *= c
	}
}
