package feature

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// melFilter stores only the non-zero range of a triangular filter.
type melFilter struct {
	start  int       // first non-zero bin index
	coeffs []float64 // non-zero coefficient values
}

// MelFilterbank is a bank of triangular filters equally spaced on the mel scale.
type MelFilterbank struct {
	filters []melFilter
}

// NewMelFilterbank constructs the filterbank.
func NewMelFilterbank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) *MelFilterbank {
	nBins := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	step := (hzToMel(highFreq) - lowMel) / float64(numFilters+1)

	// numFilters+2 edges, converted to FFT bin indices.
	edges := make([]int, numFilters+2)
	for i := range edges {
		freq := melToHz(lowMel + float64(i)*step)
		edges[i] = int(math.Floor(freq * float64(fftSize+1) / float64(sampleRate)))
	}

	fb := &MelFilterbank{filters: make([]melFilter, numFilters)}
	for i := range fb.filters {
		left, center, right := edges[i], edges[i+1], min(edges[i+2], nBins-1)
		f := melFilter{start: left}
		for j := left; j <= right; j++ {
			var v float64
			switch {
			case j < center:
				v = float64(j-left) / float64(center-left)
			case edges[i+2] != center:
				v = float64(edges[i+2]-j) / float64(edges[i+2]-center)
			}
			f.coeffs = append(f.coeffs, v)
		}
		fb.filters[i] = f
	}
	return fb
}

// Apply returns the log mel energies of a power spectrum.
func (fb *MelFilterbank) Apply(powerSpec []float64) []float64 {
	energies := make([]float64, len(fb.filters))
	fb.applyInto(powerSpec, energies)
	return energies
}

func (fb *MelFilterbank) applyInto(powerSpec, dst []float64) {
	for i, f := range fb.filters {
		end := min(f.start+len(f.coeffs), len(powerSpec))
		sum := 0.0
		if end > f.start {
			sum = floats.Dot(powerSpec[f.start:end], f.coeffs[:end-f.start])
		}
		dst[i] = math.Log(math.Max(sum, 1e-30))
	}
}

// dctTable holds precomputed type-II DCT basis rows.
type dctTable struct {
	cos [][]float64 // [numCepstra][numFilters]
}

func newDCTTable(numCepstra, numFilters int) *dctTable {
	t := &dctTable{cos: make([][]float64, numCepstra)}
	for k := range t.cos {
		t.cos[k] = make([]float64, numFilters)
		for j := range t.cos[k] {
			t.cos[k][j] = math.Cos(math.Pi * float64(k) * (float64(j) + 0.5) / float64(numFilters))
		}
	}
	return t
}

func (t *dctTable) applyInto(logMel, dst []float64) {
	for k, row := range t.cos {
		dst[k] = floats.Dot(logMel, row)
	}
}

// newLifter returns sinusoidal liftering coefficients, nil when L <= 0.
func newLifter(numCepstra, L int) []float64 {
	if L <= 0 {
		return nil
	}
	c := make([]float64, numCepstra)
	for i := range c {
		c[i] = 1.0 + float64(L)/2.0*math.Sin(math.Pi*float64(i)/float64(L))
	}
	return c
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}
