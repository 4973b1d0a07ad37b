package feature

// ApplyCMN subtracts the utterance-level mean from each feature dimension
// (cepstral mean normalization).
func ApplyCMN(features [][]float64) {
	T := len(features)
	if T == 0 {
		return
	}
	dim := len(features[0])
	mean := make([]float64, dim)
	for t := 0; t < T; t++ {
		for d := 0; d < dim; d++ {
			mean[d] += features[t][d]
		}
	}
	invT := 1.0 / float64(T)
	for d := 0; d < dim; d++ {
		mean[d] *= invT
	}
	for t := 0; t < T; t++ {
		for d := 0; d < dim; d++ {
			features[t][d] -= mean[d]
		}
	}
}

const (
	liveCMNWindow = 500 // frames the running mean is rescaled to
	liveCMNShift  = 800 // frame count that triggers rescaling
)

// LiveCMN normalizes frames with a running mean estimate carried across
// utterances, so frames can be normalized as soon as they are computed.
type LiveCMN struct {
	mean []float64
	sum  []float64
	n    int
}

// NewLiveCMN creates a running normalizer. init gives the initial mean;
// missing dimensions start at zero.
func NewLiveCMN(dim int, init []float64) *LiveCMN {
	c := &LiveCMN{mean: make([]float64, dim), sum: make([]float64, dim)}
	copy(c.mean, init)
	return c
}

// Mean returns a copy of the current mean estimate.
func (c *LiveCMN) Mean() []float64 { return append([]float64(nil), c.mean...) }

// Apply normalizes one frame in place and accumulates it.
func (c *LiveCMN) Apply(frame []float64) {
	for d := range frame {
		c.sum[d] += frame[d]
		frame[d] -= c.mean[d]
	}
	c.n++
	if c.n >= liveCMNShift {
		c.rescale()
	}
}

// Update folds the accumulated frames into the mean, typically at the end
// of an utterance.
func (c *LiveCMN) Update() {
	if c.n == 0 {
		return
	}
	inv := 1.0 / float64(c.n)
	for d := range c.mean {
		c.mean[d] = c.sum[d] * inv
	}
	if c.n > liveCMNWindow {
		c.rescale()
	}
}

func (c *LiveCMN) rescale() {
	inv := 1.0 / float64(c.n)
	for d := range c.sum {
		c.mean[d] = c.sum[d] * inv
		c.sum[d] = c.mean[d] * liveCMNWindow
	}
	c.n = liveCMNWindow
}

func (c *LiveCMN) clone() *LiveCMN {
	return &LiveCMN{
		mean: append([]float64(nil), c.mean...),
		sum:  append([]float64(nil), c.sum...),
		n:    c.n,
	}
}
