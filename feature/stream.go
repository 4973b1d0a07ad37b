package feature

import "errors"

// ErrNotStarted is returned when samples arrive outside an utterance.
var ErrNotStarted = errors.New("feature: extractor not started")

// Extractor computes features incrementally from audio delivered in
// arbitrary chunks. For a given utterance the frames it produces are
// identical to Extract on the concatenated samples.
//
// Deltas need lookahead, so a frame is released only once the cepstra it
// depends on exist. Flush releases the held-back frames at the end of the
// utterance. With batch CMN every frame is held until Flush.
type Extractor struct {
	cfg        Config
	frameLen   int
	frameShift int
	cc         *cepstrum
	cmn        *LiveCMN

	started bool
	emph    []float64 // pre-emphasized samples not yet consumed by a frame
	prev    float64   // last raw sample, for pre-emphasis
	cep     [][]float64
	out     int // frames released
}

// NewExtractor validates cfg and creates an idle extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:        cfg,
		frameLen:   cfg.FrameLen(),
		frameShift: cfg.FrameShift(),
		cc:         newCepstrum(cfg),
		cmn:        NewLiveCMN(cfg.NumCepstra, cfg.CMNInit),
	}, nil
}

// Config returns the extraction parameters.
func (e *Extractor) Config() Config { return e.cfg }

// Dim returns the feature vector dimension.
func (e *Extractor) Dim() int { return e.cfg.FeatureDim() }

// Start begins a new utterance. The live CMN estimate is kept.
func (e *Extractor) Start() {
	e.started = true
	e.emph = e.emph[:0]
	e.prev = 0
	e.cep = nil
	e.out = 0
}

// NumFrames returns the number of cepstral frames computed so far.
func (e *Extractor) NumFrames() int { return len(e.cep) }

// Process consumes samples and returns the feature frames that became
// complete.
func (e *Extractor) Process(samples []float64) ([][]float64, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	n := len(e.emph)
	e.emph = append(e.emph, samples...)
	preEmphasizeInto(e.emph[n:], samples, e.cfg.PreEmphCoeff, e.prev)
	if len(samples) > 0 {
		e.prev = samples[len(samples)-1]
	}

	pos := 0
	for len(e.emph)-pos >= e.frameLen {
		c := e.cc.compute(e.emph[pos : pos+e.frameLen])
		if e.cfg.CMN == CMNLive {
			e.cmn.Apply(c)
		}
		e.cep = append(e.cep, c)
		pos += e.frameShift
	}
	pos = min(pos, len(e.emph))
	e.emph = append(e.emph[:0], e.emph[pos:]...)

	if e.cfg.CMN == CMNBatch {
		return nil, nil
	}
	return e.release(len(e.cep) - e.cfg.delay()), nil
}

// Flush ends the utterance and returns every frame not yet released.
// Trailing samples shorter than a frame are dropped.
func (e *Extractor) Flush() ([][]float64, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	e.started = false
	switch e.cfg.CMN {
	case CMNBatch:
		ApplyCMN(e.cep)
	case CMNLive:
		e.cmn.Update()
	}
	return e.release(len(e.cep)), nil
}

// CMNMean returns the current live CMN estimate.
func (e *Extractor) CMNMean() []float64 { return e.cmn.Mean() }

func (e *Extractor) release(upto int) [][]float64 {
	var frames [][]float64
	for ; e.out < upto; e.out++ {
		frames = append(frames, e.vector(e.out))
	}
	return frames
}

// vector assembles frame t. Indices beyond the cepstra computed so far are
// clamped, which only happens for the frames released by Flush.
func (e *Extractor) vector(t int) []float64 {
	ncep := e.cfg.NumCepstra
	row := make([]float64, e.cfg.FeatureDim())
	copy(row, e.cep[t])
	if !e.cfg.UseDelta {
		return row
	}
	last := len(e.cep) - 1
	deltaInto(row[ncep:2*ncep], e.cep, t, deltaWindow, last, deltaDenom)
	if !e.cfg.UseDeltaDelta {
		return row
	}
	// second-order deltas over the first-order ones around t
	lo, hi := max(t-deltaWindow, 0), min(t+deltaWindow, last)
	d1 := make([][]float64, hi+1)
	for k := lo; k <= hi; k++ {
		d1[k] = make([]float64, ncep)
		deltaInto(d1[k], e.cep, k, deltaWindow, last, deltaDenom)
	}
	deltaInto(row[2*ncep:], d1, t, deltaWindow, last, deltaDenom)
	return row
}

// Mark records the utterance state so that a failed chunk can be undone.
type Mark struct {
	emph    []float64
	prev    float64
	ncep    int
	out     int
	started bool
	cmn     *LiveCMN
}

// Mark snapshots the extractor.
func (e *Extractor) Mark() Mark {
	return Mark{
		emph:    append([]float64(nil), e.emph...),
		prev:    e.prev,
		ncep:    len(e.cep),
		out:     e.out,
		started: e.started,
		cmn:     e.cmn.clone(),
	}
}

// Rewind restores a snapshot taken with Mark during the same utterance.
func (e *Extractor) Rewind(m Mark) {
	e.emph = append(e.emph[:0], m.emph...)
	e.prev = m.prev
	e.cep = e.cep[:m.ncep]
	e.out = m.out
	e.started = m.started
	e.cmn = m.cmn
}
