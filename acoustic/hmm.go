package acoustic

import (
	"math"

	"github.com/ieee0824/sphinx-go/logmath"
)

// PhoneHMM is a left-to-right HMM for a single phone.
// States: [0]=entry (non-emitting), [1..3]=emitting, [4]=exit (non-emitting).
// Transitions are left-to-right only with self-loops on emitting states.
type PhoneHMM struct {
	Phone    Phone
	States   []*GMMState
	TransLog [][]float64 // [NumStatesPerPhone][NumStatesPerPhone] log transition probs
}

// GMMState wraps a GMM for an emitting state.
type GMMState struct {
	GMM *GMM
}

// NewPhoneHMM creates a left-to-right HMM with randomly initialised GMMs.
func NewPhoneHMM(phone Phone, featureDim, numMix int) *PhoneHMM {
	hmm := &PhoneHMM{
		Phone:    phone,
		States:   make([]*GMMState, NumStatesPerPhone),
		TransLog: newMatFill(NumStatesPerPhone, NumStatesPerPhone, logmath.LogZero),
	}
	for i := 1; i <= NumEmittingStates; i++ {
		hmm.States[i] = &GMMState{GMM: NewGMM(numMix, featureDim)}
	}

	hmm.TransLog[0][1] = 0.0
	logHalf := math.Log(0.5)
	for i := 1; i <= NumEmittingStates; i++ {
		hmm.TransLog[i][i] = logHalf
		hmm.TransLog[i][i+1] = logHalf
	}
	return hmm
}

// LogLikelihood computes log P(observation | state) for an emitting state.
func (h *PhoneHMM) LogLikelihood(stateIdx int, obs []float64) float64 {
	if !IsEmitting(stateIdx) || h.States[stateIdx] == nil {
		return logmath.LogZero
	}
	return h.States[stateIdx].GMM.LogProb(obs)
}

// ExitLog returns the log probability of leaving the last emitting state.
// Models trained on isolated segments often leave it at zero probability,
// so it is floored at log(0.5).
func (h *PhoneHMM) ExitLog() float64 {
	et := h.TransLog[NumEmittingStates][NumStatesPerPhone-1]
	if et <= logmath.LogZero+1 {
		return math.Log(0.5)
	}
	return et
}

// IsEmitting returns true if the state index corresponds to an emitting state.
func IsEmitting(stateIdx int) bool {
	return stateIdx >= 1 && stateIdx <= NumEmittingStates
}

func newMat(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

func newMatFill(rows, cols int, val float64) [][]float64 {
	m := newMat(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = val
		}
	}
	return m
}
