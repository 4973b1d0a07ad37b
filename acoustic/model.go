// Package acoustic implements context-independent phone HMMs with diagonal
// Gaussian mixture emissions, their gob serialization and Viterbi forced
// alignment against a known phone sequence.
package acoustic

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sort"
)

// Model holds all phone HMMs. It is read-only once loaded and may be
// shared between decoders.
type Model struct {
	Phones     map[Phone]*PhoneHMM
	FeatureDim int
	NumMix     int
}

// NewModel creates a model with randomly initialised HMMs for the given
// phones, or DefaultPhoneSet when phones is empty.
func NewModel(featureDim, numMix int, phones ...Phone) *Model {
	if len(phones) == 0 {
		phones = DefaultPhoneSet()
	}
	am := &Model{
		Phones:     make(map[Phone]*PhoneHMM, len(phones)),
		FeatureDim: featureDim,
		NumMix:     numMix,
	}
	for _, p := range phones {
		am.Phones[p] = NewPhoneHMM(p, featureDim, numMix)
	}
	return am
}

// HMM returns the HMM of a phone.
func (am *Model) HMM(p Phone) (*PhoneHMM, bool) {
	h, ok := am.Phones[p]
	return h, ok
}

// PhoneList returns the modelled phones in sorted order.
func (am *Model) PhoneList() []Phone {
	ps := make([]Phone, 0, len(am.Phones))
	for p := range am.Phones {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// Validate checks that every phone has emitting states of the model dimension.
func (am *Model) Validate() error {
	for _, p := range am.PhoneList() {
		h := am.Phones[p]
		if len(h.States) != NumStatesPerPhone || len(h.TransLog) != NumStatesPerPhone {
			return fmt.Errorf("phone %q: expected %d states", p, NumStatesPerPhone)
		}
		for s := 1; s <= NumEmittingStates; s++ {
			if h.States[s] == nil || h.States[s].GMM == nil {
				return fmt.Errorf("phone %q: state %d has no GMM", p, s)
			}
			if h.States[s].GMM.Dim != am.FeatureDim {
				return fmt.Errorf("phone %q: state %d has dimension %d, model %d", p, s, h.States[s].GMM.Dim, am.FeatureDim)
			}
		}
	}
	return nil
}

type serializedModel struct {
	FeatureDim int
	NumMix     int
	HMMs       map[string]serializedHMM
}

type serializedHMM struct {
	Phone    string
	TransLog [][]float64
	States   []serializedGMMState // emitting states only
}

type serializedGMMState struct {
	Components []serializedGaussian
	Dim        int
}

type serializedGaussian struct {
	Mean      []float64
	Variance  []float64
	LogWeight float64
}

// Save serializes the model to a writer using gob encoding.
func (am *Model) Save(w io.Writer) error {
	sm := serializedModel{
		FeatureDim: am.FeatureDim,
		NumMix:     am.NumMix,
		HMMs:       make(map[string]serializedHMM, len(am.Phones)),
	}
	for p, hmm := range am.Phones {
		sh := serializedHMM{Phone: string(p), TransLog: hmm.TransLog}
		for i := 1; i <= NumEmittingStates; i++ {
			sg := serializedGMMState{Dim: hmm.States[i].GMM.Dim}
			for _, c := range hmm.States[i].GMM.Components {
				sg.Components = append(sg.Components, serializedGaussian{
					Mean:      c.Mean,
					Variance:  c.Variance,
					LogWeight: c.LogWeight,
				})
			}
			sh.States = append(sh.States, sg)
		}
		sm.HMMs[string(p)] = sh
	}
	return gob.NewEncoder(w).Encode(sm)
}

// SaveFile writes the model to path.
func (am *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create acoustic model: %w", err)
	}
	if err := am.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("encode acoustic model: %w", err)
	}
	return f.Close()
}

// Load deserializes a model from a reader.
func Load(r io.Reader) (*Model, error) {
	var sm serializedModel
	if err := gob.NewDecoder(r).Decode(&sm); err != nil {
		return nil, fmt.Errorf("decode acoustic model: %w", err)
	}
	am := &Model{
		Phones:     make(map[Phone]*PhoneHMM, len(sm.HMMs)),
		FeatureDim: sm.FeatureDim,
		NumMix:     sm.NumMix,
	}
	for name, sh := range sm.HMMs {
		p := Phone(name)
		hmm := &PhoneHMM{
			Phone:    p,
			States:   make([]*GMMState, NumStatesPerPhone),
			TransLog: sh.TransLog,
		}
		if len(sh.States) != NumEmittingStates {
			return nil, fmt.Errorf("decode acoustic model: phone %q has %d emitting states", name, len(sh.States))
		}
		for i, sg := range sh.States {
			gmm := &GMM{Dim: sg.Dim}
			for _, sc := range sg.Components {
				gmm.Components = append(gmm.Components, Gaussian{
					Mean:      sc.Mean,
					Variance:  sc.Variance,
					LogWeight: sc.LogWeight,
				})
			}
			gmm.PrecomputeSoA()
			hmm.States[i+1] = &GMMState{GMM: gmm}
		}
		am.Phones[p] = hmm
	}
	if err := am.Validate(); err != nil {
		return nil, err
	}
	return am, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open acoustic model: %w", err)
	}
	defer f.Close()
	return Load(f)
}
