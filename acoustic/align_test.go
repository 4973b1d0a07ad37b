package acoustic

import (
	"testing"
)

// makeTestModel creates a model whose phones have well separated means so
// that forced alignment finds clear boundaries.
func makeTestModel(dim int, phones []Phone, means []float64) *Model {
	am := &Model{
		Phones:     make(map[Phone]*PhoneHMM),
		FeatureDim: dim,
		NumMix:     1,
	}
	for i, ph := range phones {
		hmm := NewPhoneHMM(ph, dim, 1)
		for s := 1; s <= NumEmittingStates; s++ {
			for d := 0; d < dim; d++ {
				hmm.States[s].GMM.Components[0].Mean[d] = means[i]
				hmm.States[s].GMM.Components[0].Variance[d] = 0.5
			}
			hmm.States[s].GMM.PrecomputeSoA()
		}
		am.Phones[ph] = hmm
	}
	return am
}

// makeFeatures creates T frames of dim-dimensional features all set to val.
func makeFeatures(T, dim int, val float64) [][]float64 {
	f := make([][]float64, T)
	for t := range f {
		f[t] = make([]float64, dim)
		for d := range f[t] {
			f[t][d] = val
		}
	}
	return f
}

func TestForcedAlign_ThreePhones(t *testing.T) {
	dim := 4
	phones := []Phone{"AA", "K", "IY"}
	am := makeTestModel(dim, phones, []float64{0.0, 5.0, 10.0})

	var features [][]float64
	features = append(features, makeFeatures(10, dim, 0.1)...)
	features = append(features, makeFeatures(10, dim, 5.1)...)
	features = append(features, makeFeatures(10, dim, 10.1)...)

	segs, err := ForcedAlign(am, phones, features)
	if err != nil {
		t.Fatalf("ForcedAlign error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	for i, s := range segs {
		if s.Phone != phones[i] {
			t.Errorf("segment[%d]: expected phone %s, got %s", i, phones[i], s.Phone)
		}
		if s.Start != i*10 || s.End != (i+1)*10 {
			t.Errorf("segment[%d] %s: frames [%d, %d), want [%d, %d)", i, s.Phone, s.Start, s.End, i*10, (i+1)*10)
		}
	}
}

func TestForcedAlign_StatesNestInPhones(t *testing.T) {
	dim := 2
	phones := []Phone{"S", "IY"}
	am := makeTestModel(dim, phones, []float64{0.0, 5.0})
	features := append(makeFeatures(8, dim, 0.0), makeFeatures(8, dim, 5.0)...)

	segs, err := ForcedAlign(am, phones, features)
	if err != nil {
		t.Fatalf("ForcedAlign error: %v", err)
	}
	total := 0.0
	for i, ps := range segs {
		if i > 0 && ps.Start != segs[i-1].End {
			t.Errorf("gap between phone %d and %d", i-1, i)
		}
		if len(ps.States) != NumEmittingStates {
			t.Fatalf("phone %s visits %d states, want %d", ps.Phone, len(ps.States), NumEmittingStates)
		}
		stateSum := 0.0
		for j, ss := range ps.States {
			if ss.State != j+1 {
				t.Errorf("phone %s state %d labelled %d", ps.Phone, j, ss.State)
			}
			if j == 0 && ss.Start != ps.Start {
				t.Errorf("phone %s first state starts at %d, phone at %d", ps.Phone, ss.Start, ps.Start)
			}
			if j > 0 && ss.Start != ps.States[j-1].End {
				t.Errorf("phone %s state gap at %d", ps.Phone, j)
			}
			stateSum += ss.Score
		}
		if ps.States[NumEmittingStates-1].End != ps.End {
			t.Errorf("phone %s last state ends at %d, phone at %d", ps.Phone, ps.States[NumEmittingStates-1].End, ps.End)
		}
		if d := stateSum - ps.Score; d > 1e-9 || d < -1e-9 {
			t.Errorf("phone %s: state scores sum to %f, phone score %f", ps.Phone, stateSum, ps.Score)
		}
		total += ps.Score
	}
	if total >= 0 {
		t.Errorf("expected negative total log likelihood, got %f", total)
	}
}

func TestForcedAlign_SinglePhone(t *testing.T) {
	dim := 4
	am := makeTestModel(dim, []Phone{"AA"}, []float64{0.0})
	segs, err := ForcedAlign(am, []Phone{"AA"}, makeFeatures(20, dim, 0.1))
	if err != nil {
		t.Fatalf("ForcedAlign error: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 20 {
		t.Errorf("expected [0, 20), got [%d, %d)", segs[0].Start, segs[0].End)
	}
}

func TestForcedAlign_TooFewFrames(t *testing.T) {
	dim := 4
	phones := []Phone{"AA", "K", "IY"}
	am := makeTestModel(dim, phones, []float64{0, 5, 10})
	if _, err := ForcedAlign(am, phones, makeFeatures(8, dim, 0.0)); err == nil {
		t.Error("expected error for too few frames, got nil")
	}
}

func TestForcedAlign_MissingPhone(t *testing.T) {
	dim := 4
	am := makeTestModel(dim, []Phone{"AA"}, []float64{0.0})
	if _, err := ForcedAlign(am, []Phone{"AA", "Z"}, makeFeatures(10, dim, 0.0)); err == nil {
		t.Error("expected error for missing phone, got nil")
	}
}
