package acoustic

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
)

func TestDefaultPhoneSet(t *testing.T) {
	phones := DefaultPhoneSet()
	if len(phones) != 40 {
		t.Errorf("len(DefaultPhoneSet) = %d, want 40", len(phones))
	}
	seen := make(map[Phone]bool)
	for _, p := range phones {
		if seen[p] {
			t.Errorf("duplicate phone: %s", p)
		}
		seen[p] = true
	}
	if !seen[SilencePhone] {
		t.Error("silence phone missing")
	}
}

func TestGaussianLogProb(t *testing.T) {
	g := Gaussian{
		Mean:      []float64{0.0},
		Variance:  []float64{1.0},
		LogWeight: 0.0,
	}
	g.Precompute()

	// Standard normal at x=0: log(1/sqrt(2π)) ≈ -0.9189
	lp := g.LogProb([]float64{0.0})
	expected := -0.5 * math.Log(2*math.Pi)
	if math.Abs(lp-expected) > 1e-6 {
		t.Errorf("LogProb(0) = %f, want %f", lp, expected)
	}
	if lp5 := g.LogProb([]float64{5.0}); lp5 >= lp {
		t.Errorf("LogProb(5) = %f >= LogProb(0) = %f", lp5, lp)
	}
}

func TestGMMLogProb(t *testing.T) {
	gmm := NewGMMWithParams(
		[][]float64{{0.0}, {5.0}},
		[][]float64{{1.0}, {1.0}},
		[]float64{math.Log(0.5), math.Log(0.5)},
	)
	lp0 := gmm.LogProb([]float64{0.0})
	lp5 := gmm.LogProb([]float64{5.0})
	lp25 := gmm.LogProb([]float64{2.5})

	if math.IsNaN(lp0) || math.IsInf(lp0, 0) {
		t.Errorf("LogProb(0) = %f (not finite)", lp0)
	}
	// Symmetric mixture.
	if math.Abs(lp0-lp5) > 0.1 {
		t.Errorf("LogProb(0)=%f and LogProb(5)=%f should be similar", lp0, lp5)
	}
	if lp25 > lp0 {
		t.Errorf("LogProb(2.5)=%f > LogProb(0)=%f", lp25, lp0)
	}

	dst := make([]float64, 2)
	gmm.LogProbBatch([][]float64{{0.0}, {2.5}}, dst)
	if dst[0] != lp0 || dst[1] != lp25 {
		t.Errorf("LogProbBatch = %v, want [%f %f]", dst, lp0, lp25)
	}
}

func TestNewPhoneHMM(t *testing.T) {
	hmm := NewPhoneHMM("AA", 13, 2)
	if hmm.Phone != "AA" {
		t.Errorf("Phone = %s, want AA", hmm.Phone)
	}
	if hmm.States[0] != nil || hmm.States[4] != nil {
		t.Error("entry and exit states should be nil")
	}
	for i := 1; i <= 3; i++ {
		if hmm.States[i] == nil {
			t.Fatalf("state %d should not be nil", i)
		}
		if hmm.States[i].GMM.Dim != 13 {
			t.Errorf("state %d dim = %d, want 13", i, hmm.States[i].GMM.Dim)
		}
		if len(hmm.States[i].GMM.Components) != 2 {
			t.Errorf("state %d components = %d, want 2", i, len(hmm.States[i].GMM.Components))
		}
	}
	if got := hmm.ExitLog(); math.Abs(got-math.Log(0.5)) > 1e-12 {
		t.Errorf("ExitLog = %f, want log(0.5)", got)
	}
	if hmm.LogLikelihood(0, make([]float64, 13)) > -1e29 {
		t.Error("entry state should not emit")
	}
}

func TestExitLogFloor(t *testing.T) {
	hmm := NewPhoneHMM("AA", 1, 1)
	hmm.TransLog[NumEmittingStates][NumStatesPerPhone-1] = -1e30
	if got := hmm.ExitLog(); math.Abs(got-math.Log(0.5)) > 1e-12 {
		t.Errorf("ExitLog = %f, want floor log(0.5)", got)
	}
}

func TestModelSaveLoad(t *testing.T) {
	am := NewModel(13, 2)

	var buf bytes.Buffer
	if err := am.Save(&buf); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.FeatureDim != am.FeatureDim || loaded.NumMix != am.NumMix {
		t.Errorf("shape = (%d,%d), want (%d,%d)", loaded.FeatureDim, loaded.NumMix, am.FeatureDim, am.NumMix)
	}
	if len(loaded.Phones) != len(am.Phones) {
		t.Errorf("len(Phones) = %d, want %d", len(loaded.Phones), len(am.Phones))
	}
	obs := make([]float64, 13)
	for p, orig := range am.Phones {
		got, ok := loaded.HMM(p)
		if !ok {
			t.Errorf("missing phone %s after load", p)
			continue
		}
		for s := 1; s <= NumEmittingStates; s++ {
			if a, b := orig.LogLikelihood(s, obs), got.LogLikelihood(s, obs); math.Abs(a-b) > 1e-10 {
				t.Errorf("phone %s state %d: log likelihood %f != %f", p, s, a, b)
			}
		}
	}
}

func TestModelFileRoundTrip(t *testing.T) {
	am := NewModel(3, 1, SilencePhone, "AA")
	path := filepath.Join(t.TempDir(), "am.gob")
	if err := am.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := loaded.PhoneList(); len(got) != 2 || got[0] != "AA" || got[1] != SilencePhone {
		t.Errorf("PhoneList = %v", got)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.gob")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateDimension(t *testing.T) {
	am := NewModel(3, 1, "AA")
	am.FeatureDim = 4
	if err := am.Validate(); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
