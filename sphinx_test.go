package sphinx

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/audio"
	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/lexicon"
)

// writeModels writes a flat 39-dimensional model where every phone scores
// the same, a one word dictionary and a JSGF grammar accepting "a".
func writeModels(t *testing.T) (hmm, dict, gram string) {
	t.Helper()
	dir := t.TempDir()
	am := acoustic.NewModel(39, 1, acoustic.SilencePhone, "AA")
	for _, h := range am.Phones {
		for s := 1; s <= acoustic.NumEmittingStates; s++ {
			g := h.States[s].GMM
			for d := range g.Components[0].Mean {
				g.Components[0].Mean[d] = 0
				g.Components[0].Variance[d] = 1
			}
			g.PrecomputeSoA()
		}
	}
	hmm = filepath.Join(dir, "model.gob")
	if err := am.SaveFile(hmm); err != nil {
		t.Fatal(err)
	}

	d := lexicon.NewDictionary()
	if err := d.AddWord("a", "AA", false); err != nil {
		t.Fatal(err)
	}
	dict = filepath.Join(dir, "words.dict")
	if err := d.SaveFile(dict); err != nil {
		t.Fatal(err)
	}

	gram = filepath.Join(dir, "a.gram")
	if err := os.WriteFile(gram, []byte("#JSGF V1.0;\ngrammar a;\npublic <r> = a;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return hmm, dict, gram
}

func tone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(0.3 * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func TestRecognizeSamples(t *testing.T) {
	hmm, dict, gram := writeModels(t)
	r, err := NewRecognizer(hmm, dict, gram, WithNBest(3), WithAlignment(true))
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Config.String("jsgf"); got != gram {
		t.Errorf("jsgf = %q, want %q", got, gram)
	}

	res, err := r.RecognizeSamples(tone(16000))
	if err != nil {
		t.Fatal(err)
	}
	if res.UttID == "" {
		t.Error("empty utterance id")
	}
	if got := res.Text(); got != "a" {
		t.Errorf("text = %q, want %q", got, "a")
	}
	if math.Abs(res.Perf.Speech-0.98) > 1e-9 {
		t.Errorf("speech = %v, want 0.98", res.Perf.Speech)
	}
	if len(res.Segments) == 0 {
		t.Fatal("no segments")
	}
	if last := res.Segments[len(res.Segments)-1]; last.End != 97 {
		t.Errorf("last segment ends at %d, want 97", last.End)
	}
	if len(res.NBest) == 0 || res.NBest[0].Text != "a" {
		t.Errorf("nbest = %+v", res.NBest)
	}
	if res.Alignment == nil || len(res.Alignment.Words()) == 0 {
		t.Fatal("missing alignment")
	}
}

func TestRecognizeFile(t *testing.T) {
	hmm, dict, gram := writeModels(t)
	r, err := NewRecognizer(hmm, dict, gram)
	if err != nil {
		t.Fatal(err)
	}
	wav := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWAVFile(wav, tone(16000), 16000); err != nil {
		t.Fatal(err)
	}
	res, err := r.RecognizeFile(wav)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Text(); got != "a" {
		t.Errorf("text = %q, want %q", got, "a")
	}
	if res.NBest != nil || res.Alignment != nil {
		t.Error("extras computed without being requested")
	}

	slow := filepath.Join(t.TempDir(), "slow.wav")
	if err := audio.WriteWAVFile(slow, tone(8000), 8000); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RecognizeFile(slow); err == nil {
		t.Error("expected a sample rate error")
	}
	if _, err := r.RecognizeFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewRecognizerErrors(t *testing.T) {
	_, err := NewRecognizerFromConfig(config.Default())
	if !errors.Is(err, config.ErrMissingModel) {
		t.Errorf("err = %v, want ErrMissingModel", err)
	}

	hmm, dict, _ := writeModels(t)
	bad := filepath.Join(t.TempDir(), "bad.gram")
	if err := os.WriteFile(bad, []byte("#JSGF V1.0;\ngrammar b;\npublic <r> = zebra;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecognizer(hmm, dict, bad); err == nil {
		t.Error("expected an error for a word missing from the dictionary")
	}
}

func TestGrammarOption(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"digits.gram", "jsgf"},
		{"digits.JSGF", "jsgf"},
		{"digits.fsg", "fsg"},
		{"wake.kws", "kws"},
		{"digits", "fsg"},
	}
	for _, tt := range tests {
		if got := grammarOption(tt.path); got != tt.want {
			t.Errorf("grammarOption(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
