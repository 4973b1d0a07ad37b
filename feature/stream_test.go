package feature

import (
	"math"
	"testing"
)

func streamAll(t *testing.T, e *Extractor, samples []float64, chunk int) [][]float64 {
	t.Helper()
	e.Start()
	var out [][]float64
	for i := 0; i < len(samples); i += chunk {
		frames, err := e.Process(samples[i:min(i+chunk, len(samples))])
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		out = append(out, frames...)
	}
	rest, err := e.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return append(out, rest...)
}

func assertSameFrames(t *testing.T, want, got [][]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("frames = %d, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if math.Abs(want[i][j]-got[i][j]) > 1e-9 {
				t.Fatalf("frame %d dim %d = %f, want %f", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestExtractor_MatchesBatch(t *testing.T) {
	samples := append(sine(4000, 300), sine(4000, 1200)...)
	for _, mode := range []CMNMode{CMNNone, CMNBatch, CMNLive} {
		for _, chunk := range []int{1, 37, 160, 512, 8000} {
			cfg := DefaultConfig()
			cfg.CMN = mode
			want, err := Extract(samples, cfg)
			if err != nil {
				t.Fatal(err)
			}
			e, err := NewExtractor(cfg)
			if err != nil {
				t.Fatal(err)
			}
			assertSameFrames(t, want, streamAll(t, e, samples, chunk))
		}
	}
}

func TestExtractor_DeltaVariants(t *testing.T) {
	samples := sine(3200, 700)
	for _, dd := range [][2]bool{{false, false}, {true, false}} {
		cfg := DefaultConfig()
		cfg.CMN = CMNNone
		cfg.UseDelta, cfg.UseDeltaDelta = dd[0], dd[1]
		want, err := Extract(samples, cfg)
		if err != nil {
			t.Fatal(err)
		}
		e, err := NewExtractor(cfg)
		if err != nil {
			t.Fatal(err)
		}
		got := streamAll(t, e, samples, 100)
		assertSameFrames(t, want, got)
		if len(got[0]) != cfg.FeatureDim() {
			t.Errorf("dim = %d, want %d", len(got[0]), cfg.FeatureDim())
		}
	}
}

func TestExtractor_HoldsBackLookahead(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CMN = CMNNone
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.Start()
	// 400 + 9*160 samples give exactly 10 cepstral frames.
	frames, err := e.Process(sine(400+9*160, 440))
	if err != nil {
		t.Fatal(err)
	}
	if e.NumFrames() != 10 {
		t.Fatalf("cepstra = %d, want 10", e.NumFrames())
	}
	if len(frames) != 6 {
		t.Errorf("released %d frames, want 6", len(frames))
	}
	rest, err := e.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 4 {
		t.Errorf("flushed %d frames, want 4", len(rest))
	}
}

func TestExtractor_BatchCMNHoldsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CMN = CMNBatch
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.Start()
	frames, err := e.Process(sine(8000, 440))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Errorf("batch CMN released %d frames before Flush", len(frames))
	}
}

func TestExtractor_NotStarted(t *testing.T) {
	e, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Process(sine(100, 440)); err != ErrNotStarted {
		t.Errorf("Process err = %v, want ErrNotStarted", err)
	}
	if _, err := e.Flush(); err != ErrNotStarted {
		t.Errorf("Flush err = %v, want ErrNotStarted", err)
	}
}

func TestExtractor_Rewind(t *testing.T) {
	cfg := DefaultConfig()
	samples := sine(6400, 500)
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := streamAll(t, e, samples, 320)

	e2, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e2.Start()
	var got [][]float64
	for i := 0; i < len(samples); i += 320 {
		m := e2.Mark()
		// feed a chunk of garbage and undo it
		if _, err := e2.Process(sine(1000, 3000)); err != nil {
			t.Fatal(err)
		}
		e2.Rewind(m)
		frames, err := e2.Process(samples[i:min(i+320, len(samples))])
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frames...)
	}
	rest, err := e2.Flush()
	if err != nil {
		t.Fatal(err)
	}
	assertSameFrames(t, want, append(got, rest...))
}

func TestExtractor_LiveCMNCarriesOver(t *testing.T) {
	cfg := DefaultConfig()
	e, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	before := e.CMNMean()
	streamAll(t, e, sine(3200, 440), 160)
	after := e.CMNMean()
	if before[0] == after[0] {
		t.Error("live CMN mean not updated at end of utterance")
	}
}
