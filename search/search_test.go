package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/lexicon"
)

// testModels returns a one-dimensional model where silence sits at 0 and
// the phones AA and B at 5 and 10, with a dictionary for the words a and b.
func testModels(t *testing.T) (*acoustic.Model, *lexicon.Dictionary) {
	t.Helper()
	am := &acoustic.Model{Phones: make(map[acoustic.Phone]*acoustic.PhoneHMM), FeatureDim: 1, NumMix: 1}
	for ph, mean := range map[acoustic.Phone]float64{acoustic.SilencePhone: 0, "AA": 5, "B": 10} {
		hmm := acoustic.NewPhoneHMM(ph, 1, 1)
		for s := 1; s <= acoustic.NumEmittingStates; s++ {
			c := &hmm.States[s].GMM.Components[0]
			c.Mean[0] = mean
			c.Variance[0] = 0.5
			hmm.States[s].GMM.PrecomputeSoA()
		}
		am.Phones[ph] = hmm
	}
	dict := lexicon.NewDictionary()
	require.NoError(t, dict.AddWord("a", "AA", false))
	require.NoError(t, dict.AddWord("b", "B", false))
	return am, dict
}

func frames(pairs ...float64) [][]float64 {
	// pairs of (value, count)
	var out [][]float64
	for i := 0; i < len(pairs); i += 2 {
		for n := 0; n < int(pairs[i+1]); n++ {
			out = append(out, []float64{pairs[i]})
		}
	}
	return out
}

func words(path []Entry) []string {
	var ws []string
	for _, e := range path {
		if !e.Filler {
			ws = append(ws, e.Word)
		}
	}
	return ws
}

func decode(t *testing.T, g *fsg.Model, feats [][]float64) *Traceback {
	t.Helper()
	am, dict := testModels(t)
	eng, err := NewFSGEngine(am, dict, DefaultParams())
	require.NoError(t, err)
	require.NoError(t, eng.SetGrammar(g))
	require.NoError(t, eng.Start())
	require.NoError(t, eng.Feed(feats))
	tb, err := eng.Finalize(false)
	require.NoError(t, err)
	return tb
}

func alternatives() *fsg.Model {
	g := fsg.New("ab", 3, 0)
	for s := 0; s < 2; s++ {
		_ = g.AddTransition(s, s+1, "a", math.Log(0.5))
		_ = g.AddTransition(s, s+1, "b", math.Log(0.5))
	}
	g.SetFinal(2)
	return g
}

func TestLinearGrammarWithSilence(t *testing.T) {
	feats := frames(0, 8, 5, 8, 10, 8, 0, 8)
	tb := decode(t, fsg.NewLinear("ab", []string{"a", "b"}), feats)

	require.GreaterOrEqual(t, tb.Best, 0)
	assert.True(t, tb.Final)
	assert.Equal(t, 32, tb.NumFrames)
	path := tb.BestPath()
	assert.Equal(t, []string{"a", "b"}, words(path))
	assert.Equal(t, 0, path[0].Start)
	assert.Equal(t, 31, path[len(path)-1].End)
	for i := 1; i < len(path); i++ {
		assert.Equal(t, path[i-1].End+1, path[i].Start, "segments must be contiguous")
	}
	assert.True(t, path[0].Filler, "leading silence")

	var a, b Entry
	for _, e := range path {
		switch e.Word {
		case "a":
			a = e
		case "b":
			b = e
		}
	}
	assert.Equal(t, 8, a.Start)
	assert.Equal(t, 15, a.End)
	assert.Equal(t, 16, b.Start)
	assert.Equal(t, 23, b.End)
}

func TestAlternatives(t *testing.T) {
	cases := []struct {
		feats [][]float64
		want  []string
	}{
		{frames(5, 6, 10, 6), []string{"a", "b"}},
		{frames(10, 6, 5, 6), []string{"b", "a"}},
		{frames(10, 5, 10, 5), []string{"b", "b"}},
	}
	for _, c := range cases {
		tb := decode(t, alternatives(), c.feats)
		require.GreaterOrEqual(t, tb.Best, 0)
		assert.True(t, tb.Final)
		assert.Equal(t, c.want, words(tb.BestPath()))
	}
}

func TestTracebackConsistency(t *testing.T) {
	tb := decode(t, alternatives(), frames(0, 4, 5, 6, 10, 6, 0, 4))
	for i, e := range tb.Entries {
		link, ok := tb.Link(e.Prev, i)
		require.True(t, ok, "entry %d cannot follow its backpointer", i)
		assert.InDelta(t, e.Link, link, 1e-9)
		prevScore := 0.0
		if e.Prev >= 0 {
			prevScore = tb.Entries[e.Prev].Score
			assert.Contains(t, tb.Predecessors(i), e.Prev)
		} else {
			assert.Contains(t, tb.Predecessors(i), -1)
		}
		assert.InDelta(t, e.Score, prevScore+e.Link+e.Lscr+e.Ascr, 1e-6)
		assert.InDelta(t, prevScore+e.Link, tb.Heuristic(i), 1e-6)
		assert.Contains(t, tb.EndingAt(e.End), i)
	}
	assert.InDelta(t, tb.Entries[tb.Best].Score, tb.Score(), 1e-9)
}

func TestIncrementalFeedMatchesBulk(t *testing.T) {
	feats := frames(0, 5, 5, 7, 10, 7, 0, 5)
	bulk := decode(t, alternatives(), feats)

	am, dict := testModels(t)
	eng, err := NewFSGEngine(am, dict, DefaultParams())
	require.NoError(t, err)
	require.NoError(t, eng.SetGrammar(alternatives()))
	require.NoError(t, eng.Start())
	for i := 0; i < len(feats); i += 3 {
		require.NoError(t, eng.Feed(feats[i:min(i+3, len(feats))]))
	}
	assert.Equal(t, len(feats), eng.NumFrames())
	inc, err := eng.Finalize(true)
	require.NoError(t, err)
	assert.Equal(t, words(bulk.BestPath()), words(inc.BestPath()))
	assert.InDelta(t, bulk.Score(), inc.Score(), 1e-9)
	assert.Len(t, inc.Entries, len(bulk.Entries))
}

func TestPartialResult(t *testing.T) {
	// only the first word is spoken; no final state is reached
	tb := decode(t, fsg.NewLinear("ab", []string{"a", "b"}), frames(5, 8))
	require.GreaterOrEqual(t, tb.Best, 0)
	assert.False(t, tb.Final)
	assert.Equal(t, []string{"a"}, words(tb.BestPath()))
}

func TestEmptyUtterance(t *testing.T) {
	tb := decode(t, alternatives(), nil)
	assert.Equal(t, -1, tb.Best)
	assert.Empty(t, tb.BestPath())
	assert.Equal(t, 0, tb.NumFrames)
}

func TestEngineErrors(t *testing.T) {
	am, dict := testModels(t)
	eng, err := NewFSGEngine(am, dict, DefaultParams())
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Start(), ErrNoGrammar)
	assert.ErrorIs(t, eng.Feed(frames(0, 1)), ErrNotStarted)
	_, err = eng.Finalize(false)
	assert.ErrorIs(t, err, ErrNotStarted)

	var missing *MissingWordError
	require.ErrorAs(t, eng.SetGrammar(fsg.NewLinear("x", []string{"zebra"})), &missing)
	assert.Equal(t, "zebra", missing.Word)

	require.NoError(t, dict.AddWord("c", "K", false))
	assert.ErrorIs(t, eng.SetGrammar(fsg.NewLinear("c", []string{"c"})), ErrUnknownPhone)

	require.NoError(t, eng.SetGrammar(alternatives()))
	require.NoError(t, eng.Start())
	require.NoError(t, eng.Feed(frames(5, 2)))
	err = eng.Feed([][]float64{{5}, {1, 2}})
	assert.ErrorIs(t, err, ErrFrameDim)
	assert.Equal(t, 2, eng.NumFrames(), "failed feed must not consume frames")

	_, err = NewFSGEngine(am, dict, Params{})
	assert.Error(t, err)
	_, err = NewFSGEngine(nil, dict, DefaultParams())
	assert.Error(t, err)
}

func TestPruneTokens(t *testing.T) {
	toks := []*token{{score: -1}, {score: -50}, {score: -3}, {score: -200}}
	got := pruneTokens(toks, nil, 100, 2)
	require.Len(t, got, 2)
	assert.Equal(t, -1.0, got[0].score)
	assert.Equal(t, -3.0, got[1].score)
	assert.Empty(t, pruneTokens(nil, nil, 10, 10))
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	p := DefaultParams()
	p.WIP = 2
	assert.Error(t, p.Validate())
	p = DefaultParams()
	p.MaxActive = 0
	assert.Error(t, p.Validate())
}
