package decoder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/lexicon"
)

func runFrames(t *testing.T, d *Decoder, feats [][]float64) *Hypothesis {
	t.Helper()
	require.NoError(t, d.StartUtt())
	_, err := d.ProcessCep(feats, false)
	require.NoError(t, err)
	require.NoError(t, d.EndUtt())
	hyp, err := d.GetHyp()
	require.NoError(t, err)
	return hyp
}

func TestKeyphraseOption(t *testing.T) {
	spoken := frames(0, 8, 5, 8, 10, 8, 0, 8)
	tests := []struct {
		name      string
		threshold float64
		feats     [][]float64
		want      string
	}{
		{"spotted", 0.5, spoken, "a b"},
		{"below threshold", 1e-3, spoken, ""},
		{"phrase absent", 0.5, frames(0, 8, 5, 16, 0, 8), ""},
		{"silence", 0.5, frames(0, 40), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			require.NoError(t, cfg.Set("keyphrase", "a b"))
			require.NoError(t, cfg.Set("kws_threshold", tt.threshold))
			d, err := New(cfg, WithModels(testModels(t)))
			require.NoError(t, err)
			assert.Equal(t, DefaultSearch, d.CurrentSearch())
			phrases, ok := d.Keyphrases(DefaultSearch)
			require.True(t, ok)
			assert.Equal(t, []Keyphrase{{Text: "a b", Threshold: tt.threshold}}, phrases)

			hyp := runFrames(t, d, tt.feats)
			if tt.want == "" {
				assert.Nil(t, hyp)
				return
			}
			require.NotNil(t, hyp)
			assert.Equal(t, tt.want, hyp.Text)
		})
	}
}

func TestAddKeyphraseSwitchesSearch(t *testing.T) {
	models := testModels(t)
	cfg := config.Default()
	require.NoError(t, cfg.SetFSG(alternatives()))
	d, err := New(cfg, WithModels(models))
	require.NoError(t, err)

	require.NoError(t, d.AddKeyphrases("kws", []Keyphrase{{Text: "b", Threshold: 0.9}}))
	assert.False(t, models.Dict.IsPhoneLoop(lexicon.PhoneLoopWord("AA")), "shared dictionary was modified")
	require.NoError(t, d.SetSearch("kws"))
	phrases, ok := d.Keyphrases("kws")
	require.True(t, ok)
	assert.Equal(t, "b", phrases[0].Text)
	_, ok = d.Keyphrases(DefaultSearch)
	assert.False(t, ok)

	hyp := runFrames(t, d, frames(0, 8, 5, 8, 10, 8, 5, 8, 0, 8))
	require.NotNil(t, hyp)
	assert.Equal(t, "b", hyp.Text)

	require.NoError(t, d.SetSearch(DefaultSearch))
	hyp = runFrames(t, d, frames(5, 8, 10, 8))
	require.NotNil(t, hyp)
	assert.Equal(t, "a b", hyp.Text)

	var missing *WordNotInDictionaryError
	assert.ErrorAs(t, d.AddKeyphrase("zebra", "zebra"), &missing)
	assert.Error(t, d.AddKeyphrases("empty", nil))
	assert.Error(t, d.AddKeyphrases("bad", []Keyphrase{{Text: "a", Threshold: 2}}))
	assert.Error(t, d.AddKeyphrases("blank", []Keyphrase{{Text: "  ", Threshold: 0.5}}))
}

func TestKeyphraseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.kws")
	require.NoError(t, os.WriteFile(path, []byte("a b /0.5/\n\nb a /1e-30/\n"), 0o644))
	phrases, err := readKeyphrases(path, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []Keyphrase{{Text: "a b", Threshold: 0.5}, {Text: "b a", Threshold: 1e-30}}, phrases)

	cfg := config.Default()
	require.NoError(t, cfg.Set("kws", path))
	d, err := New(cfg, WithModels(testModels(t)))
	require.NoError(t, err)
	hyp := runFrames(t, d, frames(0, 8, 5, 8, 10, 8, 0, 8))
	require.NotNil(t, hyp)
	assert.Equal(t, "a b", hyp.Text)

	bad := filepath.Join(t.TempDir(), "bad.kws")
	require.NoError(t, os.WriteFile(bad, []byte("a b 0.5/\n"), 0o644))
	_, err = readKeyphrases(bad, 0.1)
	assert.Error(t, err)

	cfg = config.Default()
	require.NoError(t, cfg.Set("kws", bad))
	_, err = New(cfg, WithModels(testModels(t)))
	assert.True(t, errors.Is(err, config.ErrInvalidOption), "err = %v", err)
}

func TestSearchModesConflict(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Set("keyphrase", "a"))
	require.NoError(t, cfg.Set("fsg", "grammar.fsg"))
	_, err := New(cfg, WithModels(testModels(t)))
	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "keyphrase", cerr.Option)
}
