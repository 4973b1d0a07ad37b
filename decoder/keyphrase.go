package decoder

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/lexicon"
)

// Keyphrase is a phrase to spot and the probability charged for
// detecting it. Lower thresholds mean fewer false alarms.
type Keyphrase struct {
	Text      string
	Threshold float64
}

// AddKeyphrase adds a named search spotting phrase in continuous audio,
// charged the kws_threshold option.
func (d *Decoder) AddKeyphrase(name, phrase string) error {
	return d.AddKeyphrases(name, []Keyphrase{{Text: phrase, Threshold: d.cfg.Float("kws_threshold")}})
}

// AddKeyphraseFile adds a named search spotting the phrases listed in
// path, one per line. A line may end with its own threshold between
// slashes, as in "open the door /1e-5/".
func (d *Decoder) AddKeyphraseFile(name, path string) error {
	phrases, err := readKeyphrases(path, d.cfg.Float("kws_threshold"))
	if err != nil {
		return err
	}
	return d.AddKeyphrases(name, phrases)
}

// AddKeyphrases adds a named keyword-spotting search. Audio between
// phrases is absorbed by a loop over the acoustic model's phones, each
// costing kws_plp. Both costs are charged as is, after the language
// weight. The hypothesis holds only the spotted phrases, nil when none.
func (d *Decoder) AddKeyphrases(name string, phrases []Keyphrase) error {
	m, err := d.keyphraseGrammar(name, phrases)
	if err != nil {
		return err
	}
	if err := d.AddFSG(name, m); err != nil {
		return err
	}
	d.keyphrases[name] = append([]Keyphrase(nil), phrases...)
	return nil
}

// Keyphrases returns the phrases a keyword-spotting search looks for.
// It reports false for unknown names and for grammar searches.
func (d *Decoder) Keyphrases(name string) ([]Keyphrase, bool) {
	ps, ok := d.keyphrases[name]
	return append([]Keyphrase(nil), ps...), ok
}

// keyphraseGrammar builds a one-state loop: every background phone and
// every phrase leads back to state 0, which is both start and final.
func (d *Decoder) keyphraseGrammar(name string, phrases []Keyphrase) (*fsg.Model, error) {
	if len(phrases) == 0 {
		return nil, fmt.Errorf("keyphrase search %q: no phrases", name)
	}
	for _, p := range phrases {
		if len(strings.Fields(p.Text)) == 0 {
			return nil, fmt.Errorf("keyphrase search %q: empty phrase", name)
		}
		if p.Threshold <= 0 || p.Threshold > 1 || math.IsNaN(p.Threshold) {
			return nil, fmt.Errorf("keyphrase %q: threshold must be in (0,1], got %v", p.Text, p.Threshold)
		}
	}
	loop, err := d.phoneLoop()
	if err != nil {
		return nil, err
	}

	lw := d.params.LW
	m := fsg.New(name, 1, 0)
	m.SetFinal(0)
	plp := math.Log(d.cfg.Float("kws_plp")) / lw
	for _, w := range loop {
		if err := m.AddTransition(0, 0, w, plp); err != nil {
			return nil, err
		}
	}
	for _, p := range phrases {
		words := strings.Fields(p.Text)
		from, lp := 0, math.Log(p.Threshold)/lw
		for i, w := range words {
			to := 0
			if i < len(words)-1 {
				to = m.AddState()
			}
			if err := m.AddTransition(from, to, w, lp); err != nil {
				return nil, err
			}
			from, lp = to, 0
		}
	}
	return m, nil
}

// phoneLoop makes sure the dictionary holds a phone-loop filler for every
// non-silence phone and returns their names.
func (d *Decoder) phoneLoop() ([]string, error) {
	var phones []acoustic.Phone
	for _, p := range d.models.AM.PhoneList() {
		if p != acoustic.SilencePhone {
			phones = append(phones, p)
		}
	}
	if len(phones) == 0 {
		return nil, fmt.Errorf("keyphrase search: acoustic model has no speech phones")
	}
	words := make([]string, len(phones))
	missing := false
	for i, p := range phones {
		words[i] = lexicon.PhoneLoopWord(p)
		if !d.dict.IsPhoneLoop(words[i]) {
			missing = true
		}
	}
	if !missing {
		return words, nil
	}
	dict := d.dict
	if !d.ownDict {
		dict = d.dict.Clone()
	}
	dict.AddPhoneLoop(phones)
	d.dict, d.ownDict = dict, true
	d.dirty = true
	if d.state != InUtterance {
		if err := d.rebuildEngine(); err != nil {
			return nil, err
		}
	}
	return words, nil
}

func readKeyphrases(path string, threshold float64) ([]Keyphrase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Keyphrase
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p := Keyphrase{Text: text, Threshold: threshold}
		if strings.HasSuffix(text, "/") {
			i := strings.LastIndex(text[:len(text)-1], "/")
			if i < 0 {
				return nil, fmt.Errorf("%s:%d: unterminated threshold", path, line)
			}
			v, err := strconv.ParseFloat(text[i+1:len(text)-1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: threshold: %w", path, line, err)
			}
			p.Text, p.Threshold = strings.TrimSpace(text[:i]), v
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
