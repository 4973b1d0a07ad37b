package decoder

import (
	"fmt"
	"io"
	"strings"

	"github.com/ieee0824/sphinx-go/acoustic"
)

// AddWord adds a pronunciation, given as space-separated phones, to the
// decoder's dictionary. Shared models are never modified: the first edit
// makes a private copy. The search picks the word up at the next
// utterance, or at once when update is set outside an utterance.
func (d *Decoder) AddWord(word, phones string, update bool) error {
	for _, p := range strings.Fields(phones) {
		if _, ok := d.models.AM.HMM(acoustic.Phone(p)); !ok {
			return fmt.Errorf("word %q: phone %q not in acoustic model", word, p)
		}
	}
	dict := d.dict
	if !d.ownDict {
		dict = d.dict.Clone()
	}
	if err := dict.AddWord(word, phones, false); err != nil {
		return err
	}
	d.dict, d.ownDict = dict, true
	d.dirty = true
	if update && d.state != InUtterance {
		return d.rebuildEngine()
	}
	return nil
}

// LookupWord returns the first pronunciation of word as space-separated
// phones.
func (d *Decoder) LookupWord(word string) (string, bool) {
	phones, ok := d.dict.Pronunciation(word)
	if !ok {
		return "", false
	}
	ps := make([]string, len(phones))
	for i, p := range phones {
		ps[i] = string(p)
	}
	return strings.Join(ps, " "), true
}

// WriteDict writes the dictionary's words in CMU format.
func (d *Decoder) WriteDict(w io.Writer) error { return d.dict.Save(w) }

// SaveDict writes the dictionary to path.
func (d *Decoder) SaveDict(path string) error { return d.dict.SaveFile(path) }
