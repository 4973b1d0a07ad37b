// Package lexicon holds the pronunciation dictionary.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ieee0824/sphinx-go/acoustic"
)

// Entry represents a single pronunciation for a word.
type Entry struct {
	Word    string
	Reading string // optional, only set by the tab-separated format
	Phones  []acoustic.Phone
}

// Dictionary holds word-to-pronunciation mappings. Filler words (silence,
// sentence markers) are kept apart from ordinary words: the search may
// insert them anywhere, and they never appear in hypothesis text.
type Dictionary struct {
	Entries map[string][]Entry // word -> alternative pronunciations
	fillers map[string]bool
	loop    map[string]bool // phone-loop fillers, placed only by grammars
}

// Filler words present in every new dictionary.
const (
	SilenceWord       = "<sil>"
	SentenceStartWord = "<s>"
	SentenceEndWord   = "</s>"
)

// NewDictionary creates a dictionary holding only the default filler words.
func NewDictionary() *Dictionary {
	d := &Dictionary{
		Entries: make(map[string][]Entry),
		fillers: make(map[string]bool),
		loop:    make(map[string]bool),
	}
	for _, w := range []string{SilenceWord, SentenceStartWord, SentenceEndWord} {
		d.AddFiller(w, []acoustic.Phone{acoustic.SilencePhone})
	}
	return d
}

// Add adds a pronunciation entry to the dictionary.
func (d *Dictionary) Add(word, reading string, phones []acoustic.Phone) {
	d.Entries[word] = append(d.Entries[word], Entry{
		Word:    word,
		Reading: reading,
		Phones:  phones,
	})
}

// AddWord adds a pronunciation given as space-separated phones. When
// replace is true, existing pronunciations of the word are dropped first.
func (d *Dictionary) AddWord(word, phones string, replace bool) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("empty word")
	}
	fields := strings.Fields(phones)
	if len(fields) == 0 {
		return fmt.Errorf("word %q: empty pronunciation", word)
	}
	if replace {
		delete(d.Entries, word)
	}
	d.Add(word, "", toPhones(fields))
	return nil
}

// AddFiller adds a filler word.
func (d *Dictionary) AddFiller(word string, phones []acoustic.Phone) {
	d.Add(word, "", phones)
	d.fillers[word] = true
}

// IsFiller reports whether word is a filler word.
func (d *Dictionary) IsFiller(word string) bool { return d.fillers[word] }

// Fillers returns the filler words in sorted order. Phone-loop words
// are left out.
func (d *Dictionary) Fillers() []string {
	ws := make([]string, 0, len(d.fillers))
	for w := range d.fillers {
		if !d.loop[w] {
			ws = append(ws, w)
		}
	}
	sort.Strings(ws)
	return ws
}

// PhoneLoopWord names the single-phone filler standing for p in a
// keyword-spotting background loop.
func PhoneLoopWord(p acoustic.Phone) string { return "+" + string(p) + "+" }

// AddPhoneLoop adds a phone-loop filler for each phone and returns their
// names in phone order. Unlike other fillers the search never inserts
// them on its own; only a grammar arc can name one.
func (d *Dictionary) AddPhoneLoop(phones []acoustic.Phone) []string {
	words := make([]string, 0, len(phones))
	for _, p := range phones {
		w := PhoneLoopWord(p)
		if !d.loop[w] {
			d.AddFiller(w, []acoustic.Phone{p})
			d.loop[w] = true
		}
		words = append(words, w)
	}
	return words
}

// IsPhoneLoop reports whether word was added by AddPhoneLoop.
func (d *Dictionary) IsPhoneLoop(word string) bool { return d.loop[word] }

func toPhones(fields []string) []acoustic.Phone {
	phones := make([]acoustic.Phone, len(fields))
	for i, p := range fields {
		phones[i] = acoustic.Phone(p)
	}
	return phones
}

// baseWord strips a CMU alternate-pronunciation suffix: "read(2)" -> "read".
func baseWord(w string) string {
	if i := strings.LastIndexByte(w, '('); i > 0 && strings.HasSuffix(w, ")") {
		return w[:i]
	}
	return w
}

// Load reads a pronunciation dictionary. Two line formats are accepted:
//
//	word(2) P1 P2 P3          CMU style, optional variant suffix
//	word<TAB>reading<TAB>P1 P2 P3
//
// Blank lines and lines starting with '#' or ";;;" are ignored.
func Load(r io.Reader) (*Dictionary, error) {
	d := NewDictionary()
	if err := d.read(r, false); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFillers adds the filler words read from r, in the same formats as Load.
func (d *Dictionary) LoadFillers(r io.Reader) error {
	return d.read(r, true)
}

func (d *Dictionary) read(r io.Reader, filler bool) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";;;") {
			continue
		}
		var (
			word, reading string
			phones        []string
		)
		if parts := strings.Split(line, "\t"); len(parts) == 3 {
			word, reading, phones = parts[0], parts[1], strings.Fields(parts[2])
		} else {
			fields := strings.Fields(line)
			word, phones = baseWord(fields[0]), fields[1:]
		}
		if len(phones) == 0 {
			return fmt.Errorf("line %d: word %q has no pronunciation", lineNum, word)
		}
		if filler {
			d.AddFiller(word, toPhones(phones))
		} else {
			d.Add(word, reading, toPhones(phones))
		}
	}
	return scanner.Err()
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Save writes the non-filler words in CMU format, sorted by word, with
// alternates numbered from (2).
func (d *Dictionary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range d.Words() {
		for i, e := range d.Entries[word] {
			name := word
			if i > 0 {
				name = fmt.Sprintf("%s(%d)", word, i+1)
			}
			ps := make([]string, len(e.Phones))
			for j, p := range e.Phones {
				ps[j] = string(p)
			}
			fmt.Fprintf(bw, "%s %s\n", name, strings.Join(ps, " "))
		}
	}
	return bw.Flush()
}

// SaveFile writes the dictionary to path.
func (d *Dictionary) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dictionary: %w", err)
	}
	if err := d.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Lookup returns all pronunciation variants for a word.
func (d *Dictionary) Lookup(word string) []Entry {
	return d.Entries[word]
}

// Pronunciation returns the phone sequence for a word (first pronunciation).
func (d *Dictionary) Pronunciation(word string) ([]acoustic.Phone, bool) {
	entries := d.Entries[word]
	if len(entries) == 0 {
		return nil, false
	}
	return entries[0].Phones, true
}

// Words returns the non-filler words in sorted order.
func (d *Dictionary) Words() []string {
	words := make([]string, 0, len(d.Entries))
	for w := range d.Entries {
		if !d.fillers[w] {
			words = append(words, w)
		}
	}
	sort.Strings(words)
	return words
}

// Clone returns a copy that can be modified independently.
func (d *Dictionary) Clone() *Dictionary {
	n := &Dictionary{
		Entries: make(map[string][]Entry, len(d.Entries)),
		fillers: make(map[string]bool, len(d.fillers)),
		loop:    make(map[string]bool, len(d.loop)),
	}
	for w, es := range d.Entries {
		n.Entries[w] = append([]Entry(nil), es...)
	}
	for w := range d.fillers {
		n.fillers[w] = true
	}
	for w := range d.loop {
		n.loop[w] = true
	}
	return n
}

// CheckPhones returns an error naming the first word whose pronunciation
// uses a phone the acoustic model lacks.
func (d *Dictionary) CheckPhones(am *acoustic.Model) error {
	for _, w := range append(d.Words(), d.Fillers()...) {
		for _, e := range d.Entries[w] {
			for _, p := range e.Phones {
				if _, ok := am.Phones[p]; !ok {
					return fmt.Errorf("word %q: phone %q not in acoustic model", w, p)
				}
			}
		}
	}
	return nil
}
