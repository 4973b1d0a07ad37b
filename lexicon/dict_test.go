package lexicon

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ieee0824/sphinx-go/acoustic"
)

const testDict = `;;; CMU style with alternates
hello HH AH L OW
hello(2) HH EH L OW
world W ER L D
# tab separated with a reading
tokyo	toukyou	T OW K Y OW
`

func TestLoadDict(t *testing.T) {
	d, err := Load(strings.NewReader(testDict))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	entries := d.Lookup("hello")
	if len(entries) != 2 {
		t.Fatalf("hello entries = %d, want 2", len(entries))
	}
	if entries[1].Phones[1] != "EH" {
		t.Errorf("hello(2) phones[1] = %s, want EH", entries[1].Phones[1])
	}

	entries = d.Lookup("tokyo")
	if len(entries) != 1 || entries[0].Reading != "toukyou" {
		t.Fatalf("tokyo entries = %+v", entries)
	}
	if len(entries[0].Phones) != 5 {
		t.Errorf("tokyo phones = %d, want 5", len(entries[0].Phones))
	}
}

func TestLoadDictErrors(t *testing.T) {
	if _, err := Load(strings.NewReader("lonely\n")); err == nil {
		t.Error("expected error for a word without phones")
	}
}

func TestPronunciation(t *testing.T) {
	d, err := Load(strings.NewReader(testDict))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	phones, ok := d.Pronunciation("world")
	if !ok {
		t.Fatal("world not found")
	}
	expected := []acoustic.Phone{"W", "ER", "L", "D"}
	if len(phones) != len(expected) {
		t.Fatalf("len = %d, want %d", len(phones), len(expected))
	}
	for i := range expected {
		if phones[i] != expected[i] {
			t.Errorf("phones[%d] = %s, want %s", i, phones[i], expected[i])
		}
	}
	if _, ok := d.Pronunciation("missing"); ok {
		t.Error("expected missing word to be absent")
	}
}

func TestFillers(t *testing.T) {
	d := NewDictionary()
	if !d.IsFiller(SilenceWord) {
		t.Errorf("%s should be a filler", SilenceWord)
	}
	if len(d.Words()) != 0 {
		t.Errorf("new dictionary has words %v", d.Words())
	}
	if err := d.LoadFillers(strings.NewReader("++NOISE++ SIL\n")); err != nil {
		t.Fatal(err)
	}
	if !d.IsFiller("++NOISE++") {
		t.Error("++NOISE++ should be a filler")
	}
	if got := d.Fillers(); len(got) != 4 {
		t.Errorf("Fillers() = %v", got)
	}
}

func TestAddWordAndSave(t *testing.T) {
	d := NewDictionary()
	if err := d.AddWord("read", "R IY D", false); err != nil {
		t.Fatal(err)
	}
	if err := d.AddWord("read", "R EH D", false); err != nil {
		t.Fatal(err)
	}
	if err := d.AddWord("go", "G OW", false); err != nil {
		t.Fatal(err)
	}
	if err := d.AddWord("bad", "  ", false); err == nil {
		t.Error("expected error for empty pronunciation")
	}

	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		t.Fatal(err)
	}
	want := "go G OW\nread R IY D\nread(2) R EH D\n"
	if buf.String() != want {
		t.Errorf("Save = %q, want %q", buf.String(), want)
	}

	reloaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Lookup("read")) != 2 {
		t.Errorf("read variants after reload = %d", len(reloaded.Lookup("read")))
	}

	if err := d.AddWord("read", "R EY D", true); err != nil {
		t.Fatal(err)
	}
	if n := len(d.Lookup("read")); n != 1 {
		t.Errorf("read variants after replace = %d, want 1", n)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := NewDictionary()
	_ = d.AddWord("yes", "Y EH S", false)
	c := d.Clone()
	_ = c.AddWord("no", "N OW", false)
	if _, ok := d.Pronunciation("no"); ok {
		t.Error("clone modified the original")
	}
	if !c.IsFiller(SilenceWord) {
		t.Error("clone lost fillers")
	}
}

func TestPhoneLoop(t *testing.T) {
	d := NewDictionary()
	words := d.AddPhoneLoop([]acoustic.Phone{"AA", "B"})
	if want := []string{"+AA+", "+B+"}; strings.Join(words, ",") != strings.Join(want, ",") {
		t.Fatalf("words = %v, want %v", words, want)
	}
	d.AddPhoneLoop([]acoustic.Phone{"AA"})
	if n := len(d.Lookup("+AA+")); n != 1 {
		t.Errorf("+AA+ pronunciations = %d, want 1", n)
	}
	if !d.IsFiller("+AA+") || !d.IsPhoneLoop("+AA+") {
		t.Error("+AA+ should be a phone-loop filler")
	}
	for _, f := range d.Fillers() {
		if d.IsPhoneLoop(f) {
			t.Errorf("Fillers lists phone-loop word %q", f)
		}
	}
	if len(d.Words()) != 0 {
		t.Errorf("Words = %v, want none", d.Words())
	}
	if c := d.Clone(); !c.IsPhoneLoop("+B+") {
		t.Error("clone lost the phone loop")
	}
}

func TestCheckPhones(t *testing.T) {
	am := acoustic.NewModel(1, 1, acoustic.SilencePhone, "Y", "EH", "S")
	d := NewDictionary()
	_ = d.AddWord("yes", "Y EH S", false)
	if err := d.CheckPhones(am); err != nil {
		t.Errorf("CheckPhones: %v", err)
	}
	_ = d.AddWord("no", "N OW", false)
	if err := d.CheckPhones(am); err == nil {
		t.Error("expected error for unknown phone")
	}
}
