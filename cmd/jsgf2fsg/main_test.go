package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/sphinx-go/fsg"
)

const digits = `#JSGF V1.0;
grammar digits;
public <number> = <digit>+;
<digit> = one | two | three;
`

func writeGrammar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "digits.gram")
	if err := os.WriteFile(path, []byte(digits), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompileToFile(t *testing.T) {
	gram := writeGrammar(t)
	out := filepath.Join(t.TempDir(), "digits.fsg")
	if err := run([]string{"-o", out, gram}, nil, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	m, err := fsg.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Matches([]string{"one", "two"}) {
		t.Error("compiled grammar rejects \"one two\"")
	}
	if m.Matches(nil) {
		t.Error("compiled grammar accepts the empty sequence")
	}
}

func TestList(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-list", writeGrammar(t)}, nil, &out); err != nil {
		t.Fatal(err)
	}
	want := "public\t<number>\nprivate\t<digit>\n"
	if out.String() != want {
		t.Errorf("list = %q, want %q", out.String(), want)
	}
}

func TestCheckSentences(t *testing.T) {
	in := strings.NewReader("one two\n\nfour\nthree\n")
	var out bytes.Buffer
	if err := run([]string{"-test", writeGrammar(t)}, in, &out); err != nil {
		t.Fatal(err)
	}
	want := "ACCEPT\tone two\nREJECT\tfour\nACCEPT\tthree\n"
	if out.String() != want {
		t.Errorf("test = %q, want %q", out.String(), want)
	}
}

func TestErrors(t *testing.T) {
	if err := run(nil, nil, &bytes.Buffer{}); err != errUsage {
		t.Errorf("no arguments: err = %v", err)
	}
	if err := run([]string{"-rule", "missing", writeGrammar(t)}, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an undefined rule")
	}
}
