package fsg

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports a malformed line in an FSG file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fsg: line %d: %s", e.Line, e.Msg)
}

// Write serializes the grammar in the Sphinx FSG text format. The format has
// a single final state, so grammars with several finals gain an extra state
// reached from each of them by a null transition.
func (m *Model) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	name := m.name
	if name == "" {
		name = "fsg"
	}
	for _, out := range m.out {
		for _, t := range out {
			if strings.IndexFunc(t.Word, unicode.IsSpace) >= 0 {
				return fmt.Errorf("fsg: word %q on %d->%d contains whitespace", t.Word, t.From, t.To)
			}
		}
	}
	finals := m.Finals()
	nstate := m.nstate
	final := -1
	switch len(finals) {
	case 0:
		return ErrNoFinal
	case 1:
		final = finals[0]
	default:
		final = nstate
		nstate++
	}
	fmt.Fprintf(bw, "FSG_BEGIN %s\n", name)
	fmt.Fprintf(bw, "NUM_STATES %d\n", nstate)
	fmt.Fprintf(bw, "START_STATE %d\n", m.start)
	fmt.Fprintf(bw, "FINAL_STATE %d\n", final)
	for _, out := range m.out {
		for _, t := range out {
			p := strconv.FormatFloat(math.Exp(t.LogProb), 'g', -1, 64)
			if t.IsNull() {
				fmt.Fprintf(bw, "TRANSITION %d %d %s\n", t.From, t.To, p)
			} else {
				fmt.Fprintf(bw, "TRANSITION %d %d %s %s\n", t.From, t.To, p, t.Word)
			}
		}
	}
	if len(finals) > 1 {
		for _, f := range finals {
			fmt.Fprintf(bw, "TRANSITION %d %d 1\n", f, final)
		}
	}
	fmt.Fprintln(bw, "FSG_END")
	return bw.Flush()
}

// WriteFile writes the grammar to path.
func (m *Model) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fsg file: %w", err)
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses a grammar in the Sphinx FSG text format. Keywords may be
// abbreviated to their first letter (N, S, F, T); '#' starts a comment.
func Read(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	var (
		m      *Model
		name   string
		nstate = -1
		start  = -1
		finals []int
		ended  bool
		lineNo int
		trans  []Transition
	)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if ended {
			return nil, &ParseError{Line: lineNo, Msg: "content after FSG_END"}
		}
		switch fields[0] {
		case "FSG_BEGIN":
			if len(fields) > 1 {
				name = fields[1]
			}
		case "NUM_STATES", "N":
			n, err := intField(fields, lineNo)
			if err != nil {
				return nil, err
			}
			nstate = n
		case "START_STATE", "S":
			n, err := intField(fields, lineNo)
			if err != nil {
				return nil, err
			}
			start = n
		case "FINAL_STATE", "F":
			n, err := intField(fields, lineNo)
			if err != nil {
				return nil, err
			}
			finals = append(finals, n)
		case "TRANSITION", "T":
			t, err := parseTransition(fields, lineNo)
			if err != nil {
				return nil, err
			}
			trans = append(trans, t)
		case "FSG_END":
			ended = true
		default:
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("unknown keyword %q", fields[0])}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read fsg: %w", err)
	}
	if nstate < 1 {
		return nil, &ParseError{Line: lineNo, Msg: "missing NUM_STATES"}
	}
	if start < 0 || start >= nstate {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad START_STATE %d", start)}
	}
	m = New(name, nstate, start)
	for _, f := range finals {
		if f < 0 || f >= nstate {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad FINAL_STATE %d", f)}
		}
		m.SetFinal(f)
	}
	for _, t := range trans {
		if err := m.AddTransition(t.From, t.To, t.Word, t.LogProb); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ReadFile parses the grammar stored at path.
func ReadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fsg file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func intField(fields []string, line int) (int, error) {
	if len(fields) != 2 {
		return 0, &ParseError{Line: line, Msg: fmt.Sprintf("%s takes one argument", fields[0])}
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, &ParseError{Line: line, Msg: err.Error()}
	}
	return n, nil
}

func parseTransition(fields []string, line int) (Transition, error) {
	if len(fields) != 4 && len(fields) != 5 {
		return Transition{}, &ParseError{Line: line, Msg: "TRANSITION takes from, to, prob and an optional word"}
	}
	from, err1 := strconv.Atoi(fields[1])
	to, err2 := strconv.Atoi(fields[2])
	p, err3 := strconv.ParseFloat(fields[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Transition{}, &ParseError{Line: line, Msg: "malformed TRANSITION"}
	}
	if p <= 0 || p > 1 {
		return Transition{}, &ParseError{Line: line, Msg: fmt.Sprintf("probability %v outside (0,1]", p)}
	}
	t := Transition{From: from, To: to, LogProb: math.Log(p)}
	if len(fields) == 5 {
		t.Word = fields[4]
	}
	return t, nil
}
