// Command jsgf2fsg compiles a JSGF grammar into FSG text.
//
//	jsgf2fsg [-rule NAME] [-lw W] [-o OUT] grammar.gram
//	jsgf2fsg -list grammar.gram
//	jsgf2fsg -test < sentences.txt grammar.gram
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/jsgf"
)

var errUsage = errors.New("usage: jsgf2fsg [-rule NAME] [-lw W] [-o OUT] [-list] [-test] GRAMMAR")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("jsgf2fsg", flag.ContinueOnError)
	rule := fs.String("rule", "", "rule to compile (default: first public rule)")
	lw := fs.Float64("lw", 1, "language weight applied to transition probabilities")
	out := fs.String("o", "", "output FSG file (default: stdout)")
	list := fs.Bool("list", false, "list the rules of the grammar and exit")
	test := fs.Bool("test", false, "read word sequences from stdin and report whether each is accepted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.SetOutput(stdout)
		fs.PrintDefaults()
		return errUsage
	}

	g, err := jsgf.ParseFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *list {
		for _, r := range g.Rules() {
			vis := "private"
			if r.Public {
				vis = "public"
			}
			fmt.Fprintf(stdout, "%s\t<%s>\n", vis, r.Name)
		}
		return nil
	}

	name := *rule
	if name == "" {
		r := g.PublicRule()
		if r == nil {
			return errors.New("grammar has no public rule")
		}
		name = r.Name
	}
	m, err := g.Compile(name, jsgf.WithLanguageWeight(*lw))
	if err != nil {
		return err
	}
	if *test {
		return check(m, stdin, stdout)
	}
	if *out != "" {
		return m.WriteFile(*out)
	}
	return m.Write(stdout)
}

// check prints ACCEPT or REJECT for every line of words read from r.
func check(m *fsg.Model, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		verdict := "REJECT"
		if m.Matches(strings.Fields(line)) {
			verdict = "ACCEPT"
		}
		fmt.Fprintf(w, "%s\t%s\n", verdict, line)
	}
	return sc.Err()
}
