// Command psdecode decodes WAV files against a grammar and prints the
// results as YAML.
//
//	psdecode -hmm model.gob -dict words.dict -jsgf digits.gram a.wav b.wav
//
// Options not covered by a flag are set with -set name=value. Variables
// named SPHINX_<OPTION> in the environment or a .env file apply before
// the flags.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	sphinx "github.com/ieee0824/sphinx-go"
	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/decoder"
	"github.com/ieee0824/sphinx-go/internal/logging"
)

const envPrefix = "SPHINX"

type settings []string

func (s *settings) String() string     { return strings.Join(*s, ",") }
func (s *settings) Set(v string) error { *s = append(*s, v); return nil }

type word struct {
	Word  string `yaml:"word"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Score int32  `yaml:"ascr"`
}

type alternative struct {
	Text  string `yaml:"text"`
	Score int32  `yaml:"score"`
}

type unit struct {
	Name     string `yaml:"name"`
	Start    int    `yaml:"start"`
	Duration int    `yaml:"duration"`
	Score    int32  `yaml:"score"`
	Children []unit `yaml:"children,omitempty"`
}

type record struct {
	File      string        `yaml:"file"`
	UttID     string        `yaml:"utt,omitempty"`
	Text      string        `yaml:"text"`
	Score     int32         `yaml:"score"`
	Words     []word        `yaml:"words,omitempty"`
	NBest     []alternative `yaml:"nbest,omitempty"`
	Alignment []unit        `yaml:"alignment,omitempty"`
	Speech    float64       `yaml:"speech"`
	RealTime  float64       `yaml:"xrt"`
	Error     string        `yaml:"error,omitempty"`
}

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("psdecode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML, JSON or TOML file of decoder options")
	hmm := fs.String("hmm", "", "acoustic model file")
	dict := fs.String("dict", "", "pronunciation dictionary")
	gram := fs.String("jsgf", "", "JSGF grammar file")
	fsgPath := fs.String("fsg", "", "FSG grammar file")
	keyphrase := fs.String("keyphrase", "", "phrase to spot instead of decoding with a grammar")
	kws := fs.String("kws", "", "file of phrases to spot")
	nbest := fs.Int("nbest", 0, "number of alternative hypotheses to print")
	align := fs.Bool("align", false, "print a word, phone and state alignment")
	jobs := fs.Int("j", 1, "files decoded concurrently")
	dump := fs.Bool("dump-config", false, "print the effective options and exit")
	level := fs.String("log-level", "", "log level (default: the loglevel option)")
	var set settings
	fs.Var(&set, "set", "decoder option as name=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := buildConfig(*cfgPath, map[string]string{
		"hmm": *hmm, "dict": *dict, "jsgf": *gram, "fsg": *fsgPath,
		"keyphrase": *keyphrase, "kws": *kws,
	}, set)
	if err != nil {
		return err
	}
	if *level == "" {
		*level = cfg.String("loglevel")
	}
	log := logging.NewTo(stderr, *level, "psdecode")
	defer log.Sync()
	if *dump {
		return cfg.WriteYAML(stdout)
	}
	if fs.NArg() == 0 {
		return errors.New("no input files")
	}

	rec, err := sphinx.NewRecognizerFromConfig(cfg,
		sphinx.WithLogger(log), sphinx.WithNBest(*nbest), sphinx.WithAlignment(*align))
	if err != nil {
		return err
	}

	files := fs.Args()
	records := make([]record, len(files))
	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			records[i] = decodeFile(rec, path, log)
			return nil
		})
	}
	g.Wait()

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	for _, r := range records {
		if r.Error != "" {
			return fmt.Errorf("%s: %s", r.File, r.Error)
		}
	}
	return nil
}

// buildConfig layers the config file, the environment, the path flags and
// the -set options over the defaults, in that order.
func buildConfig(path string, paths map[string]string, set []string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envPrefix); err != nil {
		return nil, err
	}
	for _, name := range []string{"hmm", "dict", "jsgf", "fsg", "keyphrase", "kws"} {
		if v := paths[name]; v != "" {
			if err := cfg.Set(name, v); err != nil {
				return nil, err
			}
		}
	}
	for _, kv := range set {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("-set %q: expected name=value", kv)
		}
		if err := cfg.Parse(name, value); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func decodeFile(rec *sphinx.Recognizer, path string, log *zap.Logger) record {
	out := record{File: path}
	res, err := rec.RecognizeFile(path)
	if err != nil {
		log.Warn("decode failed", zap.String("file", path), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.UttID = res.UttID
	out.Text = res.Text()
	if res.Hypothesis != nil {
		out.Score = res.Hypothesis.Score
	}
	for _, s := range res.Segments {
		out.Words = append(out.Words, word{Word: s.Word, Start: s.Start, End: s.End, Score: s.AcousticScore})
	}
	for _, h := range res.NBest {
		out.NBest = append(out.NBest, alternative{Text: h.Text, Score: h.Score})
	}
	if res.Alignment != nil {
		out.Alignment = units(res.Alignment.Words())
	}
	out.Speech = res.Perf.Speech
	out.RealTime = res.Perf.RealTime()
	log.Info("decoded", zap.String("file", path), zap.String("text", out.Text))
	return out
}

func units(in []decoder.Unit) []unit {
	if len(in) == 0 {
		return nil
	}
	out := make([]unit, len(in))
	for i, u := range in {
		out[i] = unit{Name: u.Name, Start: u.Start, Duration: u.Duration, Score: u.Score, Children: units(u.Children)}
	}
	return out
}
