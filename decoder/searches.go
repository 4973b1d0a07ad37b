package decoder

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/jsgf"
	"github.com/ieee0824/sphinx-go/search"
)

// DefaultSearch names the search built from the config's grammar.
const DefaultSearch = "_default"

var (
	// ErrUnknownSearch is returned for a search name never added.
	ErrUnknownSearch = errors.New("no such search")
	// ErrSearchInUse is returned when removing the active search.
	ErrSearchInUse = errors.New("search is active")
)

// configGrammar compiles the grammar attached to or named by cfg, along
// with the phrases when it is a keyword-spotting search. It returns nil
// when there is none.
func (d *Decoder) configGrammar(cfg *config.Config) (*fsg.Model, []Keyphrase, error) {
	g := cfg.JSGF()
	switch {
	case cfg.FSG() != nil:
		return cfg.FSG(), nil, nil
	case g != nil:
	case cfg.String("jsgf") != "":
		var err error
		if g, err = jsgf.ParseFile(cfg.String("jsgf")); err != nil {
			return nil, nil, &config.Error{Option: "jsgf", Err: config.ErrInvalidOption, Detail: err.Error()}
		}
	case cfg.String("fsg") != "":
		m, err := fsg.ReadFile(cfg.String("fsg"))
		if err != nil {
			return nil, nil, &config.Error{Option: "fsg", Err: config.ErrInvalidOption, Detail: err.Error()}
		}
		return m, nil, nil
	case cfg.String("keyphrase") != "":
		phrases := []Keyphrase{{Text: cfg.String("keyphrase"), Threshold: cfg.Float("kws_threshold")}}
		m, err := d.keyphraseGrammar(DefaultSearch, phrases)
		if err != nil {
			return nil, nil, &config.Error{Option: "keyphrase", Err: config.ErrInvalidOption, Detail: err.Error()}
		}
		return m, phrases, nil
	case cfg.String("kws") != "":
		phrases, err := readKeyphrases(cfg.String("kws"), cfg.Float("kws_threshold"))
		if err == nil {
			var m *fsg.Model
			if m, err = d.keyphraseGrammar(DefaultSearch, phrases); err == nil {
				return m, phrases, nil
			}
		}
		return nil, nil, &config.Error{Option: "kws", Err: config.ErrInvalidOption, Detail: err.Error()}
	default:
		return nil, nil, nil
	}
	m, err := d.compile(g, cfg.String("toprule"))
	if err != nil {
		return nil, nil, &config.Error{Option: "jsgf", Err: config.ErrInvalidOption, Detail: err.Error()}
	}
	return m, nil, nil
}

// compile turns a JSGF grammar into an FSG, from rule or else from the
// first public rule. Rules the start rule never reaches are logged.
func (d *Decoder) compile(g *jsgf.Grammar, rule string) (*fsg.Model, error) {
	if rule == "" {
		r := g.PublicRule()
		if r == nil {
			return nil, fmt.Errorf("jsgf: grammar has no public rule")
		}
		rule = r.Name
	}
	m, err := g.Compile(rule)
	if err != nil {
		return nil, err
	}
	if unused := g.Unused(rule); len(unused) > 0 {
		d.log.Warn("grammar rules not reachable from the start rule",
			zap.String("rule", rule), zap.Strings("unused", unused))
	}
	return m, nil
}

// checkVocabulary reports every grammar word missing from the dictionary.
func (d *Decoder) checkVocabulary(m *fsg.Model) error {
	var err error
	for _, w := range m.Vocabulary() {
		if len(d.dict.Lookup(w)) == 0 {
			err = multierr.Append(err, &WordNotInDictionaryError{Word: w})
		}
	}
	return err
}

func (d *Decoder) setGrammar(m *fsg.Model) error {
	if err := d.engine.SetGrammar(m); err != nil {
		var missing *search.MissingWordError
		if errors.As(err, &missing) {
			return &WordNotInDictionaryError{Word: missing.Word}
		}
		return &EngineError{Op: "grammar", Err: err}
	}
	return nil
}

// installSearch adds a search and makes it current.
func (d *Decoder) installSearch(name string, m *fsg.Model) error {
	if err := d.AddFSG(name, m); err != nil {
		return err
	}
	if err := d.setGrammar(m); err != nil {
		return err
	}
	d.current = name
	return nil
}

// AddFSG adds a named search over a finite-state grammar. An existing
// search of the same name is replaced; the active one takes effect with
// the next utterance.
func (d *Decoder) AddFSG(name string, m *fsg.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := d.checkVocabulary(m); err != nil {
		return err
	}
	d.searches[name] = m
	delete(d.keyphrases, name)
	if name == d.current {
		d.dirty = true
	}
	return nil
}

// AddJSGF compiles grammar text and adds it as a named search.
func (d *Decoder) AddJSGF(name, text string) error {
	g, err := jsgf.Parse(text)
	if err != nil {
		return err
	}
	m, err := d.compile(g, "")
	if err != nil {
		return err
	}
	return d.AddFSG(name, m)
}

// AddJSGFFile compiles a grammar file and adds it as a named search.
func (d *Decoder) AddJSGFFile(name, path string) error {
	g, err := jsgf.ParseFile(path)
	if err != nil {
		return err
	}
	m, err := d.compile(g, "")
	if err != nil {
		return err
	}
	return d.AddFSG(name, m)
}

// SetSearch activates a named search. It cannot be called inside an
// utterance.
func (d *Decoder) SetSearch(name string) error {
	if d.state == InUtterance {
		return d.stateErr("SetSearch", ErrAlreadyInUtterance)
	}
	m, ok := d.searches[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSearch, name)
	}
	if d.dirty {
		// The dictionary changed since the engine was built.
		prev := d.current
		d.current = name
		if err := d.rebuildEngine(); err != nil {
			d.current = prev
			return err
		}
	} else if err := d.setGrammar(m); err != nil {
		return err
	}
	d.current = name
	d.log.Debug("search activated", zap.String("search", name))
	return nil
}

// CurrentSearch returns the name of the active search, "" if none.
func (d *Decoder) CurrentSearch() string { return d.current }

// RemoveSearch drops a named search other than the active one.
func (d *Decoder) RemoveSearch(name string) error {
	if _, ok := d.searches[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSearch, name)
	}
	if name == d.current {
		return fmt.Errorf("%w: %q", ErrSearchInUse, name)
	}
	delete(d.searches, name)
	delete(d.keyphrases, name)
	return nil
}

// Searches returns the search names in sorted order.
func (d *Decoder) Searches() []string {
	names := make([]string, 0, len(d.searches))
	for n := range d.searches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Grammar returns the grammar of a named search.
func (d *Decoder) Grammar(name string) (*fsg.Model, bool) {
	m, ok := d.searches[name]
	return m, ok
}

func (d *Decoder) rebuildEngine() error {
	eng, err := d.factory(d.models.AM, d.dict, d.params)
	if err != nil {
		return &EngineError{Op: "create", Err: err}
	}
	old := d.engine
	d.engine = eng
	if m, ok := d.searches[d.current]; ok {
		if err := d.setGrammar(m); err != nil {
			d.engine = old
			return err
		}
	}
	d.dirty = false
	return nil
}
