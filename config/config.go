// Package config holds decoder options. A Config is built with Default,
// adjusted with Set, Parse or the file and environment loaders, and frozen
// when a decoder is created from it.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/jsgf"
)

var (
	// ErrInvalidOption is returned for unknown option names and badly typed or out of range values.
	ErrInvalidOption = errors.New("invalid option")
	// ErrMissingModel is returned when no acoustic model is configured.
	ErrMissingModel = errors.New("no acoustic model configured")
	// ErrSampleRateMismatch is returned when audio does not match the configured sample rate.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	// ErrFrozen is returned when modifying a Config already used by a decoder.
	ErrFrozen = errors.New("config is frozen")
)

// Error describes a problem with one option.
type Error struct {
	Option string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("config: %s: %v", e.Option, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Config is a set of decoder options.
type Config struct {
	values map[string]any
	jsgf   *jsgf.Grammar
	fsg    *fsg.Model
	frozen atomic.Bool
}

// Default returns a Config with every option at its default value.
func Default() *Config {
	c := &Config{values: make(map[string]any, len(registry))}
	for _, o := range registry {
		c.values[o.Name] = o.Default
	}
	return c
}

// Set assigns an option. The value must have the option's type; integers
// are accepted for float options.
func (c *Config) Set(name string, value any) error {
	if c.frozen.Load() {
		return &Error{Option: name, Err: ErrFrozen}
	}
	o, ok := byName[name]
	if !ok {
		return &Error{Option: name, Err: ErrInvalidOption, Detail: "unknown option"}
	}
	v, err := coerce(o.Kind, value)
	if err != nil {
		return &Error{Option: name, Err: ErrInvalidOption, Detail: err.Error()}
	}
	if o.check != nil {
		if err := o.check(v); err != nil {
			return &Error{Option: name, Err: ErrInvalidOption, Detail: err.Error()}
		}
	}
	c.values[name] = v
	return nil
}

func coerce(kind Kind, value any) (any, error) {
	switch kind {
	case KindString, KindPath:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindInt:
		switch n := value.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		}
	case KindFloat:
		switch n := value.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("want %s, got %T", kind, value)
}

// Parse assigns an option from its text form.
func (c *Config) Parse(name, text string) error {
	o, ok := byName[name]
	if !ok {
		return &Error{Option: name, Err: ErrInvalidOption, Detail: "unknown option"}
	}
	text = strings.TrimSpace(text)
	var (
		v   any
		err error
	)
	switch o.Kind {
	case KindString, KindPath:
		v = text
	case KindInt:
		v, err = strconv.Atoi(text)
	case KindFloat:
		v, err = strconv.ParseFloat(text, 64)
	case KindBool:
		v, err = strconv.ParseBool(text)
	}
	if err != nil {
		return &Error{Option: name, Err: ErrInvalidOption, Detail: err.Error()}
	}
	return c.Set(name, v)
}

// Get returns the value of an option and whether the option exists.
func (c *Config) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// String returns a string or path option, "" if unset or of another kind.
func (c *Config) String(name string) string {
	s, _ := c.values[name].(string)
	return s
}

// Int returns an integer option.
func (c *Config) Int(name string) int {
	n, _ := c.values[name].(int)
	return n
}

// Float returns a float option.
func (c *Config) Float(name string) float64 {
	f, _ := c.values[name].(float64)
	return f
}

// Bool returns a boolean option.
func (c *Config) Bool(name string) bool {
	b, _ := c.values[name].(bool)
	return b
}

// SetJSGF parses grammar text and attaches it as the decoding grammar,
// replacing any grammar set before.
func (c *Config) SetJSGF(text string) error {
	if c.frozen.Load() {
		return &Error{Option: "jsgf", Err: ErrFrozen}
	}
	g, err := jsgf.Parse(text)
	if err != nil {
		return err
	}
	c.jsgf, c.fsg = g, nil
	return nil
}

// SetFSG attaches a finite-state grammar as the decoding grammar, replacing
// any grammar set before.
func (c *Config) SetFSG(m *fsg.Model) error {
	if c.frozen.Load() {
		return &Error{Option: "fsg", Err: ErrFrozen}
	}
	if err := m.Validate(); err != nil {
		return &Error{Option: "fsg", Err: ErrInvalidOption, Detail: err.Error()}
	}
	c.jsgf, c.fsg = nil, m
	return nil
}

// JSGF returns the attached JSGF grammar, if any.
func (c *Config) JSGF() *jsgf.Grammar { return c.jsgf }

// FSG returns the attached finite-state grammar, if any.
func (c *Config) FSG() *fsg.Model { return c.fsg }

// Freeze makes the Config read-only. Decoders built concurrently from one
// Config may all call it.
func (c *Config) Freeze() { c.frozen.Store(true) }

// Frozen reports whether the Config is read-only.
func (c *Config) Frozen() bool { return c.frozen.Load() }

// Clone returns a modifiable copy. Attached grammars are shared.
func (c *Config) Clone() *Config {
	n := &Config{values: make(map[string]any, len(c.values)), jsgf: c.jsgf, fsg: c.fsg}
	for k, v := range c.values {
		n.values[k] = v
	}
	return n
}

// Validate checks combinations of options. All problems are reported.
func (c *Config) Validate() error {
	var err error
	if c.String("hmm") == "" {
		err = multierr.Append(err, &Error{Option: "hmm", Err: ErrMissingModel})
	}
	var modes []string
	for _, name := range searchModes {
		if c.String(name) != "" {
			modes = append(modes, name)
		}
	}
	if len(modes) > 1 {
		err = multierr.Append(err, &Error{Option: modes[1], Err: ErrInvalidOption, Detail: strings.Join(modes, " and ") + " are mutually exclusive"})
	}
	if c.String("toprule") != "" && c.String("jsgf") == "" && c.jsgf == nil {
		err = multierr.Append(err, &Error{Option: "toprule", Err: ErrInvalidOption, Detail: "requires a JSGF grammar"})
	}
	if c.Bool("endpoint") {
		if err2 := CheckVADRate(c.Int("samprate")); err2 != nil {
			err = multierr.Append(err, err2)
		}
	}
	if c.Float("upperf") > float64(c.Int("samprate"))/2 {
		err = multierr.Append(err, &Error{Option: "upperf", Err: ErrInvalidOption, Detail: "above the Nyquist frequency"})
	}
	if c.Float("lowerf") >= c.Float("upperf") {
		err = multierr.Append(err, &Error{Option: "lowerf", Err: ErrInvalidOption, Detail: "must be below upperf"})
	}
	if c.Float("wlen")*float64(c.Int("samprate")) > float64(c.Int("nfft")) {
		err = multierr.Append(err, &Error{Option: "nfft", Err: ErrInvalidOption, Detail: "smaller than the analysis window"})
	}
	return err
}

// searchModes are the options that each select the default search.
var searchModes = []string{"jsgf", "fsg", "keyphrase", "kws"}

// CheckVADRate reports whether the voice activity detector supports a rate.
func CheckVADRate(rate int) error {
	switch rate {
	case 8000, 16000, 32000, 48000:
		return nil
	}
	return &Error{Option: "samprate", Err: ErrInvalidOption, Detail: fmt.Sprintf("endpointing supports 8000, 16000, 32000 or 48000 Hz, got %d", rate)}
}

// CheckSampleRate compares the rate of an audio source with samprate.
func (c *Config) CheckSampleRate(rate int) error {
	if want := c.Int("samprate"); rate != want {
		return &Error{Option: "samprate", Err: ErrSampleRateMismatch, Detail: fmt.Sprintf("audio is %d Hz, decoder expects %d Hz", rate, want)}
	}
	return nil
}
