package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Kind is the value type of an option.
type Kind int

const (
	KindString Kind = iota
	KindPath
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindPath:
		return "path"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Option describes one configuration option.
type Option struct {
	Name    string
	Kind    Kind
	Default any
	Doc     string

	check func(v any) error
}

func positiveInt(v any) error {
	if v.(int) <= 0 {
		return fmt.Errorf("must be positive, got %d", v.(int))
	}
	return nil
}

func positiveFloat(v any) error {
	if v.(float64) <= 0 {
		return fmt.Errorf("must be positive, got %v", v.(float64))
	}
	return nil
}

func probability(v any) error {
	if f := v.(float64); f <= 0 || f > 1 {
		return fmt.Errorf("must be in (0,1], got %v", f)
	}
	return nil
}

func oneOf(values ...string) func(any) error {
	return func(v any) error {
		for _, s := range values {
			if v.(string) == s {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(values, "|"), v.(string))
	}
}

var registry = []Option{
	{Name: "hmm", Kind: KindPath, Default: "", Doc: "acoustic model file"},
	{Name: "dict", Kind: KindPath, Default: "", Doc: "pronunciation dictionary file"},
	{Name: "jsgf", Kind: KindPath, Default: "", Doc: "JSGF grammar file"},
	{Name: "fsg", Kind: KindPath, Default: "", Doc: "finite-state grammar file"},
	{Name: "toprule", Kind: KindString, Default: "", Doc: "JSGF rule to decode with, default the first public rule"},
	{Name: "keyphrase", Kind: KindString, Default: "", Doc: "phrase to spot in continuous audio"},
	{Name: "kws", Kind: KindPath, Default: "", Doc: "file of phrases to spot, one per line, each optionally followed by /threshold/"},
	{Name: "kws_threshold", Kind: KindFloat, Default: 1e-2, Doc: "cost of detecting a phrase, as a probability", check: probability},
	{Name: "kws_plp", Kind: KindFloat, Default: 0.1, Doc: "cost of each background phone while spotting, as a probability", check: probability},

	{Name: "samprate", Kind: KindInt, Default: 16000, Doc: "audio sample rate in Hz", check: positiveInt},
	{Name: "frate", Kind: KindInt, Default: 100, Doc: "feature frames per second", check: positiveInt},
	{Name: "wlen", Kind: KindFloat, Default: 0.025, Doc: "analysis window length in seconds", check: positiveFloat},
	{Name: "nfft", Kind: KindInt, Default: 512, Doc: "FFT size", check: func(v any) error {
		if n := v.(int); n <= 0 || n&(n-1) != 0 {
			return fmt.Errorf("must be a power of two, got %d", n)
		}
		return nil
	}},
	{Name: "nfilt", Kind: KindInt, Default: 26, Doc: "number of mel filters", check: positiveInt},
	{Name: "ncep", Kind: KindInt, Default: 13, Doc: "number of cepstral coefficients", check: positiveInt},
	{Name: "lowerf", Kind: KindFloat, Default: 0.0, Doc: "lower edge of the filterbank in Hz"},
	{Name: "upperf", Kind: KindFloat, Default: 8000.0, Doc: "upper edge of the filterbank in Hz", check: positiveFloat},
	{Name: "alpha", Kind: KindFloat, Default: 0.97, Doc: "pre-emphasis coefficient"},
	{Name: "lifter", Kind: KindInt, Default: 22, Doc: "cepstral liftering length, 0 disables"},
	{Name: "cmn", Kind: KindString, Default: "live", Doc: "cepstral mean normalization: live, batch or none", check: oneOf("live", "batch", "none")},
	{Name: "cmninit", Kind: KindString, Default: "", Doc: "comma-separated initial cepstral means for live CMN"},

	{Name: "beam", Kind: KindFloat, Default: 1e-48, Doc: "HMM state beam, as a probability", check: probability},
	{Name: "wbeam", Kind: KindFloat, Default: 7e-29, Doc: "word exit beam, as a probability", check: probability},
	{Name: "maxhmmpf", Kind: KindInt, Default: 30000, Doc: "maximum active HMM states per frame", check: positiveInt},
	{Name: "lw", Kind: KindFloat, Default: 6.5, Doc: "language weight", check: positiveFloat},
	{Name: "wip", Kind: KindFloat, Default: 0.65, Doc: "word insertion probability", check: probability},
	{Name: "silprob", Kind: KindFloat, Default: 0.005, Doc: "silence insertion probability", check: probability},
	{Name: "logbase", Kind: KindFloat, Default: 1.0001, Doc: "base of reported log scores", check: func(v any) error {
		if v.(float64) <= 1 {
			return fmt.Errorf("must be greater than 1, got %v", v.(float64))
		}
		return nil
	}},
	{Name: "nbest_max", Kind: KindInt, Default: 10000, Doc: "maximum N-best search expansions", check: positiveInt},

	{Name: "endpoint", Kind: KindBool, Default: false, Doc: "split the stream into utterances on detected silence"},
	{Name: "vad_mode", Kind: KindInt, Default: 0, Doc: "voice activity detector aggressiveness, 0 (loose) to 3 (strict)", check: func(v any) error {
		if m := v.(int); m < 0 || m > 3 {
			return fmt.Errorf("must be 0-3, got %d", m)
		}
		return nil
	}},
	{Name: "vad_window", Kind: KindFloat, Default: 0.3, Doc: "endpointer window in seconds", check: positiveFloat},
	{Name: "vad_ratio", Kind: KindFloat, Default: 0.9, Doc: "fraction of window frames that must agree to change state", check: probability},
	{Name: "vad_frame", Kind: KindFloat, Default: 0.03, Doc: "voice activity detector frame length in seconds: 0.01, 0.02 or 0.03", check: func(v any) error {
		switch v.(float64) {
		case 0.01, 0.02, 0.03:
			return nil
		}
		return fmt.Errorf("must be 0.01, 0.02 or 0.03, got %v", v.(float64))
	}},
	{Name: "loglevel", Kind: KindString, Default: "info", Doc: "decoder log level", check: func(v any) error {
		_, err := zapcore.ParseLevel(v.(string))
		return err
	}},
}

var byName = func() map[string]*Option {
	m := make(map[string]*Option, len(registry))
	for i := range registry {
		m[registry[i].Name] = &registry[i]
	}
	return m
}()

// Options returns the descriptions of all options in declaration order.
func Options() []Option {
	return append([]Option(nil), registry...)
}

// Lookup returns the description of an option.
func Lookup(name string) (Option, bool) {
	o, ok := byName[name]
	if !ok {
		return Option{}, false
	}
	return *o, true
}
