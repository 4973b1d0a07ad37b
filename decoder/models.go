package decoder

import (
	"fmt"

	"github.com/ieee0824/sphinx-go/acoustic"
	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/lexicon"
)

// Models are the acoustic model and dictionary a decoder searches with.
// Decoders only read them, so one Models may back several decoders.
type Models struct {
	AM   *acoustic.Model
	Dict *lexicon.Dictionary
}

// LoadModels loads the acoustic model named by hmm and the dictionary
// named by dict. Without a dictionary only the filler words are known.
func LoadModels(cfg *config.Config) (*Models, error) {
	path := cfg.String("hmm")
	if path == "" {
		return nil, &config.Error{Option: "hmm", Err: config.ErrMissingModel}
	}
	am, err := acoustic.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load acoustic model: %w", err)
	}
	if err := am.Validate(); err != nil {
		return nil, fmt.Errorf("acoustic model %s: %w", path, err)
	}
	dict := lexicon.NewDictionary()
	if p := cfg.String("dict"); p != "" {
		if dict, err = lexicon.LoadFile(p); err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
	}
	if err := dict.CheckPhones(am); err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	return &Models{AM: am, Dict: dict}, nil
}
