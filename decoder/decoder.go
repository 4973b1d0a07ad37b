// Package decoder runs utterances through a search engine. A Decoder is
// created from a frozen config.Config, fed audio between StartUtt and
// EndUtt, and then queried for the hypothesis, segments, N-best list,
// lattice nodes and forced alignment of the sealed utterance.
//
// A Decoder is not safe for concurrent use.
package decoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ieee0824/sphinx-go/audio"
	"github.com/ieee0824/sphinx-go/config"
	"github.com/ieee0824/sphinx-go/feature"
	"github.com/ieee0824/sphinx-go/fsg"
	"github.com/ieee0824/sphinx-go/lexicon"
	"github.com/ieee0824/sphinx-go/logmath"
	"github.com/ieee0824/sphinx-go/search"
	"github.com/ieee0824/sphinx-go/vad"
)

// Decoder is a speech recognition session.
type Decoder struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *Metrics
	factory search.Factory

	models  *Models
	shared  bool // models were supplied by the caller
	dict    *lexicon.Dictionary
	ownDict bool // dict is a private copy that may be edited

	lmath   *logmath.LogMath
	params  search.Params
	featCfg feature.Config
	fe      *feature.Extractor
	ep      *vad.Endpointer
	engine  search.Engine
	dirty   bool // engine must be rebuilt before the next utterance

	searches   map[string]*fsg.Model
	keyphrases map[string][]Keyphrase // searches built by AddKeyphrases
	current    string

	state State
	gen   uint64
	utt   *utterance
	total Perf
}

type utterance struct {
	id       string
	frames   [][]float64
	searched int
	full     bool
	tb       *search.Traceback
	begin    time.Time
	cpu      time.Duration
	wall     time.Duration
}

// New creates a decoder. The config is frozen. Without WithModels the
// acoustic model and dictionary are loaded from hmm and dict.
func New(cfg *config.Config, opts ...Option) (*Decoder, error) {
	d := &Decoder{
		log:     zap.NewNop(),
		factory: search.NewFSGEngine,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.shared = d.models != nil
	if err := d.init(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) init(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := d.validate(cfg); err != nil {
		return err
	}
	cfg.Freeze()
	d.cfg = cfg

	if !d.shared {
		m, err := LoadModels(cfg)
		if err != nil {
			return err
		}
		d.models = m
	}
	if d.models.AM == nil {
		return &config.Error{Option: "hmm", Err: config.ErrMissingModel}
	}
	d.dict, d.ownDict = d.models.Dict, false
	if d.dict == nil {
		d.dict, d.ownDict = lexicon.NewDictionary(), true
	}

	lm, err := logmath.New(cfg.Float("logbase"), 0, true)
	if err != nil {
		return &config.Error{Option: "logbase", Err: config.ErrInvalidOption, Detail: err.Error()}
	}
	d.lmath = lm
	d.params = search.Params{
		Beam:      cfg.Float("beam"),
		WordBeam:  cfg.Float("wbeam"),
		MaxActive: cfg.Int("maxhmmpf"),
		LW:        cfg.Float("lw"),
		WIP:       cfg.Float("wip"),
		SilProb:   cfg.Float("silprob"),
	}

	if d.featCfg, err = featureConfig(cfg); err != nil {
		return err
	}
	if d.fe, err = feature.NewExtractor(d.featCfg); err != nil {
		return &config.Error{Option: "samprate", Err: config.ErrInvalidOption, Detail: err.Error()}
	}
	if dim := d.featCfg.FeatureDim(); dim != d.models.AM.FeatureDim {
		d.log.Warn("front end and acoustic model dimensions differ, only ProcessCep can be used",
			zap.Int("frontend", dim), zap.Int("model", d.models.AM.FeatureDim))
	}

	d.ep = nil
	if cfg.Bool("endpoint") {
		det, err := vad.New(vad.Mode(cfg.Int("vad_mode")), cfg.Int("samprate"), cfg.Float("vad_frame"))
		if err != nil {
			return &config.Error{Option: "vad_mode", Err: config.ErrInvalidOption, Detail: err.Error()}
		}
		if d.ep, err = vad.NewEndpointer(det, cfg.Float("vad_window"), cfg.Float("vad_ratio")); err != nil {
			return &config.Error{Option: "vad_window", Err: config.ErrInvalidOption, Detail: err.Error()}
		}
	}

	if d.engine, err = d.factory(d.models.AM, d.dict, d.params); err != nil {
		return &EngineError{Op: "create", Err: err}
	}
	d.dirty = false
	d.searches = make(map[string]*fsg.Model)
	d.keyphrases = make(map[string][]Keyphrase)
	d.current = ""
	g, phrases, err := d.configGrammar(cfg)
	if err != nil {
		return err
	}
	if g != nil {
		if err := d.installSearch(DefaultSearch, g); err != nil {
			return err
		}
	}
	if phrases != nil {
		d.keyphrases[DefaultSearch] = phrases
	}
	d.state = Idle
	d.utt = nil
	return nil
}

// validate runs the config checks. A missing hmm is fine when the models
// were supplied directly.
func (d *Decoder) validate(cfg *config.Config) error {
	var kept []error
	for _, err := range multierr.Errors(cfg.Validate()) {
		if d.shared && errors.Is(err, config.ErrMissingModel) {
			continue
		}
		kept = append(kept, err)
	}
	return multierr.Combine(kept...)
}

func featureConfig(cfg *config.Config) (feature.Config, error) {
	fc := feature.DefaultConfig()
	fc.SampleRate = cfg.Int("samprate")
	fc.FrameLenMs = cfg.Float("wlen") * 1000
	fc.FrameShiftMs = 1000 / float64(cfg.Int("frate"))
	fc.PreEmphCoeff = cfg.Float("alpha")
	fc.NumMelFilters = cfg.Int("nfilt")
	fc.NumCepstra = cfg.Int("ncep")
	fc.LowFreq = cfg.Float("lowerf")
	fc.HighFreq = cfg.Float("upperf")
	fc.FFTSize = cfg.Int("nfft")
	fc.CepLifter = cfg.Int("lifter")

	mode, err := feature.ParseCMNMode(cfg.String("cmn"))
	if err != nil {
		return fc, &config.Error{Option: "cmn", Err: config.ErrInvalidOption, Detail: err.Error()}
	}
	fc.CMN = mode
	if s := strings.TrimSpace(cfg.String("cmninit")); s != "" {
		parts := strings.Split(s, ",")
		fc.CMNInit = make([]float64, len(parts))
		for i, p := range parts {
			if fc.CMNInit[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
				return fc, &config.Error{Option: "cmninit", Err: config.ErrInvalidOption, Detail: err.Error()}
			}
		}
	}
	if err := fc.Validate(); err != nil {
		return fc, &config.Error{Option: "samprate", Err: config.ErrInvalidOption, Detail: err.Error()}
	}
	return fc, nil
}

// Reinit rebuilds the decoder from a new config and returns it to Idle.
// Results of earlier utterances become stale. On error the decoder is
// left as it was.
func (d *Decoder) Reinit(cfg *config.Config) error {
	n := &Decoder{
		log:     d.log,
		metrics: d.metrics,
		factory: d.factory,
		shared:  d.shared,
		total:   d.total,
	}
	if d.shared {
		n.models = d.models
	}
	if err := n.init(cfg); err != nil {
		return err
	}
	n.gen = d.gen + 1
	*d = *n
	d.log.Debug("decoder reinitialized")
	return nil
}

// Config returns the frozen config the decoder was built from.
func (d *Decoder) Config() *config.Config { return d.cfg }

// LogMath returns the log table scores are reported in.
func (d *Decoder) LogMath() *logmath.LogMath { return d.lmath }

// State returns the utterance state.
func (d *Decoder) State() State { return d.state }

// UttID returns the ID of the current or last utterance.
func (d *Decoder) UttID() string {
	if d.utt == nil {
		return ""
	}
	return d.utt.id
}

// NumFrames returns the feature frames of the current or last utterance.
func (d *Decoder) NumFrames() int {
	if d.utt == nil {
		return 0
	}
	return len(d.utt.frames)
}

// InSpeech reports whether the endpointer is inside a speech segment.
func (d *Decoder) InSpeech() bool { return d.ep != nil && d.ep.InSpeech() }

func (d *Decoder) stateErr(op string, err error) error {
	return &StateError{Op: op, State: d.state, Err: err}
}

// StartUtt begins an utterance.
func (d *Decoder) StartUtt() error {
	if d.state == InUtterance {
		return d.stateErr("StartUtt", ErrAlreadyInUtterance)
	}
	if err := d.startUtt(); err != nil {
		return err
	}
	if d.ep != nil {
		d.ep.Reset()
	}
	return nil
}

func (d *Decoder) startUtt() error {
	if d.dirty {
		if err := d.rebuildEngine(); err != nil {
			return err
		}
	}
	if err := d.engine.Start(); err != nil {
		d.metrics.failure("start")
		return &EngineError{Op: "start", Err: err}
	}
	d.gen++
	d.utt = &utterance{id: uuid.NewString(), begin: time.Now()}
	d.fe.Start()
	d.state = InUtterance
	d.log.Debug("utterance started", zap.String("utt", d.utt.id), zap.String("search", d.current))
	return nil
}

// ProcessRaw feeds 16-bit samples and returns the number of frames
// searched. With noSearch the frames are only buffered and are searched by
// a later call. fullUtt declares that samples hold the whole utterance,
// which then gets batch mean normalization. It is ignored when endpointing,
// and after audio has already been fed.
//
// When endpointing, the returned events report speech boundaries. Each
// SpeechEnd seals the current utterance and starts the next one.
func (d *Decoder) ProcessRaw(samples []int16, noSearch, fullUtt bool) (int, []EndpointEvent, error) {
	if d.state != InUtterance {
		return 0, nil, d.stateErr("ProcessRaw", ErrNotInUtterance)
	}
	if len(samples) == 0 {
		return 0, nil, nil
	}
	defer d.charge(time.Now())
	if d.ep != nil {
		return d.processEndpointed(samples, noSearch)
	}
	n, err := d.processSamples(audio.Int16ToFloat(samples), noSearch, fullUtt)
	return n, nil, err
}

// ProcessFloat is ProcessRaw for samples scaled to [-1, 1).
func (d *Decoder) ProcessFloat(samples []float64, noSearch, fullUtt bool) (int, []EndpointEvent, error) {
	if d.state != InUtterance {
		return 0, nil, d.stateErr("ProcessFloat", ErrNotInUtterance)
	}
	if len(samples) == 0 {
		return 0, nil, nil
	}
	if d.ep != nil {
		return d.ProcessRaw(audio.FloatToInt16(samples), noSearch, false)
	}
	defer d.charge(time.Now())
	n, err := d.processSamples(samples, noSearch, fullUtt)
	return n, nil, err
}

// ProcessCep feeds feature frames directly, bypassing the front end.
func (d *Decoder) ProcessCep(frames [][]float64, noSearch bool) (int, error) {
	if d.state != InUtterance {
		return 0, d.stateErr("ProcessCep", ErrNotInUtterance)
	}
	if len(frames) == 0 {
		return 0, nil
	}
	defer d.charge(time.Now())
	u := d.utt
	n0 := len(u.frames)
	for _, f := range frames {
		u.frames = append(u.frames, append([]float64(nil), f...))
	}
	if noSearch {
		return 0, nil
	}
	n, err := d.search()
	if err != nil {
		u.frames = u.frames[:n0]
		return 0, err
	}
	return n, nil
}

func (d *Decoder) charge(start time.Time) {
	if d.utt != nil {
		d.utt.cpu += time.Since(start)
	}
}

func (d *Decoder) processSamples(samples []float64, noSearch, fullUtt bool) (int, error) {
	u := d.utt
	n0 := len(u.frames)
	if fullUtt && n0 == 0 && d.fe.NumFrames() == 0 {
		cfg := d.featCfg
		cfg.CMN = feature.CMNBatch
		frames, err := feature.Extract(samples, cfg)
		if err != nil && !errors.Is(err, feature.ErrTooShort) {
			return 0, fmt.Errorf("front end: %w", err)
		}
		u.frames = append(u.frames, frames...)
		u.full = true
		if noSearch {
			return 0, nil
		}
		n, err := d.search()
		if err != nil {
			u.frames, u.full = u.frames[:n0], false
		}
		return n, err
	}

	mark := d.fe.Mark()
	frames, err := d.fe.Process(samples)
	if err != nil {
		d.fe.Rewind(mark)
		return 0, fmt.Errorf("front end: %w", err)
	}
	u.frames = append(u.frames, frames...)
	if noSearch {
		return 0, nil
	}
	n, err := d.search()
	if err != nil {
		u.frames = u.frames[:n0]
		d.fe.Rewind(mark)
		return 0, err
	}
	return n, nil
}

// search feeds every buffered frame not searched yet.
func (d *Decoder) search() (int, error) {
	u := d.utt
	pending := u.frames[u.searched:]
	if len(pending) == 0 {
		return 0, nil
	}
	if err := d.engine.Feed(pending); err != nil {
		d.metrics.failure("feed")
		return 0, &EngineError{Op: "feed", Err: err}
	}
	u.searched = len(u.frames)
	d.metrics.searched(len(pending))
	return len(pending), nil
}

// EndUtt searches the remaining audio and seals the utterance.
func (d *Decoder) EndUtt() error {
	if d.state != InUtterance {
		return d.stateErr("EndUtt", ErrNotInUtterance)
	}
	return d.endUtt()
}

func (d *Decoder) endUtt() error {
	start := time.Now()
	u := d.utt
	n0 := len(u.frames)
	mark := d.fe.Mark()
	if !u.full {
		frames, err := d.fe.Flush()
		if err != nil {
			return fmt.Errorf("front end: %w", err)
		}
		u.frames = append(u.frames, frames...)
	}
	if _, err := d.search(); err != nil {
		u.frames = u.frames[:n0]
		d.fe.Rewind(mark)
		return err
	}
	tb, err := d.engine.Finalize(u.full)
	if err != nil {
		d.metrics.failure("finalize")
		return &EngineError{Op: "finalize", Err: err}
	}
	u.tb = tb
	u.cpu += time.Since(start)
	u.wall = time.Since(u.begin)
	d.state = Sealed
	d.total.add(d.uttPerf())

	d.metrics.utterance()
	d.metrics.finalized(time.Since(start).Seconds())
	if ce := d.log.Check(zap.DebugLevel, "utterance ended"); ce != nil {
		text := ""
		if h := d.hypothesis(); h != nil {
			text = h.Text
		}
		ce.Write(zap.String("utt", u.id), zap.Int("frames", len(u.frames)), zap.String("hyp", text))
	}
	return nil
}
