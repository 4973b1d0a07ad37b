package decoder

import (
	"math"

	"go.uber.org/zap"

	"github.com/ieee0824/sphinx-go/audio"
	"github.com/ieee0824/sphinx-go/vad"
)

// EventKind tags an EndpointEvent.
type EventKind int

const (
	SpeechStart EventKind = iota
	SpeechEnd
)

func (k EventKind) String() string {
	if k == SpeechEnd {
		return vad.SpeechEnd.String()
	}
	return vad.SpeechStart.String()
}

// EndpointEvent is a speech boundary found while endpointing. Time is in
// seconds of the audio stream and Frame is the same instant in feature
// frames. A SpeechEnd carries the results of the utterance it sealed.
type EndpointEvent struct {
	Kind       EventKind
	Time       float64
	Frame      int
	UttID      string
	Hypothesis *Hypothesis
	Segments   []Segment
}

func (d *Decoder) streamFrame(sec float64) int {
	return int(math.Round(sec * d.featCfg.FrameRate()))
}

// processEndpointed runs samples through the endpointer. Speech audio is
// decoded one segment at a time. A failure before any audio of the chunk
// reached the utterance rewinds the endpointer too, so the chunk can be
// retried; once a segment has been decoded the chunk is only undone back
// to that point.
func (d *Decoder) processEndpointed(samples []int16, noSearch bool) (int, []EndpointEvent, error) {
	var (
		events    []EndpointEvent
		total     int
		speech    []int16
		committed bool
	)
	mark := d.ep.Mark()
	flush := func() error {
		if len(speech) == 0 {
			return nil
		}
		n, err := d.processSamples(audio.Int16ToFloat(speech), noSearch, false)
		speech = speech[:0]
		if err != nil {
			return err
		}
		total += n
		committed = true
		return nil
	}
	fail := func(err error) (int, []EndpointEvent, error) {
		if !committed {
			d.ep.Rewind(mark)
			return 0, nil, err
		}
		d.reportEndpoints(events)
		return total, events, err
	}

	for _, out := range d.ep.Process(samples) {
		switch out.Kind {
		case vad.Audio:
			speech = append(speech, out.Samples...)
		case vad.SpeechStart:
			events = append(events, EndpointEvent{
				Kind:  SpeechStart,
				Time:  out.Time,
				Frame: d.streamFrame(out.Time),
				UttID: d.utt.id,
			})
		case vad.SpeechEnd:
			if err := flush(); err != nil {
				return fail(err)
			}
			ev := EndpointEvent{
				Kind:  SpeechEnd,
				Time:  out.Time,
				Frame: d.streamFrame(out.Time),
				UttID: d.utt.id,
			}
			committed = true
			if err := d.endUtt(); err != nil {
				return fail(err)
			}
			if tb := d.utt.tb; tb != nil {
				ev.Hypothesis = d.hypothesis()
				ev.Segments = d.segments(tb)
			}
			events = append(events, ev)
			if err := d.startUtt(); err != nil {
				return fail(err)
			}
		}
	}
	if err := flush(); err != nil {
		return fail(err)
	}
	d.reportEndpoints(events)
	return total, events, nil
}

func (d *Decoder) reportEndpoints(events []EndpointEvent) {
	for _, ev := range events {
		d.metrics.endpoint(ev.Kind.String())
		d.log.Debug(ev.Kind.String(), zap.String("utt", ev.UttID), zap.Float64("time", ev.Time))
	}
}
