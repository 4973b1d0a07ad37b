package decoder

import (
	"errors"
	"io"

	"github.com/ieee0824/sphinx-go/audio"
)

const chunkSamples = 4096

// DecodeSource decodes a whole audio source as one utterance, or as a
// series of utterances when endpointing. It returns the number of samples
// read. Results are read with GetHyp and the iterators.
func (d *Decoder) DecodeSource(src audio.Source) (int, error) {
	if err := d.cfg.CheckSampleRate(src.SampleRate()); err != nil {
		return 0, err
	}
	return d.decode(src, 0)
}

// DecodeRaw decodes little-endian 16-bit PCM at the configured rate. At
// most maxSamples samples are read, all when maxSamples is not positive.
func (d *Decoder) DecodeRaw(r io.Reader, maxSamples int) (int, error) {
	return d.decode(audio.NewPCMReader(r, d.cfg.Int("samprate")), maxSamples)
}

// DecodeWAV decodes a mono 16-bit WAV file as one utterance.
func (d *Decoder) DecodeWAV(r io.ReadSeeker) (int, error) {
	samples, hdr, err := audio.ReadWAV(r)
	if err != nil {
		return 0, err
	}
	if err := d.cfg.CheckSampleRate(int(hdr.SampleRate)); err != nil {
		return 0, err
	}
	if err := d.StartUtt(); err != nil {
		return 0, err
	}
	if _, _, err := d.ProcessRaw(samples, false, true); err != nil {
		return 0, err
	}
	return len(samples), d.EndUtt()
}

func (d *Decoder) decode(src audio.Source, maxSamples int) (int, error) {
	if err := d.StartUtt(); err != nil {
		return 0, err
	}
	buf := make([]int16, chunkSamples)
	total := 0
	for maxSamples <= 0 || total < maxSamples {
		want := len(buf)
		if maxSamples > 0 {
			want = min(want, maxSamples-total)
		}
		n, err := src.Read(buf[:want])
		if n > 0 {
			total += n
			if _, _, perr := d.ProcessRaw(buf[:n], false, false); perr != nil {
				return total, perr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
	}
	return total, d.EndUtt()
}
