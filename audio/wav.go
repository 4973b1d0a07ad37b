// Package audio converts between PCM encodings and reads WAV and raw
// PCM input.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVHeader holds the format fields of a WAV file.
type WAVHeader struct {
	SampleRate    uint32
	BitsPerSample uint16
	NumChannels   uint16
	NumSamples    int
}

// ErrNotWAV is returned for input that is not a RIFF/WAVE file.
var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// ReadWAV reads a 16-bit PCM mono WAV stream and returns its samples.
// Any sample rate is accepted; the caller compares it with its own.
func ReadWAV(r io.ReadSeeker) ([]int16, WAVHeader, error) {
	var header WAVHeader
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, header, ErrNotWAV
	}
	header.SampleRate = d.SampleRate
	header.BitsPerSample = d.BitDepth
	header.NumChannels = d.NumChans

	if d.WavAudioFormat != 1 {
		return nil, header, fmt.Errorf("unsupported audio format %d (only PCM=1 supported)", d.WavAudioFormat)
	}
	if d.NumChans != 1 {
		return nil, header, fmt.Errorf("unsupported channel count %d (only mono supported)", d.NumChans)
	}
	if d.BitDepth != 16 {
		return nil, header, fmt.Errorf("unsupported bits per sample %d (only 16 supported)", d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, header, fmt.Errorf("read PCM data: %w", err)
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	header.NumSamples = len(samples)
	return samples, header, nil
}

// ReadWAVFile is a convenience wrapper that opens a file path.
func ReadWAVFile(path string) ([]int16, WAVHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVHeader{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

// WriteWAV writes samples as a 16-bit PCM mono WAV stream.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write PCM data: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile writes samples to a WAV file at path.
func WriteWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
