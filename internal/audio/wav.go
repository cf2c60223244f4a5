package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into TargetRate mono samples.
func ReadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%s: missing format", path)
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	scale := float32(int64(1) << uint(depth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	mono := DownmixInterleaved(samples, buf.Format.NumChannels)
	return Resample(mono, buf.Format.SampleRate, TargetRate), nil
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	pcm := FloatToInt16(samples)
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// DumpRecording writes samples into dir with a timestamped name and returns
// the file path.
func DumpRecording(dir string, samples []float32, now time.Time) (string, error) {
	path := filepath.Join(dir, "rec-"+now.Format("20060102-150405.000")+".wav")
	return path, WriteWAV(path, samples, TargetRate)
}
