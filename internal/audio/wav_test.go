package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteThenReadWAV(t *testing.T) {
	samples := make([]float32, TargetRate/10)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/TargetRate))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAV(path, samples, TargetRate); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("len %d, want %d", len(got), len(samples))
	}
	for i := range got {
		if math.Abs(float64(got[i]-samples[i])) > 1e-3 {
			t.Fatalf("sample %d: %v vs %v", i, got[i], samples[i])
		}
	}
}

func TestReadWAVResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "8k.wav")
	if err := WriteWAV(path, make([]float32, 8000), 8000); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != TargetRate {
		t.Fatalf("len %d, want %d", len(got), TargetRate)
	}
}

func TestDumpRecordingNamesByTime(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	path, err := DumpRecording(dir, []float32{0, 0.1}, now)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if filepath.Base(path) != "rec-20240501-123000.000.wav" {
		t.Fatalf("path %s", path)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not riff data"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAV(path); err == nil {
		t.Fatalf("expected error for invalid file")
	}
	if _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
