package audio

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/logging"
)

func TestWriteAndDecodeInt16Mono(t *testing.T) {
	dir := t.TempDir()
	path := NewArtifactPath(dir)
	if !strings.HasPrefix(filepath.Base(path), TempPrefix) || filepath.Ext(path) != ".wav" {
		t.Fatalf("unexpected artifact name %s", path)
	}

	samples := make([]int, 16000)
	for i := range samples {
		samples[i] = int(16384 * math.Sin(float64(i)/10))
	}
	samples[0], samples[1] = 32767, -32768

	art, err := WriteArtifact(path, Format{SampleRate: 16000, Channels: 1, BitDepth: 16}, samples)
	if err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if art.Frames != 16000 || art.Duration != time.Second {
		t.Fatalf("unexpected artifact %+v", art)
	}

	clip, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if clip.SampleRate != 16000 || len(clip.Samples) != 16000 {
		t.Fatalf("unexpected clip rate=%d len=%d", clip.SampleRate, len(clip.Samples))
	}
	for i, s := range clip.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d = %v out of range", i, s)
		}
	}
	if clip.Samples[1] != -1 {
		t.Fatalf("min int16 must map to -1, got %v", clip.Samples[1])
	}
	if d := math.Abs(float64(clip.Samples[0]) - 32767.0/32768.0); d > 1e-6 {
		t.Fatalf("max int16 mapped to %v", clip.Samples[0])
	}
}

func TestDecodeDownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// left full positive, right silent
	samples := []int{1 << 22, 0, 1 << 22, 0}
	if _, err := WriteArtifact(path, Format{SampleRate: 8000, Channels: 2, BitDepth: 24}, samples); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	clip, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(clip.Samples) != 2 {
		t.Fatalf("expected 2 mono frames, got %d", len(clip.Samples))
	}
	if d := math.Abs(float64(clip.Samples[0]) - 0.25); d > 1e-6 {
		t.Fatalf("downmixed sample = %v, want 0.25", clip.Samples[0])
	}
}

func TestEncodeMonoWAVIsDecodable(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 2}
	b, err := EncodeMonoWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeMonoWAV: %v", err)
	}
	clip, err := DecodeReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("DecodeReader: %v", err)
	}
	if len(clip.Samples) != len(in) {
		t.Fatalf("got %d samples", len(clip.Samples))
	}
	if d := math.Abs(float64(clip.Samples[1]) - 0.5); d > 1e-3 {
		t.Fatalf("sample 1 = %v", clip.Samples[1])
	}
	if d := math.Abs(float64(clip.Samples[3]) - 1); d > 1e-3 {
		t.Fatalf("out-of-range input must clamp, got %v", clip.Samples[3])
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeReader(bytes.NewReader([]byte("test"))); err == nil {
		t.Fatalf("expected error decoding garbage")
	}
}

func TestCleanupStale(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{TempPrefix + "a.wav", TempPrefix + "b.ogg", "keep.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if n := CleanupStale(dir, logging.Discard()); n != 2 {
		t.Fatalf("CleanupStale removed %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.wav")); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}
