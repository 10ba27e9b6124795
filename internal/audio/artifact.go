// Package audio persists captured PCM as transient WAV artifacts and decodes
// them back into normalised samples for the recogniser.
package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/orcaman/writerseeker"
)

// TempPrefix marks artifacts owned by this program; stale ones are removed at
// startup.
const TempPrefix = "RecordTemp_"

// Format describes interleaved integer PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Artifact is a WAV file written for exactly one recording.
type Artifact struct {
	Path     string
	Format   Format
	Frames   int
	Duration time.Duration
}

// Clip is decoded mono audio in [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
	Duration   time.Duration
}

// NewArtifactPath returns a unique artifact path inside dir.
func NewArtifactPath(dir string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s.wav", TempPrefix, id))
}

// WriteArtifact encodes samples (interleaved, at f.BitDepth) to path.
func WriteArtifact(path string, f Format, samples []int) (Artifact, error) {
	file, err := os.Create(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(file, f, samples); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return Artifact{}, err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return Artifact{}, fmt.Errorf("close wav: %w", err)
	}
	frames := len(samples) / max(f.Channels, 1)
	return Artifact{
		Path:     path,
		Format:   f,
		Frames:   frames,
		Duration: framesDuration(frames, f.SampleRate),
	}, nil
}

// EncodeWAV writes a PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, f Format, samples []int) error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("invalid wav format %+v", f)
	}
	switch f.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", f.BitDepth)
	}
	enc := wav.NewEncoder(w, f.SampleRate, f.BitDepth, f.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           samples,
		SourceBitDepth: f.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("wav write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav close: %w", err)
	}
	return nil
}

// EncodeMonoWAV renders normalised samples as 16-bit mono WAV bytes.
func EncodeMonoWAV(samples []float32, sampleRate int) ([]byte, error) {
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(clamp(s) * 32767)
	}
	ws := &writerseeker.WriterSeeker{}
	if err := EncodeWAV(ws, Format{SampleRate: sampleRate, Channels: 1, BitDepth: 16}, ints); err != nil {
		return nil, err
	}
	return io.ReadAll(ws.Reader())
}

// Decode reads the WAV at path into a mono clip.
func Decode(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return DecodeReader(f)
}

// ErrNotWAV is returned for inputs without a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a wav file")

// DecodeReader converts integer PCM into floats in [-1, 1], averaging
// channels down to mono.
func DecodeReader(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, ErrNotWAV
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(pcm.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(pcm.Data[i*channels+c]) / scale
		}
		out[i] = clamp(sum / float32(channels))
	}
	rate := int(dec.SampleRate)
	return Clip{Samples: out, SampleRate: rate, Duration: framesDuration(frames, rate)}, nil
}

// CleanupStale removes leftover artifacts in dir and returns how many were
// deleted.
func CleanupStale(dir string, logger *slog.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("read temp dir failed", "dir", dir, "error", err)
		return 0
	}
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, TempPrefix) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			logger.Warn("remove stale artifact failed", "path", path, "error", err)
			continue
		}
		removed++
		logger.Debug("removed stale artifact", "path", path)
	}
	return removed
}

func framesDuration(frames, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
