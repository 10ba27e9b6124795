// Package record captures microphone audio for one session at a time and
// turns it into a WAV artifact for transcription.
package record

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// Stream is an open, started capture stream.
type Stream interface {
	// Read blocks for one chunk and returns its interleaved samples at the
	// configured bit depth.
	Read() ([]int, error)
	Close() error
}

// Source opens capture streams.
type Source interface {
	Open(cfg config.AudioConfig) (Stream, error)
}

// Sink receives finished artifacts. It takes ownership of the file.
type Sink interface {
	Submit(art audio.Artifact) error
}

// Result summarises a capture run.
type Result struct {
	Chunks   int
	Artifact *audio.Artifact
	ReadErr  error
}

const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 160 * time.Millisecond
)

// Recorder runs the capture loop for sessions.
type Recorder struct {
	cfg     config.AudioConfig
	src     Source
	sink    Sink
	tempDir string
	log     *slog.Logger
}

// New creates a recorder.
func New(cfg config.AudioConfig, src Source, sink Sink, tempDir string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:     cfg,
		src:     src,
		sink:    sink,
		tempDir: tempDir,
		log:     logger.With("component", "record"),
	}
}

// Run captures sess until it is stopped. It must be called on the session's
// own goroutine. A returned *AudioDeviceError means nothing was recorded.
func (r *Recorder) Run(sess *Session) (Result, error) {
	defer close(sess.done)
	if sess.prev != nil {
		<-sess.prev
	}
	log := r.log.With("session", sess.ID)

	if sess.Stopped() {
		log.Debug("session stopped before capture began")
		return Result{}, nil
	}

	stream, err := r.src.Open(r.cfg)
	if err != nil {
		return Result{}, &AudioDeviceError{Op: "open", Err: err}
	}
	log.Debug("capture started", "rate", r.cfg.Rate, "channels", r.cfg.Channels, "format", r.cfg.Format)

	samples, chunks, readErr := r.capture(sess, stream, log)
	res := Result{Chunks: chunks, ReadErr: readErr}
	if chunks == 0 {
		log.Debug("no audio captured")
		return res, nil
	}

	f := audio.Format{SampleRate: r.cfg.Rate, Channels: r.cfg.Channels, BitDepth: r.cfg.Format.BitDepth()}
	art, err := audio.WriteArtifact(audio.NewArtifactPath(r.tempDir), f, samples)
	if err != nil {
		return res, fmt.Errorf("write artifact: %w", err)
	}
	res.Artifact = &art
	log.Info("recording captured", "chunks", chunks, "duration", art.Duration.Round(time.Millisecond), "path", art.Path)

	if err := r.sink.Submit(art); err != nil {
		_ = os.Remove(art.Path)
		return res, fmt.Errorf("submit artifact: %w", err)
	}
	return res, nil
}

func (r *Recorder) capture(sess *Session, stream Stream, log *slog.Logger) (samples []int, chunks int, readErr error) {
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn("close stream failed", "error", err)
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			readErr = fmt.Errorf("panic during read: %v", p)
			log.Error("capture aborted", "error", readErr)
		}
	}()

	backoff := minBackoff
	for !sess.Stopped() {
		chunk, err := stream.Read()
		if errors.Is(err, ErrTransientRead) {
			log.Warn("audio input overflow, retrying", "backoff", backoff, "error", err)
			select {
			case <-sess.stopCh:
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		if err != nil {
			log.Error("audio read failed", "error", err)
			return samples, chunks, err
		}
		backoff = minBackoff
		samples = append(samples, chunk...)
		chunks++
	}
	return samples, chunks, nil
}
