// Package dispatch transcribes finished recordings on a fixed worker pool
// and delivers the text to the clipboard and the focused window.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/asr"
	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/telemetry"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher closed")

// Clipboard receives every non-empty transcript.
type Clipboard interface {
	SetText(text string) error
}

// Injector types a transcript into the focused window.
type Injector interface {
	TypeText(text string) error
}

// TranscriptResult is one delivered transcript.
type TranscriptResult struct {
	Text          string
	AudioDuration time.Duration
}

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
	Language  string
}

type engineRef struct{ asr.Engine }

// Dispatcher owns the worker pool and the active engine.
type Dispatcher struct {
	cfg     Config
	clip    Clipboard
	inject  Injector
	metrics *telemetry.Recorder
	log     *slog.Logger

	engine atomic.Pointer[engineRef]

	mu      sync.RWMutex
	closed  bool
	retired []asr.Engine
	started bool

	jobs    chan audio.Artifact
	done    chan struct{}
	senders sync.WaitGroup
	workers sync.WaitGroup
}

// New creates a dispatcher. Start must be called before Submit.
func New(engine asr.Engine, clip Clipboard, inject Injector, cfg Config, metrics *telemetry.Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	d := &Dispatcher{
		cfg:     cfg,
		clip:    clip,
		inject:  inject,
		metrics: metrics,
		log:     logger.With("component", "dispatch"),
		jobs:    make(chan audio.Artifact, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	d.engine.Store(&engineRef{engine})
	return d
}

// Start launches the workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.workers.Add(1)
		go d.worker(i)
	}
	d.log.Debug("dispatcher started", "workers", d.cfg.Workers)
}

// Submit queues art for transcription. It blocks while the queue is full,
// without holding the lock, until a slot frees or Close is called. On error
// the caller still owns the file.
func (d *Dispatcher) Submit(art audio.Artifact) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	d.senders.Add(1)
	d.mu.RUnlock()
	defer d.senders.Done()

	select {
	case d.jobs <- art:
		return nil
	case <-d.done:
		return ErrClosed
	}
}

// Engine returns the active engine.
func (d *Dispatcher) Engine() asr.Engine {
	return d.engine.Load().Engine
}

// SetEngine makes e the engine for jobs not yet started. The previous engine
// stays usable by in-flight jobs and is closed with the dispatcher. After
// Close, e is closed immediately.
func (d *Dispatcher) SetEngine(e asr.Engine) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		_ = e.Close()
		return
	}
	prev := d.engine.Swap(&engineRef{e})
	d.retired = append(d.retired, prev.Engine)
	d.mu.Unlock()
	d.log.Info("engine switched", "from", prev.Name(), "to", e.Name())
}

// Close stops accepting work, drains queued jobs and closes every engine.
// Submits still waiting for a queue slot return ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	close(d.done)
	d.mu.Unlock()

	// No sender can reach jobs once senders drains, so closing it is safe.
	d.senders.Wait()
	close(d.jobs)
	if !started {
		for art := range d.jobs {
			removeArtifact(art.Path, d.log)
		}
	}

	d.workers.Wait()

	d.mu.Lock()
	engines := append(d.retired, d.Engine())
	d.retired = nil
	d.mu.Unlock()

	var errs []error
	for _, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) worker(id int) {
	defer d.workers.Done()
	log := d.log.With("worker", id)
	for art := range d.jobs {
		d.handle(art, log)
	}
}

func (d *Dispatcher) handle(art audio.Artifact, log *slog.Logger) {
	defer removeArtifact(art.Path, log)
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Failure()
			log.Error("transcription job panicked", "path", art.Path, "panic", r)
		}
	}()

	res, err := d.Transcribe(context.Background(), art.Path)
	if err != nil {
		d.metrics.Failure()
		log.Error("transcription failed", "path", art.Path, "error", err)
		return
	}
	if res.Text == "" {
		d.metrics.NoSpeech()
		log.Info("no speech detected", "audio", res.AudioDuration.Round(time.Millisecond))
		return
	}
	d.metrics.Transcript()
	log.Info("transcribed", "chars", len(res.Text), "audio", res.AudioDuration.Round(time.Millisecond))
	d.Deliver(res.Text)
}

// Deliver copies text to the clipboard and types it. Failures are logged;
// the clipboard copy is kept as the fallback when typing fails.
func (d *Dispatcher) Deliver(text string) {
	if err := safeCall(func() error { return d.clip.SetText(text) }); err != nil {
		d.log.Warn("copy to clipboard failed", "error", err)
	}
	if err := safeCall(func() error { return d.inject.TypeText(text) }); err != nil {
		d.metrics.InjectFailure()
		d.log.Error("text injection failed", "error", err)
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Transcribe decodes the WAV file at path and runs the active engine on it.
// It does not remove the file.
func (d *Dispatcher) Transcribe(ctx context.Context, path string) (TranscriptResult, error) {
	clip, err := audio.Decode(path)
	if err != nil {
		return TranscriptResult{}, &TranscriptionError{Stage: StageDecode, Err: err}
	}
	engine := d.Engine()
	res, err := safeTranscribe(ctx, engine, clip, d.cfg.Language)
	if err != nil {
		return TranscriptResult{AudioDuration: clip.Duration}, &TranscriptionError{Stage: StageEngine, Engine: engine.Name(), Err: err}
	}
	return TranscriptResult{
		Text:          strings.TrimSpace(res.Text),
		AudioDuration: clip.Duration,
	}, nil
}

func safeTranscribe(ctx context.Context, engine asr.Engine, clip audio.Clip, language string) (res asr.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return engine.Transcribe(ctx, clip.Samples, clip.SampleRate, language)
}

func removeArtifact(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove artifact failed", "path", path, "error", err)
	}
}
