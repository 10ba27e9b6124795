// Package asr adapts speech recognition backends to a single Engine
// interface.
package asr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// Engine turns mono float samples into text. Implementations must be safe
// for concurrent use by the dispatcher workers.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error)
	Close() error
}

// Result is one transcription.
type Result struct {
	Text     string
	Language string
	Elapsed  time.Duration
}

// Options carries process-level dependencies for New.
type Options struct {
	TempDir string
	Logger  *slog.Logger
}

// New builds the engine selected by cfg.Engine.Kind for cfg.Model.
func New(cfg config.Config, opts Options) (Engine, error) {
	return NewForModel(cfg.Engine, cfg.Model, opts)
}

// NewForModel builds an engine of kind ec.Kind for model. Remote engines use
// ec.RemoteModel when set.
func NewForModel(ec config.EngineConfig, model string, opts Options) (Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch ec.Kind {
	case config.EngineWhisperCLI, "":
		return NewWhisperCLI(WhisperCLIConfig{
			Model:     model,
			ModelsDir: ec.ModelsDir,
			Binary:    ec.Binary,
			Threads:   ec.Threads,
			Prompt:    ec.Prompt,
			TempDir:   opts.TempDir,
		}, logger)
	case config.EngineHTTP:
		return NewHTTP(ec, remoteModel(ec, model), newHTTPClient(ec), opts.TempDir, logger)
	case config.EngineOpenAI:
		return NewOpenAI(ec, remoteModel(ec, model), logger)
	case config.EngineStub:
		return NewStub(ec.StubText), nil
	}
	return nil, fmt.Errorf("unknown engine kind %q", ec.Kind)
}

func remoteModel(ec config.EngineConfig, model string) string {
	if ec.RemoteModel != "" {
		return ec.RemoteModel
	}
	return model
}
