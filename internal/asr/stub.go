package asr

import (
	"context"
	"sync/atomic"
)

// StubEngine returns a fixed transcript. It backs dry runs and tests.
type StubEngine struct {
	text  string
	calls atomic.Int64
}

// NewStub constructs a StubEngine.
func NewStub(text string) *StubEngine {
	return &StubEngine{text: text}
}

func (s *StubEngine) Name() string { return "stub" }

func (s *StubEngine) Transcribe(ctx context.Context, samples []float32, _ int, language string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.calls.Add(1)
	if len(samples) == 0 {
		return Result{Language: language}, nil
	}
	return Result{Text: s.text, Language: language}, nil
}

// Calls reports how many transcriptions were served.
func (s *StubEngine) Calls() int64 { return s.calls.Load() }

func (s *StubEngine) Close() error { return nil }
