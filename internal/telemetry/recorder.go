// Package telemetry keeps process-wide dictation counters.
package telemetry

import (
	"log/slog"
	"sync/atomic"
)

// Recorder tracks dictation counters. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	log *slog.Logger

	sessions        atomic.Uint64
	timeouts        atomic.Uint64
	emptyRecordings atomic.Uint64
	deviceErrors    atomic.Uint64
	transcripts     atomic.Uint64
	noSpeech        atomic.Uint64
	failures        atomic.Uint64
	injectFailures  atomic.Uint64
	droppedSignals  atomic.Uint64
	modelSwitches   atomic.Uint64
}

// Snapshot captures cumulative counters.
type Snapshot struct {
	Sessions        uint64
	Timeouts        uint64
	EmptyRecordings uint64
	DeviceErrors    uint64
	Transcripts     uint64
	NoSpeech        uint64
	Failures        uint64
	InjectFailures  uint64
	DroppedSignals  uint64
	ModelSwitches   uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{log: logger.With("component", "telemetry")}
}

func (r *Recorder) SessionStarted() {
	if r != nil {
		r.sessions.Add(1)
	}
}

func (r *Recorder) Timeout() {
	if r != nil {
		r.timeouts.Add(1)
	}
}

func (r *Recorder) EmptyRecording() {
	if r != nil {
		r.emptyRecordings.Add(1)
	}
}

func (r *Recorder) DeviceError() {
	if r != nil {
		r.deviceErrors.Add(1)
	}
}

func (r *Recorder) Transcript() {
	if r != nil {
		r.transcripts.Add(1)
	}
}

func (r *Recorder) NoSpeech() {
	if r != nil {
		r.noSpeech.Add(1)
	}
}

func (r *Recorder) Failure() {
	if r != nil {
		r.failures.Add(1)
	}
}

func (r *Recorder) InjectFailure() {
	if r != nil {
		r.injectFailures.Add(1)
	}
}

func (r *Recorder) DroppedSignals(n uint64) {
	if r != nil && n > 0 {
		r.droppedSignals.Add(n)
	}
}

func (r *Recorder) ModelSwitch() {
	if r != nil {
		r.modelSwitches.Add(1)
	}
}

// Snapshot returns an immutable view of the totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Sessions:        r.sessions.Load(),
		Timeouts:        r.timeouts.Load(),
		EmptyRecordings: r.emptyRecordings.Load(),
		DeviceErrors:    r.deviceErrors.Load(),
		Transcripts:     r.transcripts.Load(),
		NoSpeech:        r.noSpeech.Load(),
		Failures:        r.failures.Load(),
		InjectFailures:  r.injectFailures.Load(),
		DroppedSignals:  r.droppedSignals.Load(),
		ModelSwitches:   r.modelSwitches.Load(),
	}
}

// LogSummary writes the totals at info level.
func (r *Recorder) LogSummary() {
	if r == nil {
		return
	}
	s := r.Snapshot()
	r.log.Info("session summary",
		"sessions", s.Sessions,
		"timeouts", s.Timeouts,
		"empty", s.EmptyRecordings,
		"device_errors", s.DeviceErrors,
		"transcripts", s.Transcripts,
		"no_speech", s.NoSpeech,
		"failures", s.Failures,
		"inject_failures", s.InjectFailures,
		"dropped_signals", s.DroppedSignals,
		"model_switches", s.ModelSwitches,
	)
}
