package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/telemetry"
)

// Watchdog force-stops recordings that outlive max.
type Watchdog struct {
	ctl      *Controller
	max      time.Duration
	interval time.Duration
	metrics  *telemetry.Recorder
	log      *slog.Logger
}

// NewWatchdog polls ctl every interval.
func NewWatchdog(ctl *Controller, max, interval time.Duration, metrics *telemetry.Recorder, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Watchdog{
		ctl:      ctl,
		max:      max,
		interval: interval,
		metrics:  metrics,
		log:      logger.With("component", "watchdog"),
	}
}

// Run polls until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.Check(now)
		}
	}
}

// Check stops the current session if it started more than max before now.
func (w *Watchdog) Check(now time.Time) bool {
	state, id, startedAt := w.ctl.Snapshot()
	if state != StateRecording {
		return false
	}
	elapsed := now.Sub(startedAt)
	if elapsed <= w.max {
		return false
	}
	if !w.ctl.StopSession(id, ReasonTimeout) {
		return false
	}
	w.metrics.Timeout()
	w.log.Warn("recording timed out", "session", id, "elapsed", elapsed.Round(time.Millisecond), "max", w.max)
	return true
}
