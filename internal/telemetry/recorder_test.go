package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRecorderCounts(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(slog.New(slog.NewTextHandler(&buf, nil)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SessionStarted()
			r.Transcript()
		}()
	}
	wg.Wait()
	r.Timeout()
	r.DroppedSignals(3)
	r.DroppedSignals(0)

	s := r.Snapshot()
	if s.Sessions != 10 || s.Transcripts != 10 || s.Timeouts != 1 || s.DroppedSignals != 3 {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	r.LogSummary()
	if !strings.Contains(buf.String(), "sessions=10") {
		t.Fatalf("summary missing counts: %q", buf.String())
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.SessionStarted()
	r.Failure()
	r.LogSummary()
	if s := r.Snapshot(); s != (Snapshot{}) {
		t.Fatalf("nil recorder snapshot = %+v", s)
	}
}
