package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/config"
	"github.com/Car-Role/Whisper-dictation/internal/hotkey"
	"github.com/Car-Role/Whisper-dictation/internal/logging"
	"github.com/Car-Role/Whisper-dictation/internal/record"
	"github.com/Car-Role/Whisper-dictation/internal/telemetry"
)

type fakeIndicator struct {
	shows atomic.Int32
	hides atomic.Int32
}

func (f *fakeIndicator) Show() { f.shows.Add(1) }
func (f *fakeIndicator) Hide() { f.hides.Add(1) }

// fakeCapture blocks each run until the session is stopped, unless failWith
// is set.
type fakeCapture struct {
	mu       sync.Mutex
	failWith error
	chunks   int
	started  chan *record.Session
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{chunks: 3, started: make(chan *record.Session, 8)}
}

func (f *fakeCapture) Run(sess *record.Session) (record.Result, error) {
	f.started <- sess
	f.mu.Lock()
	failWith, chunks := f.failWith, f.chunks
	f.mu.Unlock()
	if failWith != nil {
		return record.Result{}, failWith
	}
	<-sess.StopRequested()
	return record.Result{Chunks: chunks}, nil
}

// unpluggedStream delivers one chunk and then fails the way a removed
// microphone does.
type unpluggedStream struct{ reads int }

func (s *unpluggedStream) Read() ([]int, error) {
	s.reads++
	if s.reads == 1 {
		return []int{100, -100, 200, -200}, nil
	}
	return nil, errors.New("device unplugged")
}

func (s *unpluggedStream) Close() error { return nil }

type unpluggedSource struct{}

func (unpluggedSource) Open(config.AudioConfig) (record.Stream, error) {
	return &unpluggedStream{}, nil
}

type artifactSink struct {
	mu   sync.Mutex
	arts []audio.Artifact
}

func (s *artifactSink) Submit(art audio.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arts = append(s.arts, art)
	return nil
}

func (s *artifactSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.arts)
}

type panicCapture struct{}

func (panicCapture) Run(*record.Session) (record.Result, error) {
	panic("artifact writer exploded")
}

func waitStarted(t *testing.T, f *fakeCapture) *record.Session {
	t.Helper()
	select {
	case s := <-f.started:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("capture never started")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartStopTransitions(t *testing.T) {
	capture := newFakeCapture()
	ind := &fakeIndicator{}
	metrics := telemetry.NewRecorder(logging.Discard())
	c := New(capture, ind, metrics, logging.Discard())

	if c.Recording() || c.State() != StateIdle {
		t.Fatal("new controller should be idle")
	}
	if !c.Start(ReasonHotkey) {
		t.Fatal("Start from idle should succeed")
	}
	if !c.Recording() {
		t.Fatal("Recording() = false after Start")
	}
	sess := waitStarted(t, capture)

	if c.Start(ReasonHotkey) {
		t.Fatal("second Start should be ignored")
	}
	if !c.Stop(ReasonHotkey) {
		t.Fatal("Stop while recording should succeed")
	}
	if !sess.Stopped() {
		t.Fatal("session not flagged to stop")
	}
	if c.Stop(ReasonHotkey) {
		t.Fatal("Stop while idle should be a no-op")
	}
	c.Wait()

	if ind.shows.Load() != 1 || ind.hides.Load() != 1 {
		t.Fatalf("indicator show/hide = %d/%d", ind.shows.Load(), ind.hides.Load())
	}
	if got := metrics.Snapshot().Sessions; got != 1 {
		t.Fatalf("Sessions = %d", got)
	}
}

func TestStopSessionMatchesID(t *testing.T) {
	capture := newFakeCapture()
	c := New(capture, &fakeIndicator{}, nil, logging.Discard())
	c.Start(ReasonHotkey)
	sess := waitStarted(t, capture)

	if c.StopSession("other", ReasonTimeout) {
		t.Fatal("StopSession with a foreign id stopped the session")
	}
	if c.StopSession("", ReasonTimeout) {
		t.Fatal("StopSession with empty id stopped the session")
	}
	if !c.StopSession(sess.ID, ReasonTimeout) {
		t.Fatal("StopSession with the live id failed")
	}
	c.Wait()
}

func TestSignalsFlowThroughQueue(t *testing.T) {
	capture := newFakeCapture()
	c := New(capture, &fakeIndicator{}, nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	var target hotkey.Target = c
	if !target.Signal(hotkey.SignalStart) {
		t.Fatal("Signal(start) rejected")
	}
	waitStarted(t, capture)
	waitFor(t, c.Recording)

	if !target.Signal(hotkey.SignalStop) {
		t.Fatal("Signal(stop) rejected")
	}
	waitFor(t, func() bool { return !c.Recording() })
	c.Wait()
}

func TestPostNeverBlocks(t *testing.T) {
	c := New(newFakeCapture(), &fakeIndicator{}, nil, logging.Discard(), WithQueueSize(2))
	if !c.Post(Command{Kind: CommandStart}) || !c.Post(Command{Kind: CommandStop}) {
		t.Fatal("queue should accept two commands")
	}
	done := make(chan bool)
	go func() { done <- c.Post(Command{Kind: CommandStart}) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("Post on a full queue should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("Post blocked on a full queue")
	}
}

func TestDeviceErrorReturnsToIdle(t *testing.T) {
	capture := newFakeCapture()
	capture.failWith = &record.AudioDeviceError{Op: "open", Err: errors.New("no device")}
	ind := &fakeIndicator{}
	metrics := telemetry.NewRecorder(logging.Discard())
	c := New(capture, ind, metrics, logging.Discard())

	c.Start(ReasonHotkey)
	waitStarted(t, capture)
	c.Wait()

	if c.Recording() || c.State() != StateIdle {
		t.Fatal("controller should be idle after a device error")
	}
	if ind.hides.Load() != 1 {
		t.Fatalf("indicator hides = %d", ind.hides.Load())
	}
	if got := metrics.Snapshot().DeviceErrors; got != 1 {
		t.Fatalf("DeviceErrors = %d", got)
	}

	capture.mu.Lock()
	capture.failWith = nil
	capture.mu.Unlock()
	if !c.Start(ReasonHotkey) {
		t.Fatal("Start after a device error should succeed")
	}
	waitStarted(t, capture)
	c.Shutdown()
}

func TestEmptyRecordingCounted(t *testing.T) {
	capture := newFakeCapture()
	capture.chunks = 0
	metrics := telemetry.NewRecorder(logging.Discard())
	c := New(capture, &fakeIndicator{}, metrics, logging.Discard())
	c.Start(ReasonHotkey)
	waitStarted(t, capture)
	c.Shutdown()
	if got := metrics.Snapshot().EmptyRecordings; got != 1 {
		t.Fatalf("EmptyRecordings = %d", got)
	}
}

func TestWhenIdleDefersUntilStop(t *testing.T) {
	capture := newFakeCapture()
	c := New(capture, &fakeIndicator{}, nil, logging.Discard())

	var ran atomic.Int32
	c.WhenIdle(func() { ran.Add(1) })
	if ran.Load() != 1 {
		t.Fatal("WhenIdle should run immediately when idle")
	}

	c.Start(ReasonHotkey)
	waitStarted(t, capture)
	c.WhenIdle(func() { ran.Add(1) })
	if ran.Load() != 1 {
		t.Fatal("WhenIdle ran while recording")
	}
	c.Stop(ReasonHotkey)
	if ran.Load() != 2 {
		t.Fatal("deferred task did not run on stop")
	}
	c.Wait()
}

func TestRapidToggleKeepsOneSession(t *testing.T) {
	capture := newFakeCapture()
	c := New(capture, &fakeIndicator{}, nil, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Start(ReasonHotkey)
		}()
	}
	wg.Wait()
	waitStarted(t, capture)
	select {
	case <-capture.started:
		t.Fatal("concurrent Start launched a second session")
	case <-time.After(20 * time.Millisecond):
	}
	c.Shutdown()
}

func TestReadErrorEndsSession(t *testing.T) {
	sink := &artifactSink{}
	audioCfg := config.AudioConfig{Chunk: 4, Format: config.FormatInt16, Channels: 1, Rate: 16000}
	rec := record.New(audioCfg, unpluggedSource{}, sink, t.TempDir(), logging.Discard())
	ind := &fakeIndicator{}
	metrics := telemetry.NewRecorder(logging.Discard())
	c := New(rec, ind, metrics, logging.Discard())

	if !c.Start(ReasonHotkey) {
		t.Fatal("Start from idle should succeed")
	}
	waitFor(t, func() bool { return !c.Recording() })
	c.Wait()

	if c.State() != StateIdle {
		t.Fatalf("state = %v after a read error", c.State())
	}
	if ind.shows.Load() != 1 || ind.hides.Load() != 1 {
		t.Fatalf("indicator show/hide = %d/%d", ind.shows.Load(), ind.hides.Load())
	}
	if got := metrics.Snapshot().DeviceErrors; got != 1 {
		t.Fatalf("DeviceErrors = %d", got)
	}
	if sink.count() != 1 {
		t.Fatalf("partial audio submitted %d times", sink.count())
	}

	if !c.Start(ReasonHotkey) {
		t.Fatal("Start after a read error should succeed")
	}
	c.Wait()
	if c.Recording() {
		t.Fatal("second session should also end on the read error")
	}
}

func TestCapturePanicReturnsToIdle(t *testing.T) {
	ind := &fakeIndicator{}
	metrics := telemetry.NewRecorder(logging.Discard())
	c := New(panicCapture{}, ind, metrics, logging.Discard())

	c.Start(ReasonHotkey)
	c.Wait()

	if c.Recording() || c.State() != StateIdle {
		t.Fatal("controller should be idle after a capture panic")
	}
	if ind.hides.Load() != 1 {
		t.Fatalf("indicator hides = %d", ind.hides.Load())
	}
	if got := metrics.Snapshot().Failures; got != 1 {
		t.Fatalf("Failures = %d", got)
	}
	if !c.Start(ReasonHotkey) {
		t.Fatal("Start after a capture panic should succeed")
	}
	c.Wait()
}
