// Package session owns the Idle/Recording state machine that the hotkey and
// the watchdog drive.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/hotkey"
	"github.com/Car-Role/Whisper-dictation/internal/record"
	"github.com/Car-Role/Whisper-dictation/internal/telemetry"
)

// State is the controller state.
type State int32

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Reason explains a transition in logs.
type Reason string

const (
	ReasonHotkey   Reason = "hotkey"
	ReasonTimeout  Reason = "timeout"
	ReasonShutdown Reason = "shutdown"
	ReasonDevice   Reason = "device-error"
)

// CommandKind selects the controller operation.
type CommandKind int

const (
	CommandStart CommandKind = iota + 1
	CommandStop
)

// Command is queued by producers that must not block.
type Command struct {
	Kind   CommandKind
	Reason Reason
}

// Indicator is told when recording begins and ends.
type Indicator interface {
	Show()
	Hide()
}

// Capturer runs the capture pipeline for one session on the calling
// goroutine.
type Capturer interface {
	Run(sess *record.Session) (record.Result, error)
}

// DefaultQueueSize bounds pending commands.
const DefaultQueueSize = 16

// Controller serialises start/stop requests. Commands from the hook arrive
// through Post and are executed by Run; Start and Stop may also be called
// directly and are safe for concurrent use.
type Controller struct {
	capture   Capturer
	indicator Indicator
	metrics   *telemetry.Recorder
	log       *slog.Logger
	now       func() time.Time
	cmds      chan Command

	mu        sync.Mutex
	state     State
	current   *record.Session
	last      *record.Session
	idleTasks []func()

	recording atomic.Bool
	captures  sync.WaitGroup
}

// Option customises a Controller.
type Option func(*Controller)

// WithQueueSize sets the command queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.cmds = make(chan Command, n)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates an idle controller.
func New(capture Capturer, indicator Indicator, metrics *telemetry.Recorder, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		capture:   capture,
		indicator: indicator,
		metrics:   metrics,
		log:       logger.With("component", "session"),
		now:       time.Now,
		cmds:      make(chan Command, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post enqueues cmd without blocking. It reports false when the queue is
// full.
func (c *Controller) Post(cmd Command) bool {
	select {
	case c.cmds <- cmd:
		return true
	default:
		return false
	}
}

// Signal adapts hotkey signals onto Post.
func (c *Controller) Signal(s hotkey.Signal) bool {
	switch s {
	case hotkey.SignalStart:
		return c.Post(Command{Kind: CommandStart, Reason: ReasonHotkey})
	case hotkey.SignalStop:
		return c.Post(Command{Kind: CommandStop, Reason: ReasonHotkey})
	}
	return false
}

// Recording is a lock-free read of the state for the hook thread.
func (c *Controller) Recording() bool { return c.recording.Load() }

// Run executes queued commands until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.cmds:
			c.handle(cmd)
		}
	}
}

func (c *Controller) handle(cmd Command) {
	switch cmd.Kind {
	case CommandStart:
		c.Start(cmd.Reason)
	case CommandStop:
		c.Stop(cmd.Reason)
	}
}

// Start begins a session unless one is already recording.
func (c *Controller) Start(reason Reason) bool {
	c.mu.Lock()
	if c.state == StateRecording {
		c.mu.Unlock()
		c.log.Debug("start ignored, already recording", "reason", reason)
		return false
	}
	sess := record.NewSession(c.now(), c.last)
	c.state = StateRecording
	c.current = sess
	c.last = sess
	c.recording.Store(true)
	c.captures.Add(1)
	c.mu.Unlock()

	c.metrics.SessionStarted()
	c.log.Info("recording started", "session", sess.ID, "reason", reason)
	c.indicator.Show()
	go c.runCapture(sess)
	return true
}

// Stop ends the current session. It only flags the capture loop and never
// waits for I/O.
func (c *Controller) Stop(reason Reason) bool {
	return c.stopMatching("", reason)
}

// StopSession stops the current session only if its ID is id.
func (c *Controller) StopSession(id string, reason Reason) bool {
	if id == "" {
		return false
	}
	return c.stopMatching(id, reason)
}

func (c *Controller) stopMatching(id string, reason Reason) bool {
	c.mu.Lock()
	sess := c.current
	if c.state != StateRecording || sess == nil || (id != "" && sess.ID != id) {
		c.mu.Unlock()
		return false
	}
	sess.Stop()
	tasks := c.toIdleLocked()
	c.mu.Unlock()

	c.log.Info("recording stopped", "session", sess.ID, "reason", reason, "elapsed", c.now().Sub(sess.StartedAt).Round(time.Millisecond))
	c.indicator.Hide()
	runTasks(tasks)
	return true
}

func (c *Controller) toIdleLocked() []func() {
	c.state = StateIdle
	c.current = nil
	c.recording.Store(false)
	tasks := c.idleTasks
	c.idleTasks = nil
	return tasks
}

// Snapshot returns the state, the current session ID and its start time.
func (c *Controller) Snapshot() (State, string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return c.state, "", time.Time{}
	}
	return c.state, c.current.ID, c.current.StartedAt
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WhenIdle runs fn immediately if idle, otherwise right after the next
// transition to idle. fn must be quick.
func (c *Controller) WhenIdle(fn func()) {
	c.mu.Lock()
	if c.state == StateRecording {
		c.idleTasks = append(c.idleTasks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Wait blocks until every capture goroutine has finished its hand-off.
func (c *Controller) Wait() { c.captures.Wait() }

// Shutdown stops any recording and waits for capture to finish.
func (c *Controller) Shutdown() {
	c.Stop(ReasonShutdown)
	c.Wait()
}

func (c *Controller) runCapture(sess *record.Session) {
	defer c.captures.Done()
	defer func() {
		if r := recover(); r != nil {
			c.metrics.Failure()
			c.log.Error("capture panicked", "session", sess.ID, "panic", r)
			c.abort(sess)
		}
	}()

	res, err := c.capture.Run(sess)
	var devErr *record.AudioDeviceError
	switch {
	case errors.As(err, &devErr):
		c.metrics.DeviceError()
		c.log.Error("audio device unavailable", "session", sess.ID, "error", err)
		c.abort(sess)
	case err != nil:
		c.metrics.Failure()
		c.log.Error("capture failed", "session", sess.ID, "error", err)
		c.abort(sess)
	case res.ReadErr != nil:
		// Audio read before the failure has already been handed off.
		c.metrics.DeviceError()
		c.log.Error("audio read failed, session ended", "session", sess.ID, "chunks", res.Chunks, "error", res.ReadErr)
		c.abort(sess)
	case res.Chunks == 0:
		c.metrics.EmptyRecording()
		c.log.Debug("recording was empty", "session", sess.ID)
	}
}

// abort returns to idle when sess is still the live session.
func (c *Controller) abort(sess *record.Session) {
	c.mu.Lock()
	if c.current != sess || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	sess.Stop()
	tasks := c.toIdleLocked()
	c.mu.Unlock()

	c.log.Info("recording stopped", "session", sess.ID, "reason", ReasonDevice)
	c.indicator.Hide()
	runTasks(tasks)
}

func runTasks(tasks []func()) {
	for _, fn := range tasks {
		fn()
	}
}
