package hotkey

import "sync/atomic"

// Verdict tells the hook whether to swallow the event.
type Verdict int

const (
	PassThrough Verdict = iota
	Consume
)

func (v Verdict) String() string {
	if v == Consume {
		return "consume"
	}
	return "pass"
}

// Signal is what the interceptor asks of the recording controller.
type Signal int

const (
	SignalStart Signal = iota + 1
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalStop:
		return "stop"
	}
	return "unknown"
}

// KeyEvent is one low-level keyboard notification.
type KeyEvent struct {
	VKCode   uint32
	Down     bool
	TimeMs   uint32
	Injected bool
}

// Modifiers is the live modifier state queried from the OS.
type Modifiers struct {
	Ctrl  bool
	Shift bool
}

// ModifierFunc returns the current modifier state. It is called on the hook
// thread and must not block.
type ModifierFunc func() Modifiers

// Target receives signals. Both methods are called on the hook thread and must
// return immediately.
type Target interface {
	Signal(Signal) bool
	Recording() bool
}

// Interceptor classifies key events against a Spec. It owns the hotkey-active
// flag; everything else is delegated to the Target.
type Interceptor struct {
	spec      Spec
	modifiers ModifierFunc
	target    Target

	active  atomic.Bool
	dropped atomic.Uint64
}

// NewInterceptor wires spec to target. A nil mods reads no modifiers.
func NewInterceptor(spec Spec, mods ModifierFunc, target Target) *Interceptor {
	if mods == nil {
		mods = func() Modifiers { return Modifiers{} }
	}
	return &Interceptor{spec: spec, modifiers: mods, target: target}
}

// Spec returns the combination being watched.
func (i *Interceptor) Spec() Spec { return i.spec }

// Active reports whether the combination is currently held.
func (i *Interceptor) Active() bool { return i.active.Load() }

// Dropped returns how many signals the target refused.
func (i *Interceptor) Dropped() uint64 { return i.dropped.Load() }

// Handle decides the fate of ev. Only atomics and a non-blocking hand-off
// happen here.
func (i *Interceptor) Handle(ev KeyEvent) Verdict {
	if ev.Injected {
		return PassThrough
	}

	if i.spec.Matches(ev.VKCode, i.modifiers()) {
		switch {
		case ev.Down && i.active.CompareAndSwap(false, true):
			i.post(SignalStart)
			return Consume
		case !ev.Down && i.active.CompareAndSwap(true, false):
			i.post(SignalStop)
			return Consume
		case i.active.Load():
			// auto-repeat while held
			return Consume
		}
		return PassThrough
	}

	// A released component ends the combination even if the primary key-up
	// arrives later without its modifiers.
	if !ev.Down && i.spec.IsComponent(ev.VKCode) && i.active.CompareAndSwap(true, false) {
		if i.target.Recording() {
			i.post(SignalStop)
		}
	}
	return PassThrough
}

func (i *Interceptor) post(s Signal) {
	if !i.target.Signal(s) {
		i.dropped.Add(1)
	}
}
