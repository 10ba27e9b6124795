package hotkey

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrUnsupported is returned by Install on platforms without a
	// low-level keyboard hook.
	ErrUnsupported = errors.New("low-level keyboard hook not supported on this platform")
	// ErrHookInstalled is returned when a hook is already live in this process.
	ErrHookInstalled = errors.New("keyboard hook already installed")
)

// HookInstallError reports a failed hook registration. It is fatal at startup.
type HookInstallError struct {
	Err error
}

func (e *HookInstallError) Error() string {
	return fmt.Sprintf("install keyboard hook: %v", e.Err)
}

func (e *HookInstallError) Unwrap() error { return e.Err }

// Handler classifies one event. It runs on the hook thread.
type Handler func(KeyEvent) Verdict

const (
	installPending int32 = iota
	installCommitted
	installAbandoned
)

// installHandshake decides, exactly once, whether a hook thread that
// finished registering keeps its hook or whether the installer already gave
// up on it.
type installHandshake struct {
	state atomic.Int32
}

// commit is called by the hook thread after registration. False means the
// installer timed out and the thread must unhook and exit.
func (h *installHandshake) commit() bool {
	return h.state.CompareAndSwap(installPending, installCommitted)
}

// abandon is called by the installer on timeout. False means the thread
// committed first and its result is on the way.
func (h *installHandshake) abandon() bool {
	return h.state.CompareAndSwap(installPending, installAbandoned)
}
