//go:build windows

package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	whKeyboardLL  = 13
	wmQuit        = 0x0012
	wmUser        = 0x0400
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	pmNoRemove    = 0x0000
	llkhfInjected = 0x10
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPeekMessageW        = user32.NewProc("PeekMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	ptX     int32
	ptY     int32
}

var (
	installMu    sync.Mutex
	live         atomic.Pointer[Hook]
	callbackOnce sync.Once
	callback     uintptr
)

// Hook is the installed WH_KEYBOARD_LL hook and the OS-locked goroutine
// pumping its messages.
type Hook struct {
	handler  Handler
	threadID atomic.Uint32
	install  installHandshake
	done     chan struct{}
	once     sync.Once
}

// Install registers handler as the process-wide low-level keyboard hook.
func Install(handler Handler) (*Hook, error) {
	installMu.Lock()
	defer installMu.Unlock()

	if live.Load() != nil {
		return nil, &HookInstallError{Err: ErrHookInstalled}
	}
	// NewCallback slots are never freed; allocate one for the process.
	callbackOnce.Do(func() { callback = windows.NewCallback(hookProc) })

	h := &Hook{handler: handler, done: make(chan struct{})}
	live.Store(h)

	errCh := make(chan error, 1)
	go h.loop(errCh)

	var err error
	select {
	case err = <-errCh:
	case <-time.After(2 * time.Second):
		if h.install.abandon() {
			err = errors.New("timeout installing low-level hook")
		} else {
			err = <-errCh
		}
	}
	if err != nil {
		live.CompareAndSwap(h, nil)
		return nil, &HookInstallError{Err: err}
	}
	return h, nil
}

func (h *Hook) loop(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.done)

	h.threadID.Store(windows.GetCurrentThreadId())

	// Force creation of the thread message queue so WM_QUIT can be posted.
	var m msg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, wmUser, wmUser, pmNoRemove)

	handle, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, callback, 0, 0)
	if handle == 0 {
		errCh <- fmt.Errorf("SetWindowsHookExW: %w", callErr)
		return
	}
	defer procUnhookWindowsHookEx.Call(handle)

	if !h.install.commit() {
		return
	}
	errCh <- nil

	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			return
		}
	}
}

// Uninstall stops the message pump and removes the hook. Safe to call more
// than once.
func (h *Hook) Uninstall() error {
	if h == nil {
		return nil
	}
	var err error
	h.once.Do(func() {
		defer live.CompareAndSwap(h, nil)

		tid := h.threadID.Load()
		if tid == 0 {
			return
		}
		r, _, callErr := procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
		if r == 0 {
			err = fmt.Errorf("PostThreadMessageW: %w", callErr)
			return
		}
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			err = errors.New("timeout waiting for hook thread to exit")
		}
	})
	return err
}

func hookProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		if h := live.Load(); h != nil && h.handler != nil {
			k := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			if ev, ok := toEvent(uint32(wParam), k); ok && h.handler(ev) == Consume {
				return 1
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return ret
}

func toEvent(message uint32, k *kbdllhookstruct) (KeyEvent, bool) {
	ev := KeyEvent{
		VKCode:   k.vkCode,
		TimeMs:   k.time,
		Injected: k.flags&llkhfInjected != 0,
	}
	switch message {
	case wmKeyDown, wmSysKeyDown:
		ev.Down = true
	case wmKeyUp, wmSysKeyUp:
		ev.Down = false
	default:
		return KeyEvent{}, false
	}
	return ev, true
}

// OSModifiers reads the asynchronous Ctrl/Shift state.
func OSModifiers() Modifiers {
	return Modifiers{Ctrl: keyDown(VKControl), Shift: keyDown(VKShift)}
}

func keyDown(vk uint32) bool {
	st, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return st&0x8000 != 0
}
