// Package inject types transcripts into the window that has keyboard focus.
package inject

import (
	"fmt"

	"github.com/go-vgo/robotgo"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// Injector delivers text to the focused window.
type Injector interface {
	TypeText(text string) error
}

// InjectionError reports a failed delivery. The transcript is still on the
// clipboard.
type InjectionError struct {
	Mode string
	Err  error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("inject (%s): %v", e.Mode, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }

// New returns the injector for mode.
func New(mode string) (Injector, error) {
	switch mode {
	case config.InjectType, "":
		return Typer{}, nil
	case config.InjectPaste:
		return Paster{}, nil
	case config.InjectNone:
		return None{}, nil
	}
	return nil, fmt.Errorf("unknown injection mode %q", mode)
}

// Typer synthesises the whole string as keystrokes in one call.
type Typer struct{}

func (Typer) TypeText(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InjectionError{Mode: config.InjectType, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	robotgo.TypeStr(text)
	return nil
}

// None leaves the transcript on the clipboard only.
type None struct{}

func (None) TypeText(string) error { return nil }
