//go:build windows

package inject

import (
	"time"

	"github.com/micmonay/keybd_event"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// settle gives the clipboard owner time to publish before Ctrl+V.
const settle = 80 * time.Millisecond

// Paster sends Ctrl+V; the dispatcher has already put text on the clipboard.
type Paster struct{}

func (Paster) TypeText(string) error {
	time.Sleep(settle)
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return &InjectionError{Mode: config.InjectPaste, Err: err}
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return &InjectionError{Mode: config.InjectPaste, Err: err}
	}
	return nil
}
