//go:build !windows

package inject

import (
	"errors"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// Paster is not supported on this platform.
type Paster struct{}

func (Paster) TypeText(string) error {
	return &InjectionError{Mode: config.InjectPaste, Err: errors.New("paste not supported on this platform")}
}
