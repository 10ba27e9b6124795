package record

import (
	"errors"
	"fmt"
)

// ErrTransientRead marks a recoverable read failure such as an input
// overflow. The capture loop retries it.
var ErrTransientRead = errors.New("transient audio read error")

// AudioDeviceError reports that the capture device could not be opened or
// started. It ends the session.
type AudioDeviceError struct {
	Op  string
	Err error
}

func (e *AudioDeviceError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *AudioDeviceError) Unwrap() error { return e.Err }
