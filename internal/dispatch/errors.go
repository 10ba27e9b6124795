package dispatch

import "fmt"

// Transcription stages.
const (
	StageDecode = "decode"
	StageEngine = "engine"
)

// TranscriptionError aborts a single job.
type TranscriptionError struct {
	Stage  string
	Engine string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Engine, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
