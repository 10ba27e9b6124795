// Package clipboard puts transcripts on the system clipboard.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// System writes to the OS clipboard.
type System struct{}

// SetText replaces the clipboard contents with text.
func (System) SetText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard unavailable on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
