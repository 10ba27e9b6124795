// Package notify shows desktop notifications.
package notify

import "github.com/gen2brain/beeep"

// Title heads every notification.
const Title = "Whisper Dictation"

// Notify shows a notification. Failures are returned, not logged.
func Notify(message string) error {
	return beeep.Notify(Title, message, "")
}
