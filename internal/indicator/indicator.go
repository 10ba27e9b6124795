// Package indicator shows the recording state to the user. Indicators only
// observe; they never drive the controller.
package indicator

import (
	"log/slog"
)

// Indicator is told when recording begins and ends.
type Indicator interface {
	Show()
	Hide()
}

// Multi fans out to several indicators in order.
type Multi []Indicator

func (m Multi) Show() {
	for _, ind := range m {
		ind.Show()
	}
}

func (m Multi) Hide() {
	for _, ind := range m {
		ind.Hide()
	}
}

// Log writes the state to the console.
type Log struct {
	log *slog.Logger
}

// NewLog creates a console indicator.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{log: logger.With("component", "indicator")}
}

func (l *Log) Show() { l.log.Info("recording... release the hotkey to transcribe") }
func (l *Log) Hide() { l.log.Info("ready") }

// Notifier shows a desktop notification on each transition. Notifications
// are sent asynchronously.
type Notifier struct {
	notify func(message string) error
	log    *slog.Logger
}

// NewNotifier wraps notify, typically notify.Notify.
func NewNotifier(notify func(message string) error, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{notify: notify, log: logger.With("component", "indicator")}
}

func (n *Notifier) Show() { n.send("Recording started") }
func (n *Notifier) Hide() { n.send("Recording finished") }

func (n *Notifier) send(message string) {
	go func() {
		if err := n.notify(message); err != nil {
			n.log.Debug("notification failed", "error", err)
		}
	}()
}
