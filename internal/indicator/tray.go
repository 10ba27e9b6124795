package indicator

import (
	"image/color"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

const (
	tooltipRecording = "Recording..."
	tooltipReady     = "Ready"
)

// Tray is a system tray icon with a model menu and a quit item.
type Tray struct {
	models  []string
	onModel func(model string)
	onQuit  func()
	log     *slog.Logger

	recordingIcon []byte
	idleIcon      []byte

	mu         sync.Mutex
	ready      bool
	recording  bool
	model      string
	modelItems map[string]*systray.MenuItem
}

// NewTray creates the tray. The icon turns recColor while recording. onModel
// is called from a menu goroutine when the user picks a model other than the
// current one.
func NewTray(models []string, current string, recColor color.RGBA, onModel func(string), onQuit func(), logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		models:        models,
		model:         current,
		onModel:       onModel,
		onQuit:        onQuit,
		log:           logger.With("component", "tray"),
		recordingIcon: dotIcon(recColor),
		idleIcon:      dotIcon(idleColor),
		modelItems:    make(map[string]*systray.MenuItem),
	}
}

// Run blocks in the tray event loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit ends Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Dictation")

	modelMenu := systray.AddMenuItem("Model", "Whisper model")
	t.mu.Lock()
	for _, name := range t.models {
		item := modelMenu.AddSubMenuItemCheckbox(name, "Use the "+name+" model", name == t.model)
		t.modelItems[name] = item
		go t.watchModel(name, item)
	}
	t.ready = true
	recording := t.recording
	t.mu.Unlock()

	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit dictation")
	go func() {
		<-quit.ClickedCh
		t.log.Info("quit requested from tray")
		if t.onQuit != nil {
			t.onQuit()
		}
	}()

	t.apply(recording)
}

func (t *Tray) onExit() {
	t.mu.Lock()
	t.ready = false
	t.mu.Unlock()
}

func (t *Tray) watchModel(name string, item *systray.MenuItem) {
	for range item.ClickedCh {
		t.mu.Lock()
		same := name == t.model
		t.mu.Unlock()
		if same {
			item.Check()
			continue
		}
		if t.onModel != nil {
			t.onModel(name)
		}
	}
}

// SetModel moves the check mark to model.
func (t *Tray) SetModel(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = model
	for name, item := range t.modelItems {
		if name == model {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) Show() { t.set(true) }
func (t *Tray) Hide() { t.set(false) }

func (t *Tray) set(recording bool) {
	t.mu.Lock()
	t.recording = recording
	ready := t.ready
	t.mu.Unlock()
	if ready {
		t.apply(recording)
	}
}

func (t *Tray) apply(recording bool) {
	if recording {
		systray.SetIcon(t.recordingIcon)
		systray.SetTooltip(tooltipRecording)
		return
	}
	systray.SetIcon(t.idleIcon)
	systray.SetTooltip(tooltipReady)
}
