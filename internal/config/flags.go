package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// FlagValues holds the command-line overrides. Only flags the user actually
// set are applied (see ApplyFlags).
type FlagValues struct {
	Model       string
	Language    string
	Hotkey      string
	Engine      string
	Endpoint    string
	APIKey      string
	ModelsDir   string
	Injection   string
	MaxDuration int
	Workers     int
	Chunk       int
	Rate        int
	Channels    int
	Format      string
	Device      string
	TempDir     string
	LogLevel    string
	Tray        bool
	Notify      bool
}

// BindFlags registers the override flags on fs and returns their targets.
func BindFlags(fs *pflag.FlagSet) *FlagValues {
	fv := &FlagValues{}

	fs.StringVar(&fv.Model, "model", "", "whisper model (tiny, base, small, medium, large-v3)")
	fs.StringVar(&fv.Language, "language", "", "language hint passed to the engine")
	fs.StringVar(&fv.Hotkey, "hotkey", "", "push-to-talk combination, e.g. ctrl+shift+d")
	fs.StringVar(&fv.Engine, "engine", "", "engine kind (whisper-cli, http, openai, stub)")
	fs.StringVar(&fv.Endpoint, "endpoint", "", "ASR endpoint URL for the http engine")
	fs.StringVar(&fv.APIKey, "api-key", "", "API key for http/openai engines")
	fs.StringVar(&fv.ModelsDir, "models-dir", "", "directory holding ggml models")
	fs.StringVar(&fv.Injection, "inject", "", "injection mode (type, paste, none)")
	fs.IntVar(&fv.MaxDuration, "max-duration", 0, "maximum recording length in seconds")
	fs.IntVar(&fv.Workers, "workers", 0, "transcription worker count")
	fs.IntVar(&fv.Chunk, "chunk", 0, "frames per capture chunk")
	fs.IntVar(&fv.Rate, "rate", 0, "sampling rate (Hz)")
	fs.IntVar(&fv.Channels, "channels", 0, "channels (1 or 2)")
	fs.StringVar(&fv.Format, "format", "", "sample format (int16, int24, int32, float32)")
	fs.StringVar(&fv.Device, "device", "", "input device name (default device when empty)")
	fs.StringVar(&fv.TempDir, "temp-dir", "", "directory for transient audio artifacts")
	fs.StringVar(&fv.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&fv.Tray, "tray", false, "show the tray indicator")
	fs.BoolVar(&fv.Notify, "notify", false, "show desktop notifications on start/stop")

	return fv
}

// ApplyFlags applies the flags present on fs to cfg and re-validates it.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet, fv *FlagValues) error {
	set := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	if set("model") {
		cfg.Model = fv.Model
	}
	if set("language") {
		cfg.Language = fv.Language
	}
	if set("hotkey") {
		hk, err := ParseHotkey(fv.Hotkey)
		if err != nil {
			return err
		}
		cfg.Hotkey = hk
	}
	if set("engine") {
		cfg.Engine.Kind = fv.Engine
	}
	if set("endpoint") {
		cfg.Engine.Endpoint = fv.Endpoint
	}
	if set("api-key") {
		cfg.Engine.APIKey = fv.APIKey
	}
	if set("models-dir") {
		cfg.Engine.ModelsDir = fv.ModelsDir
	}
	if set("inject") {
		cfg.Injection.Mode = fv.Injection
	}
	if set("max-duration") {
		cfg.Recording.MaxDurationSeconds = fv.MaxDuration
	}
	if set("workers") {
		cfg.Workers = fv.Workers
	}
	if set("chunk") {
		cfg.Audio.Chunk = fv.Chunk
	}
	if set("rate") {
		cfg.Audio.Rate = fv.Rate
	}
	if set("channels") {
		cfg.Audio.Channels = fv.Channels
	}
	if set("format") {
		cfg.Audio.Format = SampleFormat(fv.Format)
	}
	if set("device") {
		cfg.Audio.Device = fv.Device
	}
	if set("temp-dir") {
		cfg.TempDir = fv.TempDir
	}
	if set("log-level") {
		cfg.LogLevel = fv.LogLevel
	}
	if set("tray") {
		cfg.Indicator.Tray = fv.Tray
	}
	if set("notify") {
		cfg.Indicator.Notification = fv.Notify
	}
	return Validate(cfg)
}

// ParseHotkey accepts strings like "ctrl+shift+d" or "shift+F" and returns
// the corresponding HotkeyConfig. Only Ctrl and Shift are valid modifiers.
func ParseHotkey(s string) (HotkeyConfig, error) {
	if strings.TrimSpace(s) == "" {
		return HotkeyConfig{}, fmt.Errorf("empty hotkey")
	}
	parts := strings.Split(s, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.ToLower(parts[i]))
	}

	var hk HotkeyConfig
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "ctrl", "control":
			hk.Ctrl = true
		case "shift":
			hk.Shift = true
		default:
			return HotkeyConfig{}, fmt.Errorf("unsupported modifier %q in hotkey %q", p, s)
		}
	}

	key := strings.ToUpper(parts[len(parts)-1])
	if len(key) != 1 || !isHotkeyChar(key[0]) {
		return HotkeyConfig{}, fmt.Errorf("unsupported key token %q in hotkey %q", key, s)
	}
	hk.Key = key
	return hk, nil
}
