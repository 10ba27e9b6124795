package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SampleFormat is the PCM sample format requested from the capture device.
type SampleFormat string

const (
	FormatInt16   SampleFormat = "int16"
	FormatInt24   SampleFormat = "int24"
	FormatInt32   SampleFormat = "int32"
	FormatFloat32 SampleFormat = "float32"
)

// ParseSampleFormat accepts both the short names and the PortAudio constant
// names (paInt16, paFloat32, ...).
func ParseSampleFormat(s string) (SampleFormat, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "pa")
	switch v {
	case "int16", "":
		return FormatInt16, nil
	case "int24":
		return FormatInt24, nil
	case "int32":
		return FormatInt32, nil
	case "float32":
		return FormatFloat32, nil
	}
	return "", fmt.Errorf("unsupported sample format %q (allowed: int16, int24, int32, float32)", s)
}

// BitDepth returns the sample width stored in the WAV artifact.
func (f SampleFormat) BitDepth() int {
	switch f {
	case FormatInt24:
		return 24
	case FormatInt32, FormatFloat32:
		return 32
	default:
		return 16
	}
}

// HotkeyConfig describes the push-to-talk combination.
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl" yaml:"ctrl" toml:"ctrl"`
	Shift bool   `json:"shift" yaml:"shift" toml:"shift"`
	Key   string `json:"key" yaml:"key" toml:"key"`
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	Chunk    int          `json:"chunk" yaml:"chunk" toml:"chunk"`
	Format   SampleFormat `json:"format" yaml:"format" toml:"format"`
	Channels int          `json:"channels" yaml:"channels" toml:"channels"`
	Rate     int          `json:"rate" yaml:"rate" toml:"rate"`
	Device   string       `json:"device,omitempty" yaml:"device,omitempty" toml:"device,omitempty"`
}

// UIConfig holds the indicator look. IndicatorColor is the tray icon colour
// while recording: an SVG colour name or #rrggbb. The legacy indicator_size
// and transparency keys are accepted and ignored.
type UIConfig struct {
	IndicatorColor string `json:"indicator_color" yaml:"indicator_color" toml:"indicator_color"`
}

// EngineConfig selects and configures the speech recognition backend.
type EngineConfig struct {
	Kind           string  `json:"kind" yaml:"kind" toml:"kind"`
	ModelsDir      string  `json:"models_dir,omitempty" yaml:"models_dir,omitempty" toml:"models_dir,omitempty"`
	Binary         string  `json:"binary,omitempty" yaml:"binary,omitempty" toml:"binary,omitempty"`
	Threads        int     `json:"threads,omitempty" yaml:"threads,omitempty" toml:"threads,omitempty"`
	Endpoint       string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	BaseURL        string  `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKey         string  `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	RemoteModel    string  `json:"remote_model,omitempty" yaml:"remote_model,omitempty" toml:"remote_model,omitempty"`
	Prompt         string  `json:"prompt,omitempty" yaml:"prompt,omitempty" toml:"prompt,omitempty"`
	TextPath       string  `json:"text_path,omitempty" yaml:"text_path,omitempty" toml:"text_path,omitempty"`
	Extra          string  `json:"extra,omitempty" yaml:"extra,omitempty" toml:"extra,omitempty"`
	Container      string  `json:"container,omitempty" yaml:"container,omitempty" toml:"container,omitempty"`
	Codec          string  `json:"codec,omitempty" yaml:"codec,omitempty" toml:"codec,omitempty"`
	BitRate        int     `json:"bit_rate,omitempty" yaml:"bit_rate,omitempty" toml:"bit_rate,omitempty"`
	RequestTimeout int     `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	MaxRetry       int     `json:"max_retry" yaml:"max_retry" toml:"max_retry"`
	RetryBaseDelay float64 `json:"retry_base_delay" yaml:"retry_base_delay" toml:"retry_base_delay"`
	EnableHTTP2    bool    `json:"enable_http2" yaml:"enable_http2" toml:"enable_http2"`
	VerifySSL      bool    `json:"verify_ssl" yaml:"verify_ssl" toml:"verify_ssl"`
	StubText       string  `json:"stub_text,omitempty" yaml:"stub_text,omitempty" toml:"stub_text,omitempty"`
}

// RecordingConfig bounds a single dictation.
type RecordingConfig struct {
	MaxDurationSeconds int `json:"max_duration_seconds" yaml:"max_duration_seconds" toml:"max_duration_seconds"`
	WatchdogIntervalMs int `json:"watchdog_interval_ms" yaml:"watchdog_interval_ms" toml:"watchdog_interval_ms"`
}

// MaxDuration returns the watchdog threshold.
func (r RecordingConfig) MaxDuration() time.Duration {
	return time.Duration(r.MaxDurationSeconds) * time.Second
}

// WatchdogInterval returns the watchdog poll period.
func (r RecordingConfig) WatchdogInterval() time.Duration {
	return time.Duration(r.WatchdogIntervalMs) * time.Millisecond
}

// InjectionConfig controls how transcripts reach the focused window.
type InjectionConfig struct {
	Mode string `json:"mode" yaml:"mode" toml:"mode"`
}

// IndicatorConfig toggles the optional indicator surfaces.
type IndicatorConfig struct {
	Tray         bool `json:"tray" yaml:"tray" toml:"tray"`
	Notification bool `json:"notification" yaml:"notification" toml:"notification"`
}

// Config holds configurable parameters.
type Config struct {
	Model     string          `json:"model" yaml:"model" toml:"model"`
	Language  string          `json:"language" yaml:"language" toml:"language"`
	Hotkey    HotkeyConfig    `json:"hotkey" yaml:"hotkey" toml:"hotkey"`
	Audio     AudioConfig     `json:"audio" yaml:"audio" toml:"audio"`
	UI        UIConfig        `json:"ui" yaml:"ui" toml:"ui"`
	Engine    EngineConfig    `json:"engine" yaml:"engine" toml:"engine"`
	Recording RecordingConfig `json:"recording" yaml:"recording" toml:"recording"`
	Injection InjectionConfig `json:"injection" yaml:"injection" toml:"injection"`
	Indicator IndicatorConfig `json:"indicator" yaml:"indicator" toml:"indicator"`
	Workers   int             `json:"workers" yaml:"workers" toml:"workers"`
	TempDir   string          `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty" toml:"temp_dir,omitempty"`
	LogLevel  string          `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Engine kinds.
const (
	EngineWhisperCLI = "whisper-cli"
	EngineHTTP       = "http"
	EngineOpenAI     = "openai"
	EngineStub       = "stub"
)

// Injection modes.
const (
	InjectType  = "type"
	InjectPaste = "paste"
	InjectNone  = "none"
)

// Models lists the whisper model variants offered for switching.
var Models = []string{"tiny", "base", "small", "medium", "large-v3"}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Model:    "tiny",
		Language: "en",
		Hotkey:   HotkeyConfig{Ctrl: true, Shift: true, Key: "D"},
		Audio: AudioConfig{
			Chunk:    1024,
			Format:   FormatInt16,
			Channels: 1,
			Rate:     16000,
		},
		UI: UIConfig{IndicatorColor: "red"},
		Engine: EngineConfig{
			Kind:           EngineWhisperCLI,
			RemoteModel:    "whisper-1",
			TextPath:       "text",
			Container:      "wav",
			Codec:          "pcm",
			BitRate:        128,
			RequestTimeout: 30,
			MaxRetry:       3,
			RetryBaseDelay: 0.5,
			EnableHTTP2:    true,
			VerifySSL:      true,
		},
		Recording: RecordingConfig{
			MaxDurationSeconds: 30,
			WatchdogIntervalMs: 1000,
		},
		Injection: InjectionConfig{Mode: InjectType},
		Indicator: IndicatorConfig{Tray: true},
		Workers:   2,
		LogLevel:  "info",
	}
}

// Validate normalises cfg in place and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	var errs []error

	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "tiny"
	}
	cfg.Language = strings.ToLower(strings.TrimSpace(cfg.Language))

	key := strings.ToUpper(strings.TrimSpace(cfg.Hotkey.Key))
	if len(key) != 1 || !isHotkeyChar(key[0]) {
		errs = append(errs, fmt.Errorf("invalid hotkey.key %q (one letter or digit)", cfg.Hotkey.Key))
	}
	cfg.Hotkey.Key = key

	if cfg.Audio.Chunk <= 0 {
		errs = append(errs, fmt.Errorf("invalid audio.chunk: %d (must be > 0)", cfg.Audio.Chunk))
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("invalid audio.channels: %d (allowed 1..2)", cfg.Audio.Channels))
	}
	if cfg.Audio.Rate <= 0 {
		errs = append(errs, fmt.Errorf("invalid audio.rate: %d (must be > 0)", cfg.Audio.Rate))
	}
	format, err := ParseSampleFormat(string(cfg.Audio.Format))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid audio.format: %w", err))
	}
	cfg.Audio.Format = format

	cfg.Engine.Kind = strings.ToLower(strings.TrimSpace(cfg.Engine.Kind))
	switch cfg.Engine.Kind {
	case "":
		cfg.Engine.Kind = EngineWhisperCLI
	case EngineWhisperCLI, EngineStub:
	case EngineHTTP:
		if cfg.Engine.Endpoint == "" {
			errs = append(errs, errors.New("engine.endpoint is required for the http engine"))
		}
		if !allowedContainers[strings.ToLower(cfg.Engine.Container)] {
			errs = append(errs, fmt.Errorf("invalid engine.container: %s", cfg.Engine.Container))
		}
	case EngineOpenAI:
		if cfg.Engine.APIKey == "" && cfg.Engine.BaseURL == "" {
			errs = append(errs, errors.New("engine.api_key is required for the openai engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid engine.kind %q (allowed: whisper-cli, http, openai, stub)", cfg.Engine.Kind))
	}
	if cfg.Engine.RequestTimeout <= 0 {
		cfg.Engine.RequestTimeout = 30
	}
	if cfg.Engine.MaxRetry <= 0 {
		cfg.Engine.MaxRetry = 1
	}
	if cfg.Engine.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("invalid engine.retry_base_delay: %v", cfg.Engine.RetryBaseDelay))
	}

	if cfg.Recording.MaxDurationSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid recording.max_duration_seconds: %d (must be > 0)", cfg.Recording.MaxDurationSeconds))
	}
	if cfg.Recording.WatchdogIntervalMs <= 0 {
		cfg.Recording.WatchdogIntervalMs = 1000
	}

	cfg.Injection.Mode = strings.ToLower(strings.TrimSpace(cfg.Injection.Mode))
	switch cfg.Injection.Mode {
	case "":
		cfg.Injection.Mode = InjectType
	case InjectType, InjectPaste, InjectNone:
	default:
		errs = append(errs, fmt.Errorf("invalid injection.mode %q (allowed: type, paste, none)", cfg.Injection.Mode))
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return errors.Join(errs...)
}

func isHotkeyChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var allowedContainers = map[string]bool{
	"wav":  true,
	"ogg":  true,
	"oga":  true,
	"mp3":  true,
	"flac": true,
	"aac":  true,
	"m4a":  true,
	"mp4":  true,
	"opus": true,
	"webm": true,
}

// ResolveTempDir validates/creates the configured artifact directory and
// falls back to the OS temp dir.
func ResolveTempDir(cfg *Config) (string, error) {
	if cfg.TempDir == "" {
		return os.TempDir(), nil
	}
	abs, err := filepath.Abs(cfg.TempDir)
	if err != nil {
		return "", fmt.Errorf("temp dir path invalid %q: %w", cfg.TempDir, err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("temp dir %q exists but is not a directory", abs)
	case err == nil:
		return abs, nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", fmt.Errorf("create temp dir %q: %w", abs, err)
		}
		return abs, nil
	default:
		return "", fmt.Errorf("access temp dir %q: %w", abs, err)
	}
}

// ContainerExt maps container names to file extensions (lowercase).
func ContainerExt(container string) string {
	c := strings.ToLower(container)
	if c == "" {
		return "wav"
	}
	return c
}
