package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "config.json"

// Loader reads the config file and applies environment overrides. Tests can
// override Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load reads path (or the default location), applies environment overrides and
// validates the result. A missing default file yields the defaults; a missing
// explicit file is an error.
func (l Loader) Load(path string) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	overrideString(l.Lookup, "DICTATION_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "DICTATION_MODEL", &cfg.Model)
	overrideString(l.Lookup, "DICTATION_LANGUAGE", &cfg.Language)
	overrideString(l.Lookup, "DICTATION_ENGINE", &cfg.Engine.Kind)
	overrideString(l.Lookup, "DICTATION_ENDPOINT", &cfg.Engine.Endpoint)
	overrideString(l.Lookup, "OPENAI_API_KEY", &cfg.Engine.APIKey)
	overrideString(l.Lookup, "DICTATION_API_KEY", &cfg.Engine.APIKey)

	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Load is Loader{}.Load.
func Load(path string) (Config, error) {
	return Loader{}.Load(path)
}

// DefaultPath returns ./config.json when present, otherwise the file in the
// user config directory.
func DefaultPath() string {
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(dir, "whisper-dictation", DefaultFileName)
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		err = sonic.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// Encode renders cfg in the format implied by path's extension.
func Encode(path string, cfg Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	case ".toml":
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
			return nil, err
		}
		return []byte(sb.String()), nil
	default:
		return sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	}
}

// SaveDefault writes a default config to the provided path. Existing files are
// left untouched.
func SaveDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	b, err := Encode(path, DefaultConfig())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}
