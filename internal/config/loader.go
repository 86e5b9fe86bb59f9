package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// defaultConfigTOML is written on first run so users have a file to edit.
const defaultConfigTOML = `# spacefnd configuration.
#
# If device starts with /dev/input/ it is treated as a path. Otherwise the
# highest-numbered input device whose name contains it is grabbed.
device = ""

# Evdev key names, see /usr/include/linux/input-event-codes.h.
fn_key = "KEY_SPACE"
pause_key = "KEY_RIGHTMETA"

# Milliseconds the fn key must be held before it acts as a modifier.
mode_switch_timeout = 200

[keymap]
# KEY_H = "KEY_LEFT"
# KEY_J = "KEY_DOWN"
# KEY_K = "KEY_UP"
# KEY_L = "KEY_RIGHT"
`

// DefaultPath returns the XDG location of the config file:
// $XDG_CONFIG_HOME/spacefnd/conf.toml, falling back to ~/.config.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "spacefnd", "conf.toml"), nil
}

// Load reads and validates the configuration file at path. The format is
// chosen by extension; .toml is the default for unknown extensions.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrInit loads the config from the XDG location. On first run the
// default config file is written there and the built-in defaults are
// returned. The second return value is the path in use.
func LoadOrInit() (*Config, string, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, "", err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, "", err
		}
		cfg := Default()
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTOML), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
