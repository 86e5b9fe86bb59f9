// Package config handles configuration loading and validation for spacefnd.
package config

import (
	"time"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Device selects the physical keyboard. A value starting with
	// /dev/input/ is treated as a path; anything else is a substring match
	// against enumerated device names (highest-numbered match wins).
	Device string `toml:"device" json:"device" yaml:"device"`

	// FnKey is the evdev name of the mod-tap key.
	FnKey string `toml:"fn_key" json:"fn_key" yaml:"fn_key"`

	// PauseKey is the evdev name of the key that toggles the pause gate.
	PauseKey string `toml:"pause_key" json:"pause_key" yaml:"pause_key"`

	// ModeSwitchTimeout is the ambiguity window in milliseconds: how long
	// the fn key must be held before it is considered a modifier.
	ModeSwitchTimeout int `toml:"mode_switch_timeout" json:"mode_switch_timeout" yaml:"mode_switch_timeout"`

	// Keymap maps evdev key names to the names they produce while the
	// shifted layer is active.
	Keymap map[string]string `toml:"keymap" json:"keymap" yaml:"keymap"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum level to output: debug, info, warn, or error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// File is the log file path when Output is "file".
	File string `toml:"file" json:"file" yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device:            "",
		FnKey:             "KEY_SPACE",
		PauseKey:          "KEY_RIGHTMETA",
		ModeSwitchTimeout: 200,
		Keymap:            map[string]string{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Timeout returns the ambiguity window as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ModeSwitchTimeout) * time.Millisecond
}
