package config

import (
	"fmt"
	"strings"

	"spacefnd/internal/keymap"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration. Malformed entries are startup-fatal;
// nothing here is retried or repaired at runtime.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if _, err := keymap.Resolve(c.FnKey); err != nil {
		errs = append(errs, ValidationError{Field: "fn_key", Message: err.Error()})
	}
	if _, err := keymap.Resolve(c.PauseKey); err != nil {
		errs = append(errs, ValidationError{Field: "pause_key", Message: err.Error()})
	}
	if c.FnKey == c.PauseKey {
		errs = append(errs, ValidationError{
			Field:   "pause_key",
			Message: "must differ from fn_key",
		})
	}

	if c.ModeSwitchTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "mode_switch_timeout",
			Message: fmt.Sprintf("must be positive, got %d", c.ModeSwitchTimeout),
		})
	}

	for from, to := range c.Keymap {
		if _, err := keymap.Resolve(from); err != nil {
			errs = append(errs, ValidationError{Field: "keymap", Message: err.Error()})
		}
		if _, err := keymap.Resolve(to); err != nil {
			errs = append(errs, ValidationError{
				Field:   "keymap",
				Message: fmt.Sprintf("value for %s: %v", from, err),
			})
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", c.Logging.Format),
		})
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.File == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file",
				Message: "required when output is \"file\"",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", c.Logging.Output),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Keycodes resolves the configured key names. Call after Validate.
func (c *Config) Keycodes() (fnKey, pauseKey uint16, km *keymap.Map, err error) {
	fnKey, err = keymap.Resolve(c.FnKey)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("fn_key: %w", err)
	}
	pauseKey, err = keymap.Resolve(c.PauseKey)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pause_key: %w", err)
	}
	km, err = keymap.FromNames(c.Keymap)
	if err != nil {
		return 0, 0, nil, err
	}
	return fnKey, pauseKey, km, nil
}
