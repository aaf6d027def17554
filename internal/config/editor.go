package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvEditorAutosaveDelay = "BINDER_EDITOR_AUTOSAVE_DELAY"
	EnvEditorIdleTimeout   = "BINDER_EDITOR_IDLE_TIMEOUT"
	EnvEditorSaveTimeout   = "BINDER_EDITOR_SAVE_TIMEOUT"
)

// EditorConfig tunes editor sessions. An AutosaveDelay of 0s disables autosave.
type EditorConfig struct {
	AutosaveDelay string `toml:"autosave_delay"`
	IdleTimeout   string `toml:"idle_timeout"`
	SaveTimeout   string `toml:"save_timeout"`
}

// AutosaveDelayDuration returns AutosaveDelay as a time.Duration.
func (c *EditorConfig) AutosaveDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.AutosaveDelay)
	return d
}

// IdleTimeoutDuration returns IdleTimeout as a time.Duration.
func (c *EditorConfig) IdleTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	return d
}

// SaveTimeoutDuration returns SaveTimeout as a time.Duration.
func (c *EditorConfig) SaveTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.SaveTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EditorConfig) Finalize() error {
	if c.AutosaveDelay == "" {
		c.AutosaveDelay = "2s"
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "30m"
	}
	if c.SaveTimeout == "" {
		c.SaveTimeout = "30s"
	}

	if v := os.Getenv(EnvEditorAutosaveDelay); v != "" {
		c.AutosaveDelay = v
	}
	if v := os.Getenv(EnvEditorIdleTimeout); v != "" {
		c.IdleTimeout = v
	}
	if v := os.Getenv(EnvEditorSaveTimeout); v != "" {
		c.SaveTimeout = v
	}

	for name, v := range map[string]string{
		"autosave_delay": c.AutosaveDelay,
		"idle_timeout":   c.IdleTimeout,
		"save_timeout":   c.SaveTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *EditorConfig) Merge(overlay *EditorConfig) {
	if overlay.AutosaveDelay != "" {
		c.AutosaveDelay = overlay.AutosaveDelay
	}
	if overlay.IdleTimeout != "" {
		c.IdleTimeout = overlay.IdleTimeout
	}
	if overlay.SaveTimeout != "" {
		c.SaveTimeout = overlay.SaveTimeout
	}
}
