package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	EnvAutofillBaseURL = "BINDER_AUTOFILL_BASE_URL"
	EnvAutofillTimeout = "BINDER_AUTOFILL_TIMEOUT"
)

// AutofillConfig locates the auto-fill provider service.
// An empty BaseURL leaves auto-fill unconfigured; previews then fail as data source errors.
type AutofillConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *AutofillConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AutofillConfig) Finalize() error {
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if v := os.Getenv(EnvAutofillBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAutofillTimeout); v != "" {
		c.Timeout = v
	}

	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *AutofillConfig) Merge(overlay *AutofillConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}
