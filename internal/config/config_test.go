package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/binder/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BINDER_DB_NAME", "binder")
	t.Setenv("BINDER_DB_USER", "binder")
	t.Setenv("BINDER_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
}

func TestFinalizeDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := &config.Config{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.API.BasePath != "/api" {
		t.Errorf("base path = %q", cfg.API.BasePath)
	}
	if cfg.API.MaxUploadSizeBytes() != 25*1024*1024 {
		t.Errorf("max upload = %d", cfg.API.MaxUploadSizeBytes())
	}
	if cfg.Editor.AutosaveDelayDuration() != 2*time.Second {
		t.Errorf("autosave delay = %v, want 2s", cfg.Editor.AutosaveDelayDuration())
	}
	if cfg.Render.Backend != config.RenderBackendForm {
		t.Errorf("render backend = %q", cfg.Render.Backend)
	}
	if cfg.Lease.Enabled {
		t.Error("lease should be disabled by default")
	}
	if cfg.Logging.SlogLevel() != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.Logging.SlogLevel())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeoutDuration())
	}
}

func TestParseAndMerge(t *testing.T) {
	setRequiredEnv(t)

	base, err := config.Parse([]byte(`
version = "1.2.0"

[server]
port = 9000

[autofill]
base_url = "http://autofill.internal"

[editor]
autosave_delay = "5s"

[render]
backend = "remote"
remote_url = "http://render.internal"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	overlay, err := config.Parse([]byte(`
[server]
port = 9100

[logging]
level = "debug"
format = "json"
`))
	if err != nil {
		t.Fatalf("Parse overlay: %v", err)
	}

	base.Merge(overlay)
	if err := base.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if base.Server.Port != 9100 {
		t.Errorf("overlay port not applied: %d", base.Server.Port)
	}
	if base.Version != "1.2.0" {
		t.Errorf("base version lost: %q", base.Version)
	}
	if base.Autofill.BaseURL != "http://autofill.internal" {
		t.Errorf("autofill base url = %q", base.Autofill.BaseURL)
	}
	if base.Editor.AutosaveDelayDuration() != 5*time.Second {
		t.Errorf("autosave delay = %v", base.Editor.AutosaveDelayDuration())
	}
	if base.Logging.SlogLevel() != slog.LevelDebug || base.Logging.Format != "json" {
		t.Errorf("logging = %+v", base.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BINDER_SERVER_PORT", "7070")
	t.Setenv("BINDER_EDITOR_AUTOSAVE_DELAY", "0s")
	t.Setenv("BINDER_LEASE_ENABLED", "true")
	t.Setenv("BINDER_LEASE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BINDER_TEMPLATES_CATALOG", "/etc/binder/catalog.toml")

	cfg := &config.Config{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Editor.AutosaveDelayDuration() != 0 {
		t.Errorf("autosave should be disabled, got %v", cfg.Editor.AutosaveDelayDuration())
	}
	if !cfg.Lease.Enabled || cfg.Lease.URL == "" {
		t.Errorf("lease = %+v", cfg.Lease)
	}
	if cfg.Templates.CatalogPath != "/etc/binder/catalog.toml" {
		t.Errorf("catalog path = %q", cfg.Templates.CatalogPath)
	}
}

func TestFinalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad shutdown timeout", map[string]string{"BINDER_SHUTDOWN_TIMEOUT": "soon"}, "shutdown_timeout"},
		{"bad log format", map[string]string{"BINDER_LOG_FORMAT": "xml"}, "logging"},
		{"remote render without url", map[string]string{"BINDER_RENDER_BACKEND": "remote"}, "render"},
		{"bad upload size", map[string]string{"BINDER_API_MAX_UPLOAD_SIZE": "lots"}, "max_upload_size"},
		{"lease without url", map[string]string{"BINDER_LEASE_ENABLED": "true"}, "lease"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := &config.Config{}
			err := cfg.Finalize()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Finalize() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
