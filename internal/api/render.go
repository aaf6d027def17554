package api

import (
	"log/slog"

	"github.com/JaimeStill/binder/internal/config"
	"github.com/JaimeStill/binder/internal/render"
	"github.com/JaimeStill/binder/internal/templates"
)

func newRenderer(cfg *config.RenderConfig, tmpl templates.System, logger *slog.Logger) render.Renderer {
	if cfg.Backend == config.RenderBackendRemote {
		return render.NewRemoteRenderer(cfg.RemoteURL, cfg.TimeoutDuration())
	}
	return render.NewFormRenderer(tmpl, logger)
}

func renderOptions(cfg *config.RenderConfig) render.Options {
	opts := render.Options{TempDir: cfg.TempDir}
	if cfg.HTML {
		opts.HTML = render.NewHTMLPrinter(cfg.TimeoutDuration())
	}
	return opts
}
