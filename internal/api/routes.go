package api

import (
	"net/http"

	"github.com/JaimeStill/binder/internal/config"
	"github.com/JaimeStill/binder/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) {
	maxUpload := cfg.API.MaxUploadSizeBytes()

	routes.Register(
		mux,
		domain.Templates.Handler(maxUpload).Routes(),
		domain.Binders.Handler().Routes(),
		domain.Sections.Handler(maxUpload, domain.Editor.Unsaved).Routes(),
		domain.Autofill.Handler().Routes(),
		domain.Editor.Handler().Routes(),
		domain.Render.Handler().Routes(),
	)
}
