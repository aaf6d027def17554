package autofill

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/binder/pkg/handlers"
	"github.com/JaimeStill/binder/pkg/routes"
)

// Handler exposes the read-only preview endpoint. Writes go through the
// editor so they are ordered against saves.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "autofill"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sections",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/autofill/preview", Handler: h.Preview},
		},
	}
}

// Preview returns the provider's current values for a section.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathID(r, "id")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	preview, err := h.sys.Preview(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, preview)
}
