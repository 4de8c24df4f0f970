package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RegisterRoutes mounts all endpoints. The approval API sits behind
// system-credential auth; the descriptor and health endpoints are open.
func RegisterRoutes(r chi.Router, h *HTTPHandler, systemKeys map[string]string, log zerolog.Logger) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/api", func(api chi.Router) {
		api.Use(SystemAuth(systemKeys, log))
		api.Get("/approval/{instanceId}", h.GetApproval)
	})
}
