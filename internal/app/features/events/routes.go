// internal/app/features/events/routes.go
package events

import (
	"github.com/go-chi/chi/v5"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/domain/models"
)

// Routes mounts the event directory.
// Typically: r.Mount("/api/events", events.Routes(h, tokens))
func Routes(h *Handler, tokens *sysauth.TokenManager) chi.Router {
	r := chi.NewRouter()

	// Websocket subscribe; browsers cannot set Authorization headers on
	// websocket dials, so the room itself carries no private data beyond
	// the public event feed.
	r.Get("/ws/{churchID}", h.HandleSubscribe)

	r.Group(func(pr chi.Router) {
		pr.Use(tokens.RequireAuth)

		pr.Get("/", h.HandleList)

		pr.With(sysauth.RequireRole(models.RoleChurchAdmin)).Post("/", h.HandleCreate)
		pr.With(sysauth.RequireRole(models.RoleChurchAdmin)).Patch("/{id}", h.HandleUpdate)
		pr.With(sysauth.RequireRole(models.RoleChurchAdmin)).Delete("/{id}", h.HandleDelete)
	})

	return r
}
