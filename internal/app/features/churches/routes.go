// internal/app/features/churches/routes.go
package churches

import (
	"github.com/go-chi/chi/v5"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/domain/models"
)

// Routes mounts the church endpoints.
// Typically: r.Mount("/api/churches", churches.Routes(h, tokens))
func Routes(h *Handler, tokens *sysauth.TokenManager) chi.Router {
	r := chi.NewRouter()

	// Public profile read.
	r.Get("/{id}", h.HandleGet)

	r.Group(func(pr chi.Router) {
		pr.Use(tokens.RequireAuth)

		pr.With(sysauth.RequireRole(models.RoleMember)).
			Post("/join", h.HandleJoin)
		pr.Patch("/{id}", h.HandleUpdate)
	})

	return r
}
