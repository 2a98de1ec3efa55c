// internal/app/features/ministries/routes.go
package ministries

import (
	"github.com/go-chi/chi/v5"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/domain/models"
)

// Routes mounts the ministry endpoints. All require a signed-in caller.
// Typically: r.Mount("/api/ministries", ministries.Routes(h, tokens))
func Routes(h *Handler, tokens *sysauth.TokenManager) chi.Router {
	r := chi.NewRouter()

	r.Use(tokens.RequireAuth)

	r.With(sysauth.RequireRole(models.RoleMember)).Post("/join", h.HandleJoin)
	r.With(sysauth.RequireRole(models.RoleMember)).Post("/leave", h.HandleLeave)
	r.Get("/mine", h.HandleMine)

	r.With(sysauth.RequireRole(models.RoleChurchAdmin, models.RoleAdmin, models.RoleSuperAdmin)).
		Get("/roster/{churchID}", h.HandleRoster)
	r.With(sysauth.RequireRole(models.RoleChurchAdmin, models.RoleAdmin, models.RoleSuperAdmin)).
		Patch("/requests/{id}", h.HandleReview)

	return r
}
