// internal/app/features/churchadmin/routes.go
package churchadmin

import (
	"github.com/go-chi/chi/v5"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/domain/models"
)

// Routes mounts the church application workflow.
// Typically: r.Mount("/api/church-admin", churchadmin.Routes(h, tokens))
func Routes(h *Handler, tokens *sysauth.TokenManager) chi.Router {
	r := chi.NewRouter()

	// Public: anyone may apply.
	r.Post("/register", h.HandleRegister)

	r.Group(func(pr chi.Router) {
		pr.Use(tokens.RequireAuth)

		// Review queue is platform-admin only.
		pr.With(sysauth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)).
			Get("/applications", h.HandleList)
		pr.With(sysauth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)).
			Get("/applications/{id}", h.HandleGet)
		pr.With(sysauth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)).
			Patch("/applications/{id}/approve", h.HandleApprove)
		pr.With(sysauth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)).
			Patch("/applications/{id}/reject", h.HandleReject)

		// Join codes: the church's own admin or a platform admin.
		pr.With(sysauth.RequireRole(models.RoleChurchAdmin, models.RoleAdmin, models.RoleSuperAdmin)).
			Post("/applications/{id}/join-code", h.HandleGenerateJoinCode)
	})

	return r
}
