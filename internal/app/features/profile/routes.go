// internal/app/features/profile/routes.go
package profile

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the profile endpoints. The caller applies the bearer-token
// middleware before mounting.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.HandleGet)
	r.Patch("/", h.HandleUpdate)

	return r
}
