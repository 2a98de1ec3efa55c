// internal/app/features/auth/routes.go
package auth

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the public auth endpoints.
// Typically: r.Mount("/api", auth.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.HandleRegister)
	r.Post("/verify-otp-registration", h.HandleVerifyRegistration)
	r.Post("/resend-otp-registration", h.HandleResendRegistration)
	r.Post("/login", h.HandleLogin)
	r.Post("/forget-password", h.HandleForgetPassword)
	r.Post("/verify-otp", h.HandleVerifyResetCode)
	r.Post("/reset-password", h.HandleResetPassword)

	return r
}
