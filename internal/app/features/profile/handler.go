// Package profile serves the signed-in user's own account record.
package profile

import (
	"context"
	"net/http"

	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/authz"
	"github.com/parishhub/parishhub/internal/app/system/httpjson"
	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/app/system/timeouts"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log   *zap.Logger
	Users *userstore.Store
}

type profileResponse struct {
	User *models.User `json:"user"`
	// PasswordTemp nudges the frontend to prompt for a rotation after an
	// admin-issued temporary password.
	PasswordTemp bool `json:"password_temp"`
}

// HandleGet returns the caller's account, read fresh from the database
// rather than echoed from the token.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Account no longer exists.")
			return
		}
		h.Log.Error("profile lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, profileResponse{User: user, PasswordTemp: user.PasswordTemp})
}

type updateRequest struct {
	FullName string `json:"full_name"`
}

// HandleUpdate changes the caller's display name.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	var req updateRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}
	if normalize.Name(req.FullName) == "" {
		httpjson.BadRequest(w, "Full name is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, userID, userstore.ProfileUpdate{FullName: req.FullName}); err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Account no longer exists.")
			return
		}
		h.Log.Error("profile update failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Log.Error("profile reload failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, profileResponse{User: user, PasswordTemp: user.PasswordTemp})
}
