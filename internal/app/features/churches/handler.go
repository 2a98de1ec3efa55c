// Package churches exposes approved churches: members join by code, anyone
// reads the public profile, and the church's admin edits it.
package churches

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	appstore "github.com/parishhub/parishhub/internal/app/store/applications"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/authz"
	"github.com/parishhub/parishhub/internal/app/system/httpjson"
	"github.com/parishhub/parishhub/internal/app/system/timeouts"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log   *zap.Logger
	Apps  *appstore.Store
	Users *userstore.Store

	// bioPolicy strips everything but basic formatting from church bios.
	bioPolicy *bluemonday.Policy
}

func NewHandler(log *zap.Logger, apps *appstore.Store, users *userstore.Store) *Handler {
	return &Handler{
		Log:       log,
		Apps:      apps,
		Users:     users,
		bioPolicy: bluemonday.UGCPolicy(),
	}
}

type joinRequest struct {
	Code string `json:"code"`
}

// HandleJoin links the calling member to the church holding the join code.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	var req joinRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpjson.BadRequest(w, "Join code is required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	church, err := h.Apps.GetByJoinCode(ctx, req.Code)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.BadRequest(w, "Invalid join code.")
			return
		}
		h.Log.Error("join code lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if err := h.Users.LinkChurch(ctx, userID, church.ID); err != nil {
		switch err {
		case userstore.ErrAlreadyLinked:
			httpjson.BadRequest(w, "You already belong to a church.")
		case mongo.ErrNoDocuments:
			httpjson.NotFound(w, "Account no longer exists.")
		default:
			h.Log.Error("church link failed", zap.Error(err))
			httpjson.ServerError(w)
		}
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{
		"message":     "Joined " + church.ChurchName + ".",
		"church_id":   church.ID.Hex(),
		"church_name": church.ChurchName,
	})
}

// HandleGet returns a church's public profile.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	church, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Church not found.")
			return
		}
		h.Log.Error("church lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}
	// Pending and rejected applications are not public.
	if church.Status != models.ApplicationApproved {
		httpjson.NotFound(w, "Church not found.")
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"church": publicView(church)})
}

type updateRequest struct {
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
	Cover  *string `json:"cover"`
}

// HandleUpdate edits a church's presentation fields. Only that church's
// admin (or a platform admin) may edit; bios are sanitized.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	role, _, userID, okCtx := authz.UserCtx(r)
	if !okCtx {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if role == models.RoleChurchAdmin {
		caller, err := h.Users.GetByID(ctx, userID)
		if err != nil {
			h.Log.Error("caller lookup failed", zap.Error(err))
			httpjson.ServerError(w)
			return
		}
		if caller.ChurchID == nil || *caller.ChurchID != id {
			httpjson.Forbidden(w, "You can only edit your own church.")
			return
		}
	} else if !authz.IsAdmin(r) {
		httpjson.Forbidden(w, "Insufficient permissions.")
		return
	}

	var req updateRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	upd := appstore.ProfileUpdate{Avatar: req.Avatar, Cover: req.Cover}
	if req.Bio != nil {
		clean := h.bioPolicy.Sanitize(*req.Bio)
		upd.Bio = &clean
	}

	church, err := h.Apps.UpdateProfile(ctx, id, upd)
	if err != nil {
		switch err {
		case mongo.ErrNoDocuments:
			httpjson.NotFound(w, "Church not found.")
		case appstore.ErrNotApproved:
			httpjson.BadRequest(w, "Only approved churches have an editable profile.")
		default:
			h.Log.Error("church update failed", zap.Error(err))
			httpjson.ServerError(w)
		}
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"church": publicView(church)})
}

// publicView hides review and contact internals from the public profile.
func publicView(app *models.ChurchApplication) map[string]any {
	return map[string]any{
		"id":          app.ID.Hex(),
		"church_name": app.ChurchName,
		"address":     app.Address,
		"bio":         app.Bio,
		"avatar":      app.Avatar,
		"cover":       app.Cover,
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.BadRequest(w, "Invalid church id.")
		return primitive.NilObjectID, false
	}
	return id, true
}
