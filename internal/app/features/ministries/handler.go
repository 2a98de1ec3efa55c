// Package ministries implements ministry join/leave requests, member
// listings, and church admin review of requests.
package ministries

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	ministrystore "github.com/parishhub/parishhub/internal/app/store/ministries"
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
	Log         *zap.Logger
	Memberships *ministrystore.Store
	Users       *userstore.Store
}

type ministryRequest struct {
	Ministry string `json:"ministry"`
}

// HandleJoin files a join request for one of the fixed ministries. The
// caller must already belong to a church. Re-joining resets the membership
// row to pending whatever its prior state.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req ministryRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	caller, ok := h.affiliatedCaller(ctx, w, r)
	if !ok {
		return
	}

	m, err := h.Memberships.RequestJoin(ctx, *caller.ChurchID, caller.ID, strings.ToLower(req.Ministry))
	if err != nil {
		if err == ministrystore.ErrUnknownMinistry {
			httpjson.BadRequest(w, "Unknown ministry.")
			return
		}
		h.Log.Error("ministry join failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"membership": m})
}

// HandleLeave requests to leave a ministry. Only an approved membership
// moves to leave-pending; any other state is returned unchanged.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	var req ministryRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}
	ministry := strings.ToLower(req.Ministry)
	if !models.IsMinistry(ministry) {
		httpjson.BadRequest(w, "Unknown ministry.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	caller, ok := h.affiliatedCaller(ctx, w, r)
	if !ok {
		return
	}

	m, err := h.Memberships.RequestLeave(ctx, *caller.ChurchID, caller.ID, ministry)
	if err != nil {
		if err == ministrystore.ErrNotApproved {
			// Leave on a non-approved row is a no-op; report current state.
			current, gerr := h.Memberships.Get(ctx, *caller.ChurchID, caller.ID, ministry)
			if gerr != nil {
				if gerr == mongo.ErrNoDocuments {
					httpjson.BadRequest(w, "You are not a member of this ministry.")
					return
				}
				h.Log.Error("membership lookup failed", zap.Error(gerr))
				httpjson.ServerError(w)
				return
			}
			httpjson.Write(w, http.StatusOK, map[string]any{"membership": current})
			return
		}
		h.Log.Error("ministry leave failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"membership": m})
}

// HandleMine lists the caller's membership rows.
func (h *Handler) HandleMine(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	mine, err := h.Memberships.ListByUser(ctx, userID)
	if err != nil {
		h.Log.Error("membership list failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"memberships": mine})
}

// HandleRoster returns a church's approved members grouped by ministry,
// every ministry present even when empty. ?ministry= narrows to one.
func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	churchID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "churchID"))
	if err != nil {
		httpjson.BadRequest(w, "Invalid church id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !h.canManageChurch(ctx, w, r, churchID) {
		return
	}

	roster, err := h.Memberships.Roster(ctx, churchID)
	if err != nil {
		h.Log.Error("roster failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if filter := strings.ToLower(r.URL.Query().Get("ministry")); filter != "" {
		if !models.IsMinistry(filter) {
			httpjson.BadRequest(w, "Unknown ministry.")
			return
		}
		roster = map[string][]models.MinistryMembership{filter: roster[filter]}
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"roster": roster})
}

type reviewRequest struct {
	Action string `json:"action"` // approve | reject
}

// HandleReview settles a pending join or leave request. Restricted to the
// owning church's admin or a platform admin.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.BadRequest(w, "Invalid request id.")
		return
	}

	var req reviewRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}
	action := strings.ToLower(req.Action)
	if action != "approve" && action != "reject" {
		httpjson.BadRequest(w, `Action must be "approve" or "reject".`)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Memberships.GetByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Request not found.")
			return
		}
		h.Log.Error("membership lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if !h.canManageChurch(ctx, w, r, m.ChurchID) {
		return
	}

	updated, err := h.Memberships.Review(ctx, id, action == "approve")
	if err != nil {
		if err == ministrystore.ErrNotReviewable {
			httpjson.BadRequest(w, "Request has already been settled.")
			return
		}
		h.Log.Error("membership review failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"membership": updated})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// affiliatedCaller loads the caller's account and requires a church link.
func (h *Handler) affiliatedCaller(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return nil, false
	}

	caller, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Account no longer exists.")
			return nil, false
		}
		h.Log.Error("caller lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return nil, false
	}
	if caller.ChurchID == nil {
		httpjson.BadRequest(w, "Join a church before joining a ministry.")
		return nil, false
	}
	return caller, true
}

// canManageChurch allows the church's own admin and platform admins.
// Writes the error response and returns false otherwise.
func (h *Handler) canManageChurch(ctx context.Context, w http.ResponseWriter, r *http.Request, churchID primitive.ObjectID) bool {
	role, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return false
	}
	if authz.IsAdmin(r) {
		return true
	}
	if role != models.RoleChurchAdmin {
		httpjson.Forbidden(w, "Insufficient permissions.")
		return false
	}

	caller, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Log.Error("caller lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return false
	}
	if caller.ChurchID == nil || *caller.ChurchID != churchID {
		httpjson.Forbidden(w, "You can only manage your own church.")
		return false
	}
	return true
}
