// Package events implements the church event directory. Every mutation is
// fanned out to the church's websocket room.
package events

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	eventstore "github.com/parishhub/parishhub/internal/app/store/events"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/authz"
	"github.com/parishhub/parishhub/internal/app/system/broadcast"
	"github.com/parishhub/parishhub/internal/app/system/httpjson"
	"github.com/parishhub/parishhub/internal/app/system/timeouts"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// dateLayout is the calendar date format accepted for events.
const dateLayout = "2006-01-02"

type Handler struct {
	Log    *zap.Logger
	Events *eventstore.Store
	Users  *userstore.Store
	Hub    *broadcast.Hub
}

// HandleList returns a church's events, soonest first. The church is named
// by ?church= and defaults to the caller's own.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	churchID, ok := h.resolveChurch(ctx, w, r)
	if !ok {
		return
	}

	events, err := h.Events.ListByChurch(ctx, churchID)
	if err != nil {
		h.Log.Error("event list failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"events": events})
}

type eventRequest struct {
	Title       string `json:"title"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Date        string `json:"date"` // 2006-01-02
}

// HandleCreate adds an event to the caller's church and broadcasts it.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		httpjson.BadRequest(w, "Title is required.")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httpjson.BadRequest(w, "Date must be in YYYY-MM-DD format.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	churchID, ok := h.callerChurch(ctx, w, r)
	if !ok {
		return
	}

	created, err := h.Events.Create(ctx, models.Event{
		ChurchID:    churchID,
		Title:       req.Title,
		Time:        req.Time,
		Location:    req.Location,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		h.Log.Error("event create failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	h.Hub.Publish(churchID.Hex(), broadcast.EventNew, created)
	httpjson.Write(w, http.StatusCreated, map[string]any{"event": created})
}

// HandleUpdate edits an event belonging to the caller's church.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Time        *string `json:"time"`
		Location    *string `json:"location"`
		Description *string `json:"description"`
		Date        *string `json:"date"`
	}
	if !httpjson.Decode(w, r, &req) {
		return
	}

	upd := eventstore.Update{
		Title:       req.Title,
		Time:        req.Time,
		Location:    req.Location,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			httpjson.BadRequest(w, "Date must be in YYYY-MM-DD format.")
			return
		}
		upd.Date = &date
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	churchID, ok := h.callerChurch(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.Events.Update(ctx, id, churchID, upd)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Event not found.")
			return
		}
		h.Log.Error("event update failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	h.Hub.Publish(churchID.Hex(), broadcast.EventUpdated, updated)
	httpjson.Write(w, http.StatusOK, map[string]any{"event": updated})
}

// HandleDelete removes an event belonging to the caller's church.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	churchID, ok := h.callerChurch(ctx, w, r)
	if !ok {
		return
	}

	count, err := h.Events.Delete(ctx, id, churchID)
	if err != nil {
		h.Log.Error("event delete failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}
	if count == 0 {
		httpjson.NotFound(w, "Event not found.")
		return
	}

	h.Hub.Publish(churchID.Hex(), broadcast.EventDeleted, map[string]string{"id": id.Hex()})
	httpjson.Message(w, http.StatusOK, "Event deleted.")
}

// HandleSubscribe upgrades to a websocket and joins the church's room.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	churchID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "churchID"))
	if err != nil {
		httpjson.BadRequest(w, "Invalid church id.")
		return
	}
	h.Hub.Subscribe(w, r, churchID.Hex())
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// resolveChurch picks the church for a read: ?church= when given, otherwise
// the caller's own affiliation.
func (h *Handler) resolveChurch(ctx context.Context, w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	if q := r.URL.Query().Get("church"); q != "" {
		id, err := primitive.ObjectIDFromHex(q)
		if err != nil {
			httpjson.BadRequest(w, "Invalid church id.")
			return primitive.NilObjectID, false
		}
		return id, true
	}
	return h.callerChurch(ctx, w, r)
}

// callerChurch returns the caller's church affiliation, or an error response
// when the caller has none.
func (h *Handler) callerChurch(ctx context.Context, w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Unauthorized(w, "Sign in required.")
		return primitive.NilObjectID, false
	}

	caller, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Account no longer exists.")
			return primitive.NilObjectID, false
		}
		h.Log.Error("caller lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return primitive.NilObjectID, false
	}
	if caller.ChurchID == nil {
		httpjson.BadRequest(w, "No church affiliation.")
		return primitive.NilObjectID, false
	}
	return *caller.ChurchID, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.BadRequest(w, "Invalid event id.")
		return primitive.NilObjectID, false
	}
	return id, true
}
