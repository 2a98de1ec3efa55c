// Package churchadmin implements the church application workflow: submission
// with certificate upload, admin review, and join code issuance.
package churchadmin

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	appstore "github.com/parishhub/parishhub/internal/app/store/applications"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	"github.com/parishhub/parishhub/internal/app/system/authutil"
	"github.com/parishhub/parishhub/internal/app/system/authz"
	"github.com/parishhub/parishhub/internal/app/system/httpjson"
	"github.com/parishhub/parishhub/internal/app/system/mailer"
	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/app/system/timeouts"
	"github.com/parishhub/parishhub/internal/app/system/upload"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log      *zap.Logger
	Apps     *appstore.Store
	Users    *userstore.Store
	Uploads  *upload.Store
	Mailer   *mailer.Mailer
	SiteName string
}

// JoinCodeLength is the length of generated church join codes.
const JoinCodeLength = 8

/*─────────────────────────────────────────────────────────────────────────────*
| Submission                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRegister accepts a multipart application with a certificate file.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(upload.MaxCertificateSize + (1 << 20)); err != nil {
		httpjson.BadRequest(w, "Invalid multipart form.")
		return
	}

	churchName := normalize.Name(r.FormValue("church_name"))
	address := strings.TrimSpace(r.FormValue("address"))
	email := normalize.Email(r.FormValue("email"))
	contact := strings.TrimSpace(r.FormValue("contact_number"))
	if churchName == "" || address == "" || email == "" || contact == "" {
		httpjson.BadRequest(w, "Church name, address, email, and contact number are required.")
		return
	}

	_, fh, err := r.FormFile("certificate")
	if err != nil {
		httpjson.BadRequest(w, "Certificate file is required.")
		return
	}

	certPath, err := h.Uploads.SaveCertificate(fh)
	if err != nil {
		switch err {
		case upload.ErrMissingFile, upload.ErrFileTooLarge, upload.ErrBadFileType:
			httpjson.BadRequest(w, err.Error())
		default:
			h.Log.Error("certificate save failed", zap.Error(err))
			httpjson.ServerError(w)
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Apps.Create(ctx, models.ChurchApplication{
		ChurchName:      churchName,
		Address:         address,
		Email:           email,
		ContactNumber:   contact,
		CertificatePath: certPath,
	})
	if err != nil {
		if err == appstore.ErrDuplicateApplication {
			httpjson.BadRequest(w, "An application for this email is already pending or approved.")
			return
		}
		h.Log.Error("application create failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	h.Log.Info("church application submitted",
		zap.String("church", created.ChurchName),
		zap.String("email", created.Email))

	httpjson.Write(w, http.StatusCreated, map[string]any{
		"message": "Application submitted. You will be notified after review.",
		"id":      created.ID.Hex(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Review                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList returns applications, optionally filtered by ?status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	apps, err := h.Apps.List(ctx, r.URL.Query().Get("status"))
	if err != nil {
		h.Log.Error("application list failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"applications": apps})
}

// HandleGet returns a single application.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	app, err := h.Apps.GetByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "Application not found.")
			return
		}
		h.Log.Error("application lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Write(w, http.StatusOK, map[string]any{"application": app})
}

type reviewRequest struct {
	Notes string `json:"notes"`
}

// HandleApprove approves a pending application and provisions the church
// admin account. Approval is idempotent; the account email is best-effort.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if r.ContentLength > 0 && !httpjson.Decode(w, r, &req) {
		return
	}

	_, _, reviewerID, okCtx := authz.UserCtx(r)
	if !okCtx {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	app, repeated, err := h.Apps.Approve(ctx, id, reviewerID, req.Notes)
	if err != nil {
		switch err {
		case mongo.ErrNoDocuments:
			httpjson.NotFound(w, "Application not found.")
		case appstore.ErrNotPending:
			httpjson.BadRequest(w, "Application has already been rejected.")
		default:
			h.Log.Error("approve failed", zap.Error(err))
			httpjson.ServerError(w)
		}
		return
	}

	userID, err := h.provisionAdmin(ctx, app)
	if err != nil {
		h.Log.Error("church admin provisioning failed",
			zap.String("email", app.Email), zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	message := "Application approved."
	if repeated {
		message = "Application is already approved."
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"message": message,
		"user_id": userID.Hex(),
	})
}

// provisionAdmin ensures a church-admin account exists for an approved
// application. An existing account is promoted and linked; otherwise a
// verified account with a temporary password is created and the credentials
// are emailed.
func (h *Handler) provisionAdmin(ctx context.Context, app *models.ChurchApplication) (primitive.ObjectID, error) {
	existing, err := h.Users.GetByEmail(ctx, app.Email)
	if err == nil {
		if err := h.Users.PromoteToChurchAdmin(ctx, existing.ID, app.ID); err != nil {
			return primitive.NilObjectID, err
		}
		return existing.ID, nil
	}
	if err != mongo.ErrNoDocuments {
		return primitive.NilObjectID, err
	}

	tempPass, err := authutil.GenerateTempPassword(12)
	if err != nil {
		return primitive.NilObjectID, err
	}
	hash, err := authutil.HashPassword(tempPass)
	if err != nil {
		return primitive.NilObjectID, err
	}

	created, err := h.Users.Create(ctx, models.User{
		FullName:     app.ChurchName + " Admin",
		Email:        app.Email,
		PasswordHash: &hash,
		PasswordTemp: true,
		Role:         models.RoleChurchAdmin,
		Verified:     true,
		ChurchID:     &app.ID,
	})
	if err != nil {
		if err == userstore.ErrDuplicateEmail {
			// Account appeared concurrently; promote it instead.
			u, gerr := h.Users.GetByEmail(ctx, app.Email)
			if gerr != nil {
				return primitive.NilObjectID, gerr
			}
			if perr := h.Users.PromoteToChurchAdmin(ctx, u.ID, app.ID); perr != nil {
				return primitive.NilObjectID, perr
			}
			return u.ID, nil
		}
		return primitive.NilObjectID, err
	}

	msg := mailer.BuildTempPasswordEmail(mailer.TempPasswordEmailData{
		SiteName:     h.SiteName,
		ChurchName:   app.ChurchName,
		Email:        app.Email,
		TempPassword: tempPass,
	})
	msg.To = app.Email
	if err := h.Mailer.Send(msg); err != nil {
		// Approval stands; the admin can use the password reset flow.
		h.Log.Warn("approval email failed", zap.String("to", app.Email), zap.Error(err))
	}

	return created.ID, nil
}

// HandleReject rejects a pending application. No user records are touched.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if r.ContentLength > 0 && !httpjson.Decode(w, r, &req) {
		return
	}

	_, _, reviewerID, okCtx := authz.UserCtx(r)
	if !okCtx {
		httpjson.Unauthorized(w, "Sign in required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	app, err := h.Apps.Reject(ctx, id, reviewerID, req.Notes)
	if err != nil {
		switch err {
		case mongo.ErrNoDocuments:
			httpjson.NotFound(w, "Application not found.")
		case appstore.ErrNotPending:
			httpjson.BadRequest(w, "Application has already been approved.")
		default:
			h.Log.Error("reject failed", zap.Error(err))
			httpjson.ServerError(w)
		}
		return
	}

	msg := mailer.BuildRejectionEmail(h.SiteName, app.ChurchName, req.Notes)
	msg.To = app.Email
	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Warn("rejection email failed", zap.String("to", app.Email), zap.Error(err))
	}

	httpjson.Message(w, http.StatusOK, "Application rejected.")
}

/*─────────────────────────────────────────────────────────────────────────────*
| Join codes                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleGenerateJoinCode issues the church's member join code. Codes are
// write-once; church admins may only issue for their own church.
func (h *Handler) HandleGenerateJoinCode(w http.ResponseWriter, r *http.Request) {
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
			httpjson.Forbidden(w, "You can only issue a join code for your own church.")
			return
		}
	}

	// Regenerate on the rare code collision with another church.
	for attempt := 0; attempt < 3; attempt++ {
		code := generateJoinCode()
		app, err := h.Apps.SetJoinCode(ctx, id, code)
		if err == appstore.ErrCodeTaken {
			continue
		}
		if err != nil {
			switch err {
			case mongo.ErrNoDocuments:
				httpjson.NotFound(w, "Application not found.")
			case appstore.ErrNotApproved:
				httpjson.BadRequest(w, "Join codes can only be issued for approved churches.")
			case appstore.ErrJoinCodeExists:
				httpjson.BadRequest(w, "A join code has already been generated for this church.")
			default:
				h.Log.Error("join code issue failed", zap.Error(err))
				httpjson.ServerError(w)
			}
			return
		}
		httpjson.Write(w, http.StatusOK, map[string]any{"code": *app.JoinCode})
		return
	}

	h.Log.Error("join code generation exhausted retries")
	httpjson.ServerError(w)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.BadRequest(w, "Invalid application id.")
		return primitive.NilObjectID, false
	}
	return id, true
}

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateJoinCode() string {
	b := make([]byte, JoinCodeLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	for i := range b {
		b[i] = joinCodeAlphabet[int(b[i])%len(joinCodeAlphabet)]
	}
	return string(b)
}
