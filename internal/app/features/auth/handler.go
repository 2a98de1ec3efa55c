// Package auth implements registration, email verification, login, and
// password reset for the JSON API.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	appstore "github.com/parishhub/parishhub/internal/app/store/applications"
	otpstore "github.com/parishhub/parishhub/internal/app/store/otp"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/app/system/authutil"
	"github.com/parishhub/parishhub/internal/app/system/httpjson"
	"github.com/parishhub/parishhub/internal/app/system/mailer"
	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/app/system/ratelimit"
	"github.com/parishhub/parishhub/internal/app/system/timeouts"
	"github.com/parishhub/parishhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log          *zap.Logger
	Users        *userstore.Store
	Apps         *appstore.Store
	OTP          *otpstore.Store
	Tokens       *sysauth.TokenManager
	Mailer       *mailer.Mailer
	LoginLimiter *ratelimit.LoginLimiter
	SiteName     string
}

// invalidCredentials is the uniform 401 for every login failure mode so
// responses do not reveal whether an account exists.
const invalidCredentials = "Invalid credentials"

/*─────────────────────────────────────────────────────────────────────────────*
| Registration                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

type registerRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	ChurchCode      string `json:"church_code"`
}

// HandleRegister creates an unverified member account and emails a
// verification code.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	if normalize.Name(req.FullName) == "" || normalize.Email(req.Email) == "" {
		httpjson.BadRequest(w, "Full name and email are required.")
		return
	}
	if req.Password != req.ConfirmPassword {
		httpjson.BadRequest(w, "Passwords do not match.")
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		httpjson.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user := models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Role:     models.RoleMember,
	}

	// A join code at registration links the member immediately.
	if req.ChurchCode != "" {
		church, err := h.Apps.GetByJoinCode(ctx, req.ChurchCode)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				httpjson.BadRequest(w, "Invalid church code.")
				return
			}
			h.Log.Error("join code lookup failed", zap.Error(err))
			httpjson.ServerError(w)
			return
		}
		user.ChurchID = &church.ID
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		h.Log.Error("password hash failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}
	user.PasswordHash = &hash

	created, err := h.Users.Create(ctx, user)
	if err != nil {
		if err == userstore.ErrDuplicateEmail {
			httpjson.BadRequest(w, "An account with this email already exists.")
			return
		}
		h.Log.Error("user create failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	h.sendOTP(ctx, created.ID, created.Email, otpstore.PurposeRegistration)

	httpjson.Message(w, http.StatusOK, "Registration successful. Check your email for a verification code.")
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// HandleVerifyRegistration confirms a registration code and marks the
// account verified. Verifying an already-verified account succeeds.
func (h *Handler) HandleVerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "No account found for this email.")
			return
		}
		h.Log.Error("user lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if user.Verified {
		httpjson.Message(w, http.StatusOK, "Email is already verified.")
		return
	}

	if err := h.OTP.Consume(ctx, user.ID, otpstore.PurposeRegistration, req.OTP); err != nil {
		h.writeOTPError(w, err)
		return
	}

	if err := h.Users.SetVerified(ctx, user.ID); err != nil {
		h.Log.Error("set verified failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	httpjson.Message(w, http.StatusOK, "Email verified. You can now sign in.")
}

type emailRequest struct {
	Email string `json:"email"`
}

// HandleResendRegistration re-sends the registration code, subject to the
// resend rate limit.
func (h *Handler) HandleResendRegistration(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "No account found for this email.")
			return
		}
		h.Log.Error("user lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if user.Verified {
		httpjson.Message(w, http.StatusOK, "Email is already verified.")
		return
	}

	if ok := h.sendOTP(ctx, user.ID, user.Email, otpstore.PurposeRegistration); !ok {
		httpjson.Error(w, http.StatusTooManyRequests, "Too many resend requests. Please wait before trying again.")
		return
	}

	httpjson.Message(w, http.StatusOK, "A new verification code has been sent.")
}

/*─────────────────────────────────────────────────────────────────────────────*
| Login                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// HandleLogin checks credentials and mints a bearer token. All credential
// failures return the same 401 body.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	if allowed, reason := h.LoginLimiter.Check(r, req.Email); !allowed {
		httpjson.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.Unauthorized(w, invalidCredentials)
			return
		}
		h.Log.Error("user lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	// OAuth-only accounts have no password to check.
	if user.PasswordHash == nil || !authutil.CheckPassword(req.Password, *user.PasswordHash) {
		httpjson.Unauthorized(w, invalidCredentials)
		return
	}

	if !user.Verified && user.Role != models.RoleSuperAdmin {
		httpjson.Forbidden(w, "Email is not verified.")
		return
	}

	// Church admins can only sign in once their application is approved.
	if user.Role == models.RoleChurchAdmin {
		if _, err := h.Apps.GetApprovedByEmail(ctx, user.Email); err != nil {
			if err == mongo.ErrNoDocuments {
				httpjson.ErrorCode(w, http.StatusForbidden,
					"Your church application is still under review.", "UNDER_REVIEW")
				return
			}
			h.Log.Error("application lookup failed", zap.Error(err))
			httpjson.ServerError(w)
			return
		}
	}

	token, err := h.Tokens.Mint(user.ID.Hex(), user.Email, user.Role, sysauth.PrimaryTokenTTL)
	if err != nil {
		h.Log.Error("token mint failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if err := h.Users.MarkActive(ctx, user.ID); err != nil {
		h.Log.Warn("mark active failed", zap.Error(err))
	}
	h.LoginLimiter.ResetEmail(user.Email)

	user.Status = "active"
	httpjson.Write(w, http.StatusOK, loginResponse{Token: token, User: user})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Password reset                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleForgetPassword emails a reset code to a known account.
func (h *Handler) HandleForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "No account found for this email.")
			return
		}
		h.Log.Error("user lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if ok := h.sendOTP(ctx, user.ID, user.Email, otpstore.PurposeReset); !ok {
		httpjson.Error(w, http.StatusTooManyRequests, "Too many reset requests. Please wait before trying again.")
		return
	}

	httpjson.Message(w, http.StatusOK, "A password reset code has been sent to your email.")
}

// HandleVerifyResetCode checks a reset code without consuming it, so the
// frontend can gate the new-password form before the actual reset call.
func (h *Handler) HandleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "No account found for this email.")
			return
		}
		h.Log.Error("user lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if err := h.OTP.Check(ctx, user.ID, otpstore.PurposeReset, req.OTP); err != nil {
		h.writeOTPError(w, err)
		return
	}

	httpjson.Message(w, http.StatusOK, "Code verified.")
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// HandleResetPassword consumes a reset code and replaces the password.
// A successful reset also clears the temporary-password flag.
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !httpjson.Decode(w, r, &req) {
		return
	}

	if err := authutil.ValidatePassword(req.NewPassword); err != nil {
		httpjson.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			httpjson.NotFound(w, "No account found for this email.")
			return
		}
		h.Log.Error("user lookup failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	if err := h.OTP.Consume(ctx, user.ID, otpstore.PurposeReset, req.OTP); err != nil {
		h.writeOTPError(w, err)
		return
	}

	hash, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		h.Log.Error("password hash failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hash, false); err != nil {
		h.Log.Error("password update failed", zap.Error(err))
		httpjson.ServerError(w)
		return
	}

	h.LoginLimiter.ResetEmail(user.Email)
	httpjson.Message(w, http.StatusOK, "Password has been reset. You can now sign in.")
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// sendOTP generates a code and emails it. Returns false when generation is
// blocked or fails; mail transport failures are logged and tolerated since
// the user can request another code.
func (h *Handler) sendOTP(ctx context.Context, userID primitive.ObjectID, email, purpose string) bool {
	res, err := h.OTP.Create(ctx, userID, purpose)
	if err != nil {
		if err == otpstore.ErrTooManyResends {
			return false
		}
		h.Log.Error("otp create failed", zap.Error(err))
		return false
	}

	action := "verify your email"
	if purpose == otpstore.PurposeReset {
		action = "reset your password"
	}
	msg := mailer.BuildOTPEmail(mailer.OTPEmailData{
		SiteName:  h.SiteName,
		Code:      res.Code,
		ExpiresIn: formatExpiry(h.OTP.Expiry()),
		Purpose:   action,
	})
	msg.To = email

	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Warn("otp email send failed", zap.String("to", email), zap.Error(err))
	}
	return true
}

func (h *Handler) writeOTPError(w http.ResponseWriter, err error) {
	switch err {
	case otpstore.ErrNotFound:
		httpjson.BadRequest(w, "The code has expired. Request a new one.")
	case otpstore.ErrInvalidCode:
		httpjson.BadRequest(w, "The code is incorrect.")
	case otpstore.ErrTooManyAttempts:
		httpjson.BadRequest(w, "Too many incorrect attempts. Request a new code.")
	default:
		h.Log.Error("otp verification failed", zap.Error(err))
		httpjson.ServerError(w)
	}
}

func formatExpiry(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
