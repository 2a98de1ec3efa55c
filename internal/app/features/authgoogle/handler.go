// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	statestore "github.com/parishhub/parishhub/internal/app/store/oauthstate"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/app/system/normalize"
	"github.com/parishhub/parishhub/internal/app/system/timeouts"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler handles Google OAuth sign-in. The callback hands a short-lived
// token to the frontend in the URL fragment; the frontend exchanges it for
// its session by calling the API with it as a bearer token.
type Handler struct {
	Log        *zap.Logger
	Users      *userstore.Store
	Tokens     *sysauth.TokenManager
	StateStore *statestore.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://api.parishhub.org/api/auth/google/callback"
	FrontendURL  string // e.g., "https://parishhub.org"
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// ServeLogin initiates the flow by redirecting to Google's consent screen.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectError(w, r, "google_not_configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	state, err := h.StateStore.Issue(ctx)
	if err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.redirectError(w, r, "internal")
		return
	}

	url := h.oauth2Config().AuthCodeURL(state)
	h.Log.Debug("initiating Google OAuth flow", zap.String("redirect_url", url))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// ServeCallback validates state, exchanges the code, provisions the account,
// and redirects to the frontend with a short-lived hand-off token.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.redirectError(w, r, "google_denied")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		h.redirectError(w, r, "invalid_state")
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	if err := h.StateStore.Redeem(ctxTimeout, state); err != nil {
		if err == statestore.ErrInvalidState {
			h.Log.Warn("invalid or expired OAuth state")
			h.redirectError(w, r, "invalid_state")
			return
		}
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.redirectError(w, r, "internal")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.redirectError(w, r, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectError(w, r, "token_exchange")
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectError(w, r, "user_info")
		return
	}
	if googleUser.Email == "" {
		h.redirectError(w, r, "user_info")
		return
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, timeouts.Medium())
	defer dbCancel()

	user, err := h.Users.UpsertGoogleUser(dbCtx,
		normalize.Email(googleUser.Email), googleUser.Name, googleUser.ID)
	if err != nil {
		h.Log.Error("google user upsert failed", zap.Error(err))
		h.redirectError(w, r, "internal")
		return
	}

	if err := h.Users.MarkActive(dbCtx, user.ID); err != nil {
		h.Log.Warn("mark active failed", zap.Error(err))
	}

	handoff, err := h.Tokens.Mint(user.ID.Hex(), user.Email, user.Role, sysauth.ShortTokenTTL)
	if err != nil {
		h.Log.Error("hand-off token mint failed", zap.Error(err))
		h.redirectError(w, r, "internal")
		return
	}

	h.Log.Info("google sign-in", zap.String("email", user.Email))

	// The fragment keeps the token out of server logs along the redirect.
	http.Redirect(w, r, h.FrontendURL+"/oauth#token="+handoff, http.StatusSeeOther)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.FrontendURL+"/login?error="+code, http.StatusSeeOther)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}
