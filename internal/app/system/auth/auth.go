package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/parishhub/parishhub/internal/app/system/httpjson"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Token manager                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Token lifetimes. Primary is used for password login; Short is used for
// the OAuth hand-off redirect, where the frontend immediately exchanges the
// token for profile data.
const (
	PrimaryTokenTTL = 7 * 24 * time.Hour
	ShortTokenTTL   = time.Hour
)

// Claims is the JWT payload carried by every session token. The role is a
// snapshot at issue time; promotions take effect on re-login.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies session tokens. Tokens are stateless;
// revocation is only possible via secret rotation.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a TokenManager. The secret must be non-empty.
func NewTokenManager(secret, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is empty; provide ≥32 random chars")
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer}, nil
}

// Mint issues a signed HS256 token embedding the user's id, email and role.
func (tm *TokenManager) Mint(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// ErrInvalidToken is returned for missing, malformed, tampered or expired
// tokens. Callers surface a uniform 401; the reason is not leaked.
var ErrInvalidToken = errors.New("invalid or expired token")

// Parse verifies the signature and expiry of a token string.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the decoded identity injected into r.Context() by the
// bearer middleware.
type SessionUser struct {
	ID    string
	Email string
	Role  string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a user into the request context, bypassing the
// bearer middleware. For handler tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth verifies the bearer token and injects the decoded identity
// into the request context. Missing/invalid/expired tokens get a 401.
func (tm *TokenManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Tests may pre-inject a user; honor it so handlers can be
		// exercised without minting tokens.
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr, ok := BearerToken(r)
		if !ok {
			httpjson.Unauthorized(w, "Authentication required.")
			return
		}

		claims, err := tm.Parse(tokenStr)
		if err != nil {
			httpjson.Unauthorized(w, "Invalid or expired token.")
			return
		}

		next.ServeHTTP(w, withUser(r, &SessionUser{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  claims.Role,
		}))
	})
}

// RequireRole allows the request through only when the caller's role is in
// the allowed set. Must be mounted after RequireAuth.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				httpjson.Unauthorized(w, "Authentication required.")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				httpjson.Forbidden(w, "You don't have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
