// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	authfeature "github.com/parishhub/parishhub/internal/app/features/auth"
	authgooglefeature "github.com/parishhub/parishhub/internal/app/features/authgoogle"
	churchadminfeature "github.com/parishhub/parishhub/internal/app/features/churchadmin"
	churchesfeature "github.com/parishhub/parishhub/internal/app/features/churches"
	eventsfeature "github.com/parishhub/parishhub/internal/app/features/events"
	healthfeature "github.com/parishhub/parishhub/internal/app/features/health"
	ministriesfeature "github.com/parishhub/parishhub/internal/app/features/ministries"
	profilefeature "github.com/parishhub/parishhub/internal/app/features/profile"
	appstore "github.com/parishhub/parishhub/internal/app/store/applications"
	eventstore "github.com/parishhub/parishhub/internal/app/store/events"
	ministrystore "github.com/parishhub/parishhub/internal/app/store/ministries"
	statestore "github.com/parishhub/parishhub/internal/app/store/oauthstate"
	otpstore "github.com/parishhub/parishhub/internal/app/store/otp"
	userstore "github.com/parishhub/parishhub/internal/app/store/users"
	sysauth "github.com/parishhub/parishhub/internal/app/system/auth"
	"github.com/parishhub/parishhub/internal/app/system/broadcast"
	"github.com/parishhub/parishhub/internal/app/system/mailer"
	"github.com/parishhub/parishhub/internal/app/system/ratelimit"
	"github.com/parishhub/parishhub/internal/app/system/upload"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// eventHub is created in BuildHandler and closed in Shutdown.
var eventHub *broadcast.Hub

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It wires the stores to the feature
// handlers and mounts every feature router under its API prefix.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := sysauth.NewTokenManager(appCfg.TokenSecret, "parishhub")
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}

	mail, err := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)
	if err != nil {
		logger.Error("mailer init failed", zap.Error(err))
		return nil, err
	}

	uploads, err := upload.NewStore(appCfg.UploadDir)
	if err != nil {
		logger.Error("upload store init failed", zap.Error(err))
		return nil, err
	}

	// Websocket subscriptions accept the frontend origin plus non-browser
	// clients that send no Origin header.
	eventHub = broadcast.NewHub(logger, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == appCfg.FrontendURL
	})

	db := deps.MongoDatabase
	users := userstore.New(db)
	apps := appstore.New(db)
	memberships := ministrystore.New(db)
	events := eventstore.New(db)
	otps := otpstore.New(db, appCfg.OTPExpiry)
	states := statestore.New(db, statestore.DefaultExpiry)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{appCfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Uploaded church certificates, served statically
	r.Handle("/files/certificates/*", fileserver.Handler("/files/certificates", uploads.BaseDir()))

	// Account registration, login and password recovery
	authHandler := &authfeature.Handler{
		Log:          logger,
		Users:        users,
		Apps:         apps,
		OTP:          otps,
		Tokens:       tokens,
		Mailer:       mail,
		LoginLimiter: ratelimit.NewLoginLimiter(),
		SiteName:     appCfg.SiteName,
	}
	r.Mount("/api", authfeature.Routes(authHandler))

	// Google OAuth sign-in
	googleHandler := &authgooglefeature.Handler{
		Log:          logger,
		Users:        users,
		Tokens:       tokens,
		StateStore:   states,
		ClientID:     appCfg.GoogleClientID,
		ClientSecret: appCfg.GoogleClientSecret,
		RedirectURL:  appCfg.BaseURL + "/api/auth/google/callback",
		FrontendURL:  appCfg.FrontendURL,
	}
	r.Mount("/api/auth/google", authgooglefeature.Routes(googleHandler))

	// The caller's own account
	profileHandler := &profilefeature.Handler{Log: logger, Users: users}
	r.With(tokens.RequireAuth).Mount("/api/profile", profilefeature.Routes(profileHandler))

	// Church application workflow
	churchAdminHandler := &churchadminfeature.Handler{
		Log:      logger,
		Apps:     apps,
		Users:    users,
		Uploads:  uploads,
		Mailer:   mail,
		SiteName: appCfg.SiteName,
	}
	r.Mount("/api/church-admin", churchadminfeature.Routes(churchAdminHandler, tokens))

	// Church profiles and member affiliation
	churchesHandler := churchesfeature.NewHandler(logger, apps, users)
	r.Mount("/api/churches", churchesfeature.Routes(churchesHandler, tokens))

	// Ministry membership
	ministriesHandler := &ministriesfeature.Handler{
		Log:         logger,
		Memberships: memberships,
		Users:       users,
	}
	r.Mount("/api/ministries", ministriesfeature.Routes(ministriesHandler, tokens))

	// Event directory with live fan-out
	eventsHandler := &eventsfeature.Handler{
		Log:    logger,
		Events: events,
		Users:  users,
		Hub:    eventHub,
	}
	r.Mount("/api/events", eventsfeature.Routes(eventsHandler, tokens))

	return r, nil
}
