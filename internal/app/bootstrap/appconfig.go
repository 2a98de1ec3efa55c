// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration: core settings such as
// HTTP ports, TLS, and log level live in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session token configuration
	TokenSecret string // Secret key for signing bearer tokens (must be strong in production)

	// Certificate upload storage
	UploadDir string // Local directory for church certificate files

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty disables auth)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address (e.g., noreply@parishhub.org)
	MailFromName string // From display name (e.g., ParishHub)

	// URLs
	BaseURL     string // This API's public base URL, for OAuth callbacks
	FrontendURL string // The SPA origin, for CORS and OAuth hand-off redirects

	// One-time codes
	OTPExpiry time.Duration // Verification/reset code lifetime

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string

	// SuperAdmin bootstrap
	SuperAdminEmail string // Email promoted to superadmin on startup

	// Branding used in outbound email
	SiteName string
}
