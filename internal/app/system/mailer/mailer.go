// internal/app/system/mailer/mailer.go
package mailer

import (
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Email is a single outbound message with both HTML and text bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	User     string // empty for unauthenticated relays (e.g., Mailpit)
	Pass     string
	From     string
	FromName string
}

// Mailer sends email over SMTP. It is constructed once at startup and
// injected into handlers; there is no package-level transport.
type Mailer struct {
	client   *gomail.Client
	from     string
	fromName string
	log      *zap.Logger
}

// New creates a Mailer from SMTP config.
func New(cfg Config, logger *zap.Logger) (*Mailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Pass),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &Mailer{
		client:   client,
		from:     cfg.From,
		fromName: cfg.FromName,
		log:      logger,
	}, nil
}

// Send delivers one email. Callers decide whether a failure is fatal;
// approval notifications, for example, are best-effort.
func (m *Mailer) Send(e Email) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(e.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, e.TextBody)
	if e.HTMLBody != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, e.HTMLBody)
	}

	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", e.To, err)
	}

	m.log.Debug("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}
