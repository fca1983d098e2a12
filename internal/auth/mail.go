package auth

import (
	"context"
	"log/slog"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// LogMailer writes reset links to the log instead of sending them. It is the
// default until an SMTP relay is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	m.Logger.InfoContext(ctx, "password reset requested",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}
