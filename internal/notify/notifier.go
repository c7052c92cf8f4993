// Package notify delivers the verification link and the two-factor code to a
// user's mailbox. Delivery is best-effort: callers persist the secret first
// and treat a send error as something to log, never as a failed operation.
package notify

import (
	"context"
	"log/slog"
)

type Notifier interface {
	SendVerification(ctx context.Context, email, link string) error
	SendTwoFactorCode(ctx context.Context, email, code string) error
}

// LogNotifier writes messages to the log instead of sending them. Only meant
// for local development where no SMTP server is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerification(ctx context.Context, email, link string) error {
	n.logger.InfoContext(ctx, "verification email (not sent, no SMTP configured)", "email", email, "link", link)
	return nil
}

func (n *LogNotifier) SendTwoFactorCode(ctx context.Context, email, code string) error {
	n.logger.InfoContext(ctx, "2fa email (not sent, no SMTP configured)", "email", email, "code", code)
	return nil
}
