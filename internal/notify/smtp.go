package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/wneessen/go-mail"
)

const (
	subjectVerification = "Verify your email - Watchlist App"
	subjectTwoFactor    = "Your 2FA Code - Watchlist App"
	fromName            = "Watchlist App"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// sender is satisfied by *mail.Client.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier renders the HTML bodies and hands them to an SMTP server.
type SMTPNotifier struct {
	client       sender
	from         string
	twoFactorTTL time.Duration
}

func NewSMTPNotifier(cfg *config.Config) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(tlsPolicy(cfg)),
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(cfg.MailTimeout),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return newSMTPNotifier(client, cfg.SMTPFrom, cfg.TwoFactorTTL), nil
}

// tlsPolicy upgrades with STARTTLS whenever the server offers it. SMTP_TLS
// makes the upgrade mandatory, so codes are never sent in the clear.
func tlsPolicy(cfg *config.Config) mail.TLSPolicy {
	if cfg.SMTPTLS {
		return mail.TLSMandatory
	}
	return mail.TLSOpportunistic
}

func newSMTPNotifier(client sender, from string, twoFactorTTL time.Duration) *SMTPNotifier {
	return &SMTPNotifier{client: client, from: from, twoFactorTTL: twoFactorTTL}
}

func (n *SMTPNotifier) SendVerification(ctx context.Context, email, link string) error {
	body, err := render("verify_email.html", struct{ Link string }{Link: link})
	if err != nil {
		return err
	}
	return n.send(ctx, email, subjectVerification, body)
}

func (n *SMTPNotifier) SendTwoFactorCode(ctx context.Context, email, code string) error {
	body, err := render("two_factor.html", struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(n.twoFactorTTL.Minutes())})
	if err != nil {
		return err
	}
	return n.send(ctx, email, subjectTwoFactor, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(fromName, n.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", subject, to, err)
	}
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
