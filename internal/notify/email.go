package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"github.com/campusconnect/backend/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, e Email) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{e.To},
		Subject: e.Subject,
		Html:    e.HTML,
		Text:    e.Text,
	})
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", e.To, err)
	}
	return nil
}

// LogMailer stands in when no provider key is configured.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) Send(_ context.Context, e Email) error {
	m.Log.WithFields(logrus.Fields{"to": e.To, "subject": e.Subject}).Info("Email disabled, message dropped")
	return nil
}

// Emails renders the account emails the service sends.
type Emails struct {
	mailer   Mailer
	resetURL string
}

func NewEmails(mailer Mailer, resetURL string) *Emails {
	return &Emails{mailer: mailer, resetURL: resetURL}
}

func (e *Emails) SendSecurityAlert(ctx context.Context, u *models.User) error {
	const body = "Multiple failed login attempts were detected on your account. Please contact support if this was not you."
	return e.mailer.Send(ctx, Email{
		To:      u.Email,
		Subject: "Campus Connect: Suspicious Activity Detected",
		Text:    body,
		HTML:    fmt.Sprintf("<p>Hi %s,</p><p>%s</p>", html.EscapeString(u.FullName()), body),
	})
}

func (e *Emails) SendPasswordReset(ctx context.Context, u *models.User, token string) error {
	link := e.resetURL + "?token=" + url.QueryEscape(token)
	return e.mailer.Send(ctx, Email{
		To:      u.Email,
		Subject: "Campus Connect: Password Reset",
		Text:    "Use the following link to reset your password: " + link,
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Reset your password</a>. The link expires soon.</p>`,
			html.EscapeString(u.FullName()), html.EscapeString(link)),
	})
}
