package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jmlarsen/flock/internal/domain"
)

// SendGrid delivers mail through the SendGrid API.
type SendGrid struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
	baseURL  string
}

// NewSendGrid creates a SendGrid mailer. baseURL is the public origin used
// to build the links embedded in the messages.
func NewSendGrid(apiKey, fromName, fromAddr, baseURL string) *SendGrid {
	return &SendGrid{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
		baseURL:  baseURL,
	}
}

func (m *SendGrid) SendActivation(ctx context.Context, user *domain.User, token string) error {
	link := activationURL(m.baseURL, user, token)
	plain := fmt.Sprintf("Hi %s,\n\nWelcome! Click the link below to activate your account:\n\n%s\n", user.Name, link)
	html := fmt.Sprintf(`<p>Hi %s,</p><p>Welcome! Click the link below to activate your account:</p><p><a href=%q>Activate</a></p>`, user.Name, link)
	return m.send(user, "Account activation", plain, html)
}

func (m *SendGrid) SendPasswordReset(ctx context.Context, user *domain.User, token string) error {
	link := resetURL(m.baseURL, user, token)
	plain := fmt.Sprintf("To reset your password click the link below:\n\n%s\n\nThis link will expire in two hours. If you did not request a password reset, please ignore this email.\n", link)
	html := fmt.Sprintf(`<p>To reset your password click the link below:</p><p><a href=%q>Reset password</a></p><p>This link will expire in two hours. If you did not request a password reset, please ignore this email.</p>`, link)
	return m.send(user, "Password reset", plain, html)
}

func (m *SendGrid) send(user *domain.User, subject, plain, html string) error {
	from := mail.NewEmail(m.fromName, m.fromAddr)
	to := mail.NewEmail(user.Name, user.Email)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	response, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("send mail: status %d", response.StatusCode)
	}
	return nil
}

func activationURL(baseURL string, user *domain.User, token string) string {
	return fmt.Sprintf("%s/account_activations/%s?email=%s", baseURL, token, url.QueryEscape(user.Email))
}

func resetURL(baseURL string, user *domain.User, token string) string {
	return fmt.Sprintf("%s/password_resets/%s?email=%s", baseURL, token, url.QueryEscape(user.Email))
}
