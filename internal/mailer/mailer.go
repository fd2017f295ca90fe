// Package mailer sends account-activation and password-reset messages.
// The application only generates and validates the tokens; delivery is
// fire-and-forget from its perspective.
package mailer

import (
	"context"
	"log/slog"

	"github.com/jmlarsen/flock/internal/domain"
)

// Mailer delivers transactional mail carrying a one-time token.
type Mailer interface {
	SendActivation(ctx context.Context, user *domain.User, token string) error
	SendPasswordReset(ctx context.Context, user *domain.User, token string) error
}

// LogMailer writes the mail it would send to the log. Used in development
// and tests, where no delivery backend is configured.
type LogMailer struct {
	BaseURL string
}

func (m *LogMailer) SendActivation(ctx context.Context, user *domain.User, token string) error {
	slog.InfoContext(ctx, "activation mail",
		"email", user.Email, "url", activationURL(m.BaseURL, user, token))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, user *domain.User, token string) error {
	slog.InfoContext(ctx, "password reset mail",
		"email", user.Email, "url", resetURL(m.BaseURL, user, token))
	return nil
}
