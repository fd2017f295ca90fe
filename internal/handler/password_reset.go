package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/mailer"
	"github.com/jmlarsen/flock/internal/service"
)

// PasswordResetHandler handles the forgot-password flow.
type PasswordResetHandler struct {
	auth     *service.AuthService
	sessions *service.SessionManager
	mail     mailer.Mailer
}

// NewPasswordResetHandler creates a new PasswordResetHandler.
func NewPasswordResetHandler(auth *service.AuthService, sessions *service.SessionManager, mail mailer.Mailer) *PasswordResetHandler {
	return &PasswordResetHandler{auth: auth, sessions: sessions, mail: mail}
}

// HandleCreate starts a password reset for the submitted email. Unknown
// addresses get the same response as known ones, so the endpoint cannot be
// used to probe for accounts.
// POST /password_resets (email)
func (h *PasswordResetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if email == "" {
		SetFlash(w, "danger", "Email can't be blank.")
		http.Redirect(w, r, "/password_resets/new", http.StatusSeeOther)
		return
	}

	user, token, err := h.auth.StartReset(r.Context(), email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Error("start password reset", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	if err == nil {
		if err := h.mail.SendPasswordReset(r.Context(), user, token); err != nil {
			slog.Error("send reset mail", "error", err, "user", user.ID)
		}
	}

	SetFlash(w, "info", "Email sent with password reset instructions.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleUpdate completes a password reset from the emailed link and logs
// the user in on success.
// PATCH /password_resets/{token} (email, password, password_confirmation)
func (h *PasswordResetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	email := r.FormValue("email")

	user, err := h.auth.ResetPassword(r.Context(), email, token,
		r.FormValue("password"), r.FormValue("password_confirmation"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrResetExpired):
			SetFlash(w, "danger", "Password reset has expired.")
			http.Redirect(w, r, "/password_resets/new", http.StatusSeeOther)
		case errors.Is(err, domain.ErrUnauthorized):
			SetFlash(w, "danger", "Invalid password reset link.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.Error("reset password", "error", err)
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		}
		return
	}

	if err := h.sessions.LogIn(w, r, user); err != nil {
		slog.Error("log in after reset", "error", err)
	}
	SetFlash(w, "success", "Password has been reset.")
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusSeeOther)
}
