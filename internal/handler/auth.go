package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/service"
)

// AuthHandler handles login, logout, and the current-user endpoint.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *service.SessionManager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, sessions *service.SessionManager) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

// HandleLoginPage serves the login entry point that RequireLogin redirects
// to. The form itself belongs to the rendering collaborator; the response
// carries the pending flash so "Please log in." survives the redirect.
// GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"flash": TakeFlash(w, r)})
}

// HandleLogin processes a login form submission.
// POST /login (email, password, remember_me)
//
// Unknown email and wrong password produce the same generic message; an
// unactivated account is told to check its mail and gets no session.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	if email == "" || password == "" {
		SetFlash(w, "danger", "Email and password can't be blank.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.auth.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			SetFlash(w, "danger", "Invalid email/password combination.")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		slog.Error("authenticate user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	if !user.Activated {
		SetFlash(w, "warning", "Account not activated. Check your email for the activation link.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.sessions.LogIn(w, r, user); err != nil {
		slog.Error("log in user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	if r.FormValue("remember_me") == "1" {
		if err := h.sessions.Remember(r.Context(), w, user); err != nil {
			slog.Error("remember user", "error", err)
		}
	} else {
		if err := h.sessions.Forget(r.Context(), w, user); err != nil {
			slog.Error("forget user", "error", err)
		}
	}

	h.sessions.RedirectBackOr(w, r, "/")
}

// HandleLogout tears down the current login.
// POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user != nil {
		if err := h.sessions.LogOut(w, r, user); err != nil {
			slog.Error("log out user", "error", err)
		}
		SetFlash(w, "success", "Logged out successfully.")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe returns the currently authenticated user.
// GET /me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}
