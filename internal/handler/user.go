package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/mailer"
	"github.com/jmlarsen/flock/internal/service"
)

// UserHandler handles signup, activation, and the user resource.
type UserHandler struct {
	auth       *service.AuthService
	sessions   *service.SessionManager
	users      *service.UserService
	social     *service.SocialService
	microposts *service.MicropostService
	mail       mailer.Mailer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(auth *service.AuthService, sessions *service.SessionManager, users *service.UserService, social *service.SocialService, microposts *service.MicropostService, mail mailer.Mailer) *UserHandler {
	return &UserHandler{
		auth:       auth,
		sessions:   sessions,
		users:      users,
		social:     social,
		microposts: microposts,
		mail:       mail,
	}
}

// HandleSignup registers a new account and sends the activation mail.
// POST /signup (name, email, password, password_confirmation)
func (h *UserHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	user, token, err := h.auth.Register(r.Context(),
		r.FormValue("name"), r.FormValue("email"),
		r.FormValue("password"), r.FormValue("password_confirmation"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, domain.ErrDuplicateEmail) {
			writeError(w, http.StatusUnprocessableEntity, "Email has already been taken.")
			return
		}
		slog.Error("register user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	// Delivery failures are logged, not surfaced; the account exists and
	// can be re-activated later.
	if err := h.mail.SendActivation(r.Context(), user, token); err != nil {
		slog.Error("send activation mail", "error", err, "user", user.ID)
	}

	SetFlash(w, "info", "Please check your email to activate your account.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleActivate activates an account from the emailed link and logs the
// user in.
// GET /account_activations/{token}?email=...
func (h *UserHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	email := r.URL.Query().Get("email")

	user, err := h.auth.Activate(r.Context(), email, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			SetFlash(w, "danger", "Invalid activation link.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("activate user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	if err := h.sessions.LogIn(w, r, user); err != nil {
		slog.Error("log in activated user", "error", err)
	}
	SetFlash(w, "success", "Account activated!")
	http.Redirect(w, r, fmt.Sprintf("/users/%d", user.ID), http.StatusSeeOther)
}

// HandleIndex lists activated users.
// GET /users?page=N
func (h *UserHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	users, err := h.users.List(r.Context(), page)
	if err != nil {
		slog.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": toUserDTOs(users),
		"page":  page,
	})
}

// HandleShow returns a user's profile with a page of their microposts.
// Unactivated profiles are hidden.
// GET /users/{id}?page=N
func (h *UserHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		SetFlash(w, "danger", "User not found.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			SetFlash(w, "danger", "User not found.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	if !user.Activated {
		SetFlash(w, "warning", "Account not activated.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	page := pageParam(r)
	posts, err := h.microposts.ByUser(r.Context(), user.ID, page)
	if err != nil {
		slog.Error("list user microposts", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	postCount, err := h.microposts.CountByUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("count user microposts", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	followingCount, followersCount, err := h.social.Counts(r.Context(), user.ID)
	if err != nil {
		slog.Error("count relationships", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	response := map[string]any{
		"user":           toUserDTO(user),
		"microposts":     toMicropostDTOs(posts),
		"micropostCount": postCount,
		"followingCount": followingCount,
		"followersCount": followersCount,
		"page":           page,
	}

	if viewer := UserFromContext(r.Context()); viewer != nil && viewer.ID != user.ID {
		following, err := h.social.IsFollowing(r.Context(), viewer.ID, user.ID)
		if err != nil {
			slog.Error("check following", "error", err)
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
			return
		}
		response["isFollowing"] = following
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleUpdate edits a profile. Only the user themselves may do so; anyone
// else is redirected with no detail. A blank password leaves the current
// one in place.
// PATCH /users/{id} (name, email, password, password_confirmation)
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	current := UserFromContext(r.Context())
	if current == nil || current.ID != id {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	err = h.auth.UpdateProfile(r.Context(), current,
		r.FormValue("name"), r.FormValue("email"),
		r.FormValue("password"), r.FormValue("password_confirmation"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, domain.ErrDuplicateEmail) {
			writeError(w, http.StatusUnprocessableEntity, "Email has already been taken.")
			return
		}
		slog.Error("update user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		return
	}

	SetFlash(w, "success", "Your profile was successfully updated.")
	http.Redirect(w, r, fmt.Sprintf("/users/%d", id), http.StatusSeeOther)
}

// HandleDelete removes a user account. Admin only (enforced by middleware).
// DELETE /users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		SetFlash(w, "danger", "User not found.")
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}

	if err := h.users.Destroy(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			SetFlash(w, "danger", "User not found.")
			http.Redirect(w, r, "/users", http.StatusSeeOther)
			return
		}
		slog.Error("delete user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	SetFlash(w, "success", "User deleted.")
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// HandleFollowing lists the users someone follows.
// GET /users/{id}/following?page=N
func (h *UserHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	h.handleFollowList(w, r, h.social.Following, "following")
}

// HandleFollowers lists someone's followers.
// GET /users/{id}/followers?page=N
func (h *UserHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	h.handleFollowList(w, r, h.social.Followers, "followers")
}

func (h *UserHandler) handleFollowList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID int64, page int) ([]domain.User, error), key string) {
	id, err := idParam(r, "id")
	if err != nil {
		SetFlash(w, "danger", "User not found.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if _, err := h.users.Get(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			SetFlash(w, "danger", "User not found.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	page := pageParam(r)
	users, err := list(r.Context(), id, page)
	if err != nil {
		slog.Error("list "+key, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		key:    toUserDTOs(users),
		"page": page,
	})
}

// pageParam parses the page query parameter, defaulting to 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// idParam parses a numeric path parameter.
func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}
