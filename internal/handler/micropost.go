package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/service"
)

// MicropostHandler handles posting, deleting, and the home feed.
type MicropostHandler struct {
	microposts *service.MicropostService
	social     *service.SocialService
}

// NewMicropostHandler creates a new MicropostHandler.
func NewMicropostHandler(microposts *service.MicropostService, social *service.SocialService) *MicropostHandler {
	return &MicropostHandler{microposts: microposts, social: social}
}

// HandleCreate posts a new micropost for the current user.
// POST /microposts (content)
func (h *MicropostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())

	_, err := h.microposts.Create(r.Context(), current, r.FormValue("content"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			SetFlash(w, "danger", err.Error())
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("create micropost", "error", err, "user", current.ID)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	SetFlash(w, "success", "Micropost created!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleDelete removes a micropost. Only its author may delete it; anyone
// else is bounced with no detail.
// DELETE /microposts/{id}
func (h *MicropostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.microposts.Delete(r.Context(), current, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("delete micropost", "error", err, "user", current.ID, "micropost", id)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	SetFlash(w, "success", "Micropost deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleFeed returns the current user's home feed: their own posts, posts
// from followed users, and a capped slice of community posts.
// GET /feed?page=N
func (h *MicropostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())

	page := pageParam(r)
	posts, err := h.social.Feed(r.Context(), current.ID, page)
	if err != nil {
		slog.Error("load feed", "error", err, "user", current.ID)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"feed": toMicropostDTOs(posts),
		"page": page,
	})
}
