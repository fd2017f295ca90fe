package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/service"
)

// RelationshipHandler handles follow and unfollow actions.
type RelationshipHandler struct {
	social *service.SocialService
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(social *service.SocialService) *RelationshipHandler {
	return &RelationshipHandler{social: social}
}

// HandleCreate follows another user.
// POST /relationships (followed_id)
func (h *RelationshipHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())

	followedID, err := strconv.ParseInt(r.FormValue("followed_id"), 10, 64)
	if err != nil {
		SetFlash(w, "danger", "User not found.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if followedID == current.ID {
		SetFlash(w, "danger", "You cannot follow yourself.")
		http.Redirect(w, r, fmt.Sprintf("/users/%d", current.ID), http.StatusSeeOther)
		return
	}

	if err := h.social.Follow(r.Context(), current, followedID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			SetFlash(w, "danger", "User not found.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("follow user", "error", err, "follower", current.ID, "followed", followedID)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/users/%d", followedID), http.StatusSeeOther)
}

// HandleDelete unfollows via an existing relationship edge. Only the
// follower who owns the edge may remove it.
// DELETE /relationships/{id}
func (h *RelationshipHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	current := UserFromContext(r.Context())

	relID, err := idParam(r, "id")
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	followedID, err := h.social.UnfollowByEdge(r.Context(), current, relID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("unfollow user", "error", err, "follower", current.ID, "relationship", relID)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/users/%d", followedID), http.StatusSeeOther)
}
