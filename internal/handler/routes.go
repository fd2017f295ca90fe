package handler

import (
	"net/http"

	"github.com/jmlarsen/flock/internal/mailer"
	"github.com/jmlarsen/flock/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. Every route runs
// with the current user resolved; protected routes additionally require a
// login, and admin routes an admin.
func RegisterRoutes(mux *http.ServeMux, auth *service.AuthService, sessions *service.SessionManager, users *service.UserService, social *service.SocialService, microposts *service.MicropostService, mail mailer.Mailer) {
	authHandler := NewAuthHandler(auth, sessions)
	userHandler := NewUserHandler(auth, sessions, users, social, microposts, mail)
	relationshipHandler := NewRelationshipHandler(social)
	micropostHandler := NewMicropostHandler(microposts, social)
	resetHandler := NewPasswordResetHandler(auth, sessions, mail)

	public := func(h http.HandlerFunc) http.Handler {
		return WithCurrentUser(sessions, h)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return WithCurrentUser(sessions, RequireLogin(sessions, h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return WithCurrentUser(sessions, RequireLogin(sessions, RequireAdmin(h)))
	}

	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.HandleFunc("GET /flash", HandleFlash)

	mux.Handle("POST /signup", public(userHandler.HandleSignup))
	mux.Handle("GET /account_activations/{token}", public(userHandler.HandleActivate))

	mux.Handle("GET /login", public(authHandler.HandleLoginPage))
	mux.Handle("POST /login", public(authHandler.HandleLogin))
	mux.Handle("POST /logout", public(authHandler.HandleLogout))
	mux.Handle("GET /me", public(authHandler.HandleMe))

	mux.Handle("GET /users", protected(userHandler.HandleIndex))
	mux.Handle("GET /users/{id}", public(userHandler.HandleShow))
	mux.Handle("PATCH /users/{id}", protected(userHandler.HandleUpdate))
	mux.Handle("DELETE /users/{id}", admin(userHandler.HandleDelete))
	mux.Handle("GET /users/{id}/following", protected(userHandler.HandleFollowing))
	mux.Handle("GET /users/{id}/followers", protected(userHandler.HandleFollowers))

	mux.Handle("POST /relationships", protected(relationshipHandler.HandleCreate))
	mux.Handle("DELETE /relationships/{id}", protected(relationshipHandler.HandleDelete))

	mux.Handle("POST /microposts", protected(micropostHandler.HandleCreate))
	mux.Handle("DELETE /microposts/{id}", protected(micropostHandler.HandleDelete))
	mux.Handle("GET /feed", protected(micropostHandler.HandleFeed))

	mux.Handle("POST /password_resets", public(resetHandler.HandleCreate))
	mux.Handle("PATCH /password_resets/{token}", public(resetHandler.HandleUpdate))
}
