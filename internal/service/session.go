package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jmlarsen/flock/internal/domain"
)

const (
	// SessionCookieName carries the signed session token for the current
	// login; RememberIDCookieName and RememberTokenCookieName together
	// form the persistent "remember me" credential.
	SessionCookieName       = "flock_session"
	RememberIDCookieName    = "remember_id"
	RememberTokenCookieName = "remember_token"
	forwardingCookieName    = "forwarding_url"

	sessionTTL    = 24 * time.Hour
	rememberTTL   = 20 * 365 * 24 * time.Hour
	forwardingTTL = 10 * time.Minute
)

// SessionManager establishes and tears down login sessions. The client
// holds a signed JWT cookie naming an opaque server-side session id; a
// separate pair of persistent cookies (signed user id + plain remember
// token) enables auto-login across browser restarts, with promotion back
// to a full session.
type SessionManager struct {
	users  domain.UserRepository
	store  domain.SessionStore
	auth   *AuthService
	secret []byte
	secure bool
}

// NewSessionManager creates a SessionManager signing cookies with the given
// secret. secure controls the cookies' Secure attribute.
func NewSessionManager(users domain.UserRepository, store domain.SessionStore, auth *AuthService, secret string, secure bool) *SessionManager {
	return &SessionManager{
		users:  users,
		store:  store,
		auth:   auth,
		secret: []byte(secret),
		secure: secure,
	}
}

// LogIn establishes a fresh session for the user. Any session id already
// present on the request is invalidated first and never reused, so the
// session identifier always changes across a login (session fixation
// defense).
func (m *SessionManager) LogIn(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	if old, err := m.sessionID(r); err == nil {
		if err := m.store.Delete(r.Context(), old); err != nil {
			return fmt.Errorf("invalidate previous session: %w", err)
		}
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	if err := m.store.Create(r.Context(), session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	token, err := m.signToken(user.ID, session.ID, sessionTTL)
	if err != nil {
		return err
	}

	m.setCookie(w, SessionCookieName, token, int(sessionTTL.Seconds()), true)
	return nil
}

// Remember issues a new remember token for the user: its bcrypt digest is
// stored on the user row and two long-lived cookies are set, a signed
// user-id cookie and the plaintext token cookie.
func (m *SessionManager) Remember(ctx context.Context, w http.ResponseWriter, user *domain.User) error {
	token, err := m.auth.NewToken()
	if err != nil {
		return err
	}
	digest, err := m.auth.Digest(token)
	if err != nil {
		return err
	}
	if err := m.users.SetRememberDigest(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("store remember digest: %w", err)
	}

	idToken, err := m.signToken(user.ID, "", rememberTTL)
	if err != nil {
		return err
	}

	m.setCookie(w, RememberIDCookieName, idToken, int(rememberTTL.Seconds()), true)
	m.setCookie(w, RememberTokenCookieName, token, int(rememberTTL.Seconds()), true)
	return nil
}

// Forget revokes the user's persistent login: the stored digest is cleared
// and both remember cookies are deleted.
func (m *SessionManager) Forget(ctx context.Context, w http.ResponseWriter, user *domain.User) error {
	if err := m.users.SetRememberDigest(ctx, user.ID, ""); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("clear remember digest: %w", err)
	}
	m.deleteCookie(w, RememberIDCookieName)
	m.deleteCookie(w, RememberTokenCookieName)
	return nil
}

// CurrentUser resolves the user for this request: first from a live
// session, else from the remember cookies, in which case the login is
// transparently promoted to a full session. Every failure path resolves to
// anonymous (nil) without surfacing an error to the client.
func (m *SessionManager) CurrentUser(w http.ResponseWriter, r *http.Request) *domain.User {
	if user := m.sessionUser(r); user != nil {
		return user
	}
	return m.rememberedUser(w, r)
}

// LogOut tears the login down: remember state is forgotten, the
// server-side session is deleted, and the session cookie is cleared.
func (m *SessionManager) LogOut(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	if user != nil {
		if err := m.Forget(r.Context(), w, user); err != nil {
			return err
		}
	}
	if sid, err := m.sessionID(r); err == nil {
		if err := m.store.Delete(r.Context(), sid); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	m.deleteCookie(w, SessionCookieName)
	return nil
}

// StoreLocation records the requested URL so a later RedirectBackOr can
// return to it. Only GET requests are captured.
func (m *SessionManager) StoreLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		return
	}
	m.setCookie(w, forwardingCookieName, r.URL.RequestURI(), int(forwardingTTL.Seconds()), true)
}

// RedirectBackOr redirects to the stored location exactly once, falling
// back to def. Only same-site paths are honored.
func (m *SessionManager) RedirectBackOr(w http.ResponseWriter, r *http.Request, def string) {
	target := def
	if c, err := r.Cookie(forwardingCookieName); err == nil && c.Value != "" {
		if strings.HasPrefix(c.Value, "/") && !strings.HasPrefix(c.Value, "//") {
			target = c.Value
		}
		m.deleteCookie(w, forwardingCookieName)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// sessionUser resolves the user from the session cookie and the session
// store. Any failure yields nil.
func (m *SessionManager) sessionUser(r *http.Request) *domain.User {
	sid, err := m.sessionID(r)
	if err != nil {
		return nil
	}
	session, err := m.store.Get(r.Context(), sid)
	if err != nil {
		return nil
	}
	user, err := m.users.GetByID(r.Context(), session.UserID)
	if err != nil {
		return nil
	}
	return user
}

// rememberedUser resolves the user from the persistent cookies and, on
// success, promotes the cookie login to a full session.
func (m *SessionManager) rememberedUser(w http.ResponseWriter, r *http.Request) *domain.User {
	idCookie, err := r.Cookie(RememberIDCookieName)
	if err != nil {
		return nil
	}
	claims, err := m.parseToken(idCookie.Value)
	if err != nil {
		return nil
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil
	}

	tokenCookie, err := r.Cookie(RememberTokenCookieName)
	if err != nil || tokenCookie.Value == "" {
		return nil
	}

	user, err := m.users.GetByID(r.Context(), userID)
	if err != nil {
		return nil
	}
	if !VerifyToken(user, TokenRemember, tokenCookie.Value) {
		return nil
	}

	if err := m.LogIn(w, r, user); err != nil {
		slog.Error("promote remembered login", "error", err)
		return nil
	}
	return user
}

func (m *SessionManager) sessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	claims, err := m.parseToken(cookie.Value)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("session token missing id")
	}
	return claims.ID, nil
}

func (m *SessionManager) signToken(userID int64, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *SessionManager) parseToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (m *SessionManager) setCookie(w http.ResponseWriter, name, value string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (m *SessionManager) deleteCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
