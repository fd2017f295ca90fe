package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jmlarsen/flock/internal/handler"
)

func formReader(values url.Values) io.Reader {
	return strings.NewReader(values.Encode())
}

func newTestServer(t *testing.T) (*testEnv, *httptest.Server, *http.Client) {
	t.Helper()
	env := newTestEnv(t)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, env.auth, env.sessions, env.users, env.social, env.microposts, env.mail)

	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // don't follow redirects automatically
		},
	}
	return env, srv, client
}

func TestIntegration_SignupActivateLoginPostFeed(t *testing.T) {
	env, srv, client := newTestServer(t)

	// 1. Sign up. The account is created deactivated and the activation
	// token goes out by mail.
	resp, err := client.PostForm(srv.URL+"/signup", url.Values{
		"email":                 {"alice@example.com"},
		"name":                  {"Alice"},
		"password":              {"password"},
		"password_confirmation": {"password"},
	})
	if err != nil {
		t.Fatalf("POST /signup: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("signup: expected 303, got %d", resp.StatusCode)
	}
	if env.mail.activationToken == "" {
		t.Fatal("signup should send an activation token")
	}

	// 2. Logging in before activation yields no session.
	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"password"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("pre-activation login: expected 303, got %d", resp.StatusCode)
	}
	if hasCookie(t, client, srv, "flock_session") {
		t.Fatal("unactivated account must not get a session")
	}

	// 3. Follow the activation link; this logs the user in.
	resp, err = client.Get(srv.URL + "/account_activations/" + env.mail.activationToken + "?email=alice%40example.com")
	if err != nil {
		t.Fatalf("GET activation link: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("activation: expected 303, got %d", resp.StatusCode)
	}
	if !hasCookie(t, client, srv, "flock_session") {
		t.Fatal("activation should establish a session")
	}

	// 4. Post a micropost.
	resp, err = client.PostForm(srv.URL+"/microposts", url.Values{
		"content": {"first post"},
	})
	if err != nil {
		t.Fatalf("POST /microposts: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("micropost: expected 303, got %d", resp.StatusCode)
	}

	// 5. The feed contains it.
	resp, err = client.Get(srv.URL + "/feed")
	if err != nil {
		t.Fatalf("GET /feed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: expected 200, got %d", resp.StatusCode)
	}
	var feedBody struct {
		Feed []struct {
			Content string `json:"content"`
		} `json:"feed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feedBody); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(feedBody.Feed) != 1 || feedBody.Feed[0].Content != "first post" {
		t.Fatalf("feed = %+v, want the new post", feedBody.Feed)
	}
}

func TestIntegration_FlashSurvivesRedirectAndReadsOnce(t *testing.T) {
	env, srv, client := newTestServer(t)
	env.registerActivated(t, "Alice", "alice@example.com", "password")

	// A failed login sets a flash and redirects to /login.
	resp, err := client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q, want /login", loc)
	}

	// Following the redirect serves the pending flash.
	resp, err = client.Get(srv.URL + "/login")
	if err != nil {
		t.Fatalf("GET /login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /login: expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Flash *struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"flash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	resp.Body.Close()
	if body.Flash == nil || body.Flash.Message != "Invalid email/password combination." {
		t.Fatalf("flash = %+v, want the login failure message", body.Flash)
	}

	// The flash is consumed by the read.
	resp, err = client.Get(srv.URL + "/flash")
	if err != nil {
		t.Fatalf("GET /flash: %v", err)
	}
	body.Flash = nil
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	resp.Body.Close()
	if body.Flash != nil {
		t.Errorf("second read: flash = %+v, want null", body.Flash)
	}
}

func TestIntegration_AnonymousProtectedRouteLandsOnLogin(t *testing.T) {
	_, srv, client := newTestServer(t)

	resp, err := client.Get(srv.URL + "/feed")
	if err != nil {
		t.Fatalf("GET /feed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}

	// The redirect target is a real route carrying the flash.
	resp, err = client.Get(srv.URL + resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("GET /login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login page: expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Flash *struct {
			Message string `json:"message"`
		} `json:"flash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	if body.Flash == nil || body.Flash.Message != "Please log in." {
		t.Errorf("flash = %+v, want the log-in prompt", body.Flash)
	}
}

func TestIntegration_LoginWrongPassword(t *testing.T) {
	env, srv, client := newTestServer(t)
	env.registerActivated(t, "Alice", "alice@example.com", "password")

	resp, err := client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
	if hasCookie(t, client, srv, "flock_session") {
		t.Error("failed login must not set a session cookie")
	}
}

func TestIntegration_RememberMeCookies(t *testing.T) {
	env, srv, client := newTestServer(t)
	env.registerActivated(t, "Alice", "alice@example.com", "password")

	resp, err := client.PostForm(srv.URL+"/login", url.Values{
		"email":       {"alice@example.com"},
		"password":    {"password"},
		"remember_me": {"1"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()

	if !hasCookie(t, client, srv, "remember_id") || !hasCookie(t, client, srv, "remember_token") {
		t.Error("remember_me login should set both remember cookies")
	}

	// Without the box ticked the cookies are cleared.
	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"password"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()

	if hasCookie(t, client, srv, "remember_token") {
		t.Error("plain login should clear the remember cookies")
	}
}

func TestIntegration_FriendlyForwarding(t *testing.T) {
	env, srv, client := newTestServer(t)
	env.registerActivated(t, "Alice", "alice@example.com", "password")

	// Hit a protected route while anonymous.
	resp, err := client.Get(srv.URL + "/users")
	if err != nil {
		t.Fatalf("GET /users: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q, want /login", loc)
	}

	// Logging in lands on the originally requested URL, once.
	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"password"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/users" {
		t.Errorf("Location = %q, want /users", loc)
	}
}

func TestIntegration_FollowAndUnfollow(t *testing.T) {
	env, srv, client := newTestServer(t)
	env.registerActivated(t, "Alice", "alice@example.com", "password")
	bob := env.registerActivated(t, "Bob", "bob@example.com", "password")

	resp, err := client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"password"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()

	resp, err = client.PostForm(srv.URL+"/relationships", url.Values{
		"followed_id": {fmt.Sprintf("%d", bob.ID)},
	})
	if err != nil {
		t.Fatalf("POST /relationships: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("follow: expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != fmt.Sprintf("/users/%d", bob.ID) {
		t.Errorf("Location = %q, want bob's profile", loc)
	}

	// Bob's profile reports the follow.
	resp, err = client.Get(srv.URL + fmt.Sprintf("/users/%d", bob.ID))
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	defer resp.Body.Close()
	var profile struct {
		IsFollowing    bool `json:"isFollowing"`
		FollowersCount int  `json:"followersCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if !profile.IsFollowing || profile.FollowersCount != 1 {
		t.Errorf("profile = %+v, want followed with one follower", profile)
	}
}

func TestIntegration_PasswordResetFlow(t *testing.T) {
	env, srv, client := newTestServer(t)
	env.registerActivated(t, "Alice", "alice@example.com", "password")

	resp, err := client.PostForm(srv.URL+"/password_resets", url.Values{
		"email": {"alice@example.com"},
	})
	if err != nil {
		t.Fatalf("POST /password_resets: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if env.mail.resetToken == "" {
		t.Fatal("reset request should send a token")
	}

	// Unknown addresses get the exact same redirect.
	resp, err = client.PostForm(srv.URL+"/password_resets", url.Values{
		"email": {"nobody@example.com"},
	})
	if err != nil {
		t.Fatalf("POST /password_resets: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("unknown email: expected 303, got %d", resp.StatusCode)
	}

	// Complete the reset and confirm the new password works.
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/password_resets/"+env.mail.resetToken,
		formReader(url.Values{
			"email":                 {"alice@example.com"},
			"password":              {"newpassword"},
			"password_confirmation": {"newpassword"},
		}))
	if err != nil {
		t.Fatalf("build PATCH: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("PATCH /password_resets: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("reset: expected 303, got %d", resp.StatusCode)
	}

	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"newpassword"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc == "/login" {
		t.Error("login with the new password should succeed")
	}
}

func hasCookie(t *testing.T, client *http.Client, srv *httptest.Server, name string) bool {
	t.Helper()
	srvURL, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	for _, c := range client.Jar.Cookies(srvURL) {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}
