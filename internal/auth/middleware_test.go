package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// echoUser writes the userID from the context, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		id = "anonymous"
	}
	_, _ = w.Write([]byte(id))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-42")
	reset, _ := ts.GenerateReset("local:x")
	h := RequireAuth(ts)(echoUser)

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		}, http.StatusOK, "user-42"},
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, http.StatusOK, "user-42"},
		{"lowercase scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "bearer "+token)
		}, http.StatusOK, "user-42"},
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"basic scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic "+token)
		}, http.StatusUnauthorized, ""},
		{"reset token as session", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+reset)
		}, http.StatusUnauthorized, ""},
		{"bad cookie wins over good header", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
			r.Header.Set("Authorization", "Bearer "+token)
		}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantCode == http.StatusUnauthorized {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("401 body is not JSON: %v", err)
				}
				if body["error"] != "unauthorized" {
					t.Errorf("error = %q", body["error"])
				}
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-7")
	h := OptionalAuth(ts)(echoUser)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/content/news", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("anonymous request: %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/content/news", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "user-7" {
		t.Errorf("signed-in request saw %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/content/news", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "expired-or-garbage"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("invalid token should fall through as anonymous, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("empty context should have no user")
	}
	if _, ok := UserIDFromContext(ContextWithUserID(context.Background(), "")); ok {
		t.Error("empty userID should not count as signed in")
	}
}

// =========================================================================
// GITHUB
// =========================================================================

func TestGitHubUser_Identity(t *testing.T) {
	u := &GitHubUser{ID: 42, Login: "layla", Email: "layla@example.com", AvatarURL: "https://a/42"}
	id := u.Identity()
	if id.UID != "github:42" || id.DisplayName != "layla" || id.PhotoURL != "https://a/42" {
		t.Errorf("Identity() = %+v", id)
	}

	u.Name = "Layla Hassan"
	if got := u.Identity().DisplayName; got != "Layla Hassan" {
		t.Errorf("DisplayName = %q, want the profile name", got)
	}
}

func TestGitHubProvider_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"login":"layla","email":"","avatar_url":"https://a/42"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"email":"old@example.com","primary":false,"verified":true},
			{"email":"layla@example.com","primary":true,"verified":true}
		]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGitHubProvider("client", "secret", srv.URL+"/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.apiBase = srv.URL

	if !p.Configured() {
		t.Fatal("provider with credentials should be configured")
	}
	if u := p.AuthURL("state-1"); !strings.Contains(u, "state=state-1") {
		t.Errorf("AuthURL = %q", u)
	}

	u, err := p.Exchange(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if u.ID != 42 || u.Email != "layla@example.com" {
		t.Errorf("Exchange() = %+v, want hidden email filled from /user/emails", u)
	}
}

func TestGitHubProvider_NotConfigured(t *testing.T) {
	if NewGitHubProvider("", "", "").Configured() {
		t.Error("provider without credentials should not be configured")
	}
	var p *GitHubProvider
	if p.Configured() {
		t.Error("nil provider should not be configured")
	}
}
