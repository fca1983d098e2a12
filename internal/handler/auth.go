package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/auth"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler manages sign-in (GitHub OAuth and local accounts), sign-out
// and password resets.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin     → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback  → receive the code, sign the user in, set the cookie
//   - HandleSignUp / Login  → local email + password accounts
//   - HandleLogout          → publish sign-out, clear the cookie
//   - HandlePasswordReset   → email a reset link
//   - HandlePasswordConfirm → set a new password from the link's token
//
// The handler only deals with HTTP: reading bodies, cookies and redirects.
// Every decision about identities lives in service.AuthService.
type AuthHandler struct {
	auth   *service.AuthService
	github *auth.GitHubProvider
	secure bool // mark cookies Secure (HTTPS deployments)
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, github *auth.GitHubProvider, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, github: github, secure: secureCookies, logger: logger}
}

// authResponse is returned by sign-up and login. The token is also set as
// an HttpOnly cookie; API clients that cannot keep cookies send it back as
// a Bearer header.
type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if !h.github.Configured() {
		writeError(w, apperror.Unavailable("GitHub sign-in"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Sign the user in (profile upsert happens on the SignedIn event)
//  4. Store the session JWT in an HttpOnly cookie
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// the state cookie is single-use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	// GitHub sends ?error=access_denied when the user declines
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Steps 3 and 4: Sign in, issue cookie ---
	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	h.setSession(w, result.Token)

	// --- Step 5: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleSignUp creates a local account.
//
// HTTP: POST /auth/signup
// REQUEST BODY: {"name": "Mona", "email": "mona@example.com", "password": "..."}
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSession(w, result.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: result.User, Token: result.Token})
}

// HandleLogin signs in a local account.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "mona@example.com", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSession(w, result.Token)
	writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

// HandleLogout clears the JWT cookie and tells the rest of the app the user
// left, so their in-flight assistant answers are dropped.
//
// HTTP: POST /auth/logout
//
// Since sessions are stateless JWTs, the token stays technically valid
// until it expires, but without the cookie the browser can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		if err := h.auth.Logout(r.Context(), userID); err != nil {
			h.logger.Warn("logout: sign-out event failed", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandlePasswordReset emails a reset link.
//
// HTTP: POST /auth/password/reset
// REQUEST BODY: {"email": "mona@example.com"}
//
// The response is the same whether or not the address has an account.
func (h *AuthHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for this email, a reset link has been sent.",
	})
}

// HandlePasswordConfirm sets a new password.
//
// HTTP: POST /auth/password/confirm
// REQUEST BODY: {"token": "<from the reset link>", "password": "..."}
func (h *AuthHandler) HandlePasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// setSession stores the JWT as an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.auth.SessionTTL(),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
