package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/nexusmena/internal/identity"
)

const githubAPI = "https://api.github.com"

// GitHubUser is the part of the GitHub /user response the portal uses.
type GitHubUser struct {
	ID        int64  `json:"id"`    // stable, never changes
	Login     string `json:"login"` // username, may be renamed
	Name      string `json:"name"`  // display name, often empty
	Email     string `json:"email"` // empty when hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

// Identity maps the GitHub profile onto a provider-neutral identity.
// The UID is keyed on the numeric ID so renames keep the same profile.
func (u *GitHubUser) Identity() identity.Identity {
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return identity.Identity{
		UID:         "github:" + strconv.FormatInt(u.ID, 10),
		DisplayName: name,
		Email:       u.Email,
		PhotoURL:    u.AvatarURL,
	}
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow:
//
//  1. AuthURL redirects the browser to GitHub with a random state.
//  2. GitHub redirects back to the callback with a short-lived code.
//  3. Exchange trades the code for an access token server-to-server and
//     reads the profile with it. The token never reaches the browser.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must match the
// OAuth App's "Authorization callback URL" exactly.
//
// Scopes: "read:user" for the profile, "user:email" so hidden primary
// addresses can still be read from /user/emails.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

// Configured reports whether client credentials were supplied. The server
// leaves the GitHub routes unmounted otherwise.
func (p *GitHubProvider) Configured() bool {
	return p != nil && p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthURL returns the authorization URL. state must be random per attempt;
// the callback compares it with the oauth_state cookie to stop CSRF.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the user's GitHub profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// adds "Authorization: Bearer <token>" to every request
	client := p.config.Client(ctx, oauthToken)

	var ghUser GitHubUser
	if err := p.getJSON(ctx, client, "/user", &ghUser); err != nil {
		return nil, err
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	if ghUser.Email == "" {
		// hidden address; fall back to the verified primary one. Missing
		// email is not fatal, the profile name falls back to "User".
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					ghUser.Email = e.Email
					break
				}
			}
		}
	}

	return &ghUser, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s API: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s API returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", path, err)
	}
	return nil
}
