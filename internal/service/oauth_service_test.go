package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"learnpath/internal/cache"
	"learnpath/internal/domain"
)

// fakeGitHub serves the token exchange and the user API of a GitHub-like provider.
func fakeGitHub(t *testing.T, user map[string]any, emails []map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_test", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(emails)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthFixture(t *testing.T, srv *httptest.Server) (*fixture, OAuthService) {
	t.Helper()
	f := newFixture(t, false)
	providers := map[string]Provider{
		"github": {
			Config: &oauth2.Config{
				ClientID:     "client",
				ClientSecret: "secret",
				RedirectURL:  "https://learn.example.com/api/auth/github/callback",
				Endpoint: oauth2.Endpoint{
					AuthURL:  srv.URL + "/login/oauth/authorize",
					TokenURL: srv.URL + "/login/oauth/access_token",
				},
			},
			Profile: githubProfile(srv.URL),
		},
	}
	svc := NewOAuthService(OAuthConfig{BcryptCost: bcrypt.MinCost, Logger: quietLogger()},
		providers, f.store.Users, f.store.Providers, f.store.Catalog, newOutbox(t, f.store), cache.NewMemory())
	return f, svc
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuth_CallbackCreatesUser(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 42, "login": "ada"}, []map[string]any{
		{"email": "old@example.com", "primary": false, "verified": true},
		{"email": "Ada@Example.com", "primary": true, "verified": true},
	})
	f, svc := newOAuthFixture(t, srv)
	seedCatalog(t, f.store)
	ctx := context.Background()

	assert.Equal(t, []string{"github"}, svc.Providers())
	_, err := svc.AuthCodeURL(ctx, "gitlab")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	authURL, err := svc.AuthCodeURL(ctx, "github")
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	user, err := svc.Callback(ctx, "github", state, "code", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.Username)
	assert.NotNil(t, user.PathID)
	assert.Equal(t, 1, user.SignInCount)

	links, err := f.store.Providers.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "42", links[0].UID)

	deliveries, err := f.store.Deliveries.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, deliveries, 1)

	_, err = svc.Callback(ctx, "github", state, "code", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidState)

	state = stateFrom(t, mustAuthURL(t, svc))
	again, err := svc.Callback(ctx, "github", state, "code", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, 2, again.SignInCount)
}

func mustAuthURL(t *testing.T, svc OAuthService) string {
	t.Helper()
	u, err := svc.AuthCodeURL(context.Background(), "github")
	require.NoError(t, err)
	return u
}

func TestOAuth_LinksExistingAccountByEmail(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 7, "login": "ada", "name": "Ada Lovelace", "email": "ada@example.com"}, nil)
	f, svc := newOAuthFixture(t, srv)
	ctx := context.Background()
	existing := f.register(t, "ada@example.com")

	user, err := svc.Callback(ctx, "github", stateFrom(t, mustAuthURL(t, svc)), "code", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, "ada", user.Username)

	link, err := f.store.Providers.Find(ctx, "github", "7")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, link.UserID)
}

func TestOAuth_RefusesBannedUser(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 7, "login": "ada", "email": "ada@example.com"}, nil)
	f, svc := newOAuthFixture(t, srv)
	ctx := context.Background()
	existing := f.register(t, "ada@example.com")
	_, err := f.users.SetBanned(ctx, existing.ID, true)
	require.NoError(t, err)

	_, err = svc.Callback(ctx, "github", stateFrom(t, mustAuthURL(t, svc)), "code", "")
	assert.ErrorIs(t, err, ErrBanned)
}

func TestOAuth_StateBoundToProvider(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 7}, nil)
	_, svc := newOAuthFixture(t, srv)

	_, err := svc.Callback(context.Background(), "github", "forged", "code", "")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.Callback(context.Background(), "github", "", "code", "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOAuthUsername(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", oauthUsername(Profile{Name: " Ada Lovelace "}, "ada@example.com"))
	assert.Equal(t, "ada", oauthUsername(Profile{}, "ada@example.com"))
	assert.Equal(t, "learner-9", oauthUsername(Profile{UID: "9"}, "a@example.com"))

	long := make([]rune, 150)
	for i := range long {
		long[i] = 'é'
	}
	got := oauthUsername(Profile{Name: string(long)}, "x@example.com")
	assert.Len(t, []rune(got), 100)

	u := &domain.User{Email: "x@example.com", Username: got}
	assert.NoError(t, u.Validate())
}
