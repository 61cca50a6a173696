package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	assert.Equal(t, "github.com", u.Host)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", q.Get("redirect_uri"))
	assert.Equal(t, "read:user user:email", q.Get("scope"))
}

func fakeGitHub(t *testing.T, user GitHubUser, emails []githubEmail) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if emails == nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(emails)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchUser_PublicEmail(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 42, Login: "octocat", Email: "octo@example.com"}, nil)
	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	u, err := p.fetchUser(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "octo@example.com", u.Email)
}

func TestFetchUser_FallsBackToPrimaryVerifiedEmail(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 7, Login: "hidden"}, []githubEmail{
		{Email: "old@example.com", Primary: false, Verified: true},
		{Email: "unverified@example.com", Primary: true, Verified: false},
		{Email: "main@example.com", Primary: true, Verified: true},
	})
	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	u, err := p.fetchUser(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "main@example.com", u.Email)
}

func TestFetchUser_EmailsForbidden(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{ID: 7, Login: "hidden"}, nil)
	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	u, err := p.fetchUser(context.Background(), srv.Client())
	require.NoError(t, err)
	assert.Empty(t, u.Email)
}

func TestFetchUser_InvalidUser(t *testing.T) {
	srv := fakeGitHub(t, GitHubUser{Login: "ghost"}, nil)
	p := NewGitHubProvider("id", "secret", "cb")
	p.apiBase = srv.URL

	_, err := p.fetchUser(context.Background(), srv.Client())
	assert.ErrorContains(t, err, "ID = 0")
}
