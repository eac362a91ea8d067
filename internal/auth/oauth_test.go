package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeCredentials(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	content := fmt.Sprintf(`{"installed":{
		"client_id":"client-id.apps.googleusercontent.com",
		"client_secret":"secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":%q,
		"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewHTTPClientUsesSavedToken(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenFile, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}))

	client, err := NewHTTPClient(context.Background(), Config{
		CredentialsFile: writeCredentials(t, dir, "https://oauth2.googleapis.com/token"),
		TokenFile:       tokenFile,
		Prompt:          failingWriter{t},
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewHTTPClientExpiredTokenWithoutRefresh(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, SaveToken(tokenFile, &oauth2.Token{
		AccessToken: "access",
		Expiry:      time.Now().Add(-time.Hour),
	}))

	_, err := NewHTTPClient(context.Background(), Config{
		CredentialsFile: writeCredentials(t, dir, "https://oauth2.googleapis.com/token"),
		TokenFile:       tokenFile,
	})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestNewHTTPClientMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	_, err := NewHTTPClient(context.Background(), Config{
		CredentialsFile: filepath.Join(dir, "credentials.json"),
		TokenFile:       filepath.Join(dir, "token.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read oauth client file")
}

func TestLoadTokenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := LoadToken(path)
	assert.Error(t, err)
}

func TestSaveTokenPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
}

// redirectingPrompt plays the browser: it follows the consent URL's redirect
// back to the loopback listener as soon as the URL is printed.
type redirectingPrompt struct {
	t     *testing.T
	code  string
	state string // overrides the state when set
}

var consentURLPattern = regexp.MustCompile(`https://\S+`)

func (p redirectingPrompt) Write(b []byte) (int, error) {
	raw := consentURLPattern.FindString(string(b))
	if raw == "" {
		return len(b), nil
	}
	consent, err := url.Parse(raw)
	require.NoError(p.t, err)

	state := consent.Query().Get("state")
	if p.state != "" {
		state = p.state
	}
	redirect := consent.Query().Get("redirect_uri") + "?" + url.Values{"code": {p.code}, "state": {state}}.Encode()

	go func() {
		resp, err := http.Get(redirect)
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	return len(b), nil
}

type failingWriter struct{ t *testing.T }

func (f failingWriter) Write(b []byte) (int, error) {
	f.t.Errorf("unexpected authorization prompt: %s", b)
	return len(b), nil
}

func TestNewHTTPClientAuthorizesAndSavesToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","refresh_token":"keep","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := NewHTTPClient(ctx, Config{
		CredentialsFile: writeCredentials(t, dir, tokenServer.URL),
		TokenFile:       tokenFile,
		Prompt:          redirectingPrompt{t: t, code: "the-code"},
	})
	require.NoError(t, err)
	assert.NotNil(t, client)

	saved, err := LoadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, "keep", saved.RefreshToken)
}

func TestCodeReceiverRejectsWrongState(t *testing.T) {
	receiver := newCodeReceiver("expected")

	rec := httptest.NewRecorder()
	receiver.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?code=abc&state=forged", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, receiver.results, 0)

	rec = httptest.NewRecorder()
	receiver.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?code=abc&state=expected", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	result := <-receiver.results
	assert.NoError(t, result.err)
	assert.Equal(t, "abc", result.code)
}

func TestCodeReceiverDenied(t *testing.T) {
	receiver := newCodeReceiver("s")

	rec := httptest.NewRecorder()
	receiver.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?error=access_denied&state=s", nil))

	result := <-receiver.results
	assert.Error(t, result.err)
	assert.Contains(t, result.err.Error(), "access_denied")
}

func TestSavingTokenSourcePersistsRefreshedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	src := &savingTokenSource{
		base: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "refreshed", RefreshToken: "r"}),
		path: path,
		last: "stale",
	}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok.AccessToken)

	saved, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", saved.AccessToken)
}
