package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeConsenter struct {
	calls int
	tok   *oauth2.Token
	err   error
}

func (f *fakeConsenter) Consent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	f.calls++
	return f.tok, f.err
}

func tokenServer(t *testing.T, fail bool) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		require.NoError(t, r.ParseForm())

		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: Scopes,
	}
}

func writeToken(t *testing.T, c *FileCredentials, tok *oauth2.Token) {
	t.Helper()
	data, err := json.Marshal(tok)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.TokenPath(), data, 0600))
}

func TestNewFileCredentials_CreatesTempDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".temp")

	c, err := NewFileCredentials("credentials.json", dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, "token.json"), c.TokenPath())
	assert.Equal(t, StateNoToken, c.State())
}

func TestToken_Valid(t *testing.T) {
	consent := &fakeConsenter{}
	c, err := NewFileCredentials("", t.TempDir(), WithConsenter(consent))
	require.NoError(t, err)

	writeToken(t, c, &oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)})
	assert.Equal(t, StateValid, c.State())

	tok, err := Token(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
	assert.Equal(t, 0, consent.calls)
}

func TestToken_Refresh(t *testing.T) {
	srv, hits := tokenServer(t, false)
	consent := &fakeConsenter{}

	c, err := NewFileCredentials("", t.TempDir(), WithOAuthConfig(testConfig(srv.URL)), WithConsenter(consent))
	require.NoError(t, err)

	writeToken(t, c, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-me",
		Expiry:       time.Now().Add(-time.Hour),
	})
	assert.Equal(t, StateExpired, c.State())

	tok, err := Token(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok.AccessToken)
	assert.Equal(t, "refresh-me", tok.RefreshToken)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
	assert.Equal(t, 0, consent.calls)

	// The refreshed token is persisted.
	assert.Equal(t, StateValid, c.State())
	cached, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "refreshed", cached.AccessToken)
}

func TestToken_RefreshFailsFallsBackToConsent(t *testing.T) {
	srv, _ := tokenServer(t, true)
	consent := &fakeConsenter{tok: &oauth2.Token{AccessToken: "consented", RefreshToken: "r2", Expiry: time.Now().Add(time.Hour)}}

	c, err := NewFileCredentials("", t.TempDir(), WithOAuthConfig(testConfig(srv.URL)), WithConsenter(consent))
	require.NoError(t, err)

	writeToken(t, c, &oauth2.Token{AccessToken: "stale", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)})

	tok, err := Token(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "consented", tok.AccessToken)
	assert.Equal(t, 1, consent.calls)

	cached, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, "consented", cached.AccessToken)
}

func TestToken_NoTokenNoConsenter(t *testing.T) {
	c, err := NewFileCredentials("", t.TempDir(), WithOAuthConfig(testConfig("http://127.0.0.1:1/token")))
	require.NoError(t, err)

	_, err = Token(context.Background(), c)
	assert.ErrorIs(t, err, ErrConsentRequired)
}

func TestToken_CredentialsFileMissing(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCredentials(filepath.Join(dir, "missing.json"), dir, WithConsenter(&fakeConsenter{}))
	require.NoError(t, err)

	_, err = Token(context.Background(), c)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestToken_CorruptCache(t *testing.T) {
	consent := &fakeConsenter{tok: &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}}
	c, err := NewFileCredentials("", t.TempDir(), WithOAuthConfig(testConfig("http://127.0.0.1:1/token")), WithConsenter(consent))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(c.TokenPath(), []byte("not json"), 0600))
	assert.Equal(t, StateNoToken, c.State())

	tok, err := Token(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}

func TestToken_ConsentError(t *testing.T) {
	consent := &fakeConsenter{err: errors.New("user closed the browser")}
	c, err := NewFileCredentials("", t.TempDir(), WithOAuthConfig(testConfig("http://127.0.0.1:1/token")), WithConsenter(consent))
	require.NoError(t, err)

	_, err = Token(context.Background(), c)
	assert.EqualError(t, err, "consent failed: user closed the browser")
}

func TestFileCredentials_ConfigFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{
		"client_id":"id.apps.googleusercontent.com",
		"client_secret":"shh",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["http://localhost"]}}`), 0600))

	c, err := NewFileCredentials(path, dir)
	require.NoError(t, err)

	conf, err := c.config()
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", conf.ClientID)
	assert.Equal(t, Scopes, conf.Scopes)
}

func TestCredentialState_String(t *testing.T) {
	assert.Equal(t, "no_token", StateNoToken.String())
	assert.Equal(t, "valid", StateValid.String())
	assert.Equal(t, "expired", StateExpired.String())
}
