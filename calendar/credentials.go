package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcalendar "google.golang.org/api/calendar/v3"
)

const (
	DefaultTempDir = ".temp"
	tokenFileName  = "token.json"
)

var (
	ErrCredentialsNotFound = errors.New("credentials file not found")
	ErrConsentRequired     = errors.New("interactive consent required")
)

// Scopes requested for calendar access.
var Scopes = []string{gcalendar.CalendarScope}

type CredentialState int

const (
	StateNoToken CredentialState = iota
	StateValid
	StateExpired
)

func (s CredentialState) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// CredentialStore is what the calendar needs from an OAuth credential
// source. Implementations decide where tokens live and how consent is
// physically obtained.
type CredentialStore interface {
	// Load returns the cached token, or nil if there is none.
	Load() (*oauth2.Token, error)
	Valid(*oauth2.Token) bool
	Refresh(context.Context, *oauth2.Token) (*oauth2.Token, error)
	Obtain(context.Context) (*oauth2.Token, error)
}

// Token drives the credential lifecycle and returns a usable token.
//
// A valid cached token is returned as is. An expired one is refreshed
// silently when it carries a refresh token. Anything else, including a
// failed refresh or an unreadable cache, falls back to interactive consent.
func Token(ctx context.Context, store CredentialStore) (*oauth2.Token, error) {
	tok, err := store.Load()
	if err == nil && store.Valid(tok) {
		return tok, nil
	}

	if err == nil && tok != nil && tok.RefreshToken != "" {
		refreshed, rErr := store.Refresh(ctx, tok)
		if rErr == nil {
			return refreshed, nil
		}
	}

	return store.Obtain(ctx)
}

type storeTokenSource struct {
	ctx   context.Context
	store CredentialStore
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	return Token(s.ctx, s.store)
}

// TokenSource adapts a CredentialStore for API clients. Tokens are reused
// until they expire.
func TokenSource(ctx context.Context, store CredentialStore) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, storeTokenSource{ctx: ctx, store: store})
}

// Consenter obtains a token through user interaction.
type Consenter interface {
	Consent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// FileCredentials keeps the OAuth token in a JSON file under a working
// directory. The OAuth client comes from a Google client secrets file.
type FileCredentials struct {
	credentialsPath string
	tokenPath       string

	conf      *oauth2.Config
	consenter Consenter
	logger    *slog.Logger
}

type CredentialsOption func(c *FileCredentials)

func WithConsenter(cs Consenter) CredentialsOption {
	return func(c *FileCredentials) {
		c.consenter = cs
	}
}

// WithOAuthConfig uses conf instead of reading the client secrets file.
func WithOAuthConfig(conf *oauth2.Config) CredentialsOption {
	return func(c *FileCredentials) {
		c.conf = conf
	}
}

func WithCredentialsLogger(l *slog.Logger) CredentialsOption {
	return func(c *FileCredentials) {
		c.logger = l
	}
}

// NewFileCredentials creates the credential store, creating tempDir if it
// does not exist yet.
func NewFileCredentials(credentialsPath, tempDir string, opts ...CredentialsOption) (*FileCredentials, error) {
	if tempDir == "" {
		tempDir = DefaultTempDir
	}

	if err := os.MkdirAll(tempDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	c := &FileCredentials{
		credentialsPath: credentialsPath,
		tokenPath:       filepath.Join(tempDir, tokenFileName),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, o := range opts {
		o(c)
	}

	return c, nil
}

func (c *FileCredentials) TokenPath() string {
	return c.tokenPath
}

func (c *FileCredentials) config() (*oauth2.Config, error) {
	if c.conf != nil {
		return c.conf, nil
	}

	data, err := os.ReadFile(c.credentialsPath)
	if err != nil {
		if os.IsNotExist(err) || c.credentialsPath == "" {
			return nil, fmt.Errorf("%w: %q", ErrCredentialsNotFound, c.credentialsPath)
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	conf, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	c.conf = conf
	return conf, nil
}

func (c *FileCredentials) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		c.logger.Warn("ignoring unreadable token cache", "path", c.tokenPath, "error", err)
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}

	return tok, nil
}

func (c *FileCredentials) Valid(tok *oauth2.Token) bool {
	return tok != nil && tok.Valid()
}

func (c *FileCredentials) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	conf, err := c.config()
	if err != nil {
		return nil, err
	}

	expired := *tok
	expired.AccessToken = ""

	refreshed, err := conf.TokenSource(ctx, &expired).Token()
	if err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := c.save(refreshed); err != nil {
		return nil, err
	}

	c.logger.Debug("refreshed token", "expiry", refreshed.Expiry)
	return refreshed, nil
}

func (c *FileCredentials) Obtain(ctx context.Context) (*oauth2.Token, error) {
	conf, err := c.config()
	if err != nil {
		return nil, err
	}

	if c.consenter == nil {
		return nil, ErrConsentRequired
	}

	tok, err := c.consenter.Consent(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("consent failed: %w", err)
	}

	if err := c.save(tok); err != nil {
		return nil, err
	}

	c.logger.Debug("obtained token through consent", "path", c.tokenPath)
	return tok, nil
}

// State reports the lifecycle state of the cached token.
func (c *FileCredentials) State() CredentialState {
	tok, err := c.Load()
	switch {
	case err != nil || tok == nil:
		return StateNoToken
	case c.Valid(tok):
		return StateValid
	default:
		return StateExpired
	}
}

func (c *FileCredentials) save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(c.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}
