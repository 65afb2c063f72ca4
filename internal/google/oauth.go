package google

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/agentleads/internal/logging"
)

// DefaultAuthTimeout bounds how long the consent flow waits for the browser.
const DefaultAuthTimeout = 5 * time.Minute

// ErrAuthRequired is returned when no usable token exists and the
// interactive flow is disabled.
var ErrAuthRequired = errors.New("google authorization required, run 'agentleads auth'")

// LoadConfig reads an installed-app client secret file.
func LoadConfig(credentialsFile string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s file not found", filepath.Base(credentialsFile))
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return conf, nil
}

// HasToken reports whether a token cache file exists at path.
func HasToken(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("invalid token file %s: no tokens", path)
	}
	return &tok, nil
}

// SaveToken writes a token to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("token is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// RemoveToken deletes a cached token. A missing file is not an error.
func RemoveToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Authenticator obtains Google API tokens, running the browser consent flow
// when needed.
type Authenticator struct {
	Config    *oauth2.Config
	TokenFile string

	// ForceReauth discards the cached token before authenticating.
	ForceReauth bool

	// Interactive enables the browser consent flow.
	Interactive bool

	// OpenBrowser opens the consent URL. The URL is always printed to Out.
	OpenBrowser func(url string) error

	Out     io.Writer
	Timeout time.Duration
	Logger  *slog.Logger
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// TokenSource returns a token source backed by the cache. Tokens refreshed
// by the source are written back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if a.Config == nil {
		return nil, fmt.Errorf("oauth config is required")
	}
	if a.TokenFile == "" {
		return nil, fmt.Errorf("token file is required")
	}
	logger := logging.WithService(a.logger(), "google")

	if a.ForceReauth {
		if err := RemoveToken(a.TokenFile); err != nil {
			return nil, err
		}
		logger.Info("removed cached token to force new authentication")
	}

	if tok, err := LoadToken(a.TokenFile); err == nil {
		ts := a.Config.TokenSource(ctx, tok)
		fresh, err := ts.Token()
		if err == nil {
			if fresh.AccessToken != tok.AccessToken {
				if err := SaveToken(a.TokenFile, fresh); err != nil {
					return nil, err
				}
			}
			return newPersistingTokenSource(ts, a.TokenFile, fresh), nil
		}
		logger.Warn("cached token could not be refreshed", logging.Err(err))
	} else if HasToken(a.TokenFile) {
		logger.Warn("ignoring unreadable token cache", logging.Err(err))
	}

	if !a.Interactive {
		return nil, ErrAuthRequired
	}

	tok, err := a.authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := SaveToken(a.TokenFile, tok); err != nil {
		return nil, err
	}
	logger.Info("saved new token", slog.String("token", logging.SanitizeToken(tok.AccessToken)))

	return newPersistingTokenSource(a.Config.TokenSource(ctx, tok), a.TokenFile, tok), nil
}

// HTTPClient returns an HTTP client authorised for the Google APIs.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return NewHTTPClient(ctx, ts), nil
}

// NewHTTPClient wraps ts in an HTTP/1.1 client.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}

func (a *Authenticator) authorize(ctx context.Context) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	server := newCallbackServer(state)
	if err := server.Start(); err != nil {
		return nil, err
	}
	defer func() { _ = server.Stop() }()

	conf := *a.Config
	conf.RedirectURL = server.RedirectURI()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	logger := logging.WithOperation(logging.WithService(a.logger(), "google"), "authorize")

	out := a.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Open the following URL in your browser to authorize access to Google Sheets and Drive:\n\n%s\n\n", authURL)
	if a.OpenBrowser != nil {
		if err := a.OpenBrowser(authURL); err != nil {
			logger.Debug("could not open browser", logging.Err(err))
		}
	}
	logger.Debug("waiting for authorization callback", slog.String("redirect_uri", conf.RedirectURL))

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	code, err := server.WaitForCode(ctx, timeout)
	if err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// persistingTokenSource writes refreshed tokens back to the cache file.
type persistingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func newPersistingTokenSource(base oauth2.TokenSource, path string, current *oauth2.Token) *persistingTokenSource {
	p := &persistingTokenSource{base: base, path: path}
	if current != nil {
		p.last = current.AccessToken
	}
	return p
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveToken(p.path, tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
