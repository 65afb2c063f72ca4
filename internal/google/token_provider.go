package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider supplies Google API tokens without user interaction.
type TokenProvider interface {
	// Token returns a valid token, refreshing it if needed.
	Token(ctx context.Context) (*oauth2.Token, error)

	// HasToken reports whether a cached token exists.
	HasToken() bool
}

// FileTokenProvider provides tokens from the on-disk cache.
type FileTokenProvider struct {
	config *oauth2.Config
	path   string
}

// NewFileTokenProvider creates a provider reading the cache at path.
func NewFileTokenProvider(config *oauth2.Config, path string) *FileTokenProvider {
	return &FileTokenProvider{config: config, path: path}
}

// Token loads the cached token and refreshes it when expired.
func (p *FileTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	a := &Authenticator{Config: p.config, TokenFile: p.path}
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from file: %w", err)
	}
	return token, nil
}

// HasToken reports whether the cache file exists.
func (p *FileTokenProvider) HasToken() bool {
	return HasToken(p.path)
}
