package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/agentleads/internal/config"
	"github.com/teemow/agentleads/internal/drive"
	"github.com/teemow/agentleads/internal/firecrawl"
	"github.com/teemow/agentleads/internal/google"
	"github.com/teemow/agentleads/internal/instrumentation"
	"github.com/teemow/agentleads/internal/linkedin"
	"github.com/teemow/agentleads/internal/logging"
	"github.com/teemow/agentleads/internal/ratelimit"
	"github.com/teemow/agentleads/internal/sheets"
	"github.com/teemow/agentleads/internal/wiza"
	"github.com/teemow/agentleads/internal/zillow"
)

// apiTimeout bounds a single request to Firecrawl or Wiza.
const apiTimeout = 60 * time.Second

// AuthOptions controls how the upload stage obtains Google credentials.
type AuthOptions struct {
	// Interactive allows the browser consent flow when no usable token is cached.
	Interactive bool

	// ForceReauth discards the cached token first.
	ForceReauth bool

	// OpenBrowser opens the consent URL. Optional.
	OpenBrowser func(url string) error

	// Out receives the consent URL (default: stderr).
	Out io.Writer
}

// ServiceFactory builds stages backed by the real APIs described by Config.
type ServiceFactory struct {
	Config  *config.Config
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
	Auth    AuthOptions

	mu        sync.Mutex
	firecrawl *firecrawl.Client
}

// NewServiceFactory creates a factory for cfg.
func NewServiceFactory(cfg *config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) *ServiceFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceFactory{Config: cfg, Metrics: metrics, Logger: logger}
}

// firecrawlClient returns the shared Firecrawl client so that scraping and
// LinkedIn lookups share one rate limiter.
func (f *ServiceFactory) firecrawlClient() (*firecrawl.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.firecrawl != nil {
		return f.firecrawl, nil
	}
	if err := f.Config.RequireFirecrawl(); err != nil {
		return nil, err
	}
	client, err := firecrawl.NewClient(firecrawl.Config{
		APIKey:     f.Config.FirecrawlAPIKey,
		BaseURL:    f.Config.FirecrawlAPIURL,
		HTTPClient: instrumentation.NewHTTPClient(f.Metrics, instrumentation.ServiceFirecrawl, apiTimeout),
		Limiter:    ratelimit.New(f.Config.FirecrawlDelay),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Firecrawl client: %w", err)
	}
	f.firecrawl = client
	return client, nil
}

// Scraper implements Factory.
func (f *ServiceFactory) Scraper(limit int) (Scraper, error) {
	client, err := f.firecrawlClient()
	if err != nil {
		return nil, err
	}
	s := zillow.NewScraper(client, logging.WithService(f.Logger, instrumentation.ServiceFirecrawl))
	s.Limit = limit
	return s, nil
}

// Finder implements Factory.
func (f *ServiceFactory) Finder() (ProfileFinder, error) {
	client, err := f.firecrawlClient()
	if err != nil {
		return nil, err
	}
	return linkedin.NewFinder(client, f.Config.Concurrency, logging.WithService(f.Logger, instrumentation.ServiceFirecrawl)), nil
}

// Enricher implements Factory.
func (f *ServiceFactory) Enricher() (ContactEnricher, error) {
	if err := f.Config.RequireWiza(); err != nil {
		return nil, err
	}
	client, err := wiza.NewClient(wiza.Config{
		APIKey:     f.Config.WizaAPIKey,
		BaseURL:    f.Config.WizaAPIURL,
		HTTPClient: instrumentation.NewHTTPClient(f.Metrics, instrumentation.ServiceWiza, apiTimeout),
		MaxRetries: f.Config.WizaMaxRetries,
		RetryDelay: f.Config.WizaRetryDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Wiza client: %w", err)
	}
	return wiza.NewEnricher(client, wiza.DefaultAgentDelay, logging.WithService(f.Logger, instrumentation.ServiceWiza)), nil
}

// Uploader implements Factory. It authenticates with Google, running the
// consent flow when Auth allows it.
func (f *ServiceFactory) Uploader(ctx context.Context, createFolders bool) (SheetUploader, error) {
	ts, err := f.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	driveClient, err := drive.NewClient(ctx, option.WithHTTPClient(f.googleHTTPClient(ctx, ts, instrumentation.ServiceDrive)))
	if err != nil {
		return nil, err
	}
	sheetsClient, err := sheets.NewClient(ctx, option.WithHTTPClient(f.googleHTTPClient(ctx, ts, instrumentation.ServiceSheets)))
	if err != nil {
		return nil, err
	}

	u := sheets.NewUploader(driveClient, sheetsClient, f.Config.SheetsFolderPath, logging.WithService(f.Logger, instrumentation.ServiceSheets))
	u.CreateFolders = createFolders
	return u, nil
}

// TokenSource returns a Google token source for the configured credentials.
func (f *ServiceFactory) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	oauthConfig, err := google.LoadConfig(f.Config.GoogleCredentialsFile, google.DefaultOAuthScopes...)
	if err != nil {
		return nil, err
	}
	auth := &google.Authenticator{
		Config:      oauthConfig,
		TokenFile:   f.Config.GoogleTokenFile,
		ForceReauth: f.Auth.ForceReauth,
		Interactive: f.Auth.Interactive,
		OpenBrowser: f.Auth.OpenBrowser,
		Out:         f.Auth.Out,
		Logger:      f.Logger,
	}
	return auth.TokenSource(ctx)
}

func (f *ServiceFactory) googleHTTPClient(ctx context.Context, ts oauth2.TokenSource, service string) *http.Client {
	client := google.NewHTTPClient(ctx, ts)
	if t, ok := client.Transport.(*oauth2.Transport); ok {
		t.Base = instrumentation.NewTransport(t.Base, f.Metrics, service)
	}
	return client
}
