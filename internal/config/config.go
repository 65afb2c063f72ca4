package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Environment variable names.
const (
	EnvFirecrawlAPIKey   = "FIRECRAWL_API_KEY"
	EnvFirecrawlAPIURL   = "FIRECRAWL_API_URL"
	EnvFirecrawlDelay    = "FIRECRAWL_DELAY"
	EnvWizaAPIKey        = "WIZA_API_KEY"
	EnvWizaAPIURL        = "WIZA_API_URL"
	EnvWizaMaxRetries    = "WIZA_MAX_RETRIES"
	EnvWizaRetryDelay    = "WIZA_RETRY_DELAY"
	EnvCredentialsFile   = "GOOGLE_CREDENTIALS_FILE"
	EnvTokenFile         = "GOOGLE_TOKEN_FILE"
	EnvSheetsFolderPath  = "SHEETS_FOLDER_PATH"
	EnvDataDir           = "AGENTLEADS_DATA_DIR"
	EnvDBPath            = "AGENTLEADS_DB"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFile           = "LOG_FILE"
	EnvConcurrency       = "CONCURRENCY"
	DefaultEnvFile       = ".env"
	DefaultConfigName    = "config.toml"
	DefaultFolderPath    = "0_idea_validation/homereels/agents_contact_info"
	DefaultFirecrawlURL  = "https://api.firecrawl.dev"
	DefaultWizaURL       = "https://wiza.co"
	DefaultCredentials   = "credentials.json"
	DefaultTokenFile     = "token.json"
	defaultWizaRetries   = 10
	defaultWizaDelay     = 5 * time.Second
	defaultFirecrawlWait = 1 * time.Second
)

// Config holds all runtime settings.
type Config struct {
	FirecrawlAPIKey string
	FirecrawlAPIURL string        `validate:"required,url"`
	FirecrawlDelay  time.Duration `validate:"min=0"`

	WizaAPIKey     string
	WizaAPIURL     string        `validate:"required,url"`
	WizaMaxRetries int           `validate:"min=1,max=100"`
	WizaRetryDelay time.Duration `validate:"min=0"`

	GoogleCredentialsFile string   `validate:"required"`
	GoogleTokenFile       string   `validate:"required"`
	SheetsFolderPath      []string `validate:"dive,required"`

	DataDir string `validate:"required"`
	DBPath  string `validate:"required"`

	LogLevel string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFile  string

	Concurrency int `validate:"min=1,max=16"`
}

// fileConfig mirrors the TOML layout. Durations are seconds.
type fileConfig struct {
	Firecrawl struct {
		APIKey string  `toml:"api_key"`
		APIURL string  `toml:"api_url"`
		Delay  float64 `toml:"delay"`
	} `toml:"firecrawl"`
	Wiza struct {
		APIKey     string  `toml:"api_key"`
		APIURL     string  `toml:"api_url"`
		MaxRetries int     `toml:"max_retries"`
		RetryDelay float64 `toml:"retry_delay"`
	} `toml:"wiza"`
	Google struct {
		CredentialsFile string `toml:"credentials_file"`
		TokenFile       string `toml:"token_file"`
		FolderPath      string `toml:"folder_path"`
	} `toml:"google"`
	DataDir     string `toml:"data_dir"`
	DBPath      string `toml:"db_path"`
	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	Concurrency int    `toml:"concurrency"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is an explicit TOML file. When empty the default location is
	// used if it exists.
	ConfigFile string

	// Getenv reads environment variables (default: os.Getenv).
	Getenv func(string) string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		FirecrawlAPIURL:       DefaultFirecrawlURL,
		FirecrawlDelay:        defaultFirecrawlWait,
		WizaAPIURL:            DefaultWizaURL,
		WizaMaxRetries:        defaultWizaRetries,
		WizaRetryDelay:        defaultWizaDelay,
		GoogleCredentialsFile: DefaultCredentials,
		GoogleTokenFile:       DefaultTokenFile,
		SheetsFolderPath:      SplitFolderPath(DefaultFolderPath),
		DataDir:               ".",
		DBPath:                defaultDBPath(),
		LogLevel:              "info",
		Concurrency:           1,
	}
}

// LoadDotEnv exports variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from defaults, the TOML file and the environment.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.FirecrawlAPIKey, fc.Firecrawl.APIKey)
	setString(&c.FirecrawlAPIURL, fc.Firecrawl.APIURL)
	if fc.Firecrawl.Delay > 0 {
		c.FirecrawlDelay = seconds(fc.Firecrawl.Delay)
	}
	setString(&c.WizaAPIKey, fc.Wiza.APIKey)
	setString(&c.WizaAPIURL, fc.Wiza.APIURL)
	if fc.Wiza.MaxRetries > 0 {
		c.WizaMaxRetries = fc.Wiza.MaxRetries
	}
	if fc.Wiza.RetryDelay > 0 {
		c.WizaRetryDelay = seconds(fc.Wiza.RetryDelay)
	}
	setString(&c.GoogleCredentialsFile, fc.Google.CredentialsFile)
	setString(&c.GoogleTokenFile, fc.Google.TokenFile)
	if fc.Google.FolderPath != "" {
		c.SheetsFolderPath = SplitFolderPath(fc.Google.FolderPath)
	}
	setString(&c.DataDir, fc.DataDir)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFile, fc.LogFile)
	if fc.Concurrency > 0 {
		c.Concurrency = fc.Concurrency
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(&c.FirecrawlAPIKey, getenv(EnvFirecrawlAPIKey))
	setString(&c.FirecrawlAPIURL, getenv(EnvFirecrawlAPIURL))
	setString(&c.WizaAPIKey, getenv(EnvWizaAPIKey))
	setString(&c.WizaAPIURL, getenv(EnvWizaAPIURL))
	setString(&c.GoogleCredentialsFile, getenv(EnvCredentialsFile))
	setString(&c.GoogleTokenFile, getenv(EnvTokenFile))
	setString(&c.DataDir, getenv(EnvDataDir))
	setString(&c.DBPath, getenv(EnvDBPath))
	setString(&c.LogLevel, getenv(EnvLogLevel))
	setString(&c.LogFile, getenv(EnvLogFile))

	if v := getenv(EnvSheetsFolderPath); v != "" {
		c.SheetsFolderPath = SplitFolderPath(v)
	}

	if v := getenv(EnvFirecrawlDelay); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvFirecrawlDelay, err)
		}
		c.FirecrawlDelay = d
	}
	if v := getenv(EnvWizaRetryDelay); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWizaRetryDelay, err)
		}
		c.WizaRetryDelay = d
	}
	if v := getenv(EnvWizaMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWizaMaxRetries, err)
		}
		c.WizaMaxRetries = n
	}
	if v := getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequireFirecrawl reports whether the Firecrawl stages can run.
func (c *Config) RequireFirecrawl() error {
	if c.FirecrawlAPIKey == "" {
		return fmt.Errorf("%s not found in environment variables", EnvFirecrawlAPIKey)
	}
	return nil
}

// RequireWiza reports whether the enrichment stage can run.
func (c *Config) RequireWiza() error {
	if c.WizaAPIKey == "" {
		return fmt.Errorf("%s must be set in .env file", EnvWizaAPIKey)
	}
	return nil
}

// DataPath returns name resolved inside the data directory.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// DefaultConfigPath returns the per-user TOML file location, or "" when the
// user config directory cannot be determined.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "agentleads", DefaultConfigName)
}

// SplitFolderPath splits a slash-separated Drive folder path, dropping empty
// segments.
func SplitFolderPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func defaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "agentleads-history.db")
	}
	return filepath.Join(dir, "agentleads", "history.db")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseSeconds(v string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("must not be negative, got %v", f)
	}
	return seconds(f), nil
}
