package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(LoadOptions{Getenv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, DefaultFirecrawlURL, cfg.FirecrawlAPIURL)
	assert.Equal(t, time.Second, cfg.FirecrawlDelay)
	assert.Equal(t, DefaultWizaURL, cfg.WizaAPIURL)
	assert.Equal(t, 10, cfg.WizaMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.WizaRetryDelay)
	assert.Equal(t, []string{"0_idea_validation", "homereels", "agents_contact_info"}, cfg.SheetsFolderPath)
	assert.Equal(t, "credentials.json", cfg.GoogleCredentialsFile)
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(LoadOptions{Getenv: envMap(map[string]string{
		EnvFirecrawlAPIKey:  "fc-key",
		EnvFirecrawlDelay:   "2.5",
		EnvWizaAPIKey:       "wiza-key",
		EnvWizaMaxRetries:   "3",
		EnvWizaRetryDelay:   "0",
		EnvSheetsFolderPath: "/leads//2026/",
		EnvConcurrency:      "4",
		EnvLogLevel:         "debug",
	})})
	require.NoError(t, err)

	assert.Equal(t, "fc-key", cfg.FirecrawlAPIKey)
	assert.Equal(t, 2500*time.Millisecond, cfg.FirecrawlDelay)
	assert.Equal(t, "wiza-key", cfg.WizaAPIKey)
	assert.Equal(t, 3, cfg.WizaMaxRetries)
	assert.Equal(t, time.Duration(0), cfg.WizaRetryDelay)
	assert.Equal(t, []string{"leads", "2026"}, cfg.SheetsFolderPath)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad delay", map[string]string{EnvFirecrawlDelay: "soon"}},
		{"negative delay", map[string]string{EnvWizaRetryDelay: "-1"}},
		{"bad retries", map[string]string{EnvWizaMaxRetries: "ten"}},
		{"retries out of range", map[string]string{EnvWizaMaxRetries: "0"}},
		{"concurrency out of range", map[string]string{EnvConcurrency: "64"}},
		{"bad url", map[string]string{EnvWizaAPIURL: "not a url"}},
		{"bad level", map[string]string{EnvLogLevel: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{Getenv: envMap(tt.env)})
			assert.Error(t, err)
		})
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "/tmp/leads"
concurrency = 2

[firecrawl]
api_key = "from-file"
delay = 3.0

[wiza]
max_retries = 4

[google]
folder_path = "a/b"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(LoadOptions{
		ConfigFile: path,
		Getenv:     envMap(map[string]string{EnvFirecrawlAPIKey: "from-env"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.FirecrawlAPIKey, "env must win over the file")
	assert.Equal(t, 3*time.Second, cfg.FirecrawlDelay)
	assert.Equal(t, 4, cfg.WizaMaxRetries)
	assert.Equal(t, []string{"a", "b"}, cfg.SheetsFolderPath)
	assert.Equal(t, "/tmp/leads", cfg.DataDir)
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "nope.toml"),
		Getenv:     envMap(nil),
	})
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency = ["), 0600))

	_, err := Load(LoadOptions{ConfigFile: path, Getenv: envMap(nil)})
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "AGENTLEADS_DOTENV_TEST_KEY"
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0600))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))

	// Existing values are not overridden.
	t.Setenv(key, "from-shell")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-shell", os.Getenv(key))

	// Missing file is fine.
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestRequireKeys(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, cfg.RequireFirecrawl(), EnvFirecrawlAPIKey)
	assert.ErrorContains(t, cfg.RequireWiza(), EnvWizaAPIKey)

	cfg.FirecrawlAPIKey = "x"
	cfg.WizaAPIKey = "y"
	assert.NoError(t, cfg.RequireFirecrawl())
	assert.NoError(t, cfg.RequireWiza())
}

func TestDataPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/work"
	assert.Equal(t, filepath.Join("/work", "0_agents.json"), cfg.DataPath("0_agents.json"))
	assert.Equal(t, "/abs/file.json", cfg.DataPath("/abs/file.json"))
}

func TestSplitFolderPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitFolderPath("a/b/c"))
	assert.Equal(t, []string{"a", "b"}, SplitFolderPath(" /a/ /b/ "))
	assert.Nil(t, SplitFolderPath(""))
}
