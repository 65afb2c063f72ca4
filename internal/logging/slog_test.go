package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// capture returns a JSON logger and a function decoding the last record.
func capture(t *testing.T) (*slog.Logger, func() map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return logger, func() map[string]any {
		t.Helper()
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		var rec map[string]any
		if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
			t.Fatalf("decode log record: %v", err)
		}
		return rec
	}
}

func TestLoggerHelpersTagRecords(t *testing.T) {
	tests := []struct {
		name string
		wrap func(*slog.Logger) *slog.Logger
		key  string
		want string
	}{
		{"operation", func(l *slog.Logger) *slog.Logger { return WithOperation(l, "authorize") }, KeyOperation, "authorize"},
		{"stage", func(l *slog.Logger) *slog.Logger { return WithStage(l, "linkedin") }, KeyStage, "linkedin"},
		{"tool", func(l *slog.Logger) *slog.Logger { return WithTool(l, "scrape_agents") }, KeyTool, "scrape_agents"},
		{"service", func(l *slog.Logger) *slog.Logger { return WithService(l, "wiza") }, KeyService, "wiza"},
		{"run", func(l *slog.Logger) *slog.Logger { return WithRun(l, "run-1") }, KeyRunID, "run-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, last := capture(t)
			tt.wrap(logger).Info("event")

			if got := last()[tt.key]; got != tt.want {
				t.Errorf("%s = %v, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		want string
	}{
		{Operation("create_spreadsheet"), KeyOperation, "create_spreadsheet"},
		{Stage("enrich"), KeyStage, "enrich"},
		{Service("firecrawl"), KeyService, "firecrawl"},
		{ZIP("10001"), KeyZIP, "10001"},
		{Agent("Jane Roe"), KeyAgent, "Jane Roe"},
		{URL("https://www.zillow.com/profile/jane"), KeyURL, "https://www.zillow.com/profile/jane"},
		{Tool("get_run"), KeyTool, "get_run"},
		{Status(StatusNotFound), KeyStatus, "not_found"},
		{Err(errors.New("quota exceeded")), KeyError, "quota exceeded"},
		{Domain("Jane@Example.com"), KeyEmailDomain, "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if tt.attr.Key != tt.key || tt.attr.Value.String() != tt.want {
				t.Errorf("got %s=%q, want %s=%q", tt.attr.Key, tt.attr.Value.String(), tt.key, tt.want)
			}
		})
	}
}

func TestErrNilIsDropped(t *testing.T) {
	logger, last := capture(t)
	logger.Info("done", Err(nil))

	if _, ok := last()[KeyError]; ok {
		t.Error("nil error produced an error attribute")
	}
}

func TestHashEmail(t *testing.T) {
	h := HashEmail("jane@example.com")

	if !strings.HasPrefix(h, "email:") || len(h) != len("email:")+16 {
		t.Errorf("HashEmail() = %q, want email: plus 16 hex chars", h)
	}
	if strings.Contains(h, "jane") {
		t.Errorf("HashEmail() leaks the address: %q", h)
	}
	if got := HashEmail(" Jane@Example.COM "); got != h {
		t.Errorf("HashEmail() is not case and space insensitive: %q != %q", got, h)
	}
	if HashEmail("john@example.com") == h {
		t.Error("different addresses hashed alike")
	}
	if HashEmail("") != "" {
		t.Error("empty address should hash to empty")
	}
	if attr := EmailHash("jane@example.com"); attr.Key != KeyEmailHash || attr.Value.String() != h {
		t.Errorf("EmailHash() = %v", attr)
	}
}

func TestEmailDomain(t *testing.T) {
	tests := map[string]string{
		"jane@example.com": "example.com",
		"jane@Realty.COM":  "realty.com",
		"invalid":          "",
		"":                 "",
		"@":                "",
		"jane@":            "",
		"@example.com":     "",
		"a@b@example.com":  "",
		"agent@mail.co.uk": "mail.co.uk",
	}
	for email, want := range tests {
		if got := EmailDomain(email); got != want {
			t.Errorf("EmailDomain(%q) = %q, want %q", email, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"":                         "<empty>",
		"abc123":                   "[token:6 chars]",
		"a_very_long_token_string": "[token:24 chars]",
	}
	for token, want := range tests {
		if got := SanitizeToken(token); got != want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", token, got, want)
		}
	}
}
