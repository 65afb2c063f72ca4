package instrumentation

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Exporter names accepted by METRICS_EXPORTER and TRACING_EXPORTER.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Config selects the exporters for metrics and traces.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// ServiceInstanceID defaults to the hostname.
	ServiceInstanceID string

	// Enabled is false when INSTRUMENTATION_ENABLED=false. Metrics then
	// record nothing and spans are no-ops.
	Enabled bool

	MetricsExporter string `validate:"omitempty,oneof=prometheus otlp stdout"`
	TracingExporter string `validate:"omitempty,oneof=otlp stdout none"`

	// OTLPEndpoint is host:port without a scheme, e.g. localhost:4318.
	OTLPEndpoint string
	// OTLPInsecure exports over plain HTTP. Traces carry ZIP codes and
	// profile URLs, so only use it against a local collector.
	OTLPInsecure bool

	TraceSamplingRate float64 `validate:"gte=0,lte=1"`

	// DetailedLabels labels stage metrics with the full ZIP code instead
	// of its three digit region.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

type AuditLoggingConfig struct {
	Enabled bool

	// IncludeDetails adds full ZIP codes, run IDs and span IDs to audit
	// records. Otherwise only the ZIP region is logged.
	IncludeDetails bool
}

// DefaultConfig reads the configuration from the environment.
func DefaultConfig() Config {
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) Config {
	e := env(getenv)
	return Config{
		ServiceName:       e.str("OTEL_SERVICE_NAME", "agentleads"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: e.str("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           e.boolean("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   e.str("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   e.str("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      e.boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		DetailedLabels:    e.boolean("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:        e.boolean("AUDIT_LOGGING_ENABLED", true),
			IncludeDetails: e.boolean("AUDIT_LOGGING_INCLUDE_DETAILS", false),
		},
	}
}

var configValidator = validator.New()

// Validate checks exporter names and the sampling rate, and that an OTLP
// exporter has an endpoint.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		fe := fieldErrs[0]
		switch fe.Field() {
		case "TraceSamplingRate":
			return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %v", fe.Value())
		case "MetricsExporter":
			return fmt.Errorf("invalid metrics exporter %q, must be one of: %s", fe.Value(), fe.Param())
		case "TracingExporter":
			return fmt.Errorf("invalid tracing exporter %q, must be one of: %s", fe.Value(), fe.Param())
		}
		return fmt.Errorf("invalid instrumentation config: %w", err)
	}

	if c.OTLPEndpoint == "" && (c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required for the otlp exporter; set OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return nil
}

// env reads typed values, falling back to the default when a variable is
// unset or does not parse.
type env func(string) string

func (e env) str(key, def string) string {
	if v := e(key); v != "" {
		return v
	}
	return def
}

func (e env) boolean(key string, def bool) bool {
	if b, err := strconv.ParseBool(e(key)); err == nil {
		return b
	}
	return def
}

func (e env) float(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(e(key), 64); err == nil {
		return f
	}
	return def
}
