package instrumentation

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transport is an http.RoundTripper that records external API metrics for
// every request and wraps it in a client span.
type Transport struct {
	base    http.RoundTripper
	metrics *Metrics
	service string
}

// NewTransport wraps base (http.DefaultTransport when nil) with metrics and
// tracing for the named external service.
func NewTransport(base http.RoundTripper, metrics *Metrics, service string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	traced := otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return service + "." + APIOperation(r.Method, r.URL.Path)
		}),
	)
	return &Transport{
		base:    traced,
		metrics: metrics,
		service: service,
	}
}

// NewHTTPClient returns an HTTP client using an instrumented transport.
func NewHTTPClient(metrics *Metrics, service string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewTransport(nil, metrics, service),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	status := StatusSuccess
	switch {
	case err != nil:
		status = StatusError
	case resp.StatusCode == http.StatusTooManyRequests:
		status = StatusRateLimited
	case resp.StatusCode >= http.StatusBadRequest:
		status = StatusError
	}

	t.metrics.RecordAPIRequest(req.Context(), t.service, APIOperation(req.Method, req.URL.Path), status, time.Since(start))
	return resp, err
}
