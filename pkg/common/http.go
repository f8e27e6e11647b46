package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version returns the trimmed release version embedded at build time.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is the User-Agent sent on every upstream request.
func UserAgent() string {
	return "CanvasIntegration/" + Version()
}

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// the caller owns req so we must not mutate its headers
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns an http client that stamps our User-Agent on each
// request and gives up after timeout.
func HTTPClient(timeout time.Duration) *http.Client {
	return WrapClient(&http.Client{Timeout: timeout})
}

// WrapClient installs the User-Agent transport on an existing client,
// keeping its underlying transport. Used for httptest clients.
func WrapClient(c *http.Client) *http.Client {
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c
	wrapped.Transport = &userAgentTransport{
		transport: base,
		userAgent: UserAgent(),
	}
	return &wrapped
}
