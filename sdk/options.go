package sesame

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithAPIKey overrides the identity-provider web API key.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithIdentityBaseURL overrides the accounts endpoint. Useful for tests.
func WithIdentityBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.identityBaseURL = url
	}
}

// WithSecureTokenURL overrides the token refresh endpoint. Useful for tests.
func WithSecureTokenURL(url string) ClientOption {
	return func(c *Client) {
		c.secureTokenURL = url
	}
}

// WithVoiceURL overrides the voice websocket endpoint. Useful for tests.
func WithVoiceURL(url string) ClientOption {
	return func(c *Client) {
		c.voiceURL = url
	}
}

// WithTLSVerification controls certificate verification on the voice
// websocket. It is off by default: the voice server's served chain does not
// validate, and connecting requires the relaxation. Pass true to enforce
// verification anyway.
func WithTLSVerification(verify bool) ClientOption {
	return func(c *Client) {
		c.tlsVerify = verify
	}
}

// WithHTTPClient sets a custom HTTP client for the identity endpoints.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTracer sets the OpenTelemetry tracer for the client.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}
