// Package sesame provides a Go client for the Sesame voice conversation
// service.
//
// The client covers the full call path: anonymous account provisioning and
// token refresh against the service's identity endpoints (Auth), cached
// credential management (TokenManager), and realtime two-way voice calls over
// websocket (Voice).
package sesame

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Client is the main entry point for the SDK.
type Client struct {
	Auth  *AuthService
	Voice *VoiceService

	// Internal
	apiKey          string
	identityBaseURL string
	secureTokenURL  string
	voiceURL        string
	tlsVerify       bool
	httpClient      *http.Client
	logger          *slog.Logger
	tracer          trace.Tracer
}

// NewClient creates a new client. Without options it talks to the production
// endpoints using the published web API key.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		apiKey:          DefaultAPIKey,
		identityBaseURL: DefaultIdentityBaseURL,
		secureTokenURL:  DefaultSecureTokenURL,
		voiceURL:        DefaultVoiceURL,
		httpClient:      newDefaultHTTPClient(),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthService{client: c}
	c.Voice = &VoiceService{client: c}
	return c
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// startSpan begins a span when a tracer is configured. The returned end func
// records err (if non-nil) and closes the span; without a tracer both are
// no-ops.
func (c *Client) startSpan(ctx context.Context, name string) (context.Context, func(error)) {
	if c.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := c.tracer.Start(ctx, name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
