package sesame

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthService talks to the identity endpoints: anonymous signup, token
// refresh, and account lookup. Every operation is a single POST carrying the
// browser-mimicking header set and the web API key as a query parameter.
type AuthService struct {
	client *Client
}

type signupRequest struct {
	ReturnSecureToken bool `json:"returnSecureToken"`
}

type lookupRequest struct {
	IDToken string `json:"idToken"`
}

// CreateAnonymousAccount provisions a fresh anonymous account and returns its
// token pair. No user input is involved; identity lives entirely in the
// returned tokens.
func (s *AuthService) CreateAnonymousAccount(ctx context.Context) (*SignupResponse, error) {
	ctx, end := s.client.startSpan(ctx, "sesame.auth.signup")
	var result SignupResponse
	err := s.postJSON(ctx, s.client.identityBaseURL+":signUp", signupRequest{ReturnSecureToken: true}, &result)
	end(err)
	if err != nil {
		return nil, err
	}
	s.client.logger.Debug("anonymous account created", "user_id", result.LocalID)
	return &result, nil
}

// RefreshIDToken exchanges a refresh token for a fresh ID token. The refresh
// endpoint speaks OAuth: the body is form-encoded, not JSON.
func (s *AuthService) RefreshIDToken(ctx context.Context, refreshToken string) (*RefreshTokenResponse, error) {
	ctx, end := s.client.startSpan(ctx, "sesame.auth.refresh")
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var result RefreshTokenResponse
	err := s.postForm(ctx, s.client.secureTokenURL, form, &result)
	end(err)
	if err != nil {
		return nil, err
	}
	s.client.logger.Debug("id token refreshed", "user_id", result.UserID)
	return &result, nil
}

// LookupAccount fetches account info for an ID token. The endpoint rejects
// invalid or expired tokens with an invalid-token error, which makes this
// double as the validity probe.
func (s *AuthService) LookupAccount(ctx context.Context, idToken string) (*LookupResponse, error) {
	ctx, end := s.client.startSpan(ctx, "sesame.auth.lookup")
	var result LookupResponse
	err := s.postJSON(ctx, s.client.identityBaseURL+":lookup", lookupRequest{IDToken: idToken}, &result)
	end(err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *AuthService) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return s.post(ctx, endpoint, "application/json", bytes.NewReader(body), out)
}

func (s *AuthService) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return s.post(ctx, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

func (s *AuthService) post(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	query := url.Values{}
	query.Set("key", s.client.apiKey)
	fullURL := endpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range identitySpoofHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Firebase-Client", firebaseClientHeader(time.Now()))

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: http.MethodPost, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseIdentityError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewAPIError(fmt.Sprintf("decode response: %v", err))
	}
	return nil
}
