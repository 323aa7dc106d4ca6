package sesame

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateAnonymousAccount(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey, gotContentType, gotFirebaseClient string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotContentType = r.Header.Get("Content-Type")
		gotFirebaseClient = r.Header.Get("X-Firebase-Client")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SignupResponse{
			Kind:         "identitytoolkit#SignupNewUserResponse",
			IDToken:      "id-token-1",
			RefreshToken: "refresh-token-1",
			ExpiresIn:    "3600",
			LocalID:      "user-1",
		})
	}))
	defer server.Close()

	client := NewClient(
		WithAPIKey("test-key"),
		WithIdentityBaseURL(server.URL+"/v1/accounts"),
		WithHTTPClient(server.Client()),
	)

	resp, err := client.Auth.CreateAnonymousAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAnonymousAccount() error = %v", err)
	}
	if resp.IDToken != "id-token-1" || resp.LocalID != "user-1" {
		t.Fatalf("response = %+v", resp)
	}
	if gotPath != "/v1/accounts:signUp" {
		t.Fatalf("path = %q, want %q", gotPath, "/v1/accounts:signUp")
	}
	if gotKey != "test-key" {
		t.Fatalf("key = %q, want %q", gotKey, "test-key")
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if gotFirebaseClient == "" {
		t.Fatal("X-Firebase-Client header not set")
	}
	if v, ok := gotBody["returnSecureToken"].(bool); !ok || !v {
		t.Fatalf("body = %v, want returnSecureToken=true", gotBody)
	}
}

func TestRefreshIDToken_FormEncoded(t *testing.T) {
	t.Parallel()

	var gotContentType, gotGrantType, gotRefreshToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotGrantType = r.PostFormValue("grant_type")
		gotRefreshToken = r.PostFormValue("refresh_token")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RefreshTokenResponse{
			AccessToken:  "access-2",
			ExpiresIn:    "3600",
			TokenType:    "Bearer",
			RefreshToken: "refresh-2",
			IDToken:      "id-token-2",
			UserID:       "user-1",
		})
	}))
	defer server.Close()

	client := NewClient(
		WithSecureTokenURL(server.URL+"/v1/token"),
		WithHTTPClient(server.Client()),
	)

	resp, err := client.Auth.RefreshIDToken(context.Background(), "refresh-token-1")
	if err != nil {
		t.Fatalf("RefreshIDToken() error = %v", err)
	}
	if resp.IDToken != "id-token-2" || resp.RefreshToken != "refresh-2" {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.HasPrefix(gotContentType, "application/x-www-form-urlencoded") {
		t.Fatalf("Content-Type = %q, want form encoding", gotContentType)
	}
	if gotGrantType != "refresh_token" {
		t.Fatalf("grant_type = %q", gotGrantType)
	}
	if gotRefreshToken != "refresh-token-1" {
		t.Fatalf("refresh_token = %q", gotRefreshToken)
	}
}

func TestLookupAccount(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LookupResponse{
			Kind: "identitytoolkit#GetAccountInfoResponse",
			Users: []AccountInfo{
				{LocalID: "user-1", CreatedAt: "1756000000000"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(
		WithIdentityBaseURL(server.URL+"/v1/accounts"),
		WithHTTPClient(server.Client()),
	)

	resp, err := client.Auth.LookupAccount(context.Background(), "id-token-1")
	if err != nil {
		t.Fatalf("LookupAccount() error = %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].LocalID != "user-1" {
		t.Fatalf("response = %+v", resp)
	}
	if gotBody["idToken"] != "id-token-1" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestLookupAccount_InvalidToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_ID_TOKEN","errors":[{"message":"INVALID_ID_TOKEN","domain":"global","reason":"invalid"}]}}`))
	}))
	defer server.Close()

	client := NewClient(
		WithIdentityBaseURL(server.URL+"/v1/accounts"),
		WithHTTPClient(server.Client()),
	)

	_, err := client.Auth.LookupAccount(context.Background(), "stale-token")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsInvalidToken(err) {
		t.Fatalf("IsInvalidToken() = false for %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err type = %T", err)
	}
	if apiErr.Code != 400 {
		t.Fatalf("Code = %d, want 400", apiErr.Code)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Reason != "invalid" {
		t.Fatalf("Details = %+v", apiErr.Details)
	}
}

func TestRefreshIDToken_InvalidRefreshToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_REFRESH_TOKEN"}}`))
	}))
	defer server.Close()

	client := NewClient(
		WithSecureTokenURL(server.URL+"/v1/token"),
		WithHTTPClient(server.Client()),
	)

	_, err := client.Auth.RefreshIDToken(context.Background(), "revoked")
	if !IsInvalidToken(err) {
		t.Fatalf("IsInvalidToken() = false for %v", err)
	}
}

func TestIdentityError_GenericMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"OPERATION_NOT_ALLOWED"}}`))
	}))
	defer server.Close()

	client := NewClient(
		WithIdentityBaseURL(server.URL+"/v1/accounts"),
		WithHTTPClient(server.Client()),
	)

	_, err := client.Auth.CreateAnonymousAccount(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if IsInvalidToken(err) {
		t.Fatalf("IsInvalidToken() = true for %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err type = %T", err)
	}
	if apiErr.Type != ErrInvalidRequest {
		t.Fatalf("Type = %v, want %v", apiErr.Type, ErrInvalidRequest)
	}
	if apiErr.Message != "OPERATION_NOT_ALLOWED" {
		t.Fatalf("Message = %q", apiErr.Message)
	}
}

func TestIdentityError_AuthenticationStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	client := NewClient(
		WithIdentityBaseURL(server.URL+"/v1/accounts"),
		WithHTTPClient(server.Client()),
	)

	_, err := client.Auth.CreateAnonymousAccount(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err type = %T", err)
	}
	if apiErr.Type != ErrAuthentication {
		t.Fatalf("Type = %v, want %v", apiErr.Type, ErrAuthentication)
	}
	if apiErr.Code != 403 || apiErr.Message != "PERMISSION_DENIED" {
		t.Fatalf("err = %+v", apiErr)
	}
}

func TestIdentityError_NonJSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(
		WithIdentityBaseURL(server.URL+"/v1/accounts"),
		WithHTTPClient(server.Client()),
	)

	_, err := client.Auth.CreateAnonymousAccount(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err type = %T", err)
	}
	if apiErr.Type != ErrAPI || apiErr.Code != 500 {
		t.Fatalf("err = %+v", apiErr)
	}
}

func TestAuthTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	httpClient := server.Client()
	url := server.URL
	server.Close()

	client := NewClient(
		WithAPIKey("super-secret"),
		WithIdentityBaseURL(url+"/v1/accounts"),
		WithHTTPClient(httpClient),
	)

	_, err := client.Auth.CreateAnonymousAccount(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err type = %T, want *TransportError", err)
	}
	if transportErr.Op != http.MethodPost {
		t.Fatalf("Op = %q", transportErr.Op)
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Fatalf("error message leaked the API key: %s", err)
	}
}
