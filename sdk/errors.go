package sesame

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Error represents an identity or voice API error.
type Error struct {
	Type    ErrorType     `json:"type"`
	Message string        `json:"message"`
	Code    int           `json:"code,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail is one entry of the identity API's error list.
type ErrorDetail struct {
	Message string `json:"message"`
	Domain  string `json:"domain,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code: %d)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrInvalidToken   ErrorType = "invalid_token_error"
	ErrAPI            ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewInvalidTokenError creates an invalid token error.
func NewInvalidTokenError(message string) *Error {
	return &Error{
		Type:    ErrInvalidToken,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsInvalidToken reports whether err is an invalid or expired token error.
// Callers typically react by refreshing or recreating credentials.
func IsInvalidToken(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == ErrInvalidToken
}

// identityErrorResponse is the error envelope the identity endpoints return.
type identityErrorResponse struct {
	Error struct {
		Code    int           `json:"code"`
		Message string        `json:"message"`
		Errors  []ErrorDetail `json:"errors"`
	} `json:"error"`
}

// Token-rejection messages the identity API uses. Matched exactly; other
// messages stay generic API errors.
const (
	identityMsgInvalidIDToken      = "INVALID_ID_TOKEN"
	identityMsgInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
)

// parseIdentityError turns a non-2xx identity response into an *Error.
func parseIdentityError(resp *http.Response) *Error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Type:    ErrAPI,
			Message: fmt.Sprintf("failed to read error response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	var identityErr identityErrorResponse
	if err := json.Unmarshal(body, &identityErr); err != nil || identityErr.Error.Message == "" {
		return &Error{
			Type:    ErrAPI,
			Message: fmt.Sprintf("unexpected response (HTTP %d): %s", resp.StatusCode, body),
			Code:    resp.StatusCode,
		}
	}

	switch identityErr.Error.Message {
	case identityMsgInvalidIDToken, identityMsgInvalidRefreshToken:
		return &Error{
			Type:    ErrInvalidToken,
			Message: "invalid or expired ID token",
			Code:    identityErr.Error.Code,
			Details: identityErr.Error.Errors,
		}
	}

	var apiErr *Error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr = NewAuthenticationError(identityErr.Error.Message)
	case http.StatusBadRequest:
		apiErr = NewInvalidRequestError(identityErr.Error.Message)
	default:
		apiErr = NewAPIError(identityErr.Error.Message)
	}
	apiErr.Code = identityErr.Error.Code
	apiErr.Details = identityErr.Error.Errors
	return apiErr
}

// TransportError represents transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, etc.) while talking to the identity or
// voice endpoints.
//
// Use errors.As with a *TransportError target to distinguish transport
// failures from canonical API errors (*Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURL(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// redactURL strips credentials from a URL before it lands in an error
// message: userinfo, plus the query string, which carries the bearer token on
// voice connects and the API key on identity calls.
func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	parsed.RawQuery = ""
	return parsed.String()
}
