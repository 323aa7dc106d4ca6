package sesame

// Identity endpoint payloads. Field names follow the wire exactly: signup and
// lookup speak the identity toolkit's camelCase, the refresh endpoint speaks
// OAuth-style snake_case.

// SignupResponse is the response to an anonymous account signup.
type SignupResponse struct {
	Kind         string `json:"kind"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

// RefreshTokenResponse is the response to a token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// AccountInfo is one user entry of a lookup response.
type AccountInfo struct {
	LocalID       string `json:"localId"`
	LastLoginAt   string `json:"lastLoginAt"`
	CreatedAt     string `json:"createdAt"`
	LastRefreshAt string `json:"lastRefreshAt"`
}

// LookupResponse is the response to an account lookup. A valid ID token
// yields exactly one user.
type LookupResponse struct {
	Kind  string        `json:"kind"`
	Users []AccountInfo `json:"users"`
}
