package sesame

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// ErrNoToken indicates that no token record has been persisted yet.
var ErrNoToken = errors.New("sesame: no token record found")

// TokenRecord is the persisted identity of an anonymous account.
type TokenRecord struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    string `json:"expires_in"`
	Timestamp    int64  `json:"timestamp"`
}

// Age returns how long ago the record was obtained, or zero when unknown.
func (r *TokenRecord) Age() time.Duration {
	if r.Timestamp == 0 {
		return 0
	}
	return time.Since(time.Unix(r.Timestamp, 0))
}

// IsExpired reports whether the record has outlived its expires_in window.
// This is a local hint for display; actual validity is the server's call and
// TokenManager always probes it.
func (r *TokenRecord) IsExpired() bool {
	if r.Timestamp == 0 || r.ExpiresIn == "" {
		return false
	}
	secs, err := strconv.ParseInt(r.ExpiresIn, 10, 64)
	if err != nil {
		return false
	}
	return time.Now().After(time.Unix(r.Timestamp+secs, 0))
}

// TokenStore manages token record persistence.
type TokenStore interface {
	// Load retrieves the record from storage.
	Load() (*TokenRecord, error)
	// Save persists the record to storage.
	Save(record *TokenRecord) error
	// Clear deletes the persisted record.
	Clear() error
	// Path returns the path to the backing file, if any.
	Path() string
}

// DefaultTokenPath is the default token file path, relative to the user home
// directory.
const DefaultTokenPath = ".sesame/token.json"

// FileTokenStore implements TokenStore using a JSON file.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a file-based token store. If path is empty, the
// default path (~/.sesame/token.json) is used.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		path = DefaultTokenFilePath()
	}
	return &FileTokenStore{path: path}
}

// DefaultTokenFilePath returns the default token file path.
func DefaultTokenFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultTokenPath
	}
	return filepath.Join(home, DefaultTokenPath)
}

// Path returns the path to the token file.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load retrieves the record from the JSON file.
func (s *FileTokenStore) Load() (*TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, err
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Save persists the record to the JSON file.
func (s *FileTokenStore) Save(record *TokenRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Clear deletes the token file. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TokenManager layers caching on the identity operations: it keeps one token
// record, validates it against the server before handing it out, and
// refreshes or recreates it as needed. Safe for concurrent use.
type TokenManager struct {
	auth   *AuthService
	store  TokenStore
	logger *slog.Logger

	mu     sync.Mutex
	record *TokenRecord
}

// NewTokenManager creates a manager for client's identity. A nil store keeps
// the record in memory only. Any previously persisted record is loaded
// immediately; a corrupt store is logged and treated as empty.
func NewTokenManager(client *Client, store TokenStore) *TokenManager {
	m := &TokenManager{
		auth:   client.Auth,
		store:  store,
		logger: client.logger,
	}
	if store != nil {
		record, err := store.Load()
		switch {
		case err == nil:
			m.record = record
		case errors.Is(err, ErrNoToken):
		default:
			m.logger.Warn("failed to load token record", "path", store.Path(), "error", err)
		}
	}
	return m
}

// GetValidToken returns an ID token that the identity server currently
// accepts. The cached token is validated first; an invalid one is refreshed
// when a refresh token is available. When validation itself is unreachable
// the cached token is assumed valid rather than churning accounts on a flaky
// network. forceNew skips the cache and provisions a fresh anonymous account.
//
// A refresh failure surfaces as an invalid-token error instead of silently
// creating a new account; the caller decides whether to abandon the identity.
func (m *TokenManager) GetValidToken(ctx context.Context, forceNew bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if forceNew {
		m.logger.Debug("forcing new account creation")
		return m.createAccount(ctx)
	}
	if m.record == nil || m.record.IDToken == "" {
		m.logger.Debug("no cached token, creating new account")
		return m.createAccount(ctx)
	}

	expired, err := m.tokenExpired(ctx, m.record.IDToken)
	if err != nil {
		m.logger.Warn("token validation unavailable, assuming cached token is valid", "error", err)
		return m.record.IDToken, nil
	}
	if !expired {
		m.logger.Debug("cached token is valid", "user_id", m.record.UserID)
		return m.record.IDToken, nil
	}

	m.logger.Debug("cached token rejected by server")
	if m.record.RefreshToken == "" {
		return "", NewInvalidTokenError("token expired and no refresh token available")
	}
	return m.refresh(ctx)
}

// Refresh exchanges the cached refresh token for a fresh ID token without
// probing validity first, and persists the result. Returns ErrNoToken when
// no refreshable record is cached.
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil || m.record.RefreshToken == "" {
		return "", ErrNoToken
	}
	return m.refresh(ctx)
}

// ClearTokens drops the cached record and deletes the persisted one.
func (m *TokenManager) ClearTokens() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record = nil
	if m.store == nil {
		return nil
	}
	return m.store.Clear()
}

// Record returns a copy of the cached token record, or nil when none exists.
func (m *TokenManager) Record() *TokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return nil
	}
	record := *m.record
	return &record
}

// tokenExpired probes token validity via account lookup. A rejection means
// expired; any other failure is returned so the caller can decide.
func (m *TokenManager) tokenExpired(ctx context.Context, idToken string) (bool, error) {
	_, err := m.auth.LookupAccount(ctx, idToken)
	if err == nil {
		return false, nil
	}
	if IsInvalidToken(err) {
		return true, nil
	}
	return false, err
}

func (m *TokenManager) createAccount(ctx context.Context) (string, error) {
	resp, err := m.auth.CreateAnonymousAccount(ctx)
	if err != nil {
		return "", err
	}
	m.record = &TokenRecord{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.LocalID,
		ExpiresIn:    resp.ExpiresIn,
		Timestamp:    time.Now().Unix(),
	}
	m.persist()
	return resp.IDToken, nil
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	resp, err := m.auth.RefreshIDToken(ctx, m.record.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed", "error", err)
		return "", NewInvalidTokenError("token refresh failed")
	}
	m.record = &TokenRecord{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.UserID,
		ExpiresIn:    resp.ExpiresIn,
		Timestamp:    time.Now().Unix(),
	}
	m.persist()
	m.logger.Debug("token refreshed", "user_id", resp.UserID)
	return resp.IDToken, nil
}

// persist saves the current record. Persistence failures are logged, never
// fatal.
func (m *TokenManager) persist() {
	if m.store == nil {
		return
	}
	if err := m.store.Save(m.record); err != nil {
		m.logger.Warn("failed to save token record", "path", m.store.Path(), "error", err)
	}
}
