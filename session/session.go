// Package session owns the authenticated identity and its token pair. The
// Manager is the only writer of the durable session keys; everything else
// reads the access token through api.TokenSource.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"bookmybox-cli/api"

	"golang.org/x/sync/singleflight"
)

// Durable keys of the persisted session.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Store is durable string storage. storage.KV satisfies it.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Gateway is the subset of the backend the session needs.
type Gateway interface {
	Login(ctx context.Context, email, password string) (api.LoginResponse, error)
	Register(ctx context.Context, form api.Registration) (api.RegisterResponse, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (api.Tokens, error)
	GetProfile(ctx context.Context) (json.RawMessage, error)
	UpdateProfile(ctx context.Context, fields map[string]any) (json.RawMessage, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// State is a point-in-time copy of the session.
type State struct {
	User         *api.User
	AccessToken  string
	RefreshToken string
	Loading      bool
	LastError    string
}

type Manager struct {
	gateway Gateway
	store   Store
	logger  *slog.Logger

	mu        sync.Mutex
	user      *api.User
	userJSON  json.RawMessage
	access    string
	refresh   string
	inflight  int
	lastError string

	// refreshes is keyed by the refresh token being exchanged.
	refreshes singleflight.Group
}

func NewManager(gateway Gateway, store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		gateway: gateway,
		store:   store,
		logger:  logger.With("component", "session"),
	}
}

// Restore loads the persisted tokens and cached user JSON without touching
// the network. The identity stays unconfirmed until FetchCurrentUser succeeds.
func (m *Manager) Restore() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	read := func(key string) string {
		value, _, err := m.store.Get(key)
		if err != nil {
			errs = append(errs, err)
		}
		return value
	}
	m.access = read(KeyAccessToken)
	m.refresh = read(KeyRefreshToken)
	if raw := read(KeyUser); raw != "" && json.Valid([]byte(raw)) {
		m.userJSON = json.RawMessage(raw)
	}
	return errors.Join(errs...)
}

// Hydrate restores the persisted session and confirms it with a profile fetch.
func (m *Manager) Hydrate(ctx context.Context) *api.User {
	if err := m.Restore(); err != nil {
		m.logger.Warn("restore session", "error", err)
	}
	if m.AccessToken() == "" {
		return nil
	}
	return m.FetchCurrentUser(ctx)
}

// CachedUser decodes the last persisted user record, confirmed or not.
func (m *Manager) CachedUser() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user != nil {
		copied := *m.user
		return &copied
	}
	user, err := decodeUser(m.userJSON)
	if err != nil {
		return nil
	}
	return user
}

func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := State{
		AccessToken:  m.access,
		RefreshToken: m.refresh,
		Loading:      m.inflight > 0,
		LastError:    m.lastError,
	}
	if m.user != nil {
		copied := *m.user
		state.User = &copied
	}
	return state
}

func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	m.begin()
	defer m.end()

	resp, err := m.gateway.Login(ctx, email, password)
	if err != nil {
		return nil, m.fail("login", err, "An unexpected error occurred during login.")
	}
	user, err := decodeUser(resp.User)
	if err != nil {
		return nil, m.fail("login", err, "An unexpected error occurred during login.")
	}
	m.establish(resp.Access, resp.Refresh, resp.User, user)
	m.logger.Info("logged in", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (m *Manager) Signup(ctx context.Context, form api.Registration) (*api.User, error) {
	m.begin()
	defer m.end()

	resp, err := m.gateway.Register(ctx, form)
	if err != nil {
		return nil, m.fail("signup", err, "An unexpected error occurred during signup.")
	}
	user, err := decodeUser(resp.User)
	if err != nil {
		return nil, m.fail("signup", err, "An unexpected error occurred during signup.")
	}
	m.establish(resp.Tokens.Access, resp.Tokens.Refresh, resp.User, user)
	m.logger.Info("signed up", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// FetchCurrentUser confirms the identity behind the access token. It returns
// nil on any failure. A 401 that survives the gateway's refresh-and-replay
// ends the session; other failures leave it intact.
func (m *Manager) FetchCurrentUser(ctx context.Context) *api.User {
	if m.AccessToken() == "" {
		m.mu.Lock()
		m.user = nil
		m.mu.Unlock()
		return nil
	}

	m.begin()
	defer m.end()

	raw, err := m.gateway.GetProfile(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			m.logger.Warn("profile rejected after refresh, logging out", "error", err)
			m.mu.Lock()
			message := m.lastError
			m.mu.Unlock()
			if message == "" {
				message = "Session expired. Please log in again."
			}
			m.Logout()
			m.mu.Lock()
			m.lastError = message
			m.mu.Unlock()
			return nil
		}
		m.logger.Warn("fetch profile", "error", err)
		m.mu.Lock()
		m.lastError = ""
		m.mu.Unlock()
		return nil
	}
	user, err := decodeUser(raw)
	if err != nil {
		m.logger.Warn("decode profile", "error", err)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.userJSON = raw
	m.persist(KeyUser, string(raw))
	copied := *user
	return &copied
}

// Refresh exchanges the refresh token for a new access token. Callers that
// arrive while an exchange of the same refresh token is in flight share its
// result. A failed exchange logs the session out, unless the token pair was
// replaced while it was in flight.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	refresh := m.refresh
	m.mu.Unlock()

	if refresh == "" {
		m.logger.Warn("no refresh token available")
		m.Logout()
		return false
	}

	result, _, shared := m.refreshes.Do(refresh, func() (any, error) {
		return m.exchange(ctx, refresh), nil
	})
	if shared {
		m.logger.Debug("joined in-flight refresh")
	}
	return result.(bool)
}

func (m *Manager) exchange(ctx context.Context, refresh string) bool {
	tokens, err := m.gateway.RefreshAccessToken(ctx, refresh)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refresh != refresh {
		// Logged out, re-authenticated or rotated while the exchange was in
		// flight. The newer pair stands either way.
		m.logger.Debug("token pair replaced during refresh", "error", err)
		return m.access != ""
	}

	if err != nil {
		message := "Failed to refresh session."
		if api.IsUnauthorized(err) {
			message = "Session expired. Please log in again."
		}
		m.logger.Warn("refresh access token", "error", err)
		m.clearLocked()
		m.lastError = message
		return false
	}

	m.access = tokens.Access
	m.persist(KeyAccessToken, tokens.Access)
	if tokens.Refresh != "" && tokens.Refresh != refresh {
		m.refresh = tokens.Refresh
		m.persist(KeyRefreshToken, tokens.Refresh)
	}
	m.logger.Debug("access token refreshed", "rotated", tokens.Refresh != "")
	return true
}

// UpdateProfile sends a partial update and merges the echoed fields into the
// cached user, so fields missing from the response are kept.
func (m *Manager) UpdateProfile(ctx context.Context, fields map[string]any) (*api.User, error) {
	m.begin()
	defer m.end()

	partial, err := m.gateway.UpdateProfile(ctx, fields)
	if err != nil {
		return nil, m.fail("update profile", err, "An unexpected error occurred during the profile update.")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.userJSON
	if len(base) == 0 {
		if stored, ok, err := m.store.Get(KeyUser); err == nil && ok {
			base = json.RawMessage(stored)
		}
	}
	merged, err := MergeUser(base, partial)
	if err != nil {
		return nil, m.failLocked("update profile", err, "An unexpected error occurred during the profile update.")
	}
	user, err := decodeUser(merged)
	if err != nil {
		return nil, m.failLocked("update profile", err, "An unexpected error occurred during the profile update.")
	}
	m.user = user
	m.userJSON = merged
	m.persist(KeyUser, string(merged))
	copied := *user
	return &copied, nil
}

func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	m.begin()
	defer m.end()

	if err := m.gateway.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return m.fail("change password", err, "Failed to change password.")
	}
	return nil
}

// Logout clears the identity, both tokens and any pending error from memory
// and durable storage. Calling it repeatedly is harmless.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// clearLocked must be called with mu held.
func (m *Manager) clearLocked() {
	m.user = nil
	m.userJSON = nil
	m.access = ""
	m.refresh = ""
	m.lastError = ""
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Error("clear session key", "key", key, "error", err)
		}
	}
}

func (m *Manager) establish(access, refresh string, raw json.RawMessage, user *api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	m.refresh = refresh
	m.user = user
	m.userJSON = raw
	m.lastError = ""
	m.persist(KeyAccessToken, access)
	m.persist(KeyRefreshToken, refresh)
	m.persist(KeyUser, string(raw))
}

// persist must be called with mu held.
func (m *Manager) persist(key, value string) {
	if err := m.store.Set(key, value); err != nil {
		m.logger.Error("persist session key", "key", key, "error", err)
	}
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.inflight++
	m.lastError = ""
	m.mu.Unlock()
}

func (m *Manager) end() {
	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()
}

func (m *Manager) fail(op string, err error, fallback string) *api.Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failLocked(op, err, fallback)
}

func (m *Manager) failLocked(op string, err error, fallback string) *api.Failure {
	failure := api.Normalize(err, fallback)
	m.logger.Warn(op+" failed", "error", err)
	m.lastError = failure.Message
	return failure
}

func decodeUser(raw json.RawMessage) (*api.User, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing user record")
	}
	var user api.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MergeUser overlays the fields of partial onto base. Keys absent from
// partial keep their base value; unknown keys survive untouched.
func MergeUser(base, partial json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, err
		}
		if merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}
	var update map[string]json.RawMessage
	if err := json.Unmarshal(partial, &update); err != nil {
		return nil, err
	}
	for key, value := range update {
		merged[key] = value
	}
	return json.Marshal(merged)
}
