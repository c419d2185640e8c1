// Package session owns the operator's authentication state: the bearer token,
// the current user, and the active listener profile.
//
// State changes are last-write-wins. Login, Register, Logout and Refresh are
// serialised against each other; Clear is not, so the health monitor can
// invalidate a session while a login is in flight.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/naveenspark/mulic2/internal/platform/retry"
	"github.com/naveenspark/mulic2/internal/storage"
	"github.com/naveenspark/mulic2/pkg/client"
	"github.com/naveenspark/mulic2/pkg/domain"
)

// Phase is the session manager's lifecycle state.
type Phase int

const (
	PhaseLoggedOut Phase = iota
	PhaseLoggingIn
	PhaseLoggedIn
	PhaseRefreshing
)

func (p Phase) String() string {
	switch p {
	case PhaseLoggedOut:
		return "logged-out"
	case PhaseLoggingIn:
		return "logging-in"
	case PhaseLoggedIn:
		return "logged-in"
	case PhaseRefreshing:
		return "refreshing"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

var (
	// ErrBackendUnavailable is returned when the liveness pre-check fails.
	ErrBackendUnavailable = errors.New("backend server is not available, restart the MuliC2 server and try again")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionInvalidated is returned by LoadProfile when it had to clear the session.
	ErrSessionInvalidated = errors.New("session invalidated")
)

// HealthChecker is the slice of the health monitor the manager depends on.
type HealthChecker interface {
	Check(ctx context.Context) bool
	Available() bool
}

// Session is a snapshot of the authentication state.
type Session struct {
	Token string
	User  *domain.User
}

// Options tunes the profile-load retry loop and startup.
type Options struct {
	ProfileAttempts int
	ProfileBackoff  time.Duration // linear step: wait attempt × step
	ProfileTimeout  time.Duration // per attempt
	StartupDelay    time.Duration
	Clock           clockwork.Clock
}

// DefaultOptions returns the production tuning: 3 attempts, 1s linear
// backoff, 3s per attempt, 500ms startup delay.
func DefaultOptions() Options {
	return Options{
		ProfileAttempts: 3,
		ProfileBackoff:  time.Second,
		ProfileTimeout:  3 * time.Second,
		StartupDelay:    500 * time.Millisecond,
		Clock:           clockwork.NewRealClock(),
	}
}

// Manager owns the session. Create one per process with NewManager.
type Manager struct {
	api    *client.Client
	store  storage.Store
	health HealthChecker
	opts   Options

	opMu sync.Mutex // single in-flight login/register/logout/refresh

	mu            sync.RWMutex
	token         string
	user          *domain.User
	phase         Phase
	activeProfile string

	listenersMu sync.Mutex
	listeners   []func(Session)
}

// NewManager creates the manager and wipes any persisted session: sessions
// never survive a restart, the operator always logs in fresh.
func NewManager(api *client.Client, store storage.Store, health HealthChecker, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ProfileAttempts < 1 {
		opts.ProfileAttempts = 1
	}
	m := &Manager{
		api:    api.WithToken(""),
		store:  store,
		health: health,
		opts:   opts,
	}
	m.removePersisted()
	return m
}

// OnChange registers fn to run after every install or clear.
func (m *Manager) OnChange(fn func(Session)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Session {
	s := Session{Token: m.token}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// Phase returns the lifecycle state.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Token returns the bearer token, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// CurrentUser returns a copy of the current user, or nil.
func (m *Manager) CurrentUser() *domain.User {
	return m.Snapshot().User
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

// Established reports whether both token and user are present.
func (m *Manager) Established() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.user != nil
}

// IsAdmin reports whether the current user holds the admin role.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.IsAdmin()
}

// API returns a client bound to the current token.
func (m *Manager) API() *client.Client {
	return m.api.WithToken(m.Token())
}

// ActiveProfile returns the persisted active listener profile ID.
func (m *Manager) ActiveProfile() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeProfile
}

// SetActiveProfile records the selected listener profile for this session.
func (m *Manager) SetActiveProfile(id string) error {
	m.mu.Lock()
	if m.token == "" {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.activeProfile = id
	m.mu.Unlock()

	if err := m.store.Set(storage.KeyActiveProfileID, id); err != nil {
		return fmt.Errorf("session.SetActiveProfile: %w", err)
	}
	return nil
}

// Login checks backend liveness, submits credentials, and installs the
// returned token and user. Errors from the backend keep the server's message;
// use client.Message to display it.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.health.Check(ctx) {
		return fmt.Errorf("session.Login: %w", ErrBackendUnavailable)
	}

	m.setPhase(PhaseLoggingIn)
	resp, err := m.api.Login(ctx, creds)
	if err != nil {
		m.settlePhase()
		return fmt.Errorf("session.Login: %w", err)
	}
	if resp.Token == "" {
		m.settlePhase()
		return errors.New("session.Login: response carried no token")
	}

	m.install(resp.Token, &resp.User)
	slog.Info("Operator logged in", "username", resp.User.Username, "role", resp.User.Role)
	return nil
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.health.Check(ctx) {
		return fmt.Errorf("session.Register: %w", ErrBackendUnavailable)
	}
	msg, err := m.api.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("session.Register: %w", err)
	}
	slog.Info("Registration successful", "username", req.Username, "message", msg)
	return nil
}

// Logout notifies the backend when it can and always clears local state.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if token := m.Token(); token != "" && m.health.Available() {
		if err := m.api.WithToken(token).Logout(ctx); err != nil {
			slog.Warn("Logout notification failed", "error", err)
		}
	}
	m.Clear()
}

// Refresh trades the token for a fresh one in a single attempt. On failure
// it returns false and leaves the session untouched.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	token := m.Token()
	if token == "" {
		return false
	}
	if !m.health.Available() {
		slog.Warn("Backend is unavailable, skipping token refresh")
		return false
	}

	m.setPhase(PhaseRefreshing)
	resp, err := m.api.WithToken(token).Refresh(ctx)
	if err != nil || resp.Token == "" {
		m.settlePhase()
		slog.Warn("Token refresh failed", "error", err)
		return false
	}

	m.mu.Lock()
	if m.token != token {
		// Cleared or replaced while the refresh was in flight.
		m.mu.Unlock()
		m.settlePhase()
		return false
	}
	m.mu.Unlock()

	m.install(resp.Token, &resp.User)
	return true
}

// LoadProfile re-fetches the current user. It is a no-op without a token or
// while the backend is believed unavailable. Network errors, timeouts and
// non-401 HTTP errors are retried with linear backoff; a 401 clears the
// session at once; exhausted retries or any other error clear it too.
func (m *Manager) LoadProfile(ctx context.Context) error {
	token := m.Token()
	if token == "" {
		return nil
	}
	if !m.health.Available() {
		slog.Warn("Backend is unavailable, skipping profile load")
		return nil
	}

	api := m.api.WithToken(token)
	policy := retry.Policy{
		MaxAttempts:    m.opts.ProfileAttempts,
		Backoff:        retry.Linear(m.opts.ProfileBackoff),
		AttemptTimeout: m.opts.ProfileTimeout,
		Clock:          m.opts.Clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Profile load attempt failed", "attempt", attempt, "backoff", backoff.String(), "error", err)
		},
	}

	user, err := retry.Do(ctx, policy, classifyProfileError, func(ctx context.Context) (*domain.User, error) {
		return api.Profile(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("session.LoadProfile: %w", ctx.Err())
		}
		slog.Warn("Profile load failed, clearing session", "error", err)
		m.clearIfToken(token)
		return fmt.Errorf("session.LoadProfile: %w: %w", ErrSessionInvalidated, err)
	}

	m.mu.Lock()
	if m.token != token {
		m.mu.Unlock()
		return nil
	}
	m.user = user
	m.mu.Unlock()
	m.persistUser(user)
	m.notify()
	return nil
}

func classifyProfileError(err error) retry.Action {
	var httpErr *client.HTTPError
	switch {
	case client.IsStatus(err, 401):
		return retry.Stop
	case errors.As(err, &httpErr):
		return retry.Retry
	case client.IsTransport(err):
		return retry.Retry
	default:
		return retry.Stop
	}
}

// Init runs once at startup: after StartupDelay it loads the profile if a
// token is held. Failures clear the session rather than propagate.
func (m *Manager) Init(ctx context.Context) {
	if !m.IsAuthenticated() {
		return
	}
	select {
	case <-m.opts.Clock.After(m.opts.StartupDelay):
	case <-ctx.Done():
		return
	}
	if err := m.LoadProfile(ctx); err != nil {
		slog.Warn("Session init failed", "error", err)
	}
}

// Clear drops the session and its persisted keys. It never fails the caller.
func (m *Manager) Clear() {
	m.mu.Lock()
	wasSet := m.token != "" || m.user != nil
	m.token = ""
	m.user = nil
	m.activeProfile = ""
	m.phase = PhaseLoggedOut
	m.mu.Unlock()

	m.removePersisted()
	if wasSet {
		slog.Info("Session cleared")
	}
	m.notify()
}

func (m *Manager) clearIfToken(token string) {
	if m.Token() != token {
		return
	}
	m.Clear()
}

func (m *Manager) install(token string, user *domain.User) {
	u := *user
	m.mu.Lock()
	m.token = token
	m.user = &u
	m.phase = PhaseLoggedIn
	m.mu.Unlock()

	if err := m.store.Set(storage.KeyAuthToken, token); err != nil {
		slog.Warn("Persist token failed", "error", err)
	}
	m.persistUser(&u)
	m.notify()
}

func (m *Manager) persistUser(u *domain.User) {
	data, err := json.Marshal(u)
	if err != nil {
		slog.Warn("Encode user failed", "error", err)
		return
	}
	if err := m.store.Set(storage.KeyUserData, string(data)); err != nil {
		slog.Warn("Persist user failed", "error", err)
	}
}

func (m *Manager) removePersisted() {
	if err := m.store.Remove(storage.KeyAuthToken, storage.KeyUserData, storage.KeyActiveProfileID); err != nil {
		slog.Warn("Remove persisted session failed", "error", err)
	}
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// settlePhase returns to the resting phase implied by the current token.
func (m *Manager) settlePhase() {
	m.mu.Lock()
	if m.token != "" {
		m.phase = PhaseLoggedIn
	} else {
		m.phase = PhaseLoggedOut
	}
	m.mu.Unlock()
}

func (m *Manager) notify() {
	s := m.Snapshot()
	m.listenersMu.Lock()
	listeners := make([]func(Session), len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
