package authclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/authclient/clock"
	"github.com/MrEthical07/authclient/dto"
	"github.com/MrEthical07/authclient/internal/signal"
	"github.com/MrEthical07/authclient/storage"
	"github.com/MrEthical07/authclient/transport"
	"golang.org/x/sync/singleflight"
)

// ErrSessionChanged is returned by RefreshToken, GetCurrentUser and
// VerifyEmail when the session was ended or replaced while the call was in
// flight. The result is discarded.
var ErrSessionChanged = errors.New("session changed during request")

const (
	flightRefresh = "refresh"
	flightLogout  = "logout"
)

// Manager owns the client-side session: the current user, persisted tokens,
// automatic renewal and post-operation navigation.
//
// Methods are safe for concurrent use. State changes are published to
// subscribers synchronously while the Manager's lock is held, so subscribers
// must not call methods that change the session.
type Manager struct {
	cfg        Config
	logger     *slog.Logger
	clock      clock.Clock
	nav        Navigator
	api        Transport
	tokens     *storage.Tokens
	closer     io.Closer
	authorized *http.Client
	metrics    *Metrics
	events     *eventDispatcher

	flights singleflight.Group

	mu      sync.Mutex
	state   *signal.Cell[Session]
	pending int
	// epoch changes whenever a session starts or ends.
	epoch uint64
	// opaque strategy only
	expiresAt time.Time
	renewal   renewalState
	closed    bool
	bg        sync.WaitGroup
}

/*
====================================
STATE
====================================
*/

// Session returns the current state snapshot.
func (m *Manager) Session() Session {
	return m.state.Get()
}

// User returns a copy of the current user, or nil when anonymous.
func (m *Manager) User() *User {
	return cloneUser(m.state.Get().User)
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool { return m.state.Get().IsAuthenticated() }

// IsEmailVerified reports whether the current user's email is verified.
func (m *Manager) IsEmailVerified() bool { return m.state.Get().IsEmailVerified() }

// IsLoading reports whether an operation that toggles loading is in flight.
func (m *Manager) IsLoading() bool { return m.state.Get().IsLoading }

// UserRoles returns the current user's roles, empty when anonymous.
func (m *Manager) UserRoles() []string { return m.state.Get().UserRoles() }

// DisplayName returns the user's name, else email, else "User".
func (m *Manager) DisplayName() string { return m.state.Get().DisplayName() }

// HasRole reports whether the current user holds role.
func (m *Manager) HasRole(role string) bool {
	return m.state.Get().HasRole(role)
}

// HasAnyRole reports whether the user holds at least one of roles. False for
// an empty list.
func (m *Manager) HasAnyRole(roles ...string) bool {
	return m.state.Get().HasAnyRole(roles...)
}

// HasAllRoles reports whether the user holds every one of roles. True for an
// empty list.
func (m *Manager) HasAllRoles(roles ...string) bool {
	return m.state.Get().HasAllRoles(roles...)
}

// Subscribe calls fn after every change of the user or loading flag.
func (m *Manager) Subscribe(fn func(Session)) (cancel func()) {
	return m.state.Subscribe(fn)
}

// SubscribeAuthenticated calls fn whenever IsAuthenticated changes.
func (m *Manager) SubscribeAuthenticated(fn func(bool)) (cancel func()) {
	return signal.Derive(m.state, Session.IsAuthenticated).Subscribe(fn)
}

// AccessToken returns the stored access token.
func (m *Manager) AccessToken() (string, bool) {
	return m.tokens.AccessToken()
}

// AuthorizedClient returns an http.Client that attaches the access token to
// requests bound for the configured API URL.
func (m *Manager) AuthorizedClient() *http.Client {
	return m.authorized
}

// Config returns the resolved configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Navigator returns the router used for post-operation navigation.
func (m *Manager) Navigator() Navigator {
	return m.nav
}

// MetricsSnapshot returns the current counter and histogram values.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// EventsDropped returns the number of session events lost to backpressure.
func (m *Manager) EventsDropped() uint64 {
	return m.events.Dropped()
}

/*
====================================
OPERATIONS
====================================
*/

// Login authenticates with email and password, persists the session and
// navigates to Redirects.AfterLogin.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	m.beginLoading()
	resp, err := m.api.Login(ctx, dto.LoginRequest{Email: email, Password: password})
	user, err := m.finishAuth(resp, err)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emit(ctx, EventLogin, "", err, nil)
		return nil, err
	}
	m.metrics.Inc(MetricLoginSuccess)
	m.emit(ctx, EventLogin, user.ID, nil, nil)
	m.nav.Navigate(m.cfg.Redirects.AfterLogin, nil)
	return cloneUser(user), nil
}

// Register creates an account and signs in with it. Fails with a
// *FeatureDisabledError when registration is disabled.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.cfg.Features.Registration {
		return nil, m.disabled(FeatureRegistration)
	}
	m.beginLoading()
	resp, err := m.api.Register(ctx, req)
	user, err := m.finishAuth(resp, err)
	if err != nil {
		m.metrics.Inc(MetricRegisterFailure)
		m.emit(ctx, EventRegister, "", err, nil)
		return nil, err
	}
	m.metrics.Inc(MetricRegisterSuccess)
	m.emit(ctx, EventRegister, user.ID, nil, nil)
	m.nav.Navigate(m.cfg.Redirects.AfterLogin, nil)
	return cloneUser(user), nil
}

// finishAuth ends the loading phase started by Login or Register and, on
// success, starts a new session from resp in the same critical section.
func (m *Manager) finishAuth(resp *AuthResponse, callErr error) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending--
	if callErr != nil {
		m.state.Set(m.withLoadingLocked())
		return nil, callErr
	}

	toks, user, err := m.mapAuthResponse(resp)
	if err == nil && user == nil {
		err = fmt.Errorf("%w: missing user", ErrInvalidAuthResponse)
	}
	if err != nil {
		m.state.Set(m.withLoadingLocked())
		return nil, err
	}

	m.epoch++
	m.renewal.immediate = false
	m.persistLocked(toks, user, true)
	m.publishLocked(user)
	return user, nil
}

// Logout ends the session. When a refresh token is stored the remote logout
// is attempted first; its failure is logged and ignored. Storage is cleared
// and the navigator sent to Redirects.AfterLogout in every case. Concurrent
// calls share one remote call.
func (m *Manager) Logout(ctx context.Context) {
	if m.checkOpen() != nil {
		return
	}
	_, _, _ = m.flights.Do(flightLogout, func() (any, error) {
		var userID string
		if u := m.state.Get().User; u != nil {
			userID = u.ID
		}
		if rt, ok := m.tokens.RefreshToken(); ok {
			if err := m.api.Logout(ctx, dto.RefreshTokenRequest{RefreshToken: rt}); err != nil {
				m.metrics.Inc(MetricLogoutRemoteFailure)
				m.logger.Warn("remote logout failed, clearing local session", "error", err)
			}
		}

		m.mu.Lock()
		m.clearLocked()
		m.mu.Unlock()

		m.metrics.Inc(MetricLogout)
		m.emit(ctx, EventLogout, userID, nil, nil)
		m.nav.Navigate(m.cfg.Redirects.AfterLogout, nil)
		return nil, nil
	})
}

// RefreshToken exchanges the stored refresh token for new credentials
// without navigating. On failure the session is cleared and the navigator
// sent to Redirects.AfterLogout. Concurrent calls share one network call.
func (m *Manager) RefreshToken(ctx context.Context) (Tokens, error) {
	if err := m.checkOpen(); err != nil {
		return Tokens{}, err
	}
	rt, ok := m.tokens.RefreshToken()
	if !ok {
		return Tokens{}, ErrNoRefreshToken
	}

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	v, err, shared := m.flights.Do(flightRefresh, func() (any, error) {
		return m.refresh(ctx, rt, epoch)
	})
	if shared {
		m.metrics.Inc(MetricRefreshShared)
	}
	if err != nil {
		return Tokens{}, err
	}
	return v.(Tokens), nil
}

func (m *Manager) refresh(ctx context.Context, rt string, epoch uint64) (Tokens, error) {
	resp, err := m.api.Refresh(ctx, dto.RefreshTokenRequest{RefreshToken: rt})

	var (
		toks Tokens
		user *User
	)
	if err == nil {
		toks, user, err = m.mapAuthResponse(resp)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return Tokens{}, ErrSessionChanged
	}
	if err != nil && errors.Is(err, context.Canceled) {
		m.mu.Unlock()
		return Tokens{}, err
	}
	if err != nil {
		m.clearLocked()
		m.mu.Unlock()

		m.metrics.Inc(MetricRefreshFailure)
		m.emit(ctx, EventRefresh, "", err, nil)
		m.nav.Navigate(m.cfg.Redirects.AfterLogout, nil)
		return Tokens{}, err
	}
	if user == nil {
		user = m.state.Get().User
	}
	m.persistLocked(toks, user, false)
	m.publishLocked(user)
	m.mu.Unlock()

	m.metrics.Inc(MetricRefreshSuccess)
	var userID string
	if user != nil {
		userID = user.ID
	}
	m.emit(ctx, EventRefresh, userID, nil, nil)
	return toks, nil
}

// ForgotPassword asks the API to send a reset email. The response is the
// same whether or not the address exists.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.cfg.Features.PasswordReset {
		return nil, m.disabled(FeaturePasswordReset)
	}
	m.beginLoading()
	resp, err := m.api.ForgotPassword(ctx, dto.ForgotPasswordRequest{Email: email})
	m.endLoading()
	if err != nil {
		return nil, err
	}
	m.metrics.Inc(MetricPasswordResetRequest)
	return resp, nil
}

// ResetPassword sets a new password using the token from a reset email. The
// current session is not changed.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.cfg.Features.PasswordReset {
		return nil, m.disabled(FeaturePasswordReset)
	}
	m.beginLoading()
	resp, err := m.api.ResetPassword(ctx, dto.ResetPasswordRequest{Token: token, NewPassword: newPassword})
	m.endLoading()
	if err != nil {
		return nil, err
	}
	m.metrics.Inc(MetricPasswordResetSuccess)
	m.emit(ctx, EventPasswordReset, "", nil, nil)
	return resp, nil
}

// ResendVerificationEmail asks the API to send another verification email.
// It does not touch the loading flag.
func (m *Manager) ResendVerificationEmail(ctx context.Context, email string) (*MessageResponse, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.cfg.Features.EmailVerification {
		return nil, m.disabled(FeatureEmailVerification)
	}
	resp, err := m.api.ResendVerification(ctx, dto.ResendVerificationRequest{Email: email})
	if err != nil {
		return nil, err
	}
	m.metrics.Inc(MetricVerificationResent)
	m.emit(ctx, EventVerificationResent, "", nil, nil)
	return resp, nil
}

// VerifyEmail confirms an email address. When the response carries a user it
// replaces the stored and in-memory user, unless the session changed while
// the call was in flight.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (*VerifyEmailResponse, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.cfg.Features.EmailVerification {
		return nil, m.disabled(FeatureEmailVerification)
	}
	epoch := m.beginLoading()
	resp, err := m.api.VerifyEmail(ctx, dto.VerifyEmailRequest{Token: token})

	var user *User
	if err == nil && resp != nil && hasJSONValue(resp.User) {
		user, err = m.cfg.UserMapper(resp.User)
		if err != nil {
			err = fmt.Errorf("%w: user: %v", ErrInvalidAuthResponse, err)
		}
	}

	m.mu.Lock()
	m.pending--
	if err == nil && user != nil && m.epoch != epoch {
		err = ErrSessionChanged
	}
	if err == nil && user != nil {
		m.tokens.SetUser(user)
		m.publishLocked(user)
	} else {
		m.state.Set(m.withLoadingLocked())
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	m.metrics.Inc(MetricEmailVerificationSuccess)
	var userID string
	if user != nil {
		userID = user.ID
	}
	m.emit(ctx, EventEmailVerified, userID, nil, nil)
	return resp, nil
}

// GetCurrentUser fetches the profile from the API and replaces the current
// user. Tokens are left untouched. The result is discarded with
// ErrSessionChanged when the session ended or changed meanwhile.
func (m *Manager) GetCurrentUser(ctx context.Context) (*User, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	raw, err := m.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	user, err := m.cfg.UserMapper(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInvalidAuthResponse, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidAuthResponse)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return nil, ErrSessionChanged
	}
	m.tokens.SetUser(user)
	m.publishLocked(user)
	m.mu.Unlock()

	m.metrics.Inc(MetricCurrentUserFetched)
	m.emit(ctx, EventCurrentUser, user.ID, nil, nil)
	return cloneUser(user), nil
}

// Close stops renewal, waits for background refreshes, flushes events and
// closes the storage backend. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancelRenewalLocked()
	m.mu.Unlock()

	m.bg.Wait()
	m.events.Close()
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

/*
====================================
INTERNALS
====================================
*/

func (m *Manager) hydrate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.tokens.User()
	if !ok {
		return
	}
	m.publishLocked(user)
}

// mapAuthResponse applies the configured mappers. user is nil when the
// response carries none.
func (m *Manager) mapAuthResponse(resp *AuthResponse) (Tokens, *User, error) {
	if resp == nil {
		return Tokens{}, nil, ErrInvalidAuthResponse
	}
	toks, err := m.cfg.TokenMapper(resp)
	if err != nil {
		return Tokens{}, nil, fmt.Errorf("%w: tokens: %v", ErrInvalidAuthResponse, err)
	}
	if toks.AccessToken == "" {
		return Tokens{}, nil, fmt.Errorf("%w: missing access token", ErrInvalidAuthResponse)
	}
	if !hasJSONValue(resp.User) {
		return toks, nil, nil
	}
	user, err := m.cfg.UserMapper(resp.User)
	if err != nil {
		return Tokens{}, nil, fmt.Errorf("%w: user: %v", ErrInvalidAuthResponse, err)
	}
	return toks, user, nil
}

// persistLocked writes credentials. A fresh session drops a stale refresh
// token when the response carries none; a refresh keeps the old one.
func (m *Manager) persistLocked(toks Tokens, user *User, fresh bool) {
	m.tokens.SetAccessToken(toks.AccessToken)
	switch {
	case toks.RefreshToken != "":
		m.tokens.SetRefreshToken(toks.RefreshToken)
	case fresh:
		m.tokens.RemoveRefreshToken()
	}
	if user != nil {
		m.tokens.SetUser(user)
	}
	if toks.ExpiresIn > 0 {
		m.expiresAt = m.clock.Now().Add(time.Duration(toks.ExpiresIn) * time.Second)
	} else {
		m.expiresAt = time.Time{}
	}
}

// clearLocked ends the session: storage, in-memory user and renewal.
func (m *Manager) clearLocked() {
	m.epoch++
	m.tokens.Clear()
	m.expiresAt = time.Time{}
	m.renewal.immediate = false
	m.publishLocked(nil)
}

// publishLocked sets the state cell and re-plans renewal.
func (m *Manager) publishLocked(user *User) {
	m.state.Set(Session{
		User:          cloneUser(user),
		IsLoading:     m.pending > 0,
		rolesDisabled: !m.cfg.Features.Roles,
	})
	m.scheduleRenewalLocked()
}

// beginLoading returns the session epoch at the start of the operation.
func (m *Manager) beginLoading() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending++
	m.state.Set(m.withLoadingLocked())
	return m.epoch
}

func (m *Manager) endLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
	m.state.Set(m.withLoadingLocked())
}

func (m *Manager) withLoadingLocked() Session {
	s := m.state.Get()
	s.IsLoading = m.pending > 0
	return s
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Manager) disabled(f Feature) error {
	m.metrics.Inc(MetricFeatureDisabled)
	return &FeatureDisabledError{Feature: f}
}

func (m *Manager) emit(ctx context.Context, typ EventType, userID string, err error, meta map[string]string) {
	if m.events == nil {
		return
	}
	ev := SessionEvent{
		Timestamp: m.clock.Now(),
		Type:      typ,
		UserID:    userID,
		Success:   err == nil,
		Metadata:  meta,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if id := m.tenantID(); id != "" {
		ev.TenantID = id
	}
	m.events.Emit(ctx, ev)
}

func (m *Manager) tenantID() string {
	if m.cfg.Tenant.Strategy == transport.TenantNone {
		return ""
	}
	if m.cfg.Tenant.Resolver != nil {
		if id := m.cfg.Tenant.Resolver(); id != "" {
			return id
		}
	}
	return m.cfg.Tenant.ID
}

func hasJSONValue(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
