// Package credentials owns the upstream access token: which credentials it
// was issued for, when it expires, and when it must be replaced.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/machine-booker/internal/metrics"
	"github.com/example/machine-booker/internal/upstream"
)

const (
	defaultTokenTTL = 30 * time.Minute
	refreshBuffer   = time.Minute
	clientIDPrefix  = "nexudus.portal."
)

var (
	// ErrUnauthorized means no credentials resolve for the caller.
	ErrUnauthorized = errors.New("credentials are missing")
	// ErrCredentialsRequired means a login was attempted without username or password.
	ErrCredentialsRequired = errors.New("username and password are required")
)

// Credentials identify an upstream account. ClientID and TOTP are optional.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"clientId,omitempty"`
	TOTP     string `json:"totp,omitempty"`
}

func (c Credentials) complete() bool {
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.Password) != ""
}

func (c Credentials) clientID() string {
	if strings.TrimSpace(c.ClientID) != "" {
		return c.ClientID
	}
	return clientIDPrefix + c.Username
}

// LoginError is a rejected interactive login, carrying the status to report.
type LoginError struct {
	Status  int
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }

func (e *LoginError) Unwrap() error { return e.Err }

// TokenRequester is the subset of the upstream client the manager needs.
type TokenRequester interface {
	RequestToken(ctx context.Context, form url.Values, clientID string) (upstream.TokenGrant, error)
	Logout(ctx context.Context, token string) error
}

type tokenState struct {
	accessToken string
	expiresAt   time.Time
	source      Credentials
	fallback    bool
}

func (s *tokenState) expired(now time.Time) bool {
	return now.After(s.expiresAt)
}

// incompatible reports whether s cannot serve a caller that resolved to r.
// A fallback token keeps serving for as long as fallback is allowed, so a
// retry chain that switched to it does not flip back mid-chain.
func (s *tokenState) incompatible(r resolved, fallbackAllowed bool) bool {
	if s.fallback {
		return !fallbackAllowed
	}
	return s.source != r.creds
}

type resolved struct {
	creds    Credentials
	fallback bool
}

type Manager struct {
	client   TokenRequester
	fallback *Credentials
	now      func() time.Time
	logger   *slog.Logger

	mu              sync.Mutex
	runtime         atomic.Pointer[Credentials]
	state           atomic.Pointer[tokenState]
	useFallbackNext atomic.Bool
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New builds a manager. fallback is ignored unless both username and password are set.
func New(client TokenRequester, fallback Credentials, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		now:    time.Now,
		logger: slog.Default(),
	}
	if fallback.complete() {
		fb := fallback
		m.fallback = &fb
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a valid token for the credentials that resolve in ctx,
// requesting a new one when the cached token is missing, expired or issued for
// other credentials. Concurrent callers share one refresh.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	allowed := FallbackAllowed(ctx)
	r, ok := m.resolve(allowed, true)
	if !ok {
		return "", ErrUnauthorized
	}

	state := m.state.Load()
	if m.usable(state, r, allowed) {
		return state.accessToken, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A Login may have swapped and rolled back the runtime credentials while
	// we waited. Resolve again without consuming the override. A consumed
	// fallback override stays with this caller.
	if !r.fallback {
		if r, ok = m.resolve(allowed, false); !ok {
			return "", ErrUnauthorized
		}
	}
	state = m.state.Load()
	if m.usable(state, r, allowed) {
		return state.accessToken, nil
	}
	state, err := m.requestToken(ctx, r)
	if err != nil {
		return "", err
	}
	m.state.Store(state)
	return state.accessToken, nil
}

func (m *Manager) usable(s *tokenState, r resolved, allowed bool) bool {
	return s != nil && !s.expired(m.now()) && !s.incompatible(r, allowed)
}

// Login replaces the runtime credentials and fetches a token for them. On
// failure the previous credentials and token are restored.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	if !creds.complete() {
		return &LoginError{Status: http.StatusBadRequest, Message: "Username and password are required.", Err: ErrCredentialsRequired}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevCreds := m.runtime.Load()
	prevState := m.state.Load()
	c := creds
	m.runtime.Store(&c)

	state, err := m.requestToken(ctx, resolved{creds: creds})
	if err != nil {
		m.runtime.Store(prevCreds)
		m.state.Store(prevState)
		return loginError(err)
	}
	m.state.Store(state)
	m.logger.InfoContext(ctx, "user logged in", slog.String("username", creds.Username))
	return nil
}

// InvalidateToken drops the cached token when credentials resolve, so the next
// AccessToken call fetches a fresh one. A pending fallback override is kept.
func (m *Manager) InvalidateToken(ctx context.Context) {
	if _, ok := m.resolve(FallbackAllowed(ctx), false); ok {
		m.state.Store(nil)
	}
}

// ForceFallbackNext makes the next resolution in a fallback-allowed context
// pick the fallback credentials.
func (m *Manager) ForceFallbackNext() {
	m.useFallbackNext.Store(true)
}

// Logout ends the upstream session on a best-effort basis and forgets the
// token and runtime credentials.
func (m *Manager) Logout(ctx context.Context) {
	defer func() {
		m.state.Store(nil)
		m.runtime.Store(nil)
	}()
	state := m.state.Load()
	if state == nil || state.accessToken == "" {
		return
	}
	if err := m.client.Logout(ctx, state.accessToken); err != nil {
		m.logger.DebugContext(ctx, "upstream logout failed", slog.Any("err", err))
		return
	}
	m.logger.InfoContext(ctx, "user was logged out")
}

// Authenticated reports whether an interactive login is active.
func (m *Manager) Authenticated() bool {
	return m.runtime.Load() != nil
}

// Username of the interactive login, or "" when logged out.
func (m *Manager) Username() string {
	if c := m.runtime.Load(); c != nil {
		return c.Username
	}
	return ""
}

// resolve picks the credentials for a call. With consume set, a pending
// fallback override is used up.
func (m *Manager) resolve(fallbackAllowed, consume bool) (resolved, bool) {
	if fallbackAllowed {
		override := m.useFallbackNext.Load()
		if consume {
			override = m.useFallbackNext.Swap(false)
		}
		if override && m.fallback != nil {
			return resolved{creds: *m.fallback, fallback: true}, true
		}
	}
	if c := m.runtime.Load(); c != nil {
		return resolved{creds: *c}, true
	}
	if fallbackAllowed && m.fallback != nil {
		return resolved{creds: *m.fallback, fallback: true}, true
	}
	return resolved{}, false
}

func (m *Manager) requestToken(ctx context.Context, r resolved) (*tokenState, error) {
	source := "runtime"
	if r.fallback {
		source = "fallback"
	}
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", r.creds.Username)
	form.Set("password", r.creds.Password)
	form.Set("totp", r.creds.TOTP)

	grant, err := m.client.RequestToken(ctx, form, r.creds.clientID())
	if err != nil {
		metrics.TokenRequests.WithLabelValues(source, metrics.OutcomeError).Inc()
		m.logger.WarnContext(ctx, "token request failed", slog.String("source", source), slog.Any("err", err))
		return nil, err
	}
	metrics.TokenRequests.WithLabelValues(source, metrics.OutcomeSuccess).Inc()

	ttl := defaultTokenTTL
	if grant.ExpiresIn > 0 {
		ttl = time.Duration(grant.ExpiresIn) * time.Second
	}
	return &tokenState{
		accessToken: grant.AccessToken,
		expiresAt:   m.now().Add(ttl - refreshBuffer),
		source:      r.creds,
		fallback:    r.fallback,
	}, nil
}

func loginError(err error) error {
	if errors.Is(err, upstream.ErrMissingToken) {
		return &LoginError{Status: http.StatusUnauthorized, Message: "Unable to retrieve access token.", Err: err}
	}
	he, ok := upstream.AsHTTPError(err)
	if !ok {
		return err
	}
	status := he.Status
	if status == http.StatusBadRequest {
		status = http.StatusUnauthorized
	}
	return &LoginError{Status: status, Message: errorDescription(he.Body), Err: err}
}

// errorDescription extracts the human readable part of a token rejection.
func errorDescription(body []byte) string {
	if strings.TrimSpace(string(body)) == "" {
		return "Authentication failed."
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return string(body)
	}
	if s, ok := fields["error_description"].(string); ok {
		return s
	}
	if s, ok := fields["message"].(string); ok {
		return s
	}
	return "Authentication failed."
}

// RunWithFallback runs fn in a context that allows fallback credentials.
func (m *Manager) RunWithFallback(ctx context.Context, fn func(context.Context) error) error {
	return RunWithFallback(ctx, fn)
}
