// Package services contains application services for the campusgive client.
// This file defines the session coordinator: it owns the shared session state
// and the credential store, and sequences the backend calls behind register,
// password login, social login, logout and session checks.
package services

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/campusgive/internal/client/client"
	"github.com/dmitrijs2005/campusgive/internal/client/credentials"
	"github.com/dmitrijs2005/campusgive/internal/client/metrics"
	"github.com/dmitrijs2005/campusgive/internal/client/popup"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

// AuthService defines the session operations for the front-end.
//
// Contract:
//   - Start: run the startup session check exactly once.
//   - CheckSession: ask the backend who the current credential belongs to.
//   - Register / LocalLogin: email+password flows; the raw backend response
//     is returned so field errors can be shown.
//   - SocialLogin: run a provider handshake and adopt its outcome.
//   - Logout: end the session locally, whatever the backend says.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Start(ctx context.Context)
	State() State
	Subscribe() (<-chan State, func())
	CheckSession(ctx context.Context) State
	Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error)
	LocalLogin(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error)
	SocialLogin(ctx context.Context, provider, state string) (popup.Outcome, error)
	Logout(ctx context.Context)
}

// Handshaker runs one social-login handshake. *popup.Driver implements it.
type Handshaker interface {
	Run(ctx context.Context, provider, state string) (popup.Outcome, error)
}

// Session check results, as reported to metrics.
const (
	checkAuthenticated = "authenticated"
	checkAnonymous     = "anonymous"
	checkDiscarded     = "discarded"
)

// authService is the concrete AuthService.
//
// Writes to state and to the credential store happen under mu. Every mutating
// operation bumps epoch; a session check that started under an older epoch
// drops its result, so it cannot undo a login or logout that finished while
// it was in flight. Checks do not bump the epoch, so among overlapping checks
// the last response applied wins.
type authService struct {
	client    client.Client
	store     credentials.Store
	handshake Handshaker
	log       logging.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	startOnce sync.Once

	mu         sync.Mutex
	state      State
	epoch      uint64
	loggingOut int
	subs       map[int]chan State
	nextSub    int
}

// Option configures the coordinator.
type Option func(*authService)

func WithLogger(l logging.Logger) Option {
	return func(a *authService) { a.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *authService) { a.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *authService) { a.tracer = t }
}

// NewAuthService constructs the coordinator. The returned state is
// Uninitialized until Start or CheckSession runs.
func NewAuthService(c client.Client, store credentials.Store, h Handshaker, opts ...Option) AuthService {
	a := &authService{
		client:    c,
		store:     store,
		handshake: h,
		log:       logging.NewNop(),
		tracer:    otel.Tracer("github.com/dmitrijs2005/campusgive/internal/client/services"),
		subs:      make(map[int]chan State),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start runs the startup session check. Only the first call does anything.
func (a *authService) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.CheckSession(ctx)
	})
}

func (a *authService) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clone()
}

// Subscribe returns a channel that receives the latest state after every
// change. Slow readers only ever see the most recent snapshot. The returned
// func stops delivery and closes the channel.
func (a *authService) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
			close(ch)
		})
	}
}

// setLocked replaces the state and notifies subscribers. Callers hold mu.
func (a *authService) setLocked(s State) {
	if s.Authenticated && client.IsEmptyJSON(s.User) {
		s = anonymous(s)
	}
	a.state = s
	for _, ch := range a.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.clone()
	}
}

// CheckSession verifies the stored credential with the backend. Success makes
// the state Authenticated with the returned user; any failure, including an
// unreachable backend, clears the credential and makes the state Anonymous.
// The first completed check marks the state Initialized.
func (a *authService) CheckSession(ctx context.Context) State {
	ctx, span := a.tracer.Start(ctx, "session.check")
	defer span.End()

	a.mu.Lock()
	epoch := a.epoch
	if a.state.Status == StatusUninitialized {
		s := a.state
		s.Status = StatusChecking
		a.setLocked(s)
	}
	a.mu.Unlock()

	resp, err := a.client.VerifySession(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if epoch != a.epoch || a.loggingOut > 0 {
		a.log.Debug(ctx, "discarding stale session check")
		a.metrics.IncSessionCheck(checkDiscarded)
		span.SetAttributes(attribute.String("session.result", checkDiscarded))
		if !a.state.Initialized {
			s := a.state
			s.Initialized = true
			a.setLocked(s)
		}
		return a.state.clone()
	}

	var next State
	if err != nil || !resp.HasUser() {
		if err != nil {
			a.log.Debug(ctx, "session check failed", "error", err)
		}
		a.store.Set(ctx, "")
		next = anonymous(a.state)
		a.metrics.IncSessionCheck(checkAnonymous)
		span.SetAttributes(attribute.String("session.result", checkAnonymous))
	} else {
		next = authenticated(a.state, resp.User)
		a.metrics.IncSessionCheck(checkAuthenticated)
		span.SetAttributes(attribute.String("session.result", checkAuthenticated))
	}
	next.Initialized = true
	a.setLocked(next)
	return a.state.clone()
}

// adopt makes user the authenticated user, storing token first when one is
// given.
func (a *authService) adopt(ctx context.Context, user json.RawMessage, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch++
	if token != "" {
		a.store.Set(ctx, credentials.Credential(token))
	}
	a.setLocked(authenticated(a.state, user))
}

// storeToken saves a credential without touching the visible state.
func (a *authService) storeToken(ctx context.Context, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch++
	a.store.Set(ctx, credentials.Credential(token))
}

// Register creates an account. On success any issued token is stored and a
// session check follows, since the backend may also have opened a cookie
// session. The raw response is returned either way so the caller can display
// field errors.
func (a *authService) Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error) {
	ctx, span := a.tracer.Start(ctx, "session.register")
	defer span.End()

	resp, err := a.client.Register(ctx, req)
	if err != nil {
		a.log.Info(ctx, "registration failed", "error", err)
		return resp, err
	}
	if resp.Token != "" {
		a.storeToken(ctx, resp.Token)
	}
	a.CheckSession(ctx)
	return resp, nil
}

// LocalLogin signs in with email and password. A response carrying a token
// and a user is adopted directly. A success without a token falls back to a
// session check, and ErrNotAuthenticated is returned if that check does not
// confirm a user. A failed login leaves the state untouched.
func (a *authService) LocalLogin(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error) {
	ctx, span := a.tracer.Start(ctx, "session.login")
	defer span.End()

	resp, err := a.client.PasswordLogin(ctx, req)
	if err != nil {
		a.log.Info(ctx, "login failed", "error", err)
		return resp, err
	}

	if resp.Token != "" && resp.HasUser() {
		a.adopt(ctx, resp.User, resp.Token)
		return resp, nil
	}
	if resp.Token != "" {
		a.storeToken(ctx, resp.Token)
	}
	if st := a.CheckSession(ctx); !st.Authenticated {
		return resp, ErrNotAuthenticated
	}
	return resp, nil
}

// SocialLogin runs a handshake with provider, passing state through as the
// opaque payload. Only a Success outcome changes the session. Rejected,
// Cancelled and TimedOut outcomes are returned as-is with the state unchanged,
// as are errors (blocked popup, malformed message).
func (a *authService) SocialLogin(ctx context.Context, provider, state string) (popup.Outcome, error) {
	ctx, span := a.tracer.Start(ctx, "session.social_login",
		trace.WithAttributes(attribute.String("auth.provider", provider)))
	defer span.End()

	if provider == "" {
		return popup.Outcome{}, ErrInvalidProvider
	}

	out, err := a.handshake.Run(ctx, provider, state)
	if err != nil {
		a.log.Warn(ctx, "handshake failed", "provider", provider, "error", err)
		return out, err
	}
	span.SetAttributes(attribute.String("auth.outcome", out.Kind.String()))
	if out.Kind != popup.Success {
		a.log.Info(ctx, "handshake finished without login", "provider", provider, "outcome", out.Kind.String(), "reason", out.Reason)
		return out, nil
	}

	if out.Token != "" {
		a.adopt(ctx, out.User, out.Token)
		a.CheckSession(ctx)
		return out, nil
	}

	// No token in the message: ask the backend to turn its cookie session
	// into a bearer credential.
	est, err := a.client.EstablishSession(ctx)
	if err != nil {
		a.log.Warn(ctx, "establish session failed, keeping handshake user", "provider", provider, "error", err)
		a.adopt(ctx, out.User, "")
		return out, nil
	}
	a.adopt(ctx, out.User, est.Token)
	a.CheckSession(ctx)
	return out, nil
}

// Logout asks the backend to end the session and then clears local state.
// The backend call is best-effort: its failure is logged and counted but the
// local session ends regardless.
func (a *authService) Logout(ctx context.Context) {
	ctx, span := a.tracer.Start(ctx, "session.logout")
	defer span.End()

	a.mu.Lock()
	a.epoch++
	a.loggingOut++
	a.mu.Unlock()

	if err := a.client.Logout(ctx); err != nil {
		a.log.Warn(ctx, "backend logout failed, clearing local session anyway", "error", err)
		a.metrics.IncLogoutFailure()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggingOut--
	a.epoch++
	a.store.Set(ctx, "")
	a.setLocked(anonymous(a.state))
}
