package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/campusgive/internal/client/client"
	"github.com/dmitrijs2005/campusgive/internal/client/credentials"
	"github.com/dmitrijs2005/campusgive/internal/client/popup"
	"github.com/dmitrijs2005/campusgive/internal/client/services"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

var alice = json.RawMessage(`{"id":"u-1","name":"Alice","email":"alice@uni.edu"}`)

func stubInputs(t *testing.T, lines []string, password []byte) {
	t.Helper()
	origST, origGP, origNP := getSimpleText, getPassword, getNewPassword
	next := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if next >= len(lines) {
			return "", io.EOF
		}
		next++
		return lines[next-1], nil
	}
	getPassword = func(io.Writer, string) ([]byte, error) { return password, nil }
	getNewPassword = func(io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
		getNewPassword = origNP
	})
}

func captureOutput(t *testing.T) *strings.Builder {
	t.Helper()
	var sb strings.Builder
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) { return fmt.Fprintln(&sb, a...) }
	t.Cleanup(func() { printlnFn = orig })
	return &sb
}

type fakeAuth struct {
	state services.State

	regReq  client.RegisterRequest
	regResp *client.AuthResponse
	regErr  error

	loginReq client.LoginRequest
	loginErr error

	social      []popup.Outcome
	socialErr   error
	socialCalls []string

	checks      int
	logoutCalls int
}

func (f *fakeAuth) Start(context.Context) {}
func (f *fakeAuth) State() services.State { return f.state }
func (f *fakeAuth) Subscribe() (<-chan services.State, func()) {
	ch := make(chan services.State)
	return ch, func() { close(ch) }
}
func (f *fakeAuth) CheckSession(context.Context) services.State {
	f.checks++
	f.state.Initialized = true
	return f.state
}
func (f *fakeAuth) Register(_ context.Context, req client.RegisterRequest) (*client.AuthResponse, error) {
	f.regReq = req
	return f.regResp, f.regErr
}
func (f *fakeAuth) LocalLogin(_ context.Context, req client.LoginRequest) (*client.AuthResponse, error) {
	f.loginReq = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.state = services.State{Status: services.StatusAuthenticated, User: alice, Authenticated: true, Initialized: true}
	return &client.AuthResponse{AuthSuccess: true, User: alice}, nil
}
func (f *fakeAuth) SocialLogin(_ context.Context, provider, state string) (popup.Outcome, error) {
	f.socialCalls = append(f.socialCalls, provider+":"+state)
	if f.socialErr != nil {
		return popup.Outcome{}, f.socialErr
	}
	out := f.social[0]
	f.social = f.social[1:]
	if out.Kind == popup.Success {
		f.state = services.State{Status: services.StatusAuthenticated, User: out.User, Authenticated: true, Initialized: true}
	}
	return out, nil
}
func (f *fakeAuth) Logout(context.Context) {
	f.logoutCalls++
	f.state = services.State{Status: services.StatusAnonymous, Initialized: true}
}

func newTestApp(f *fakeAuth) *App {
	return &App{authService: f, creds: credentials.NewMemoryStore(), log: logging.NewNop(), out: io.Discard}
}

func signedToken(t *testing.T, subject string, exp time.Time) credentials.Credential {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return credentials.Credential(s)
}

func TestRegister_SuccessWipesPassword(t *testing.T) {
	out := captureOutput(t)
	f := &fakeAuth{regResp: &client.AuthResponse{AuthSuccess: true}}
	pw := []byte("hunter22")
	stubInputs(t, []string{"Alice", "alice@uni.edu"}, pw)

	require.NoError(t, newTestApp(f).Register(context.Background()))
	assert.Equal(t, client.RegisterRequest{Name: "Alice", Email: "alice@uni.edu", Password: "hunter22"}, f.regReq)
	assert.Equal(t, make([]byte, len(pw)), pw)
	assert.Contains(t, out.String(), "Account created.")
}

func TestRegister_PasswordMismatchSendsNothing(t *testing.T) {
	captureOutput(t)
	f := &fakeAuth{regResp: &client.AuthResponse{AuthSuccess: true}}
	stubInputs(t, []string{"Alice", "alice@uni.edu"}, nil)
	getNewPassword = func(io.Writer) ([]byte, error) { return nil, ErrPasswordMismatch }

	err := newTestApp(f).Register(context.Background())
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Empty(t, f.regReq.Email)
}

func TestRegister_PrintsFieldErrors(t *testing.T) {
	out := captureOutput(t)
	f := &fakeAuth{
		regResp: &client.AuthResponse{Errors: map[string]string{"password": "too short", "email": "taken"}},
		regErr:  errors.New("validation failed"),
	}
	stubInputs(t, []string{"Alice", "alice@uni.edu"}, []byte("x"))

	require.Error(t, newTestApp(f).Register(context.Background()))
	assert.Equal(t, "  email: taken\n  password: too short\n", out.String())
}

func TestLogin(t *testing.T) {
	out := captureOutput(t)
	f := &fakeAuth{}
	stubInputs(t, []string{"alice@uni.edu"}, []byte("hunter22"))

	a := newTestApp(f)
	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "alice@uni.edu", f.loginReq.Email)
	assert.Contains(t, out.String(), "Signed in as Alice <alice@uni.edu>")
	assert.Equal(t, " (Alice <alice@uni.edu>)", a.getStatus())
}

func TestLogin_Unavailable(t *testing.T) {
	captureOutput(t)
	f := &fakeAuth{loginErr: &client.Error{Op: "login", Kind: client.KindTransport, Message: "backend unreachable"}}
	stubInputs(t, []string{"alice@uni.edu"}, []byte("hunter22"))

	err := newTestApp(f).Login(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Contains(t, err.Error(), "server unavailable")
}

func TestSocial_RequireEmailRetriesWithEmailState(t *testing.T) {
	captureOutput(t)
	f := &fakeAuth{social: []popup.Outcome{
		{Kind: popup.Rejected, Provider: "github", RequiresEmail: true},
		{Kind: popup.Success, Provider: "github", User: alice},
	}}
	stubInputs(t, []string{"alice@uni.edu"}, nil)

	require.NoError(t, newTestApp(f).Social(context.Background(), "github", ""))
	assert.Equal(t, []string{"github:", "github:alice@uni.edu"}, f.socialCalls)
	assert.True(t, f.state.Authenticated)
}

func TestSocial_RequireEmailOnlyRetriesOnce(t *testing.T) {
	captureOutput(t)
	f := &fakeAuth{social: []popup.Outcome{
		{Kind: popup.Rejected, RequiresEmail: true, Reason: "email required"},
		{Kind: popup.Rejected, RequiresEmail: true, Reason: "email required"},
	}}
	stubInputs(t, []string{"alice@uni.edu", "again@uni.edu"}, nil)

	require.NoError(t, newTestApp(f).Social(context.Background(), "github", ""))
	assert.Len(t, f.socialCalls, 2)
}

func TestSocial_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		out  popup.Outcome
		want string
	}{
		{"cancelled", popup.Outcome{Kind: popup.Cancelled, Reason: popup.ReasonPopupClosed}, "Sign-in cancelled."},
		{"timed out", popup.Outcome{Kind: popup.TimedOut}, "Sign-in timed out."},
		{"unverified", popup.Outcome{Kind: popup.Rejected, EmailUnverified: true, ProfileURL: "https://github.com/settings/emails"}, "Verify it here: https://github.com/settings/emails"},
		{"rejected", popup.Outcome{Kind: popup.Rejected, Reason: "account suspended"}, "Sign-in rejected: account suspended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t)
			f := &fakeAuth{social: []popup.Outcome{tt.out}}
			require.NoError(t, newTestApp(f).Social(context.Background(), "github", ""))
			assert.Contains(t, out.String(), tt.want)
			assert.False(t, f.state.Authenticated)
		})
	}
}

func TestSocial_Blocked(t *testing.T) {
	f := &fakeAuth{socialErr: popup.ErrPopupBlocked}
	err := newTestApp(f).Social(context.Background(), "google", "")
	require.ErrorIs(t, err, popup.ErrPopupBlocked)
}

func TestRefreshAndLogout(t *testing.T) {
	out := captureOutput(t)
	f := &fakeAuth{state: services.State{Status: services.StatusAuthenticated, User: alice, Authenticated: true, Initialized: true}}
	a := newTestApp(f)

	require.NoError(t, a.Refresh(context.Background()))
	assert.Equal(t, 1, f.checks)

	require.NoError(t, a.Logout(context.Background()))
	assert.Equal(t, 1, f.logoutCalls)
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.getStatus())
	assert.Contains(t, out.String(), "Signed out.")
}

func TestUserLabel(t *testing.T) {
	assert.Equal(t, "Alice <alice@uni.edu>", userLabel(alice))
	assert.Equal(t, "bob@uni.edu", userLabel(json.RawMessage(`{"email":"bob@uni.edu"}`)))
	assert.Equal(t, "Carol", userLabel(json.RawMessage(`{"name":"Carol"}`)))
	assert.Equal(t, `{"id":7}`, userLabel(json.RawMessage(`{"id":7}`)))
}

func TestGetStatus_Checking(t *testing.T) {
	a := newTestApp(&fakeAuth{})
	assert.Equal(t, " (checking)", a.getStatus())
}

func TestStatus_ShowsTokenClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signedIn := services.State{Status: services.StatusAuthenticated, User: alice, Authenticated: true, Initialized: true}

	tests := []struct {
		name    string
		token   func(t *testing.T) credentials.Credential
		want    []string
		notWant []string
	}{
		{
			name:    "valid",
			token:   func(t *testing.T) credentials.Credential { return signedToken(t, "u-1", now.Add(time.Hour)) },
			want:    []string{"Signed in as Alice <alice@uni.edu>", "subject: u-1", "expires: 2026-03-01T13:00:00Z"},
			notWant: []string{"EXPIRED"},
		},
		{
			name:  "expired",
			token: func(t *testing.T) credentials.Credential { return signedToken(t, "u-1", now.Add(-time.Minute)) },
			want:  []string{"subject: u-1", "expires: 2026-03-01T11:59:00Z (EXPIRED"},
		},
		{
			name:    "opaque",
			token:   func(*testing.T) credentials.Credential { return "opaque-session-token" },
			want:    []string{"Signed in as"},
			notWant: []string{"subject:", "expires:"},
		},
		{
			name:    "cookie only",
			token:   func(*testing.T) credentials.Credential { return "" },
			want:    []string{"Signed in as"},
			notWant: []string{"subject:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t)
			ctx := context.Background()
			a := newTestApp(&fakeAuth{state: signedIn})
			a.now = func() time.Time { return now }
			store := credentials.NewMemoryStore()
			store.Set(ctx, tt.token(t))
			a.creds = store

			require.NoError(t, a.Status(ctx))
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out.String(), w)
			}
		})
	}
}

func TestStatus_AnonymousIgnoresStaleToken(t *testing.T) {
	out := captureOutput(t)
	ctx := context.Background()
	a := newTestApp(&fakeAuth{state: services.State{Status: services.StatusAnonymous, Initialized: true}})
	store := credentials.NewMemoryStore()
	store.Set(ctx, signedToken(t, "u-1", time.Now().Add(time.Hour)))
	a.creds = store

	require.NoError(t, a.Status(ctx))
	assert.Equal(t, "Not signed in\n", out.String())
}
