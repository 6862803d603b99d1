package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/campusgive/internal/client/client"
	"github.com/dmitrijs2005/campusgive/internal/client/credentials"
	"github.com/dmitrijs2005/campusgive/internal/client/popup"
	"github.com/dmitrijs2005/campusgive/internal/client/services"
	"github.com/dmitrijs2005/campusgive/internal/common"
)

// Interactive input helpers, swapped in tests.
var (
	getSimpleText  = GetSimpleText
	getPassword    = GetPassword
	getNewPassword = GetNewPassword
)

// userLabel renders the backend user object for display. Unknown shapes
// fall back to the raw JSON.
func userLabel(raw json.RawMessage) string {
	var u struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &u); err != nil || (u.Name == "" && u.Email == "") {
		return string(raw)
	}
	switch {
	case u.Name == "":
		return u.Email
	case u.Email == "":
		return u.Name
	}
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}

func (a *App) getStatus() string {
	st := a.authService.State()
	switch {
	case st.Authenticated:
		return " (" + userLabel(st.User) + ")"
	case !st.Initialized:
		return " (checking)"
	}
	return ""
}

// Status prints who is signed in and what the stored token claims.
func (a *App) Status(ctx context.Context) error {
	a.printState(ctx, a.authService.State())
	return nil
}

func (a *App) printState(ctx context.Context, st services.State) {
	switch {
	case st.Authenticated:
		printlnFn("Signed in as", userLabel(st.User))
		a.printToken(ctx)
	case !st.Initialized:
		printlnFn("Checking session...")
	default:
		printlnFn("Not signed in")
	}
}

// printToken shows the subject and expiry of a JWT credential. The claims
// are unverified and only displayed; an expired token is flagged so the user
// knows the next request will fail. Cookie-only sessions print nothing.
func (a *App) printToken(ctx context.Context) {
	if a.creds == nil {
		return
	}
	c, ok := a.creds.Get(ctx)
	if !ok {
		return
	}
	claims, ok := credentials.Inspect(c)
	if !ok {
		return
	}
	if claims.Subject != "" {
		printlnFn("  subject:", claims.Subject)
	}
	if claims.ExpiresAt.IsZero() {
		return
	}
	exp := claims.ExpiresAt.UTC().Format(time.RFC3339)
	if claims.Expired(a.clock()) {
		printlnFn("  expires:", exp, "(EXPIRED, sign in again or run 'refresh')")
		return
	}
	printlnFn("  expires:", exp)
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// Register prompts for name, email and a confirmed password and creates an
// account.
// Field errors reported by the backend are printed one per line. The
// password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	resp, err := a.authService.Register(ctx, client.RegisterRequest{Name: name, Email: email, Password: string(password)})
	if err != nil {
		printFieldErrors(resp)
		return err
	}

	printlnFn("Account created.")
	a.printState(ctx, a.authService.State())
	return nil
}

func printFieldErrors(resp *client.AuthResponse) {
	if resp == nil || len(resp.Errors) == 0 {
		return
	}
	fields := make([]string, 0, len(resp.Errors))
	for f := range resp.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		printlnFn(fmt.Sprintf("  %s: %s", f, resp.Errors[f]))
	}
}

// Login prompts for email and password and signs in. The password byte
// slice is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.authService.LocalLogin(ctx, client.LoginRequest{Email: email, Password: string(password)}); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			return fmt.Errorf("server unavailable: %w", err)
		}
		return err
	}
	a.printState(ctx, a.authService.State())
	return nil
}

// Social signs in through provider. When the provider account has no email
// the user is asked for one and the handshake is retried once with the email
// as its state payload.
func (a *App) Social(ctx context.Context, provider, state string) error {
	for attempt := 0; ; attempt++ {
		out, err := a.authService.SocialLogin(ctx, provider, state)
		if err != nil {
			if errors.Is(err, popup.ErrPopupBlocked) {
				return fmt.Errorf("could not open the sign-in window: %w", err)
			}
			return err
		}

		switch out.Kind {
		case popup.Success:
			a.printState(ctx, a.authService.State())
			return nil
		case popup.Cancelled:
			printlnFn("Sign-in cancelled.")
			return nil
		case popup.TimedOut:
			printlnFn("Sign-in timed out.")
			return nil
		}

		// Rejected.
		switch {
		case out.RequiresEmail && attempt == 0:
			printlnFn(fmt.Sprintf("%s did not share an email address.", provider))
			email, err := getSimpleText(a.reader, "Enter email to continue", a.out)
			if err != nil {
				return err
			}
			if email == "" {
				return nil
			}
			state = email
			continue
		case out.EmailUnverified:
			printlnFn("Your email address is not verified with", provider+".")
			if out.ProfileURL != "" {
				printlnFn("Verify it here:", out.ProfileURL)
			}
		default:
			printlnFn("Sign-in rejected:", out.Reason)
		}
		return nil
	}
}

// Refresh re-checks the session with the backend.
func (a *App) Refresh(ctx context.Context) error {
	a.printState(ctx, a.authService.CheckSession(ctx))
	return nil
}

// Logout signs out. It always succeeds locally.
func (a *App) Logout(ctx context.Context) error {
	a.authService.Logout(ctx)
	printlnFn("Signed out.")
	return nil
}
