package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the display-only view of a JWT-shaped credential.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that lies before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes the registered claims of a JWT credential without verifying
// its signature; the backend owns the key. The result is for display and
// logging only and must never drive a trust decision. Opaque tokens return false.
func Inspect(c Credential) (Claims, bool) {
	if c == "" {
		return Claims{}, false
	}

	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(string(c), &rc); err != nil {
		return Claims{}, false
	}

	out := Claims{Subject: rc.Subject}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	return out, true
}
