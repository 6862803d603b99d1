package client

//go:generate mockgen -destination=mocks/client_mock.go -package=mocks . Client

import (
	"bytes"
	"context"
	"encoding/json"
)

// Client is the backend auth API consumed by the session coordinator.
type Client interface {
	VerifySession(ctx context.Context) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	PasswordLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	EstablishSession(ctx context.Context) (*EstablishResponse, error)
	Logout(ctx context.Context) error
}

type RegisterRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by verify-session, register and password-login.
// User is the backend-owned profile and is passed through untouched.
type AuthResponse struct {
	AuthSuccess bool              `json:"authSuccess"`
	Token       string            `json:"token,omitempty"`
	User        json.RawMessage   `json:"user,omitempty"`
	Message     string            `json:"message,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// HasUser reports whether the response carries a non-null profile.
func (r *AuthResponse) HasUser() bool {
	return r != nil && !IsEmptyJSON(r.User)
}

// EstablishResponse is returned by the session-establish fallback.
type EstablishResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IsEmptyJSON is true for absent, blank or literal null JSON values.
func IsEmptyJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
