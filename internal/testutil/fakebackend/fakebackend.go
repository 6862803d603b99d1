// Package fakebackend is an in-memory stand-in for the marketplace auth
// backend, served over httptest for client and coordinator tests.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionCookie = "campusgive_sid"

// Request is what the backend saw for one call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	HasCookie     bool
}

type account struct {
	id       string
	name     string
	email    string
	password string
}

// Backend is safe for concurrent use.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	secret   []byte
	accounts map[string]account // by email
	sessions map[string]string  // sid -> user id
	requests []Request

	// IssueTokens makes login/register/establish return bearer tokens.
	IssueTokens bool
	// LogoutStatus overrides the logout response status when non-zero.
	LogoutStatus int
	// EstablishFails forces session-establish to answer success=false.
	EstablishFails bool
}

// New starts a backend that is closed with the test.
func New(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		secret:      []byte("fakebackend-" + uuid.NewString()),
		accounts:    map[string]account{},
		sessions:    map[string]string{},
		IssueTokens: true,
	}
	b.Server = httptest.NewServer(b.router())
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

// AddUser seeds an account and returns its id.
func (b *Backend) AddUser(name, email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := "u-" + uuid.NewString()[:8]
	b.accounts[strings.ToLower(email)] = account{id: id, name: name, email: email, password: password}
	return id
}

// IssueToken mints a bearer token for userID, as the OAuth callback would.
func (b *Backend) IssueToken(userID string, ttl time.Duration) string {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := tok.SignedString(b.secret)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return signed
}

// Requests returns a copy of the recorded calls.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many calls hit path.
func (b *Backend) Count(path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// UserJSON is the profile the backend sends for userID.
func (b *Backend) UserJSON(userID string) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.id == userID {
			return profile(a)
		}
	}
	return nil
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/session", b.verifySession)
		r.Post("/register", b.register)
		r.Post("/login", b.login)
		r.Post("/session/establish", b.establish)
		r.Post("/logout", b.logout)
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie(sessionCookie)
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			HasCookie:     err == nil,
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) verifySession(w http.ResponseWriter, r *http.Request) {
	id, ok := b.identify(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authSuccess": false, "message": "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authSuccess": true, "user": b.UserJSON(id)})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"authSuccess": false, "message": "invalid body"})
		return
	}

	fieldErrs := map[string]string{}
	if !strings.Contains(in.Email, "@") {
		fieldErrs["email"] = "a valid email is required"
	}
	if len(in.Password) < 8 {
		fieldErrs["password"] = "password must be at least 8 characters"
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"authSuccess": false, "message": "validation failed", "errors": fieldErrs})
		return
	}

	b.mu.Lock()
	if _, exists := b.accounts[strings.ToLower(in.Email)]; exists {
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"authSuccess": false, "message": "email already registered"})
		return
	}
	b.mu.Unlock()

	id := b.AddUser(in.Name, in.Email, in.Password)
	b.grant(w, id)
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"authSuccess": false, "message": "invalid body"})
		return
	}

	b.mu.Lock()
	a, ok := b.accounts[strings.ToLower(in.Email)]
	b.mu.Unlock()
	if !ok || a.password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authSuccess": false, "message": "invalid email or password"})
		return
	}
	b.grant(w, a.id)
}

// grant starts a cookie session and answers with the profile (and a token).
func (b *Backend) grant(w http.ResponseWriter, userID string) {
	sid := uuid.NewString()
	b.mu.Lock()
	b.sessions[sid] = userID
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})

	resp := map[string]any{"authSuccess": true, "user": b.UserJSON(userID)}
	if b.IssueTokens {
		resp["token"] = b.IssueToken(userID, time.Hour)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) establish(w http.ResponseWriter, r *http.Request) {
	id, ok := b.sessionUser(r)
	if !ok || b.EstablishFails {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "no session to establish"})
		return
	}
	resp := map[string]any{"success": true}
	if b.IssueTokens {
		resp["token"] = b.IssueToken(id, time.Hour)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	if b.LogoutStatus != 0 {
		w.WriteHeader(b.LogoutStatus)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identify accepts a valid bearer token first, then the session cookie.
func (b *Backend) identify(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(h, "Bearer "), &claims, func(*jwt.Token) (any, error) {
			return b.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", false
		}
		return claims.Subject, b.UserJSON(claims.Subject) != nil
	}
	return b.sessionUser(r)
}

func (b *Backend) sessionUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[c.Value]
	return id, ok
}

func profile(a account) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"id": a.id, "name": a.name, "email": a.email})
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
