package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/dmitrijs2005/campusgive/internal/client/credentials"
	"github.com/dmitrijs2005/campusgive/internal/client/metrics"
	"github.com/dmitrijs2005/campusgive/internal/common"
)

const maxBodyBytes = 1 << 20

// Endpoints are the backend paths, relative to the base URL.
// OAuthStart may contain a {provider} placeholder.
type Endpoints struct {
	VerifySession    string
	Register         string
	Login            string
	EstablishSession string
	Logout           string
	OAuthStart       string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		VerifySession:    "/auth/session",
		Register:         "/auth/register",
		Login:            "/auth/login",
		EstablishSession: "/auth/session/establish",
		Logout:           "/auth/logout",
		OAuthStart:       "/auth/{provider}",
	}
}

type HTTPClient struct {
	base      *url.URL
	endpoints Endpoints
	http      *http.Client
	tokens    credentials.Reader
	timeout   time.Duration
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client. If it has no cookie
// jar one is installed, since session cookies must always travel.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

func WithEndpoints(e Endpoints) Option {
	return func(c *HTTPClient) { c.endpoints = e }
}

// WithTimeout bounds every single request; zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.timeout = d }
}

// WithCredentials makes the client attach the stored bearer token.
func WithCredentials(r credentials.Reader) Option {
	return func(c *HTTPClient) { c.tokens = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *HTTPClient) { c.metrics = m }
}

// NewHTTPClient builds a client for the backend rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	base.Host = canonicalHost(base)

	c := &HTTPClient{
		base:      base,
		endpoints: DefaultEndpoints(),
		timeout:   15 * time.Second,
		tracer:    otel.Tracer("github.com/dmitrijs2005/campusgive/internal/client/client"),
	}
	for _, o := range opts {
		o(c)
	}

	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// canonicalHost lowercases the host and drops the scheme's default port, the
// way browsers serialize an origin.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port == "" {
		return host
	}
	return host + ":" + port
}

// Origin is the backend's exact origin (scheme://host[:port]) in the form a
// browser reports it; popup messages are trusted only when they come from it.
func (c *HTTPClient) Origin() string {
	return c.base.Scheme + "://" + c.base.Host
}

// OAuthStartURL is the page the popup opens for provider. The opaque state
// payload is passed through untouched. extra is added to the query, e.g.
// where the completion page should deliver its message.
func (c *HTTPClient) OAuthStartURL(provider, state string, extra url.Values) (string, error) {
	if provider == "" || strings.ContainsAny(provider, "/?#") {
		return "", fmt.Errorf("invalid provider %q", provider)
	}
	u := c.resolve(strings.ReplaceAll(c.endpoints.OAuthStart, "{provider}", url.PathEscape(provider)))
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *HTTPClient) VerifySession(ctx context.Context) (*AuthResponse, error) {
	const op = "verify-session"
	var out AuthResponse
	if err := c.do(ctx, op, http.MethodGet, c.endpoints.VerifySession, nil, &out); err != nil {
		return &out, err
	}
	if !out.AuthSuccess || !out.HasUser() {
		return &out, &Error{Op: op, Kind: KindRejected, Status: http.StatusOK, Message: messageOr(out.Message, "session not authenticated")}
	}
	return &out, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "register", c.endpoints.Register, req)
}

func (c *HTTPClient) PasswordLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "password-login", c.endpoints.Login, req)
}

func (c *HTTPClient) authCall(ctx context.Context, op, path string, body any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, op, http.MethodPost, path, body, &out); err != nil {
		return &out, err
	}
	if !out.AuthSuccess {
		return &out, &Error{Op: op, Kind: KindRejected, Status: http.StatusOK, Message: messageOr(out.Message, op+" rejected")}
	}
	return &out, nil
}

func (c *HTTPClient) EstablishSession(ctx context.Context) (*EstablishResponse, error) {
	const op = "session-establish"
	var out EstablishResponse
	if err := c.do(ctx, op, http.MethodPost, c.endpoints.EstablishSession, struct{}{}, &out); err != nil {
		return &out, err
	}
	if !out.Success {
		return &out, &Error{Op: op, Kind: KindRejected, Status: http.StatusOK, Message: messageOr(out.Error, "session could not be established")}
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, c.endpoints.Logout, struct{}{}, nil)
}

// do performs one JSON round trip. A non-2xx body is still decoded into out
// when possible so callers can read backend messages.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "auth."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method), attribute.String("url.path", path)))
	start := time.Now()
	defer func() {
		result := "ok"
		if e, ok := AsError(err); ok {
			result = e.Kind.String()
			span.SetStatus(codes.Error, e.Message)
			span.RecordError(err)
		}
		c.metrics.ObserveBackendRequest(op, result, time.Since(start))
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		b, mErr := json.Marshal(body)
		if mErr != nil {
			return &Error{Op: op, Kind: KindDecode, Message: "encode request", Err: mErr}
		}
		reader = bytes.NewReader(b)
	}

	req, rErr := http.NewRequestWithContext(ctx, method, c.resolve(path).String(), reader)
	if rErr != nil {
		return &Error{Op: op, Kind: KindTransport, Message: "build request", Err: rErr}
	}
	req.Header.Set(common.ContentTypeHeaderName, common.ContentTypeJSON)
	req.Header.Set("Accept", common.ContentTypeJSON)
	if c.tokens != nil {
		if tok, ok := c.tokens.Get(ctx); ok {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+string(tok))
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, dErr := c.http.Do(req)
	if dErr != nil {
		return &Error{Op: op, Kind: KindTransport, Message: transportMessage(dErr), Err: dErr}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Message: "read response body", Err: readErr}
	}

	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok2xx {
		if out != nil && len(bytes.TrimSpace(raw)) > 0 {
			_ = json.Unmarshal(raw, out)
		}
		return &Error{Op: op, Kind: KindHTTP, Status: resp.StatusCode, Message: messageOr(bodyMessage(raw), http.StatusText(resp.StatusCode))}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Message: "empty response body"}
		}
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Message: "malformed response body", Err: uErr}
	}
	return nil
}

func (c *HTTPClient) resolve(path string) *url.URL {
	u := *c.base
	rel, err := url.Parse(path)
	if err != nil {
		u.Path = strings.TrimRight(u.Path, "/") + path
		return &u
	}
	u.Path = strings.TrimRight(u.Path, "/") + rel.Path
	u.RawQuery = rel.RawQuery
	return &u
}

// bodyMessage pulls "message" or "error" out of a JSON error body.
func bodyMessage(raw []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &m) != nil {
		return ""
	}
	return messageOr(m.Message, m.Error)
}

func transportMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "backend unreachable"
	}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
