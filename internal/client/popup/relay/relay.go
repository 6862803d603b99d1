// Package relay is the loopback endpoint through which the backend's popup
// completion page delivers its result to this client.
//
// The page POSTs its JSON payload to /message/{nonce}, where nonce is the
// one-time address the handshake driver handed to the backend. The relay
// forwards the body together with the nonce and the browser-supplied Origin
// header to a popup.Bus and makes no trust decision of its own; the handshake
// driver compares both.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/campusgive/internal/client/popup"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

const maxMessageBytes = 64 << 10

// Publisher receives relayed messages; *popup.Bus implements it.
type Publisher interface {
	Publish(m popup.Message)
}

// NewRouter builds the relay routes. gatherer may be nil to disable /metrics.
func NewRouter(pub Publisher, log logging.Logger, gatherer prometheus.Gatherer) http.Handler {
	h := &handler{pub: pub, log: log.With("component", "relay")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	r.Options("/message/{nonce}", h.preflight)
	r.Post("/message/{nonce}", h.message)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type handler struct {
	pub Publisher
	log logging.Logger
}

func (h *handler) preflight(w http.ResponseWriter, r *http.Request) {
	allowOrigin(w, r)
	w.Header().Set("Access-Control-Allow-Methods", http.MethodPost)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) message(w http.ResponseWriter, r *http.Request) {
	allowOrigin(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "could not read message", http.StatusBadRequest)
		return
	}

	origin := r.Header.Get("Origin")
	h.pub.Publish(popup.Message{Origin: origin, Nonce: chi.URLParam(r, "nonce"), Data: body})
	h.log.Debug(r.Context(), "message relayed", "origin", origin, "bytes", len(body))
	w.WriteHeader(http.StatusNoContent)
}

// allowOrigin lets the posting page read the response. It is not an
// authorization check.
func allowOrigin(w http.ResponseWriter, r *http.Request) {
	if o := r.Header.Get("Origin"); o != "" {
		w.Header().Set("Access-Control-Allow-Origin", o)
		w.Header().Add("Vary", "Origin")
	}
}

// Server runs the relay on a loopback listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log logging.Logger
}

// Listen binds addr (use port 0 for an ephemeral port) and starts serving.
func Listen(addr string, h http.Handler, log logging.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("relay listen %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
		log: log.With("component", "relay"),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "relay stopped", "error", err)
		}
	}()
	return s, nil
}

// Addr is the loopback address the relay listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// MessageURL is the endpoint the popup page of the handshake identified by
// nonce must post to.
func (s *Server) MessageURL(nonce string) string {
	return "http://" + s.Addr() + "/message/" + url.PathEscape(nonce)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
