package popup

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/campusgive/internal/client/metrics"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

const DefaultPollInterval = 500 * time.Millisecond

// URLBuilder returns the backend page the popup should open. nonce is the
// one-time address of this handshake; the completion page must post its reply
// to it, and replies that do not carry it are dropped.
type URLBuilder func(provider, state, nonce string) (string, error)

type Driver struct {
	opener   Opener
	source   MessageSource
	origin   string
	startURL URLBuilder

	pollInterval time.Duration
	timeout      time.Duration
	size         Size

	log     logging.Logger
	metrics *metrics.Metrics
}

type DriverOption func(*Driver)

func WithPollInterval(d time.Duration) DriverOption {
	return func(dr *Driver) { dr.pollInterval = d }
}

// WithTimeout bounds how long a handshake may stay pending. Zero waits
// until the window closes or a message arrives.
func WithTimeout(d time.Duration) DriverOption {
	return func(dr *Driver) { dr.timeout = d }
}

func WithSize(s Size) DriverOption {
	return func(dr *Driver) { dr.size = s }
}

func WithMetrics(m *metrics.Metrics) DriverOption {
	return func(dr *Driver) { dr.metrics = m }
}

// NewDriver builds a handshake driver. origin is the backend's exact origin;
// only messages reporting that origin and the running handshake's nonce are
// trusted.
func NewDriver(opener Opener, source MessageSource, origin string, startURL URLBuilder, log logging.Logger, opts ...DriverOption) *Driver {
	d := &Driver{
		opener:       opener,
		source:       source,
		origin:       origin,
		startURL:     startURL,
		pollInterval: DefaultPollInterval,
		size:         DefaultSize,
		log:          log.With("component", "popup"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// resolver lets the first of several racing watchers commit the outcome.
type resolver struct {
	mu      sync.Mutex
	done    bool
	outcome Outcome
	err     error
	stop    context.CancelFunc
}

// resolve records o/err if nothing was recorded yet and stops the other
// watchers before returning. It reports whether this call won.
func (r *resolver) resolve(o Outcome, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return false
	}
	r.done = true
	r.outcome, r.err = o, err
	r.stop()
	return true
}

func (r *resolver) result() (Outcome, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome, r.done, r.err
}

// Run performs one handshake for provider, passing state through to the
// backend untouched.
func (d *Driver) Run(ctx context.Context, provider, state string) (Outcome, error) {
	log := d.log.With("handshake", uuid.NewString(), "provider", provider)
	nonce := uuid.NewString()

	target, err := d.startURL(provider, state, nonce)
	if err != nil {
		return Outcome{}, fmt.Errorf("build popup url: %w", err)
	}

	// subscribe before opening so a reply racing the open is not lost
	msgs, unsubscribe := d.source.Subscribe(8, d.trusted(ctx, log, nonce))
	defer unsubscribe()

	win, err := d.opener.Open(ctx, target, d.size)
	if err != nil {
		if errors.Is(err, ErrPopupBlocked) {
			log.Warn(ctx, "popup blocked", "error", err)
			d.metrics.IncHandshake(provider, Rejected.String())
			return Outcome{Kind: Rejected, Provider: provider, Reason: ReasonPopupBlocked}, nil
		}
		d.metrics.IncHandshake(provider, "error")
		return Outcome{}, fmt.Errorf("open popup: %w", err)
	}
	log.Info(ctx, "popup opened")

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	res := &resolver{stop: stop}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		d.watchClosure(gctx, win, msgs, res, provider)
		return nil
	})
	g.Go(func() error {
		d.watchMessages(gctx, msgs, res, provider)
		return nil
	})
	if d.timeout > 0 {
		g.Go(func() error {
			timer := time.NewTimer(d.timeout)
			defer timer.Stop()
			select {
			case <-gctx.Done():
			case <-timer.C:
				res.resolve(Outcome{Kind: TimedOut, Provider: provider, Reason: ReasonTimedOut}, nil)
			}
			return nil
		})
	}
	_ = g.Wait()

	outcome, done, runErr := res.result()
	if !done {
		// only the caller's ctx can end the watchers without a resolution
		outcome, runErr = Outcome{Kind: Cancelled, Provider: provider, Reason: ReasonPopupClosed}, ctx.Err()
	}

	if !win.Closed() {
		if err := win.Close(); err != nil {
			log.Warn(ctx, "could not close popup", "error", err)
		}
	}

	if runErr != nil {
		d.metrics.IncHandshake(provider, "error")
		log.Error(ctx, "handshake failed", "error", runErr)
		return outcome, runErr
	}
	d.metrics.IncHandshake(provider, outcome.Kind.String())
	log.Info(ctx, "handshake resolved", "outcome", outcome.Kind.String(), "reason", outcome.Reason)
	return outcome, nil
}

// watchClosure polls the window. A message already queued when the close is
// observed takes precedence, since providers usually post and then close.
func (d *Driver) watchClosure(ctx context.Context, win Window, pending <-chan Message, res *resolver, provider string) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !win.Closed() {
				continue
			}
			if len(pending) > 0 {
				continue
			}
			res.resolve(Outcome{Kind: Cancelled, Provider: provider, Reason: ReasonPopupClosed}, nil)
			return
		}
	}
}

func (d *Driver) watchMessages(ctx context.Context, msgs <-chan Message, res *resolver, provider string) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if m.Origin != d.origin {
				continue
			}
			res.resolve(decodeOutcome(m.Data, provider))
			return
		}
	}
}

// trusted accepts only replies posted to this handshake's nonce from the
// backend's exact origin. Everything else is dropped before it can take a
// slot in the subscription buffer.
func (d *Driver) trusted(ctx context.Context, log logging.Logger, nonce string) Filter {
	return func(m Message) bool {
		if subtle.ConstantTimeCompare([]byte(m.Nonce), []byte(nonce)) != 1 {
			log.Warn(ctx, "ignoring message without the handshake nonce", "origin", m.Origin)
			return false
		}
		if m.Origin != d.origin {
			log.Warn(ctx, "ignoring message from unexpected origin", "origin", m.Origin)
			return false
		}
		return true
	}
}
