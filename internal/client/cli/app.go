package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver used by client.InitDatabase

	"github.com/dmitrijs2005/campusgive/internal/client/client"
	"github.com/dmitrijs2005/campusgive/internal/client/config"
	"github.com/dmitrijs2005/campusgive/internal/client/credentials"
	"github.com/dmitrijs2005/campusgive/internal/client/metrics"
	"github.com/dmitrijs2005/campusgive/internal/client/popup"
	"github.com/dmitrijs2005/campusgive/internal/client/popup/browser"
	"github.com/dmitrijs2005/campusgive/internal/client/popup/relay"
	"github.com/dmitrijs2005/campusgive/internal/client/services"
	"github.com/dmitrijs2005/campusgive/internal/logging"
)

// RelayParam is the OAuth start query parameter carrying the per-handshake
// relay URL the callback page posts its result to.
const RelayParam = "relay"

type App struct {
	config      *config.Config
	log         logging.Logger
	authService services.AuthService
	creds       credentials.Reader
	now         func() time.Time
	reader      *bufio.Reader
	out         io.Writer

	db    *sql.DB
	relay *relay.Server
}

// NewApp wires local storage, the backend client, the popup driver and the
// session coordinator from c.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	store := credentials.NewPersistentStore(ctx, db, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	bus := popup.NewBus()
	srv, err := relay.Listen(c.RelayAddr, relay.NewRouter(bus, log, reg), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api, err := client.NewHTTPClient(c.BackendURL,
		client.WithCredentials(store),
		client.WithTimeout(c.RequestTimeout),
		client.WithMetrics(m),
	)
	if err != nil {
		_ = srv.Shutdown(ctx)
		_ = db.Close()
		return nil, err
	}

	opener, err := browser.NewExecOpener(c.PopupCommand, log)
	if err != nil {
		_ = srv.Shutdown(ctx)
		_ = db.Close()
		return nil, err
	}

	startURL := func(provider, state, nonce string) (string, error) {
		return api.OAuthStartURL(provider, state, url.Values{RelayParam: {srv.MessageURL(nonce)}})
	}
	driver := popup.NewDriver(opener, bus, api.Origin(), startURL, log,
		popup.WithPollInterval(c.PopupPollInterval),
		popup.WithTimeout(c.HandshakeTimeout),
		popup.WithMetrics(m),
	)
	as := services.NewAuthService(api, store, driver,
		services.WithLogger(log),
		services.WithMetrics(m),
	)

	log.Info(ctx, "client ready", "backend", api.Origin(), "relay", srv.Addr())

	return &App{
		config:      c,
		log:         log,
		authService: as,
		creds:       store,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		db:          db,
		relay:       srv,
	}, nil
}

// Run performs the startup session check, then serves the REPL until the
// user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	states, unsubscribe := a.authService.Subscribe()
	defer unsubscribe()
	go a.watchState(ctx, states)

	printlnFn("Welcome to campusgive (type 'help' for commands)")
	a.authService.Start(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// watchState logs session transitions that happen behind the user's back,
// e.g. a confirmation check revoking an optimistic social login.
func (a *App) watchState(ctx context.Context, states <-chan services.State) {
	var last services.Status
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if st.Status != last {
				a.log.Debug(ctx, "session state changed", "from", last.String(), "to", st.Status.String())
				last = st.Status
			}
		}
	}
}

// Close releases the relay listener and the database.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.relay != nil {
		if err := a.relay.Shutdown(ctx); err != nil {
			a.log.Warn(ctx, "relay shutdown", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(ctx, "database close", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.authService.State().Authenticated
}
