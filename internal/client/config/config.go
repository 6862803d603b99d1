package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/campusgive/internal/client/popup/browser"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime settings for the campusgive client.
//
// Fields:
//   - BackendURL: base URL of the marketplace auth backend; its origin is the
//     only origin trusted for handshake messages.
//   - DatabasePath: SQLite file holding the persisted credential.
//   - RequestTimeout: upper bound for a single backend call.
//   - PopupPollInterval: how often an open popup is checked for closure.
//   - HandshakeTimeout: how long a popup may stay open; 0 waits forever.
//   - PopupCommand: browser command line, see browser.DefaultCommand.
//   - RelayAddr: listen address of the loopback message relay.
//   - LogLevel: debug, info, warn or error.
//   - OTelEndpoint: OTLP/HTTP collector; empty disables trace export.
type Config struct {
	BackendURL        string        `env:"BACKEND_URL"`
	DatabasePath      string        `env:"DATABASE_PATH"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"`
	PopupPollInterval time.Duration `env:"POPUP_POLL_INTERVAL"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT"`
	PopupCommand      string        `env:"POPUP_COMMAND"`
	RelayAddr         string        `env:"RELAY_ADDR"`
	LogLevel          string        `env:"LOG_LEVEL"`
	OTelEndpoint      string        `env:"OTEL_ENDPOINT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendURL = "http://localhost:8080"
	c.DatabasePath = "campusgive.sqlite"
	c.RequestTimeout = 15 * time.Second
	c.PopupPollInterval = 500 * time.Millisecond
	c.HandshakeTimeout = 5 * time.Minute
	c.PopupCommand = browser.DefaultCommand
	c.RelayAddr = "127.0.0.1:0"
	c.LogLevel = "info"
	c.OTelEndpoint = ""
}

// Load builds a Config from defaults, then a JSON file (-c/-config), then
// environment variables prefixed with CAMPUSGIVE_, then flags. Later sources
// take precedence. args excludes the program name; environ is in os.Environ
// form.
func Load(args, environ []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, environ); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would only fail later and less clearly.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend url %q must be absolute", ErrInvalidConfig, c.BackendURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.PopupPollInterval <= 0 {
		return fmt.Errorf("%w: popup poll interval must be positive", ErrInvalidConfig)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: handshake timeout must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.PopupCommand) == "" {
		return fmt.Errorf("%w: popup command is empty", ErrInvalidConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return l, nil
}
