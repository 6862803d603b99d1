package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/campusgive/internal/flagx"
)

var knownFlags = []string{"-b", "-d", "-t", "-p", "-w", "-r", "-l", "-browser"}

// parseFlags overlays cfg with command-line flags.
//
// Supported flags:
//
//	-b string     backend base URL
//	-d string     SQLite database path
//	-t duration   backend request timeout
//	-p duration   popup closure poll interval
//	-w duration   handshake timeout (0 waits forever)
//	-r string     relay listen address
//	-l string     log level
//	-browser str  popup command line
//
// Only the flags above are parsed; other arguments are filtered out with
// flagx.FilterArgs so they cannot break parsing.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("campusgive", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BackendURL, "b", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "SQLite database path")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "backend request timeout")
	fs.DurationVar(&cfg.PopupPollInterval, "p", cfg.PopupPollInterval, "popup closure poll interval")
	fs.DurationVar(&cfg.HandshakeTimeout, "w", cfg.HandshakeTimeout, "handshake timeout, 0 waits forever")
	fs.StringVar(&cfg.RelayAddr, "r", cfg.RelayAddr, "relay listen address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.PopupCommand, "browser", cfg.PopupCommand, "popup command line")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
