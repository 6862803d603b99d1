package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/campusgive/internal/buildinfo"
	"github.com/dmitrijs2005/campusgive/internal/client/cli"
	"github.com/dmitrijs2005/campusgive/internal/client/config"
	"github.com/dmitrijs2005/campusgive/internal/logging"
	"github.com/dmitrijs2005/campusgive/internal/platform/otelx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Environ(), os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires and serves the client. Every deferred cleanup has finished by
// the time it returns.
func run(ctx context.Context, args, environ []string, stdout, stderr io.Writer) error {
	buildinfo.PrintBuildData(stdout)

	cfg, err := config.Load(args, environ)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := logging.NewTextLogger(stderr, level)

	shutdown, err := otelx.Setup(ctx, "campusgive-client", buildinfo.Version(), cfg.OTelEndpoint)
	if err != nil {
		logger.Warn(ctx, "tracing disabled", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn(sctx, "tracing shutdown", "error", err)
		}
	}()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	app.Run(ctx)
	return nil
}
