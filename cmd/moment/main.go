package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/TechTokWithKriti/mic-moment-ui-page/config"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/app"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/cli"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/logging"
	"github.com/TechTokWithKriti/mic-moment-ui-page/internal/output"
)

func main() {
	if err := run(); err != nil {
		var reported *cli.ReportedError
		if !errors.As(err, &reported) {
			output.NewFormatter(os.Stderr).Failure(err)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = log.Sync() }()

	application, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}

	deps := &cli.Dependencies{
		App:    application,
		Config: cfg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		g.Go(func() error {
			if err := application.Metrics.Serve(ctx, addr); err != nil {
				log.Sugar().Warnf("metrics server on %s stopped: %v", addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return cli.NewRootCmd(deps).ExecuteContext(ctx)
	})
	return g.Wait()
}
