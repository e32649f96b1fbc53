// Command server runs the offer HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/tourhub/offers/pkg/logger"
	"github.com/tourhub/offers/services/offer/internal/app"
	"github.com/tourhub/offers/services/offer/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("offer service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. With -check-config it only validates
// the environment and reports the settings that shape evaluation.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stdout)
	checkOnly := fs.Bool("check-config", false, "validate the environment and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		_, err := fmt.Fprintf(stdout, "config ok: port=%d timezone=%s cache=%t cache_ttl=%s\n",
			cfg.HTTPPort, cfg.Timezone, cfg.CacheEnabled(), cfg.CacheTTL())
		return err
	}

	log := logger.New("offer-service", cfg.LogLevel)
	log.Info("starting offer service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("timezone", cfg.Timezone),
		slog.Bool("cache_enabled", cfg.CacheEnabled()),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run application: %w", err)
	}

	log.Info("offer service stopped")
	return nil
}
