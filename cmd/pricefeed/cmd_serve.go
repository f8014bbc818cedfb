package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/internal"
	"github.com/vadiminshakov/pricefeed/internal/web"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the price API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed, err := internal.NewPriceFeed(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "failed to start price feed")
	}
	defer func() {
		if err := feed.Close(); err != nil {
			logger.Warn("failed to close price feed", zap.Error(err))
		}
	}()

	opts := []web.Option{web.WithDefaultAssets(cfg.Assets)}
	if cfg.API.RequestsPerSecond > 0 {
		opts = append(opts, web.WithRateLimiter(web.NewRateLimiter(cfg.API.RequestsPerSecond, cfg.API.Burst, logger)))
	}
	server := web.NewServer(cfg.ListenAddr, feed.Oracle, feed.History, logger.With(zap.String("component", "web")), opts...)

	if cfg.TLS.Enabled() {
		err = server.StartWithAutoTLS(ctx, cfg.TLS.Domains, cfg.TLS.CacheDir)
	} else {
		err = server.Start(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("pricefeed stopped")
	return nil
}
