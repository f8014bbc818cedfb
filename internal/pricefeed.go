package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/config"
	"github.com/vadiminshakov/pricefeed/internal/services/cache"
	"github.com/vadiminshakov/pricefeed/internal/services/oracle"
	"github.com/vadiminshakov/pricefeed/internal/storage/pricehistory"
)

// PriceFeed wires the oracle with its sources, cache and history log.
type PriceFeed struct {
	Config  config.Config
	Oracle  *oracle.Manager
	History *pricehistory.WALStore

	closeSources func()
}

// NewPriceFeed creates the price feed described by conf.
func NewPriceFeed(ctx context.Context, conf config.Config, logger *zap.Logger) (*PriceFeed, error) {
	sources, closeSources, err := NewSources(ctx, conf, logger)
	if err != nil {
		return nil, err
	}

	opts := []oracle.Option{oracle.WithMaxConcurrency(conf.MaxConcurrency)}

	// an empty history dir runs without the price log
	var history *pricehistory.WALStore
	if conf.HistoryDir != "" {
		history, err = pricehistory.NewWALStore(conf.HistoryDir)
		if err != nil {
			closeSources()
			return nil, errors.Wrap(err, "failed to open price history")
		}
		opts = append(opts, oracle.WithHistory(history))
	}

	manager := oracle.NewManager(
		logger.With(zap.String("component", "oracle")),
		cache.New(cache.WithTTL(conf.CacheTTL)),
		sources,
		opts...,
	)

	return &PriceFeed{
		Config:       conf,
		Oracle:       manager,
		History:      history,
		closeSources: closeSources,
	}, nil
}

// Close releases the history log and source connections.
func (p *PriceFeed) Close() error {
	p.closeSources()
	if p.History == nil {
		return nil
	}
	return p.History.Close()
}
