package internal

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/config"
	"github.com/vadiminshakov/pricefeed/internal/clients"
	"github.com/vadiminshakov/pricefeed/internal/services/pricer"
)

// NewSources builds every configured price source. The returned func releases
// connections held by the sources.
func NewSources(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]pricer.Source, func(), error) {
	var (
		sources []pricer.Source
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if c := cfg.Chainlink; c != nil {
		eth, err := clients.NewEthereumClient(ctx, c.RPCURL, c.ChainID, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create chainlink source")
		}
		closers = append(closers, eth.Close)

		src, err := pricer.NewChainlinkSource(eth, c.Feeds, c.MaxStaleness)
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrap(err, "failed to create chainlink source")
		}
		sources = append(sources, src)
	}

	if p := cfg.Pyth; p != nil {
		src, err := pricer.NewPythSource(p.Endpoint, p.Feeds, &http.Client{Timeout: config.DefaultTimeout},
			pricer.NewLimiter(p.RequestsPerSecond, 1))
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrap(err, "failed to create pyth source")
		}
		sources = append(sources, src)
	}

	if c := cfg.Custom; c != nil {
		src, err := newCustomSource(c)
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrap(err, "failed to create custom source")
		}
		sources = append(sources, src)
	}

	for _, s := range sources {
		logger.Info("price source configured", zap.String("source", s.Name()), zap.String("kind", string(s.Kind())))
	}
	if len(sources) == 0 {
		logger.Warn("no price sources configured, every fetch will fail")
	}

	return sources, closeAll, nil
}
