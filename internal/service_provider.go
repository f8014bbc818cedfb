package internal

import (
	"fmt"
	"net/http"

	"github.com/vadiminshakov/pricefeed/config"
	"github.com/vadiminshakov/pricefeed/internal/clients"
	"github.com/vadiminshakov/pricefeed/internal/services/pricer"
)

// newCustomSource creates the custom-class source for the configured provider.
// This is the single point of truth for dispatching to provider-specific implementations.
func newCustomSource(cfg *config.CustomConfig) (pricer.Source, error) {
	limiter := pricer.NewLimiter(cfg.RequestsPerSecond, 1)

	switch cfg.Provider {
	case config.ProviderHTTP:
		header := http.Header{}
		if cfg.APIKey != "" {
			header.Set(cfg.APIKeyHeader, cfg.APIKey)
		}
		return pricer.NewHTTPSource(pricer.HTTPSourceConfig{
			URL:            cfg.URL,
			Header:         header,
			Assets:         cfg.Assets,
			PricePath:      cfg.PricePath,
			TimestampPath:  cfg.TimestampPath,
			ConfidencePath: cfg.ConfidencePath,
			SignaturePath:  cfg.SignaturePath,
			Confidence:     cfg.Confidence,
			Signer:         cfg.Signer,
		}, &http.Client{Timeout: cfg.Timeout}, limiter)
	case config.ProviderBinance:
		return pricer.NewBinanceSource(clients.NewBinanceClient(cfg.Timeout), cfg.Quote, cfg.Confidence, limiter), nil
	case config.ProviderBybit:
		return pricer.NewBybitSource(clients.NewBybitClient(cfg.Timeout), cfg.Quote, cfg.Confidence, limiter), nil
	case config.ProviderHyperliquid:
		return pricer.NewHyperliquidSource(clients.NewHyperliquidInfo(cfg.URL), cfg.Confidence, limiter), nil
	default:
		return nil, fmt.Errorf("unsupported custom provider: %s", cfg.Provider)
	}
}
