package pricer

import (
	"context"
	"fmt"

	hyperliquid "github.com/sonirico/go-hyperliquid"
	"golang.org/x/time/rate"
)

// HyperliquidQuote is the settlement currency of Hyperliquid mid prices.
const HyperliquidQuote = "USDC"

// NewHyperliquidSource prices assets from Hyperliquid mid prices.
// Mids are keyed by base coin, so the quote is used only to price itself at par.
func NewHyperliquidSource(info *hyperliquid.Info, confidence float64, limiter *rate.Limiter) *ExchangeSource {
	src := newExchangeSource("hyperliquid", HyperliquidQuote, confidence, limiter, func(ctx context.Context, coin string) (string, error) {
		if info == nil {
			return "", fmt.Errorf("hyperliquid info client is nil")
		}
		mids, err := info.AllMids(ctx)
		if err != nil {
			return "", err
		}
		mid, ok := mids[coin]
		if !ok || mid == "" {
			return "", fmt.Errorf("hyperliquid API returned empty mid price for %s", coin)
		}
		return mid, nil
	})
	src.symbol = func(asset, _ string) string { return asset }
	return src
}
