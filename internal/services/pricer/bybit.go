package pricer

import (
	"context"
	"fmt"

	"github.com/hirokisan/bybit/v2"
	"golang.org/x/time/rate"
)

// NewBybitSource prices assets from the Bybit v5 spot ticker.
func NewBybitSource(client *bybit.Client, quote string, confidence float64, limiter *rate.Limiter) *ExchangeSource {
	return newExchangeSource("bybit", quote, confidence, limiter, func(_ context.Context, symbol string) (string, error) {
		sym := bybit.SymbolV5(symbol)

		result, err := client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &sym,
		})
		if err != nil {
			return "", err
		}
		if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
			return "", fmt.Errorf("bybit API returned empty prices for %s", symbol)
		}
		return result.Result.Spot.List[0].LastPrice, nil
	})
}
