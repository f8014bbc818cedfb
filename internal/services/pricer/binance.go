package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

// NewBinanceSource prices assets from the Binance public spot ticker without authentication.
func NewBinanceSource(client *binance.Client, quote string, confidence float64, limiter *rate.Limiter) *ExchangeSource {
	return newExchangeSource("binance", quote, confidence, limiter, func(ctx context.Context, symbol string) (string, error) {
		prices, err := client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return "", err
		}
		if len(prices) == 0 {
			return "", fmt.Errorf("binance API returned empty prices for %s", symbol)
		}
		return prices[0].Price, nil
	})
}
