package clients

import (
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns a client for Binance public market data.
// Ticker endpoints need no API keys.
func NewBinanceClient(timeout time.Duration) *binance.Client {
	client := binance.NewClient("", "")
	client.HTTPClient = &http.Client{Timeout: timeout}
	return client
}
