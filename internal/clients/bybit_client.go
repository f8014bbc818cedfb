package clients

import (
	"net/http"
	"time"

	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient returns an unauthenticated Bybit client for public market data.
func NewBybitClient(timeout time.Duration) *bybit.Client {
	return bybit.NewClient().WithHTTPClient(&http.Client{Timeout: timeout})
}
