package clients

import (
	"context"

	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// NewHyperliquidInfo returns a keyless client for the Hyperliquid Info API.
// Empty metadata keeps the SDK from fetching the asset universe on construction,
// mid prices are keyed by coin name and need no asset indices.
func NewHyperliquidInfo(baseURL string) *hyperliquid.Info {
	if baseURL == "" {
		baseURL = hyperliquid.MainnetAPIURL
	}
	return hyperliquid.NewInfo(context.Background(), baseURL, true, &hyperliquid.Meta{}, &hyperliquid.SpotMeta{})
}
