//go:build integration

package pricer

import (
	"context"
	"testing"

	"github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBybitSource_Integration calls the real Bybit public API.
// To run this test, use: go test -tags=integration -v ./...
func TestBybitSource_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	src := NewBybitSource(bybit.NewClient(), "USDT", 0, nil)

	t.Run("returns price for BTC", func(t *testing.T) {
		rec, err := src.FetchPrice(context.Background(), "BTC")
		require.NoError(t, err)
		require.NoError(t, rec.Validate())
		t.Logf("Current BTC price: %s", rec.Price.String())
	})

	t.Run("returns error for unknown symbol", func(t *testing.T) {
		_, err := src.FetchPrice(context.Background(), "NOTACOIN")
		assert.Error(t, err)
	})
}
