package pricer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pricefeed/internal/clients"
	"github.com/vadiminshakov/pricefeed/internal/domain"
)

func TestExchangeSource_FetchPrice(t *testing.T) {
	var requested string
	src := newExchangeSource("test", "usdc", 0.9, nil, func(_ context.Context, symbol string) (string, error) {
		requested = symbol
		return "101.25", nil
	})

	rec, err := src.FetchPrice(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDC", requested)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("101.25")))
	assert.Equal(t, domain.SourceCustom, rec.Source)
	assert.Equal(t, 0.9, rec.Confidence)
}

func TestExchangeSource_QuoteAssetIsPar(t *testing.T) {
	src := newExchangeSource("test", "", 0, nil, func(context.Context, string) (string, error) {
		t.Fatal("ticker must not be called for the quote asset")
		return "", nil
	})

	rec, err := src.FetchPrice(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, DefaultCustomConfidence, rec.Confidence)
}

func TestExchangeSource_Errors(t *testing.T) {
	t.Run("ticker failure", func(t *testing.T) {
		src := newExchangeSource("test", "", 0, nil, func(context.Context, string) (string, error) {
			return "", errors.New("maintenance")
		})
		_, err := src.FetchPrice(context.Background(), "ETH")
		assert.ErrorContains(t, err, "maintenance")
	})

	t.Run("zero price", func(t *testing.T) {
		src := newExchangeSource("test", "", 0, nil, func(context.Context, string) (string, error) {
			return "0", nil
		})
		_, err := src.FetchPrice(context.Background(), "ETH")
		assert.Error(t, err)
	})

	t.Run("cancelled while rate limited", func(t *testing.T) {
		limiter := NewLimiter(0.001, 1)
		require.True(t, limiter.Allow())
		src := newExchangeSource("test", "", 0, limiter, func(context.Context, string) (string, error) {
			return "1", nil
		})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := src.FetchPrice(ctx, "ETH")
		assert.Error(t, err)
	})
}

func TestBinanceSource_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"64000.12000000"}`)
	}))
	defer srv.Close()

	client := binance.NewClient("", "")
	client.BaseURL = srv.URL

	rec, err := NewBinanceSource(client, "USDT", 0.85, nil).FetchPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("64000.12")))
	assert.Equal(t, 0.85, rec.Confidence)
}

func TestHyperliquidSource_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)
		fmt.Fprint(w, `{"BTC":"64010.5","ETH":"3001.25"}`)
	}))
	defer srv.Close()

	src := NewHyperliquidSource(clients.NewHyperliquidInfo(srv.URL), 0.9, nil)
	assert.Equal(t, "hyperliquid", src.Name())

	rec, err := src.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("3001.25")))
	assert.Equal(t, domain.SourceCustom, rec.Source)
	assert.Equal(t, 0.9, rec.Confidence)

	_, err = src.FetchPrice(context.Background(), "DOGE")
	assert.ErrorContains(t, err, "empty mid price for DOGE")

	rec, err = src.FetchPrice(context.Background(), HyperliquidQuote)
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(1)))
}

func TestHyperliquidSource_NilInfo(t *testing.T) {
	_, err := NewHyperliquidSource(nil, 0, nil).FetchPrice(context.Background(), "BTC")
	assert.ErrorContains(t, err, "nil")
}
