package pricer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vadiminshakov/pricefeed/internal/domain"
)

const ethPythID = "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"

func pythHandler(t *testing.T, publishTime int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, "0x"+ethPythID, r.URL.Query().Get("ids[]"))
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
  "binary": {"encoding": "hex", "data": ["504e4155"]},
  "parsed": [{
    "id": "%s",
    "price": {"price": "312345000000", "conf": "3123450000", "expo": -8, "publish_time": %d},
    "ema_price": {"price": "311000000000", "conf": "3000000000", "expo": -8, "publish_time": %d}
  }]
}`, ethPythID, publishTime, publishTime)
	}
}

func TestPythSource_FetchPrice(t *testing.T) {
	publish := time.Now().Unix()
	srv := httptest.NewServer(pythHandler(t, publish))
	defer srv.Close()

	src, err := NewPythSource(srv.URL, map[string]string{"eth": "0x" + ethPythID}, srv.Client(), NewLimiter(100, 1))
	require.NoError(t, err)

	rec, err := src.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("3123.45")), "got %s", rec.Price)
	assert.Equal(t, domain.SourceAggregator, rec.Source)
	assert.InDelta(t, 0.99, rec.Confidence, 1e-9)
	assert.Equal(t, publish*1000, rec.Timestamp)
	require.NoError(t, rec.Validate())
}

func TestPythSource_Errors(t *testing.T) {
	t.Run("unsupported asset", func(t *testing.T) {
		src, err := NewPythSource("http://127.0.0.1:1", map[string]string{"ETH": ethPythID}, nil, nil)
		require.NoError(t, err)
		_, err = src.FetchPrice(context.Background(), "BTC")
		assert.ErrorIs(t, err, domain.ErrUnsupportedAsset)
	})

	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		src, err := NewPythSource(srv.URL, map[string]string{"ETH": ethPythID}, srv.Client(), nil)
		require.NoError(t, err)
		_, err = src.FetchPrice(context.Background(), "ETH")
		assert.ErrorContains(t, err, "429")
	})

	t.Run("missing feed in response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"parsed": []}`)
		}))
		defer srv.Close()

		src, err := NewPythSource(srv.URL, map[string]string{"ETH": ethPythID}, srv.Client(), nil)
		require.NoError(t, err)
		_, err = src.FetchPrice(context.Background(), "ETH")
		assert.ErrorContains(t, err, "no update")
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>`)
		}))
		defer srv.Close()

		src, err := NewPythSource(srv.URL, map[string]string{"ETH": ethPythID}, srv.Client(), nil)
		require.NoError(t, err)
		_, err = src.FetchPrice(context.Background(), "ETH")
		assert.ErrorContains(t, err, "not valid JSON")
	})
}

func TestParsePythPrice_WideConfidence(t *testing.T) {
	src := `{"price": "100", "conf": "250", "expo": 0, "publish_time": 1700000000}`
	rec, err := parsePythPrice("XYZ", gjson.Parse(src))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Confidence)
}

func TestNewPythSource_Validation(t *testing.T) {
	_, err := NewPythSource("::bad", nil, nil, nil)
	assert.Error(t, err)

	_, err = NewPythSource("", map[string]string{"ETH": "0x"}, nil, nil)
	assert.Error(t, err)
}
