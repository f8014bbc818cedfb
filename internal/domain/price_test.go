package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceRecord_Validate(t *testing.T) {
	ts := time.UnixMilli(1_700_000_000_000)
	valid := NewPriceRecord("ETH", decimal.NewFromInt(3000), ts, SourceOnChain, 0.99)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r PriceRecord) PriceRecord
	}{
		{"zero price", func(r PriceRecord) PriceRecord { r.Price = decimal.Zero; return r }},
		{"negative price", func(r PriceRecord) PriceRecord { r.Price = decimal.NewFromInt(-1); return r }},
		{"confidence above one", func(r PriceRecord) PriceRecord { r.Confidence = 1.01; return r }},
		{"negative confidence", func(r PriceRecord) PriceRecord { r.Confidence = -0.1; return r }},
		{"NaN confidence", func(r PriceRecord) PriceRecord { r.Confidence = math.NaN(); return r }},
		{"infinite confidence", func(r PriceRecord) PriceRecord { r.Confidence = math.Inf(1); return r }},
		{"missing timestamp", func(r PriceRecord) PriceRecord { r.Timestamp = 0; return r }},
		{"unknown source", func(r PriceRecord) PriceRecord { r.Source = "oracle"; return r }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestPriceRecord_Time(t *testing.T) {
	ts := time.UnixMilli(1_700_000_000_123)
	r := NewPriceRecord("BTC", decimal.NewFromInt(1), ts, SourceCustom, 0.5)
	assert.Equal(t, int64(1_700_000_000_123), r.Timestamp)
	assert.True(t, r.Time().Equal(ts))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-3))
	assert.Equal(t, 1.0, ClampConfidence(7))
	assert.Equal(t, 0.25, ClampConfidence(0.25))
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
}

func TestSource_Priority(t *testing.T) {
	assert.Less(t, SourceOnChain.Priority(), SourceAggregator.Priority())
	assert.Less(t, SourceAggregator.Priority(), SourceCustom.Priority())
	assert.False(t, Source("binance").Valid())

	s, err := ParseSource("aggregator")
	require.NoError(t, err)
	assert.Equal(t, SourceAggregator, s)

	_, err = ParseSource("nope")
	assert.Error(t, err)
}

func TestNormalizeAsset(t *testing.T) {
	a, err := NormalizeAsset("  eth ")
	require.NoError(t, err)
	assert.Equal(t, "ETH", a)

	_, err = NormalizeAsset("   ")
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = NormalizeAsset("eth;drop")
	assert.ErrorIs(t, err, ErrInvalidAsset)
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.UnixMilli(10_000)
	e := CacheEntry{Expiry: 10_001}
	assert.False(t, e.Expired(now))
	assert.True(t, e.Expired(now.Add(time.Millisecond)))
}

func TestNewPriceEvent(t *testing.T) {
	r := NewPriceRecord("SOL", decimal.NewFromInt(150), time.Now(), SourceAggregator, 0.9)
	e1 := NewPriceEvent(r)
	e2 := NewPriceEvent(r)
	assert.Equal(t, "SOL", e1.Asset)
	assert.NotEmpty(t, e1.ID)
	assert.NotEqual(t, e1.ID, e2.ID)
}
