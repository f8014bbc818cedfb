package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pricefeed/internal/domain"
	"github.com/vadiminshakov/pricefeed/internal/services/cache"
	"github.com/vadiminshakov/pricefeed/internal/services/pricer"
)

// mockSource is a scripted price source.
type mockSource struct {
	name  string
	kind  domain.Source
	price decimal.Decimal
	conf  float64
	// fail holds assets the source errors on, "*" fails everything
	fail  map[string]error
	calls atomic.Int32
	hook  func(asset string) (domain.PriceRecord, error)
}

func newMockSource(name string, kind domain.Source, price int64) *mockSource {
	return &mockSource{name: name, kind: kind, price: decimal.NewFromInt(price), conf: 0.9, fail: map[string]error{}}
}

func (m *mockSource) Name() string        { return m.name }
func (m *mockSource) Kind() domain.Source { return m.kind }

func (m *mockSource) FetchPrice(_ context.Context, asset string) (domain.PriceRecord, error) {
	m.calls.Add(1)
	if m.hook != nil {
		return m.hook(asset)
	}
	if err, ok := m.fail["*"]; ok {
		return domain.PriceRecord{}, err
	}
	if err, ok := m.fail[asset]; ok {
		return domain.PriceRecord{}, err
	}
	return domain.NewPriceRecord(asset, m.price, time.Now(), m.kind, m.conf), nil
}

type memHistory struct {
	mu     sync.Mutex
	events []domain.PriceEvent
	err    error
}

func (h *memHistory) Save(e domain.PriceEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.events = append(h.events, e)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(sources ...pricer.Source) (*Manager, *cache.PriceCache, *clock) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := cache.New(cache.WithClock(clk.Now))
	return NewManager(zap.NewNop(), c, sources), c, clk
}

func TestManager_FetchPrice_PrimarySource(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 3000)
	agg := newMockSource("pyth", domain.SourceAggregator, 3001)
	m, _, _ := newManager(onchain, agg)

	rec, err := m.FetchPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceOnChain, rec.Source)
	assert.Equal(t, "ETH", rec.Asset)
	assert.True(t, rec.Price.IsPositive())
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
	assert.Equal(t, int32(0), agg.calls.Load(), "fallback must not run when primary succeeds")
}

func TestManager_FetchPrice_CachedWithinTTL(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 3000)
	m, _, clk := newManager(onchain)

	first, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)

	clk.Advance(cache.DefaultTTL - time.Second)
	second, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)

	assert.Equal(t, first, second, "cached record must be returned unchanged")
	assert.Equal(t, int32(1), onchain.calls.Load())
}

func TestManager_FetchPrice_RefetchAfterTTL(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 3000)
	m, _, clk := newManager(onchain)

	_, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)

	clk.Advance(cache.DefaultTTL + time.Second)
	_, err = m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	_, err = m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)

	assert.Equal(t, int32(2), onchain.calls.Load(), "expiry triggers exactly one refetch")
}

func TestManager_FetchPrice_FallsBackToAggregator(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 3000)
	onchain.fail["*"] = errors.New("rpc unavailable")
	agg := newMockSource("pyth", domain.SourceAggregator, 3001)
	custom := newMockSource("http", domain.SourceCustom, 3002)
	m, _, _ := newManager(onchain, agg, custom)

	rec, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAggregator, rec.Source)
	assert.True(t, rec.Price.Equal(decimal.NewFromInt(3001)))
	assert.Equal(t, int32(1), onchain.calls.Load(), "failed source must not be retried")
	assert.Equal(t, int32(0), custom.calls.Load())
}

func TestManager_FetchPrice_PriorityIgnoresConfigOrder(t *testing.T) {
	custom := newMockSource("http", domain.SourceCustom, 3)
	agg := newMockSource("pyth", domain.SourceAggregator, 2)
	onchain := newMockSource("chainlink", domain.SourceOnChain, 1)
	m, _, _ := newManager(custom, agg, onchain)

	infos := m.Sources()
	require.Len(t, infos, 3)
	assert.Equal(t, "chainlink", infos[0].Name)
	assert.Equal(t, "pyth", infos[1].Name)
	assert.Equal(t, "http", infos[2].Name)

	rec, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceOnChain, rec.Source)
}

func TestManager_UnknownKindIsSkipped(t *testing.T) {
	rogue := newMockSource("rogue", domain.Source("dex"), 7)
	onchain := newMockSource("chainlink", domain.SourceOnChain, 1)
	m, _, _ := newManager(rogue, onchain)

	infos := m.Sources()
	require.Len(t, infos, 1)
	assert.Equal(t, "chainlink", infos[0].Name)

	rec, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceOnChain, rec.Source)
	assert.Zero(t, rogue.calls.Load())
}

func TestManager_FetchPrice_AllSourcesFail(t *testing.T) {
	lastErr := errors.New("custom feed down")
	onchain := newMockSource("chainlink", domain.SourceOnChain, 1)
	onchain.fail["*"] = errors.New("rpc unavailable")
	agg := newMockSource("pyth", domain.SourceAggregator, 1)
	agg.fail["*"] = domain.ErrUnsupportedAsset
	custom := newMockSource("http", domain.SourceCustom, 1)
	custom.fail["*"] = lastErr
	m, c, _ := newManager(onchain, agg, custom)

	_, err := m.FetchPrice(context.Background(), "ETH")
	require.Error(t, err)
	assert.ErrorIs(t, err, lastErr, "the last source's error is reported")

	_, cached := c.Get("ETH")
	assert.False(t, cached, "failures must not be cached")
	assert.Equal(t, 0, c.Len())

	// nothing cached, so the chain runs again
	_, err = m.FetchPrice(context.Background(), "ETH")
	require.Error(t, err)
	assert.Equal(t, int32(2), onchain.calls.Load())
}

func TestManager_FetchPrice_InvalidRecordFallsThrough(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 0) // zero price
	agg := newMockSource("pyth", domain.SourceAggregator, 10)
	agg.conf = 1.5 // out of range
	custom := newMockSource("http", domain.SourceCustom, 42)
	m, _, _ := newManager(onchain, agg, custom)

	rec, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCustom, rec.Source)
	require.NoError(t, rec.Validate())
}

func TestManager_FetchPrice_RejectsMismatchedRecord(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 1)
	onchain.hook = func(string) (domain.PriceRecord, error) {
		return domain.NewPriceRecord("BTC", decimal.NewFromInt(1), time.Now(), domain.SourceOnChain, 1), nil
	}
	m, _, _ := newManager(onchain)

	_, err := m.FetchPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestManager_FetchPrice_NoSources(t *testing.T) {
	m, _, _ := newManager()

	_, err := m.FetchPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, domain.ErrNoSourceConfigured)
}

func TestManager_FetchPrice_InvalidAsset(t *testing.T) {
	m, _, _ := newManager(newMockSource("chainlink", domain.SourceOnChain, 1))

	_, err := m.FetchPrice(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)
}

func TestManager_FetchPrice_CancelledContext(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 1)
	m, _, _ := newManager(onchain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.FetchPrice(ctx, "ETH")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), onchain.calls.Load())
}

func TestManager_FetchPrice_AppendsHistory(t *testing.T) {
	onchain := newMockSource("chainlink", domain.SourceOnChain, 3000)
	hist := &memHistory{}
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	m := NewManager(zap.NewNop(), cache.New(cache.WithClock(clk.Now)), []pricer.Source{onchain}, WithHistory(hist))

	_, err := m.FetchPrice(context.Background(), "ETH")
	require.NoError(t, err)
	_, err = m.FetchPrice(context.Background(), "ETH") // cache hit
	require.NoError(t, err)

	require.Len(t, hist.events, 1, "only fresh fetches are recorded")
	assert.Equal(t, "ETH", hist.events[0].Asset)

	hist.err = errors.New("disk full")
	clk.Advance(time.Minute)
	_, err = m.FetchPrice(context.Background(), "ETH")
	assert.NoError(t, err, "history failures do not fail the fetch")
}

func TestManager_GetMultiplePrices(t *testing.T) {
	defer goleak.VerifyNone(t)

	onchain := newMockSource("chainlink", domain.SourceOnChain, 100)
	onchain.fail["BTC"] = errors.New("no round")
	agg := newMockSource("pyth", domain.SourceAggregator, 100)
	agg.fail["BTC"] = errors.New("timeout")
	m, _, _ := newManager(onchain, agg)

	prices := m.GetMultiplePrices(context.Background(), []string{"ETH", "btc", "eth", ""})
	require.Len(t, prices, 1)
	assert.Contains(t, prices, "ETH")
	assert.NotContains(t, prices, "BTC")
	assert.Equal(t, int32(1), agg.calls.Load(), "only BTC reaches the aggregator")
}

func TestManager_GetMultiplePrices_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	var inflight, peak atomic.Int32
	release := make(chan struct{})
	onchain := newMockSource("chainlink", domain.SourceOnChain, 1)
	onchain.hook = func(asset string) (domain.PriceRecord, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inflight.Add(-1)
		return domain.NewPriceRecord(asset, decimal.NewFromInt(1), time.Now(), domain.SourceOnChain, 1), nil
	}

	c := cache.New()
	m := NewManager(zap.NewNop(), c, []pricer.Source{onchain}, WithMaxConcurrency(2))

	done := make(chan map[string]domain.PriceRecord)
	go func() {
		done <- m.GetMultiplePrices(context.Background(), []string{"A", "B", "C", "D"})
	}()

	require.Eventually(t, func() bool { return inflight.Load() == 2 }, time.Second, time.Millisecond)
	close(release)

	prices := <-done
	assert.Len(t, prices, 4)
	assert.Equal(t, int32(2), peak.Load())
}
