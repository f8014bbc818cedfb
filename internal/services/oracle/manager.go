// Package oracle resolves asset prices by walking the configured sources in a
// fixed priority order, caching the first valid answer.
package oracle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/pricefeed/internal/domain"
	"github.com/vadiminshakov/pricefeed/internal/metrics"
	"github.com/vadiminshakov/pricefeed/internal/services/pricer"
)

// DefaultMaxConcurrency bounds parallel fetches in GetMultiplePrices.
const DefaultMaxConcurrency = 8

type priceCache interface {
	Get(key string) (domain.PriceRecord, bool)
	Put(key string, record domain.PriceRecord)
}

type historyWriter interface {
	Save(event domain.PriceEvent) error
}

// SourceInfo describes a configured source.
type SourceInfo struct {
	Name     string        `json:"name"`
	Kind     domain.Source `json:"kind"`
	Priority int           `json:"priority"`
}

// Manager is the fallback orchestrator in front of the price sources.
type Manager struct {
	sources        []pricer.Source
	cache          priceCache
	history        historyWriter
	logger         *zap.Logger
	maxConcurrency int
}

// Option configures a Manager.
type Option func(*Manager)

// WithHistory appends every freshly fetched price to h.
func WithHistory(h historyWriter) Option {
	return func(m *Manager) {
		m.history = h
	}
}

// WithMaxConcurrency bounds parallel fetches of GetMultiplePrices.
func WithMaxConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrency = n
		}
	}
}

// NewManager creates a Manager. Sources are ordered by their kind's priority
// (on-chain, aggregator, custom) regardless of the order given.
func NewManager(logger *zap.Logger, cache priceCache, sources []pricer.Source, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	ordered := make([]pricer.Source, 0, len(sources))
	for _, s := range sources {
		if s == nil {
			continue
		}
		if !s.Kind().Valid() {
			logger.Warn("skipping source with unknown kind", zap.String("source", s.Name()), zap.String("kind", string(s.Kind())))
			continue
		}
		ordered = append(ordered, s)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Kind().Priority() < ordered[j].Kind().Priority()
	})

	m := &Manager{
		sources:        ordered,
		cache:          cache,
		logger:         logger,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sources lists the configured sources in the order they are tried.
func (m *Manager) Sources() []SourceInfo {
	out := make([]SourceInfo, 0, len(m.sources))
	for _, s := range m.sources {
		out = append(out, SourceInfo{Name: s.Name(), Kind: s.Kind(), Priority: s.Kind().Priority()})
	}
	return out
}

// FetchPrice returns the cached price of asset or fetches it from the first
// source that answers with a valid record. Each source is tried at most once.
func (m *Manager) FetchPrice(ctx context.Context, asset string) (domain.PriceRecord, error) {
	key, err := domain.NormalizeAsset(asset)
	if err != nil {
		return domain.PriceRecord{}, errors.Wrapf(err, "asset %q", asset)
	}

	if rec, ok := m.cache.Get(key); ok {
		metrics.ObserveCacheLookup(true)
		return rec, nil
	}
	metrics.ObserveCacheLookup(false)

	if len(m.sources) == 0 {
		return domain.PriceRecord{}, domain.ErrNoSourceConfigured
	}

	var lastErr error
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return domain.PriceRecord{}, err
		}

		start := time.Now()
		rec, err := src.FetchPrice(ctx, key)
		if err == nil {
			err = checkRecord(src, key, rec)
		}
		if err != nil {
			m.logSourceFailure(src, key, err, time.Since(start))
			lastErr = errors.Wrap(err, src.Name())
			continue
		}

		metrics.ObserveSourceFetch(src.Name(), metrics.OutcomeSuccess, time.Since(start))
		m.cache.Put(key, rec)
		m.appendHistory(rec)
		return rec, nil
	}

	metrics.ObserveExhausted()
	return domain.PriceRecord{}, errors.Wrapf(lastErr, "all price sources failed for %s", key)
}

// GetMultiplePrices fetches every distinct asset concurrently. Assets that
// cannot be priced are logged and left out of the result.
func (m *Manager) GetMultiplePrices(ctx context.Context, assets []string) map[string]domain.PriceRecord {
	unique := make([]string, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		key, err := domain.NormalizeAsset(a)
		if err != nil {
			m.logger.Warn("skipping invalid asset", zap.String("asset", a))
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]domain.PriceRecord, len(unique))
		g       errgroup.Group
	)
	g.SetLimit(m.maxConcurrency)

	for _, asset := range unique {
		g.Go(func() error {
			rec, err := m.FetchPrice(ctx, asset)
			if err != nil {
				m.logger.Warn("price unavailable", zap.String("asset", asset), zap.Error(err))
				return nil
			}

			mu.Lock()
			results[asset] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func checkRecord(src pricer.Source, asset string, rec domain.PriceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Asset != asset {
		return errors.Wrapf(domain.ErrInvalidRecord, "record is for %q, requested %q", rec.Asset, asset)
	}
	if rec.Source != src.Kind() {
		return errors.Wrapf(domain.ErrInvalidRecord, "record source %q from a %q feed", rec.Source, src.Kind())
	}
	return nil
}

func (m *Manager) logSourceFailure(src pricer.Source, asset string, err error, took time.Duration) {
	fields := []zap.Field{
		zap.String("source", src.Name()),
		zap.String("kind", string(src.Kind())),
		zap.String("asset", asset),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, domain.ErrUnsupportedAsset):
		metrics.ObserveSourceFetch(src.Name(), metrics.OutcomeUnsupported, took)
		m.logger.Debug("source has no feed for asset, trying next", fields...)
	case errors.Is(err, domain.ErrInvalidRecord):
		metrics.ObserveSourceFetch(src.Name(), metrics.OutcomeInvalid, took)
		m.logger.Warn("source returned invalid price, trying next", fields...)
	default:
		metrics.ObserveSourceFetch(src.Name(), metrics.OutcomeError, took)
		m.logger.Warn("source failed, trying next", fields...)
	}
}

func (m *Manager) appendHistory(rec domain.PriceRecord) {
	if m.history == nil {
		return
	}
	if err := m.history.Save(domain.NewPriceEvent(rec)); err != nil {
		m.logger.Warn("failed to append price history", zap.String("asset", rec.Asset), zap.Error(err))
	}
}
