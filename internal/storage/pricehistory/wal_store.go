// Package pricehistory keeps an append-only log of fetched prices.
package pricehistory

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/pricefeed/internal/domain"
)

const (
	DefaultDir   = "./wal/prices"
	segmentLimit = 1000
	maxSegments  = 100

	priceKeyPrefix = "price_"
)

var errNotInitialized = errors.New("price history store is not initialized")

// WALStore persists price events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed price history under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "prices_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init price history WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the price event.
func (s *WALStore) Save(event domain.PriceEvent) error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}
	if event.Asset == "" {
		return errors.New("price event asset is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal price event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, priceKeyPrefix+event.Asset, payload)
}

// EventsAfter returns all price events written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.PriceEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.PriceEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			// segment already rotated away
			continue
		}
		if !strings.HasPrefix(key, priceKeyPrefix) {
			continue
		}

		var event domain.PriceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode price event")
		}
		records = append(records, domain.PriceEventRecord{Index: idx, Event: event})
	}

	return records, nil
}

// Recent returns up to limit most recent records of asset, oldest first.
func (s *WALStore) Recent(asset string, limit int) ([]domain.PriceRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}
	if limit <= 0 {
		return nil, nil
	}

	key := priceKeyPrefix + asset

	s.mu.RLock()
	defer s.mu.RUnlock()

	var reversed []domain.PriceRecord
	for idx := s.wal.CurrentIndex(); idx > 0 && len(reversed) < limit; idx-- {
		k, payload, err := s.wal.Get(idx)
		if err != nil {
			break
		}
		if k != key {
			continue
		}

		var event domain.PriceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode price event")
		}
		reversed = append(reversed, event.Record)
	}

	out := make([]domain.PriceRecord, len(reversed))
	for i, r := range reversed {
		out[len(reversed)-1-i] = r
	}
	return out, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
