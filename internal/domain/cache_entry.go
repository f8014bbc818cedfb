package domain

import "time"

// CacheEntry holds a cached price until Expiry (epoch milliseconds).
type CacheEntry struct {
	Data   PriceRecord
	Expiry int64
}

// Expired reports whether the entry is no longer usable at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.UnixMilli() >= e.Expiry
}
