package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PriceRecord is a normalized price observation from one source.
// Records are never mutated, a newer fetch supersedes them.
type PriceRecord struct {
	Asset string          `json:"asset"`
	Price decimal.Decimal `json:"price"`
	// Timestamp is the observation time in epoch milliseconds.
	Timestamp  int64   `json:"timestamp"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Signature  string  `json:"signature,omitempty"`
}

// NewPriceRecord creates a new PriceRecord.
func NewPriceRecord(asset string, price decimal.Decimal, ts time.Time, source Source, confidence float64) PriceRecord {
	return PriceRecord{
		Asset:      asset,
		Price:      price,
		Timestamp:  ts.UnixMilli(),
		Source:     source,
		Confidence: confidence,
	}
}

// Time returns the observation time.
func (r PriceRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Validate checks that the record is well formed.
func (r PriceRecord) Validate() error {
	if !r.Price.IsPositive() {
		return errors.Wrapf(ErrInvalidRecord, "price must be positive, got %s", r.Price.String())
	}
	// NaN fails every comparison, so the range is checked positively.
	if !(r.Confidence >= 0 && r.Confidence <= 1) {
		return errors.Wrapf(ErrInvalidRecord, "confidence must be within [0,1], got %v", r.Confidence)
	}
	if r.Timestamp <= 0 {
		return errors.Wrap(ErrInvalidRecord, "timestamp is required")
	}
	if !r.Source.Valid() {
		return errors.Wrapf(ErrInvalidRecord, "unknown source %q", r.Source)
	}
	return nil
}

// ClampConfidence bounds v to [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
