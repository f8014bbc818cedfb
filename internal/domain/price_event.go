package domain

import "github.com/google/uuid"

// PriceEvent is a fetched price as written to the history log.
type PriceEvent struct {
	ID     string      `json:"id"`
	Asset  string      `json:"asset"`
	Record PriceRecord `json:"record"`
}

// NewPriceEvent wraps a freshly fetched record.
func NewPriceEvent(record PriceRecord) PriceEvent {
	return PriceEvent{
		ID:     uuid.New().String(),
		Asset:  record.Asset,
		Record: record,
	}
}

// PriceEventRecord bundles a price event with its history index.
type PriceEventRecord struct {
	Index uint64
	Event PriceEvent
}
