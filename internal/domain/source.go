// Package domain defines the price oracle's core data structures.
package domain

import "fmt"

// Source identifies which class of feed produced a price.
type Source string

const (
	// SourceOnChain is a round-based on-chain feed (Chainlink aggregator).
	SourceOnChain Source = "on-chain"
	// SourceAggregator is an HTTP aggregator feed (Pyth Hermes).
	SourceAggregator Source = "aggregator"
	// SourceCustom is a generic HTTP or exchange ticker feed.
	SourceCustom Source = "custom"
)

// Priority returns the fallback rank of the source, lower is tried first.
func (s Source) Priority() int {
	switch s {
	case SourceOnChain:
		return 0
	case SourceAggregator:
		return 1
	case SourceCustom:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s.Priority() >= 0
}

// ParseSource converts a string into a Source.
func ParseSource(v string) (Source, error) {
	s := Source(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown price source %q", v)
	}
	return s, nil
}
