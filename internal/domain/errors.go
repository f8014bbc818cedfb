package domain

import "github.com/pkg/errors"

var (
	// ErrNoSourceConfigured is returned when the oracle has no price source to ask.
	ErrNoSourceConfigured = errors.New("no price source configured")
	// ErrInvalidAsset is returned for an empty or malformed asset symbol.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrUnsupportedAsset is returned by a source that has no feed for the asset.
	ErrUnsupportedAsset = errors.New("asset not supported by source")
	// ErrInvalidRecord is returned when a source produced a malformed price record.
	ErrInvalidRecord = errors.New("invalid price record")
	// ErrStalePrice is returned when a feed answer is older than allowed.
	ErrStalePrice = errors.New("stale price")
	// ErrInvalidSignature is returned when a signed price does not verify.
	ErrInvalidSignature = errors.New("invalid price signature")
)
