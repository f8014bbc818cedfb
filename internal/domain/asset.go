package domain

import "strings"

// NormalizeAsset returns the canonical cache and feed key for an asset symbol.
func NormalizeAsset(asset string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(asset))
	if a == "" {
		return "", ErrInvalidAsset
	}
	for _, r := range a {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' && r != '/' && r != '.' {
			return "", ErrInvalidAsset
		}
	}
	return a, nil
}
