package repository

import (
	"fmt"
	"time"
)

// Resolution is the provider bar size code. Only daily bars are supported.
type Resolution string

const ResolutionDaily Resolution = "D"

// IsValidResolution returns true if r is a supported resolution.
func IsValidResolution(r Resolution) bool {
	return r == ResolutionDaily
}

// ParseResolution converts a raw code to a Resolution.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if !IsValidResolution(r) {
		return "", fmt.Errorf("unsupported resolution: %q", s)
	}
	return r, nil
}

// Unit is the spacing between consecutive bars.
func (r Resolution) Unit() time.Duration {
	return 24 * time.Hour
}
