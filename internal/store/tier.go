// ABOUTME: Subscription tier enum with a total order
// ABOUTME: Unknown tier strings are rejected instead of ranking as free

package store

import (
	"errors"
	"fmt"
)

// ErrUnknownTier is returned when a tier string is not one of the closed set.
var ErrUnknownTier = errors.New("unknown tier")

// Tier is a subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ValidTiers lists all tiers in ascending order.
var ValidTiers = []Tier{TierFree, TierPro, TierEnterprise}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Valid reports whether t is a member of the closed tier set.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// rank is the position in the order free < pro < enterprise, or -1.
func (t Tier) rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPro:
		return 1
	case TierEnterprise:
		return 2
	default:
		return -1
	}
}

// Less reports whether t ranks strictly below other.
// Both tiers must be valid; callers check with Valid or ParseTier first.
func (t Tier) Less(other Tier) bool {
	return t.rank() < other.rank()
}

// AtLeast reports whether t ranks at or above min. Invalid tiers never qualify.
func (t Tier) AtLeast(min Tier) bool {
	if !t.Valid() || !min.Valid() {
		return false
	}
	return !t.Less(min)
}

func (t Tier) String() string {
	return string(t)
}
