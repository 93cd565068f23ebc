package types

import "fmt"

// ReactionKind is the closed set of reaction types.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "LIKE"
	ReactionLove  ReactionKind = "LOVE"
	ReactionCare  ReactionKind = "CARE"
	ReactionHaha  ReactionKind = "HAHA"
	ReactionWow   ReactionKind = "WOW"
	ReactionSad   ReactionKind = "SAD"
	ReactionAngry ReactionKind = "ANGRY"
)

// ReactionKinds lists every valid kind in a stable order.
var ReactionKinds = []ReactionKind{
	ReactionLike, ReactionLove, ReactionCare, ReactionHaha,
	ReactionWow, ReactionSad, ReactionAngry,
}

// Valid reports whether the kind is one of the enumerated set.
func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionLike, ReactionLove, ReactionCare, ReactionHaha,
		ReactionWow, ReactionSad, ReactionAngry:
		return true
	}
	return false
}

// ParseReactionKind converts a wire value into a ReactionKind.
func ParseReactionKind(s string) (ReactionKind, error) {
	k := ReactionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReactionKind, s)
	}
	return k, nil
}

// ReactionCounts is the per-post projection of the reaction list: a count per
// kind plus a total. Invariant: Total always equals the sum of ByKind.
type ReactionCounts struct {
	ByKind map[ReactionKind]int `json:"by_kind,omitempty"`
	Total  int                  `json:"total"`
}

// NewReactionCounts returns an empty counts projection.
func NewReactionCounts() *ReactionCounts {
	return &ReactionCounts{ByKind: make(map[ReactionKind]int)}
}

// Clone returns an independent copy.
func (c *ReactionCounts) Clone() *ReactionCounts {
	if c == nil {
		return nil
	}
	out := &ReactionCounts{ByKind: make(map[ReactionKind]int, len(c.ByKind)), Total: c.Total}
	for k, v := range c.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// Get returns the count for one kind, zero when absent.
func (c *ReactionCounts) Get(k ReactionKind) int {
	if c == nil || c.ByKind == nil {
		return 0
	}
	return c.ByKind[k]
}

// Sum returns the sum of the per-kind counts, independent of Total.
func (c *ReactionCounts) Sum() int {
	if c == nil {
		return 0
	}
	sum := 0
	for _, v := range c.ByKind {
		sum += v
	}
	return sum
}
