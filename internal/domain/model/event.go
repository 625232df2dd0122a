// Package model contains domain models passed between layers.
package model

import "time"

// VoteType discriminates vote events by their originating reward category.
type VoteType string

// Known vote types. Manual votes carry an explicit weight instead of a
// configured one.
const (
	VoteNormal VoteType = "normal"
	VoteSuper  VoteType = "super"
	VoteUltra  VoteType = "ultra"
	VoteManual VoteType = "manual"
)

// Default vote weights, overridable via configuration.
const (
	DefaultNormalWeight = 1
	DefaultSuperWeight  = 10
	DefaultUltraWeight  = 25
)

// Weights maps vote types to their point values.
type Weights struct {
	Normal int
	Super  int
	Ultra  int
}

// DefaultWeights returns the standard 1/10/25 weight mapping.
func DefaultWeights() Weights {
	return Weights{
		Normal: DefaultNormalWeight,
		Super:  DefaultSuperWeight,
		Ultra:  DefaultUltraWeight,
	}
}

// For returns the weight applied to a vote event. Manual events carry their
// own weight; unknown types fall back to the normal weight.
func (w Weights) For(e VoteEvent) int {
	switch e.Type {
	case VoteManual:
		return e.Weight
	case VoteSuper:
		return w.Super
	case VoteUltra:
		return w.Ultra
	default:
		return w.Normal
	}
}

// Valid reports whether every weight is positive.
func (w Weights) Valid() bool {
	return w.Normal > 0 && w.Super > 0 && w.Ultra > 0
}

// VoteEvent is a single raw vote produced by an event source. It is immutable
// once created; only its effects persist after admission.
type VoteEvent struct {
	EventID    string    // unique id from the originating source, used for dedup
	RawLabel   string    // free-text catalog label as typed by the voter
	Type       VoteType  // reward category
	Voter      string    // voter identity if known
	Weight     int       // explicit weight, only meaningful for manual votes
	ReceivedAt time.Time // when the source observed the event

	// AllowCreate lets the administrative path register a brand-new catalog
	// entry when resolution finds no match.
	AllowCreate bool

	// RewardID identifies the upstream reward category for acknowledgment.
	RewardID string
}

// Outcome classifies the result of admitting a vote event.
type Outcome int

// Admission outcomes.
const (
	// Accepted means the vote was resolved and its weight committed.
	Accepted Outcome = iota
	// Duplicate means the event id was already processed; a successful no-op.
	Duplicate
	// Unresolved means no catalog entry met the confidence threshold.
	Unresolved
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Unresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Result is the per-event answer handed back to the originating source.
type Result struct {
	Outcome Outcome
	// Name is the canonical entry the vote was applied to (Accepted only).
	Name string
	// Weight is the number of points applied (Accepted only).
	Weight int
	// Score is the entry's total after this vote (Accepted only).
	Score int
	// Created reports whether admission created the catalog entry.
	Created bool
}
