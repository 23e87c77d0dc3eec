package domain

import (
	"strings"
	"time"
)

// Direction is a predicted (or resolved) price movement.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection normalizes user input into a Direction. It returns
// ErrInvalidDirection for anything other than "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	default:
		return "", ErrInvalidDirection
	}
}

// RoundStatus represents the lifecycle state of a round.
type RoundStatus string

const (
	RoundStatusActive   RoundStatus = "active"
	RoundStatusResolved RoundStatus = "resolved"
)

// Prediction is one user's directional call for a round. A user holds at
// most one prediction per round; a later submission replaces the earlier one.
type Prediction struct {
	UserID      string
	Direction   Direction
	SubmittedAt time.Time
}

// Round is a fixed-duration prediction window for one asset.
//
// EndPrice and Outcome are zero until the round is resolved. ResolvedAt is
// nil while the round is active.
type Round struct {
	ID          string
	Symbol      string
	StartPrice  float64
	StartTime   time.Time
	EndTime     time.Time
	Status      RoundStatus
	Predictions map[string]Prediction // keyed by user ID
	EndPrice    float64
	Outcome     Direction
	ResolvedAt  *time.Time
}

// Expired reports whether the round's window has passed at the given time.
func (r *Round) Expired(now time.Time) bool {
	return !now.Before(r.EndTime)
}

// MoveDirection computes the resolved direction for a start/end price pair.
// An unchanged price counts as Down: ties favor the "no move" reading, which
// is a policy choice, not a derived fact.
func MoveDirection(startPrice, endPrice float64) Direction {
	if endPrice > startPrice {
		return DirectionUp
	}
	return DirectionDown
}
