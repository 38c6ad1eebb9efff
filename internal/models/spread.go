// Package models provides the data structures carried across trading days:
// the open spread, the run lifecycle state, and the daily decision outcome.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/eddiefleurent/utica_condor/internal/market"
)

// SharesPerContract is the option contract multiplier.
const SharesPerContract = 100.0

// Shape selects which verticals a run trades.
type Shape string

const (
	// ShapeIronCondor trades a put vertical and a call vertical together.
	ShapeIronCondor Shape = "iron-condor"
	// ShapeBullPut trades only the put vertical.
	ShapeBullPut Shape = "bull-put"
	// ShapeBearCall trades only the call vertical.
	ShapeBearCall Shape = "bear-call"
	// ShapeHybrid trades both sides like a condor with skewed deltas.
	ShapeHybrid Shape = "hybrid"
)

// Valid returns true if the Shape is one of the defined constants.
func (s Shape) Valid() bool {
	switch s {
	case ShapeIronCondor, ShapeBullPut, ShapeBearCall, ShapeHybrid:
		return true
	default:
		return false
	}
}

// Side is the set of verticals an operation applies to.
type Side string

const (
	// SideCall addresses the call vertical only.
	SideCall Side = "call"
	// SidePut addresses the put vertical only.
	SidePut Side = "put"
	// SideBoth addresses both verticals.
	SideBoth Side = "both"
)

// Sides maps a trade shape to the verticals it opens.
func (s Shape) Sides() Side {
	switch s {
	case ShapeBullPut:
		return SidePut
	case ShapeBearCall:
		return SideCall
	default:
		return SideBoth
	}
}

// Includes reports whether the side covers the given right.
func (s Side) Includes(right market.Right) bool {
	switch s {
	case SideBoth:
		return true
	case SideCall:
		return right == market.RightCall
	case SidePut:
		return right == market.RightPut
	default:
		return false
	}
}

// Leg is one option contract of a spread together with the order that was
// submitted for it. Negative quantity means short.
type Leg struct {
	Instrument market.Instrument `json:"instrument"`
	Quantity   int               `json:"quantity"`
	Order      market.Order      `json:"order"`
}

// Short reports whether the leg is a short exposure.
func (l Leg) Short() bool {
	return l.Quantity < 0
}

// Spread is the single open position: two legs for a vertical, four for a
// condor. All legs share one expiration. EntryCredit and TradeSize are fixed
// at construction and survive single-side rolls.
type Spread struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Expiration  time.Time `json:"expiration"`
	Legs        []Leg     `json:"legs"`
	EntryCredit float64   `json:"entry_credit"` // per-share mark estimate at open
	TradeSize   int       `json:"trade_size"`
	OpenedAt    time.Time `json:"opened_at"`
}

// NewSpread creates a spread with a fresh handle so closes address this
// spread specifically rather than "whatever is open".
func NewSpread(symbol string, expiration time.Time, legs []Leg, entryCredit float64, tradeSize int, openedAt time.Time) *Spread {
	return &Spread{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Expiration:  expiration,
		Legs:        legs,
		EntryCredit: entryCredit,
		TradeSize:   tradeSize,
		OpenedAt:    openedAt,
	}
}

// SideLegs returns the legs of the given right, preserving order.
func (s *Spread) SideLegs(right market.Right) []Leg {
	var legs []Leg
	for _, l := range s.Legs {
		if l.Instrument.Right == right {
			legs = append(legs, l)
		}
	}
	return legs
}

// ShortStrike returns the short strike on the given side, or 0 if the side
// is not part of the spread.
func (s *Spread) ShortStrike(right market.Right) float64 {
	for _, l := range s.Legs {
		if l.Instrument.Right == right && l.Short() {
			return l.Instrument.Strike
		}
	}
	return 0
}

// ReplaceSide swaps the legs of one right for freshly built ones. Used by a
// single-side roll; the other side and the spread identity are untouched.
func (s *Spread) ReplaceSide(right market.Right, legs []Leg) {
	kept := s.Legs[:0]
	for _, l := range s.Legs {
		if l.Instrument.Right != right {
			kept = append(kept, l)
		}
	}
	s.Legs = append(kept, legs...)
}

// DTE returns whole days from today until the spread's expiration.
func (s *Spread) DTE(today time.Time) int {
	d := market.DaysBetween(today, s.Expiration)
	if s.Expiration.Before(today) {
		return 0
	}
	return d
}
