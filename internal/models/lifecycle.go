package models

import (
	"math"
	"time"
)

// HaltReason tags why the run is standing out of the market.
type HaltReason string

const (
	// HaltNone means trading is active.
	HaltNone HaltReason = ""
	// HaltVolatility follows a one-day underlying move beyond the threshold.
	HaltVolatility HaltReason = "volatility"
	// HaltMaxLoss follows a close forced by the max-loss check.
	HaltMaxLoss HaltReason = "max-loss"
	// HaltRollExhausted follows a close forced by exceeding max rolls.
	HaltRollExhausted HaltReason = "roll-exhausted"
)

// PricePoint is one entry of the append-only underlying price history.
// Prices are rounded to whole currency units before recording.
type PricePoint struct {
	Price float64   `json:"price"`
	Date  time.Time `json:"date"`
}

// LifecycleState is the mutable run state carried across trading days. It is
// passed into each daily decision explicitly so a single day is unit-testable
// in isolation; nothing else in the engine mutates between days.
type LifecycleState struct {
	// Spread is the currently open position, nil when flat. At most one
	// spread is ever open.
	Spread *Spread `json:"spread,omitempty"`

	// HoldLength counts days since the last full open or roll. Valid only
	// while a spread is open; reset to 0 on every open, roll, and close.
	HoldLength int `json:"hold_length"`

	// RollCount counts roll attempts for the current spread. Reset only on
	// a full close+reopen, never on a single-side roll.
	RollCount int `json:"roll_count"`

	// MissingExpiries memoizes expiration dates confirmed to have no
	// tradable chain, keyed by date, to avoid repeated failed lookups.
	MissingExpiries map[string]struct{} `json:"missing_expiries,omitempty"`

	// PriceHistory is the append-only rounded underlying price series.
	PriceHistory []PricePoint `json:"price_history,omitempty"`

	// StayOut is set while a halt cooldown is running.
	StayOut bool `json:"stay_out"`
	// Halt records which condition triggered the active cooldown.
	Halt HaltReason `json:"halt,omitempty"`
	// VolMoveToday is set each day the underlying moved beyond the
	// volatility threshold against the prior day.
	VolMoveToday bool `json:"vol_move_today"`
	// SkippedDays is the shared cooldown counter used by every halt; the
	// most recently triggered halt's window wins.
	SkippedDays int `json:"skipped_days"`

	// CapitalExhausted is terminal for the run: once cash falls below the
	// margin of a single wing no further spreads are opened.
	CapitalExhausted bool `json:"capital_exhausted"`

	// LastTradeSize is the size fixed at the last open; rolls reuse it.
	LastTradeSize int `json:"last_trade_size"`
	// MarginReserve approximates the capital reserved for the open spread.
	// This is not exchange margin, just wing x 100 x size.
	MarginReserve float64 `json:"margin_reserve"`
	// FeesPaid accumulates per-contract fees across the run, in dollars.
	FeesPaid float64 `json:"fees_paid"`
}

// NewLifecycleState creates the day-zero state for a run.
func NewLifecycleState() *LifecycleState {
	return &LifecycleState{
		MissingExpiries: make(map[string]struct{}),
	}
}

// RecordPrice appends today's rounded underlying price to the history.
func (s *LifecycleState) RecordPrice(price float64, date time.Time) {
	s.PriceHistory = append(s.PriceHistory, PricePoint{
		Price: math.Round(price),
		Date:  date,
	})
}

// VolMoveExceeded reports whether the latest rounded price moved more than
// threshold (a fraction, in either direction) versus the prior day's.
func (s *LifecycleState) VolMoveExceeded(threshold float64) bool {
	if threshold <= 0 || len(s.PriceHistory) <= 2 {
		return false
	}
	today := s.PriceHistory[len(s.PriceHistory)-1].Price
	prior := s.PriceHistory[len(s.PriceHistory)-2].Price
	return today*(1+threshold) < prior || today*(1-threshold) > prior
}

// MarkMissingExpiry memoizes a date that has no tradable chain.
func (s *LifecycleState) MarkMissingExpiry(date time.Time) {
	if s.MissingExpiries == nil {
		s.MissingExpiries = make(map[string]struct{})
	}
	s.MissingExpiries[date.Format("2006-01-02")] = struct{}{}
}

// IsMissingExpiry reports whether a date was already confirmed chainless.
func (s *LifecycleState) IsMissingExpiry(date time.Time) bool {
	_, ok := s.MissingExpiries[date.Format("2006-01-02")]
	return ok
}

// BeginHalt starts (or restarts) a cooldown. Restarting resets the shared
// counter, so overlapping halts extend rather than stack.
func (s *LifecycleState) BeginHalt(reason HaltReason) {
	s.StayOut = true
	s.Halt = reason
	s.SkippedDays = 0
}

// ClearHalt ends the active cooldown.
func (s *LifecycleState) ClearHalt() {
	s.StayOut = false
	s.Halt = HaltNone
	s.SkippedDays = 0
}

// ResetForOpen clears the per-spread counters when a spread is created.
func (s *LifecycleState) ResetForOpen(spread *Spread, wingWidth float64) {
	s.Spread = spread
	s.HoldLength = 0
	s.RollCount = 0
	s.LastTradeSize = spread.TradeSize
	s.MarginReserve = wingWidth * SharesPerContract * float64(spread.TradeSize)
}

// ResetForClose clears the per-spread counters when the spread is destroyed.
func (s *LifecycleState) ResetForClose() {
	s.Spread = nil
	s.HoldLength = 0
	s.RollCount = 0
	s.MarginReserve = 0
}
