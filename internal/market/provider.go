// Package market defines the market-data and execution provider contract
// consumed by the decision core, plus decorators around it.
package market

import (
	"errors"
	"time"
)

// ErrUnavailable indicates the provider has no price, greeks, or chain data
// for the requested instrument. It is a recoverable condition: callers skip
// the candidate or retry at an adjacent strike or date, never propagate it
// as a fault.
var ErrUnavailable = errors.New("market: data unavailable")

// Right identifies the option right of a contract.
type Right string

const (
	// RightCall represents a call option contract.
	RightCall Right = "call"
	// RightPut represents a put option contract.
	RightPut Right = "put"
)

// Opposite returns the other right.
func (r Right) Opposite() Right {
	if r == RightCall {
		return RightPut
	}
	return RightCall
}

// Instrument references either an underlying (zero Expiration) or a single
// option contract.
type Instrument struct {
	Symbol     string
	Expiration time.Time
	Strike     float64
	Right      Right
}

// Underlying builds an instrument referencing the underlying itself.
func Underlying(symbol string) Instrument {
	return Instrument{Symbol: symbol}
}

// OptionAt builds an instrument referencing one option contract.
func OptionAt(symbol string, expiration time.Time, strike float64, right Right) Instrument {
	return Instrument{Symbol: symbol, Expiration: expiration, Strike: strike, Right: right}
}

// IsOption reports whether the instrument references an option contract.
func (i Instrument) IsOption() bool {
	return !i.Expiration.IsZero()
}

// GreeksItem carries the sampled greeks for one option contract.
type GreeksItem struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// PositionItem is one open leg as reported by the provider.
type PositionItem struct {
	Instrument Instrument
	Quantity   int // negative = short
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	// Buy opens or closes a long exposure.
	Buy OrderSide = "buy"
	// Sell opens or closes a short exposure.
	Sell OrderSide = "sell"
)

// Order is a single-leg option order ready for submission.
type Order struct {
	Instrument Instrument
	Quantity   int
	Side       OrderSide
}

// Marker is a human-readable annotation attached to the run narration. The
// core emits one per decision carrying the numeric justification; delivery is
// best effort and the core never depends on its success.
type Marker struct {
	Label  string
	Value  float64
	Color  string
	Symbol string
	Detail string
}

// Provider is the market-data and execution collaborator the decision core
// is driven against. All calls are synchronous and blocking; the core issues
// at most one outstanding request at a time.
type Provider interface {
	// Market data
	LastPrice(inst Instrument) (float64, error)
	Greeks(inst Instrument) (*GreeksItem, error)
	// ChainStrikes returns the put and call strikes listed for the
	// expiration, ordered ascending and pre-windowed to at most window
	// strikes around the center price.
	ChainStrikes(symbol string, expiration time.Time, window int, center float64) (puts, calls []float64, err error)

	// Account state
	Positions() ([]PositionItem, error)
	Cash() (float64, error)
	PortfolioValue() (float64, error)

	// Execution
	Submit(order Order) error
	LiquidateAll() error
	LiquidateSide(right Right) error

	// Clock
	Today() time.Time
	// CycleDateAfter returns the next recognized contract-cycle date
	// (the standard monthly expiration) at or after t.
	CycleDateAfter(t time.Time) time.Time

	// Narration
	AddMarker(m Marker)
}

// ChainSource serves the chain-strikes lookup alone. Providers with no
// reference data of their own delegate to one.
type ChainSource interface {
	ChainStrikes(symbol string, expiration time.Time, window int, center float64) (puts, calls []float64, err error)
}

// DaysBetween calculates the number of whole days between two dates.
func DaysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	d := int(t.Sub(f).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
