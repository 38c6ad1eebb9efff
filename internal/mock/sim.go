// Package mock provides a deterministic simulated market provider used by
// sim-mode runs and the engine tests. Prices, greeks, and fills are derived
// from a fixed daily price path, so the same parameters always replay the
// same run.
package mock

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/market"
)

// SimProvider implements market.Provider against a scripted daily price
// path. The clock only moves when Advance is called, so one provider day
// corresponds to exactly one engine step.
type SimProvider struct {
	mu sync.Mutex

	symbol string
	path   []float64
	day    int
	today  time.Time

	cash      float64
	positions map[market.Instrument]int
	markers   []market.Marker
	unlisted  map[string]bool

	// Vol drives the synthetic option marks; StrikeStep spaces the chain.
	Vol        float64
	StrikeStep float64

	// Chains, when set, replaces the synthetic strike grid with a real
	// reference-data source. Pricing and fills stay synthetic.
	Chains market.ChainSource
}

var _ market.Provider = (*SimProvider)(nil)

// NewSimProvider builds a provider that replays the given closes starting at
// start (weekends are skipped as the clock advances). startingCash seeds the
// account.
func NewSimProvider(symbol string, start time.Time, startingCash float64, closes []float64) *SimProvider {
	return &SimProvider{
		symbol:     symbol,
		path:       closes,
		today:      nextWeekday(start),
		cash:       startingCash,
		positions:  make(map[market.Instrument]int),
		unlisted:   make(map[string]bool),
		Vol:        0.18,
		StrikeStep: 1.0,
	}
}

// Advance moves the clock one trading day forward and reports whether price
// data remains.
func (s *SimProvider) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.day++
	s.today = nextWeekday(s.today.AddDate(0, 0, 1))
	return s.day < len(s.path)
}

// Exhausted reports whether the scripted path has been consumed.
func (s *SimProvider) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day >= len(s.path)
}

// MarkUnlisted records an expiration date with no listed contracts. Quotes
// and chains for options on that date return ErrUnavailable.
func (s *SimProvider) MarkUnlisted(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlisted[date.Format("2006-01-02")] = true
}

func (s *SimProvider) spot() float64 {
	if s.day < len(s.path) {
		return s.path[s.day]
	}
	return s.path[len(s.path)-1]
}

// LastPrice returns the scripted close for the underlying, or the synthetic
// mark for an option contract.
func (s *SimProvider) LastPrice(inst market.Instrument) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !inst.IsOption() {
		return s.spot(), nil
	}
	if s.unlisted[inst.Expiration.Format("2006-01-02")] {
		return 0, fmt.Errorf("no contract listed for %s: %w",
			inst.Expiration.Format("2006-01-02"), market.ErrUnavailable)
	}
	return s.optionMark(inst), nil
}

// Greeks returns the synthetic delta for an option contract.
func (s *SimProvider) Greeks(inst market.Instrument) (*market.GreeksItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !inst.IsOption() {
		return nil, fmt.Errorf("greeks for underlying %s: %w", inst.Symbol, market.ErrUnavailable)
	}
	if s.unlisted[inst.Expiration.Format("2006-01-02")] {
		return nil, fmt.Errorf("no contract listed for %s: %w",
			inst.Expiration.Format("2006-01-02"), market.ErrUnavailable)
	}

	spot := s.spot()
	vol := s.dailyVol()
	return &market.GreeksItem{
		Delta: s.delta(inst.Strike, inst.Right),
		Theta: -0.05 * vol,
		Vega:  0.10 * vol * spot * 0.01,
	}, nil
}

// ChainStrikes lists the synthetic strikes around center for the expiration.
func (s *SimProvider) ChainStrikes(symbol string, expiration time.Time, window int, center float64) ([]float64, []float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unlisted[expiration.Format("2006-01-02")] {
		return nil, nil, fmt.Errorf("no chain for %s: %w",
			expiration.Format("2006-01-02"), market.ErrUnavailable)
	}

	if s.Chains != nil {
		return s.Chains.ChainStrikes(symbol, expiration, window, center)
	}

	base := math.Round(center/s.StrikeStep) * s.StrikeStep
	var strikes []float64
	for i := -window; i <= window; i++ {
		k := base + float64(i)*s.StrikeStep
		if k > 0 {
			strikes = append(strikes, k)
		}
	}
	puts := make([]float64, len(strikes))
	calls := make([]float64, len(strikes))
	copy(puts, strikes)
	copy(calls, strikes)
	return puts, calls, nil
}

// Positions returns the open legs.
func (s *SimProvider) Positions() ([]market.PositionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]market.PositionItem, 0, len(s.positions))
	for inst, qty := range s.positions {
		items = append(items, market.PositionItem{Instrument: inst, Quantity: qty})
	}
	return items, nil
}

// Cash returns the settled cash balance.
func (s *SimProvider) Cash() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash, nil
}

// PortfolioValue returns cash plus the marked value of every open leg. Short
// legs count against the account.
func (s *SimProvider) PortfolioValue() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.cash
	for inst, qty := range s.positions {
		total += float64(qty) * s.optionMark(inst) * 100
	}
	return total, nil
}

// Submit fills the order immediately at the synthetic mark.
func (s *SimProvider) Submit(order market.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %d", order.Quantity)
	}

	mark := s.optionMark(order.Instrument)
	signed := order.Quantity
	if order.Side == market.Sell {
		signed = -signed
	}

	s.cash -= float64(signed) * mark * 100
	s.positions[order.Instrument] += signed
	if s.positions[order.Instrument] == 0 {
		delete(s.positions, order.Instrument)
	}
	return nil
}

// LiquidateAll closes every open leg at the synthetic mark.
func (s *SimProvider) LiquidateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for inst, qty := range s.positions {
		s.cash += float64(qty) * s.optionMark(inst) * 100
		delete(s.positions, inst)
	}
	return nil
}

// LiquidateSide closes every open leg of the given right.
func (s *SimProvider) LiquidateSide(right market.Right) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for inst, qty := range s.positions {
		if inst.Right != right {
			continue
		}
		s.cash += float64(qty) * s.optionMark(inst) * 100
		delete(s.positions, inst)
	}
	return nil
}

// UnderlyingReturn reports the buy-and-hold return of the scripted path.
func (s *SimProvider) UnderlyingReturn() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.path) == 0 || s.path[0] == 0 {
		return 0
	}
	return (s.path[len(s.path)-1] - s.path[0]) / s.path[0]
}

// Today returns the current simulated trading day.
func (s *SimProvider) Today() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.today
}

// CycleDateAfter returns the standard monthly expiration (third Friday) at
// or after t.
func (s *SimProvider) CycleDateAfter(t time.Time) time.Time {
	for m := 0; ; m++ {
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, m, 0)
		friday := thirdFriday(first)
		if !friday.Before(t.Truncate(24 * time.Hour)) {
			return friday
		}
	}
}

// AddMarker records an annotation for later inspection.
func (s *SimProvider) AddMarker(m market.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, m)
}

// Markers returns the annotations recorded so far.
func (s *SimProvider) Markers() []market.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// delta approximates an option delta from the strike's distance to spot,
// decaying exponentially away from the money.
func (s *SimProvider) delta(strike float64, right market.Right) float64 {
	spot := s.spot()
	// Decay tuned so a 16-delta strike sits roughly 20 points out at the
	// default vol, inside a typical chain window.
	decay := math.Exp(-math.Abs(strike-spot) * 0.06)

	var call float64
	if strike >= spot {
		call = 0.5 * decay
	} else {
		call = 1 - 0.5*decay
	}
	if right == market.RightCall {
		return call
	}
	return call - 1
}

// optionMark prices a contract from its delta and remaining time value.
func (s *SimProvider) optionMark(inst market.Instrument) float64 {
	spot := s.spot()
	dte := market.DaysBetween(s.today, inst.Expiration)

	timeValue := float64(dte) / 365.0
	extrinsic := s.dailyVol() * math.Sqrt(timeValue) * spot * math.Abs(s.delta(inst.Strike, inst.Right))

	var intrinsic float64
	if inst.Right == market.RightCall && spot > inst.Strike {
		intrinsic = spot - inst.Strike
	}
	if inst.Right == market.RightPut && spot < inst.Strike {
		intrinsic = inst.Strike - spot
	}

	return math.Round((intrinsic+math.Max(0.05, extrinsic))*100) / 100
}

func (s *SimProvider) dailyVol() float64 {
	if s.Vol <= 0 {
		return 0.18
	}
	return s.Vol
}

// nextWeekday returns t unless it falls on a weekend, in which case the
// following Monday.
func nextWeekday(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func thirdFriday(firstOfMonth time.Time) time.Time {
	offset := (int(time.Friday) - int(firstOfMonth.Weekday()) + 7) % 7
	return firstOfMonth.AddDate(0, 0, offset+14)
}
