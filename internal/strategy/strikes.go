package strategy

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/market"
)

// StrikeSelection is a successful strike pick with the delta sampled at it.
type StrikeSelection struct {
	Strike float64
	Delta  float64
}

// StrikeSelector walks a candidate strike sequence outward from the money
// and picks the first strike whose delta crosses the target. Delta is
// assumed to decay monotonically away from the money, so the first crossing
// is accepted, not the closest.
type StrikeSelector struct {
	provider market.Provider
	logger   *logrus.Logger
}

// NewStrikeSelector creates a strike selector.
func NewStrikeSelector(provider market.Provider, logger *logrus.Logger) *StrikeSelector {
	return &StrikeSelector{provider: provider, logger: logger}
}

// Select scans candidates for the given right against targetAbsDelta.
// Calls are restricted to strikes above spot and scanned ascending; puts to
// strikes below spot, scanned descending. Strikes with no obtainable greeks
// are skipped without terminating the scan: missing data must not read as
// delta zero or every dead strike would count as a crossing. The scan is
// bounded by maxStrikes candidates. Returns false when no crossing occurs.
func (s *StrikeSelector) Select(
	symbol string, expiration time.Time, candidates []float64,
	right market.Right, targetAbsDelta, spot float64, maxStrikes int,
) (StrikeSelection, bool) {
	ordered := orderCandidates(candidates, right, spot)

	scanned := 0
	for _, strike := range ordered {
		if maxStrikes > 0 && scanned >= maxStrikes {
			break
		}
		scanned++

		greeks, err := s.provider.Greeks(market.OptionAt(symbol, expiration, strike, right))
		if err != nil || greeks == nil {
			continue
		}

		if crossed(right, greeks.Delta, targetAbsDelta) {
			s.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"right":  right,
				"strike": strike,
				"delta":  greeks.Delta,
				"target": targetAbsDelta,
			}).Debug("strike selected")
			return StrikeSelection{Strike: strike, Delta: greeks.Delta}, true
		}
	}

	return StrikeSelection{}, false
}

// orderCandidates filters to the out-of-the-money side of spot and orders
// the scan from near-the-money outward.
func orderCandidates(candidates []float64, right market.Right, spot float64) []float64 {
	var kept []float64
	for _, strike := range candidates {
		if right == market.RightCall && strike > spot {
			kept = append(kept, strike)
		}
		if right == market.RightPut && strike < spot {
			kept = append(kept, strike)
		}
	}
	if right == market.RightCall {
		sort.Float64s(kept)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(kept)))
	}
	return kept
}

// crossed reports whether the sampled delta is at or past the target for
// the scan direction: call deltas shrink toward zero, put deltas rise
// toward zero from below.
func crossed(right market.Right, delta, targetAbs float64) bool {
	if right == market.RightCall {
		return delta <= targetAbs
	}
	return delta >= -targetAbs
}
