// Package strategy holds the decision core's leaf components: expiry
// resolution, strike selection, spread construction, and risk checks.
package strategy

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/market"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// expirySearchBound caps the forward day-by-day search for a tradable chain.
// Past the bound the nominal date is returned unchanged; the caller must
// tolerate constructing against a possibly nonexistent chain.
const expirySearchBound = 5

// ExpiryResolver maps a desired option duration to a concrete, tradable
// expiration date, skipping dates with no listed chain.
type ExpiryResolver struct {
	provider market.Provider
	logger   *logrus.Logger
}

// NewExpiryResolver creates an expiry resolver.
func NewExpiryResolver(provider market.Provider, logger *logrus.Logger) *ExpiryResolver {
	return &ExpiryResolver{provider: provider, logger: logger}
}

// Resolve computes the nominal cycle date at or after today+durationDays and
// searches forward for a date whose chain actually exists, using a price
// probe at the near-the-money strike as the existence test. Dates confirmed
// chainless are memoized in state so repeated runs don't re-probe them.
func (r *ExpiryResolver) Resolve(
	symbol string, durationDays int, underlyingPrice float64, stepSize float64, state *models.LifecycleState,
) time.Time {
	today := r.provider.Today()
	nominal := r.provider.CycleDateAfter(today.AddDate(0, 0, durationDays))
	probeStrike := util.RoundToTick(underlyingPrice, stepSize)

	for candidate := nominal; market.DaysBetween(nominal, candidate) <= expirySearchBound; candidate = candidate.AddDate(0, 0, 1) {
		if state.IsMissingExpiry(candidate) {
			continue
		}

		probe := market.OptionAt(symbol, candidate, probeStrike, market.RightCall)
		if _, err := r.provider.LastPrice(probe); err == nil {
			return candidate
		}

		r.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"expiry": candidate.Format("2006-01-02"),
		}).Debug("no chain for expiry, searching forward")
		state.MarkMissingExpiry(candidate)
	}

	// Soft failure: no valid date within the bound. Returning the nominal
	// date lets the build attempt fail loudly rather than looping forever
	// on persistently missing data.
	return nominal
}
