package strategy

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/market"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// RiskGovernor sizes new positions against the allocation cap and evaluates
// the max-loss and roll-exhaustion conditions.
type RiskGovernor struct {
	provider market.Provider
	logger   *logrus.Logger
}

// NewRiskGovernor creates a risk governor.
func NewRiskGovernor(provider market.Provider, logger *logrus.Logger) *RiskGovernor {
	return &RiskGovernor{provider: provider, logger: logger}
}

// SizePosition computes the contract quantity for a new open. Required
// capital is wing x 100 x quantity; when that exceeds the portfolio's
// allocation cap the quantity is reduced to what the cap affords. A zero or
// negative result is a configuration error and fatal for the run. Rolls
// never pass through here: they reuse the size fixed at the spread's open.
func (g *RiskGovernor) SizePosition(wingWidth float64, requested int, portfolioValue, allocationCap float64) (int, error) {
	perContract := wingWidth * models.SharesPerContract
	required := perContract * float64(requested)
	budget := portfolioValue * allocationCap

	sized := requested
	if required > budget {
		sized = int(math.Floor(budget / perContract))
		g.logger.WithFields(logrus.Fields{
			"requested": requested,
			"sized":     sized,
			"required":  required,
			"budget":    budget,
		}).Info("position size reduced by allocation cap")
	}

	if sized <= 0 {
		return 0, fmt.Errorf("sized quantity %d is not positive (portfolio %.2f, cap %.2f, wing %.2f)",
			sized, portfolioValue, allocationCap, wingWidth)
	}
	return sized, nil
}

// CostToClose returns the positive per-share cost to flatten the given legs
// at current marks: short legs contribute +mark (bought back), long legs
// -mark (sold). Legs with no obtainable mark are skipped; missing data is
// recoverable and never a fault.
func (g *RiskGovernor) CostToClose(legs []models.Leg) float64 {
	cost := 0.0
	for _, leg := range legs {
		mark, err := g.provider.LastPrice(leg.Instrument)
		if err != nil {
			continue
		}
		if leg.Short() {
			cost += mark
		} else {
			cost -= mark
		}
	}
	return util.Round2(cost)
}

// MaxLossExceeded compares the cost to close against the allowance
// entryCredit x multiplier. The close triggers only on a strict excess; a
// multiplier of 0 disables the check entirely.
func (g *RiskGovernor) MaxLossExceeded(costToClose, entryCredit, multiplier float64) bool {
	if multiplier == 0 {
		return false
	}
	return costToClose > entryCredit*multiplier
}

// RollsExhausted reports whether the run's roll counter has passed the
// configured maximum; the pending roll is then promoted to a full close.
func (g *RiskGovernor) RollsExhausted(rollCount, maxRolls int) bool {
	return rollCount > maxRolls
}

// CapitalExhausted reports whether cash has fallen below one wing-width's
// margin, the standing guard that permanently stops new opens.
func (g *RiskGovernor) CapitalExhausted(wingWidth, cash float64) bool {
	return cash < wingWidth*models.SharesPerContract
}
