// Package engine implements the position lifecycle state machine: one
// decision per trading day over the single open spread.
package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/market"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/retry"
	"github.com/eddiefleurent/utica_condor/internal/strategy"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// Engine evaluates one trading day at a time against the lifecycle state.
// It holds no mutable run state of its own: everything carried between days
// lives in the LifecycleState passed to Step, so a single day is testable in
// isolation.
type Engine struct {
	provider market.Provider
	cfg      *config.Strategy
	logger   *logrus.Logger

	resolver *strategy.ExpiryResolver
	selector *strategy.StrikeSelector
	builder  *strategy.SpreadBuilder
	governor *strategy.RiskGovernor

	// SettleWait is the pause after order submission that lets an external
	// execution gateway settle fills before the next mark is read. Sleep is
	// injectable so simulated runs and tests pay no wall-clock cost; it
	// defaults to a no-op.
	SettleWait time.Duration
	Sleep      func(time.Duration)
}

// New creates an engine for one run. cfg is the immutable parameter snapshot.
func New(provider market.Provider, cfg *config.Strategy, logger *logrus.Logger) *Engine {
	return &Engine{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		resolver: strategy.NewExpiryResolver(provider, logger),
		selector: strategy.NewStrikeSelector(provider, logger),
		builder:  strategy.NewSpreadBuilder(provider, logger),
		governor: strategy.NewRiskGovernor(provider, logger),
		Sleep:    func(time.Duration) {},
	}
}

// Step runs the daily decision. The returned error is reserved for fatal
// configuration problems (the run cannot proceed); every market condition,
// including construction failures and halts, is a Decision outcome.
func (e *Engine) Step(state *models.LifecycleState) (models.Decision, error) {
	today := e.provider.Today()

	spot, err := e.provider.LastPrice(market.Underlying(e.cfg.Symbol))
	if err != nil {
		e.logger.WithField("symbol", e.cfg.Symbol).Warn("no underlying price, skipping day")
		return models.Failed("no underlying price"), nil
	}

	state.RecordPrice(spot, today)
	// Only meaningful while a spread is open, but counted unconditionally;
	// it is reset on every open, roll, and close.
	state.HoldLength++

	volMove := state.VolMoveExceeded(e.cfg.MaxSymbolVolatility)
	state.VolMoveToday = volMove
	if volMove && state.Spread == nil {
		// Every qualifying move restarts the countdown, extending the halt
		// rather than stacking a second one.
		state.BeginHalt(models.HaltVolatility)
		e.marker("Volatility halt", spot, "orange", "diamond",
			fmt.Sprintf("Date: %s | move exceeded %.2f%% | skip %d day(s)",
				today.Format("2006-01-02"), e.cfg.MaxSymbolVolatility*100, e.cfg.VolatilityDaysToSkip))
		return models.Skipped(models.HaltVolatility, e.cfg.VolatilityDaysToSkip), nil
	}

	if state.StayOut {
		state.SkippedDays++
		window := e.skipWindow(state.Halt)
		if state.SkippedDays < window {
			return models.Skipped(state.Halt, window-state.SkippedDays), nil
		}
		state.ClearHalt()
	}

	if state.Spread == nil {
		if state.CapitalExhausted {
			return models.StayOut("capital exhausted"), nil
		}
		return e.open(state, spot, today)
	}

	return e.manage(state, spot, today)
}

// skipWindow returns the cooldown length for the halt in progress. The
// volatility window and the post-loss window differ; both share one counter.
func (e *Engine) skipWindow(reason models.HaltReason) int {
	if reason == models.HaltVolatility {
		return e.cfg.VolatilityDaysToSkip
	}
	return e.cfg.MaxLossDaysToSkip
}

// open attempts a fresh spread: capital guard, expiry resolution, strike
// selection, construction, and sizing. Build failures leave the state flat
// and are retried the next trading day.
func (e *Engine) open(state *models.LifecycleState, spot float64, today time.Time) (models.Decision, error) {
	cash, err := e.provider.Cash()
	if err != nil {
		return models.Failed("cash unavailable"), nil
	}
	if e.governor.CapitalExhausted(e.cfg.DistanceOfWings, cash) {
		state.CapitalExhausted = true
		e.marker("Portfolio blew up", 0, "red", "square",
			fmt.Sprintf("Date: %s | cash available: %.2f", today.Format("2006-01-02"), cash))
		return models.StayOut("cash below one wing of margin"), nil
	}

	portfolioValue, err := e.provider.PortfolioValue()
	if err != nil {
		return models.Failed("portfolio value unavailable"), nil
	}
	quantity, err := e.governor.SizePosition(
		e.cfg.DistanceOfWings, e.cfg.QuantityToTrade, portfolioValue, e.cfg.MaxPortfolioAllocation)
	if err != nil {
		// Fatal: the configuration cannot produce a tradable size.
		return models.Decision{}, fmt.Errorf("sizing position: %w", err)
	}

	expiry := e.resolver.Resolve(e.cfg.Symbol, e.cfg.OptionDuration, spot, e.cfg.StrikeStepSize, state)

	builtSide := e.cfg.TradeShape.Sides()
	selection, dec, ok := e.selectStrikes(builtSide, expiry, spot,
		e.cfg.CallDeltaRequired, e.cfg.PutDeltaRequired)
	if !ok {
		return dec, nil
	}

	result, err := e.builder.Build(strategy.BuildRequest{
		Symbol:     e.cfg.Symbol,
		Expiration: expiry,
		Side:       builtSide,
		CallStrike: selection.call.Strike,
		PutStrike:  selection.put.Strike,
		WingWidth:  e.cfg.DistanceOfWings,
		Quantity:   quantity,
		StrikeStep: e.cfg.StrikeStepSize,
	})
	if err != nil {
		e.marker("Create trade failed: "+err.Error(), spot, "blue", "asterisk",
			fmt.Sprintf("Date: %s | expiration: %s | last price: %.2f | call short: %.2f | put short: %.2f",
				today.Format("2006-01-02"), expiry.Format("2006-01-02"),
				spot, selection.call.Strike, selection.put.Strike))
		return models.Failed(err.Error()), nil
	}

	if err := e.submitLegs(state, result.Legs); err != nil {
		return models.Failed(err.Error()), nil
	}

	spread := models.NewSpread(e.cfg.Symbol, expiry, result.Legs, result.Credit, quantity, today)
	state.ResetForOpen(spread, e.cfg.DistanceOfWings)

	e.marker(fmt.Sprintf("Created %s, credit %.2f", e.cfg.TradeShape, result.Credit), spot,
		"green", "triangle-up",
		fmt.Sprintf("Date: %s | expiration: %s | last price: %.2f | call short: %.2f (delta %.3f) | put short: %.2f (delta %.3f) | credit: %.2f | qty: %d",
			today.Format("2006-01-02"), expiry.Format("2006-01-02"), spot,
			result.CallStrike, selection.call.Delta, result.PutStrike, selection.put.Delta,
			result.Credit, quantity))

	return models.Decision{
		Kind:       models.DecisionOpened,
		CallStrike: result.CallStrike,
		PutStrike:  result.PutStrike,
		CallDelta:  selection.call.Delta,
		PutDelta:   selection.put.Delta,
		Credit:     result.Credit,
		Expiry:     expiry,
		Quantity:   quantity,
	}, nil
}

type sideSelection struct {
	call strategy.StrikeSelection
	put  strategy.StrikeSelection
}

// selectStrikes pulls the windowed chain and picks short strikes for the
// sides in play. A missing crossing is a named construction failure.
func (e *Engine) selectStrikes(
	side models.Side, expiry time.Time, spot float64, callDelta, putDelta float64,
) (sideSelection, models.Decision, bool) {
	var sel sideSelection

	center := util.RoundToTick(spot, e.cfg.StrikeStepSize)
	puts, calls, err := e.provider.ChainStrikes(e.cfg.Symbol, expiry, e.cfg.MaxStrikes, center)
	if err != nil {
		e.logger.WithError(err).Warn("chain strikes unavailable")
		return sel, models.Failed("chain unavailable"), false
	}

	if side.Includes(market.RightCall) {
		picked, ok := e.selector.Select(e.cfg.Symbol, expiry, calls,
			market.RightCall, callDelta, spot, e.cfg.MaxStrikes)
		if !ok {
			e.marker("No call strike found", spot, "blue", "asterisk", "")
			return sel, models.Failed("no call strike found"), false
		}
		sel.call = picked
	}

	if side.Includes(market.RightPut) {
		picked, ok := e.selector.Select(e.cfg.Symbol, expiry, puts,
			market.RightPut, putDelta, spot, e.cfg.MaxStrikes)
		if !ok {
			e.marker("No put strike found", spot, "blue", "asterisk", "")
			return sel, models.Failed("no put strike found"), false
		}
		sel.put = picked
	}

	return sel, models.Decision{}, true
}

// manage inspects the open spread: expiry proximity first, then roll
// triggers per short leg, then the overriding full-close conditions.
func (e *Engine) manage(state *models.LifecycleState, spot float64, today time.Time) (models.Decision, error) {
	spread := state.Spread

	fullClose, closeReason, rollSide := e.evaluateLegs(spread, spot, today)

	var haltAfter models.HaltReason

	if rollSide != "" && !fullClose {
		state.RollCount++
		if e.governor.RollsExhausted(state.RollCount, e.cfg.MaximumRolls) {
			fullClose = true
			closeReason = fmt.Sprintf("rolls exhausted (%d > %d)", state.RollCount, e.cfg.MaximumRolls)
			rollSide = ""
			if e.cfg.SkipOnMaxRolls {
				haltAfter = models.HaltRollExhausted
			}
		}
	}

	// A qualifying volatility move closes the spread regardless of any roll
	// decision in progress.
	if state.VolMoveToday {
		fullClose = true
		rollSide = ""
		haltAfter = models.HaltVolatility
		closeReason = fmt.Sprintf("max move hit: credit %.2f", spread.EntryCredit)
	}

	if !fullClose && e.cfg.MaxLossMultiplier != 0 {
		cost := e.governor.CostToClose(spread.Legs)
		if e.governor.MaxLossExceeded(cost, spread.EntryCredit, e.cfg.MaxLossMultiplier) {
			fullClose = true
			rollSide = ""
			haltAfter = models.HaltMaxLoss
			closeReason = fmt.Sprintf("maximum loss: credit %.2f, cost to close %.2f", spread.EntryCredit, cost)
		}
	}

	if fullClose {
		return e.closeAll(state, haltAfter, closeReason, spot, today)
	}
	if rollSide != "" {
		return e.roll(state, rollSide, spot, today)
	}
	return models.Held(), nil
}

// evaluateLegs walks the legs in listed order and stops at the first one
// that triggers either the expiry-proximity close or, for short legs, the
// configured roll condition. One trigger per day.
func (e *Engine) evaluateLegs(spread *models.Spread, spot float64, today time.Time) (fullClose bool, reason string, rollSide market.Right) {
	for _, leg := range spread.Legs {
		dte := market.DaysBetween(today, leg.Instrument.Expiration)
		if dte <= e.cfg.DaysBeforeExpiryClose {
			return true, fmt.Sprintf("closing for days to expiry (%d <= %d), credit %.2f",
				dte, e.cfg.DaysBeforeExpiryClose, spread.EntryCredit), ""
		}

		if !leg.Short() {
			continue
		}

		switch e.cfg.RollMode {
		case config.RollModeDelta:
			greeks, err := e.provider.Greeks(leg.Instrument)
			if err != nil || greeks == nil {
				continue
			}
			if abs(greeks.Delta) > e.cfg.DeltaThreshold {
				return false, "", leg.Instrument.Right
			}
		case config.RollModeDistance:
			strike := leg.Instrument.Strike
			if leg.Instrument.Right == market.RightCall && spot >= strike-e.cfg.StrikeRollDistance {
				return false, "", market.RightCall
			}
			if leg.Instrument.Right == market.RightPut && spot <= strike+e.cfg.StrikeRollDistance {
				return false, "", market.RightPut
			}
		case config.RollModeNone:
			// Hold to the expiry window.
		}
	}
	return false, "", ""
}

// closeAll liquidates every leg, resets the per-spread counters, and either
// starts the requested halt cooldown or immediately attempts a fresh open at
// a new expiry the same day.
func (e *Engine) closeAll(
	state *models.LifecycleState, haltAfter models.HaltReason, reason string, spot float64, today time.Time,
) (models.Decision, error) {
	spread := state.Spread
	cost := e.governor.CostToClose(spread.Legs)

	err := retry.Do(e.logger, retry.DefaultConfig, "liquidate all", e.Sleep, e.provider.LiquidateAll)
	if err != nil {
		e.logger.WithError(err).Error("liquidation failed, retrying next day")
		return models.Failed("liquidation failed"), nil
	}
	state.FeesPaid += e.cfg.TradingFee * float64(spread.TradeSize) * float64(len(spread.Legs))
	state.ResetForClose()

	color := "red"
	if haltAfter != models.HaltNone {
		color = "purple"
	}
	e.marker(reason, spot, color, "triangle-down",
		fmt.Sprintf("Date: %s | underlying: %.2f | cost to close: %.2f", today.Format("2006-01-02"), spot, cost))

	e.Sleep(e.SettleWait)

	if haltAfter != models.HaltNone {
		state.BeginHalt(haltAfter)
		return models.Decision{
			Kind:        models.DecisionClosed,
			Reason:      reason,
			CostToClose: cost,
			Halt:        haltAfter,
		}, nil
	}

	reopened, err := e.open(state, spot, today)
	if err != nil {
		return models.Decision{}, err
	}
	if reopened.Kind != models.DecisionOpened {
		// Close succeeded, reopen did not; flat until the next day.
		return models.Decision{
			Kind:        models.DecisionClosed,
			Reason:      fmt.Sprintf("%s; reopen failed: %s", reason, reopened.Reason),
			CostToClose: cost,
		}, nil
	}

	reopened.Kind = models.DecisionClosedAndReopened
	reopened.Reason = reason
	reopened.CostToClose = cost
	return reopened, nil
}

// roll closes one side's two legs and rebuilds that side at the same
// expiration, honoring the minimum hold period. The spread keeps its
// identity, entry credit, and trade size.
func (e *Engine) roll(state *models.LifecycleState, side market.Right, spot float64, today time.Time) (models.Decision, error) {
	spread := state.Spread

	if state.HoldLength < e.cfg.MinimumHoldPeriod {
		e.marker(fmt.Sprintf("Hold period not met: %d < %d", state.HoldLength, e.cfg.MinimumHoldPeriod),
			spot, "yellow", "hexagon-open",
			fmt.Sprintf("Date: %s | last price: %.2f | %s short: %.2f",
				today.Format("2006-01-02"), spot, side, spread.ShortStrike(side)))
		return models.Decision{
			Kind:   models.DecisionRollSuppressed,
			Side:   side,
			Reason: fmt.Sprintf("hold %d < minimum %d", state.HoldLength, e.cfg.MinimumHoldPeriod),
		}, nil
	}

	sideLegs := spread.SideLegs(side)
	closeCost := e.governor.CostToClose(sideLegs)

	err := retry.Do(e.logger, retry.DefaultConfig, "liquidate side", e.Sleep, func() error {
		return e.provider.LiquidateSide(side)
	})
	if err != nil {
		e.logger.WithError(err).Error("side liquidation failed, retrying next day")
		return models.Failed("side liquidation failed"), nil
	}
	state.FeesPaid += e.cfg.TradingFee * float64(spread.TradeSize) * float64(len(sideLegs))
	e.Sleep(e.SettleWait)

	// A roll may target a looser delta than the entry to buy more room.
	callTarget, putTarget := e.cfg.CallDeltaRequired, e.cfg.PutDeltaRequired
	if e.cfg.RollDeltaTarget > 0 {
		callTarget, putTarget = e.cfg.RollDeltaTarget, e.cfg.RollDeltaTarget
	}

	rolledSide := models.SideCall
	if side == market.RightPut {
		rolledSide = models.SidePut
	}
	selection, dec, ok := e.selectStrikes(rolledSide, spread.Expiration, spot, callTarget, putTarget)
	if !ok {
		e.marker("Roll failed: "+dec.Reason, spot, "blue", "asterisk", "")
		return dec, nil
	}

	shortStrike := selection.call.Strike
	delta := selection.call.Delta
	if side == market.RightPut {
		shortStrike = selection.put.Strike
		delta = selection.put.Delta
	}

	result, err := e.builder.Build(strategy.BuildRequest{
		Symbol:     e.cfg.Symbol,
		Expiration: spread.Expiration, // same expiry, single-side roll
		Side:       rolledSide,
		CallStrike: selection.call.Strike,
		PutStrike:  selection.put.Strike,
		WingWidth:  e.cfg.DistanceOfWings,
		Quantity:   spread.TradeSize, // rolls always reuse the open size
		StrikeStep: e.cfg.StrikeStepSize,
	})
	if err != nil {
		e.marker("Roll failed: "+err.Error(), spot, "blue", "asterisk",
			fmt.Sprintf("Date: %s | expiration: %s | last price: %.2f",
				today.Format("2006-01-02"), spread.Expiration.Format("2006-01-02"), spot))
		return models.Failed(err.Error()), nil
	}

	if err := e.submitLegs(state, result.Legs); err != nil {
		return models.Failed(err.Error()), nil
	}

	spread.ReplaceSide(side, result.Legs)
	state.HoldLength = 0

	e.marker(fmt.Sprintf("Rolled %s side, credit %.2f", side, result.Credit), spot,
		"green", "triangle-up",
		fmt.Sprintf("Date: %s | expiration: %s | new short: %.2f (delta %.3f) | close cost: %.2f",
			today.Format("2006-01-02"), spread.Expiration.Format("2006-01-02"), shortStrike, delta, closeCost))

	return models.Decision{
		Kind:        models.DecisionRolledSide,
		Side:        side,
		CallStrike:  result.CallStrike,
		PutStrike:   result.PutStrike,
		CallDelta:   selection.call.Delta,
		PutDelta:    selection.put.Delta,
		Credit:      result.Credit,
		CostToClose: closeCost,
		Expiry:      spread.Expiration,
		Reason:      fmt.Sprintf("rolled %s short", side),
	}, nil
}

// submitLegs submits each verified order and accrues the per-contract fee.
func (e *Engine) submitLegs(state *models.LifecycleState, legs []models.Leg) error {
	for _, leg := range legs {
		order := leg.Order
		err := retry.Do(e.logger, retry.DefaultConfig, "submit order", e.Sleep, func() error {
			return e.provider.Submit(order)
		})
		if err != nil {
			return fmt.Errorf("submitting %s %s %.2f: %w",
				order.Side, leg.Instrument.Right, leg.Instrument.Strike, err)
		}
		state.FeesPaid += e.cfg.TradingFee * float64(leg.Order.Quantity)
	}
	e.Sleep(e.SettleWait)
	return nil
}

// marker emits a run-narration annotation; delivery is best effort.
func (e *Engine) marker(label string, value float64, color, symbol, detail string) {
	e.provider.AddMarker(market.Marker{
		Label:  label,
		Value:  value,
		Color:  color,
		Symbol: symbol,
		Detail: detail,
	})
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
