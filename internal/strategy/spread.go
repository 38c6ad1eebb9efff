package strategy

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/market"
	"github.com/eddiefleurent/utica_condor/internal/models"
	"github.com/eddiefleurent/utica_condor/internal/util"
)

// buildAttempts is how many adjacent short strikes are tried per side when a
// leg is unpriceable. Strike spacing can widen from 1 to 5 near the edges of
// the chain, so a single step is often not enough.
const buildAttempts = 5

// Named construction failures. These are decision outcomes, not faults: the
// state machine records them and retries on the next trading day.
var (
	// ErrBuildCondor means at least one leg of a two-sided construction
	// could not be verified. Partial success is a hard failure: no naked
	// single-side position is ever left standing from a new-open attempt.
	ErrBuildCondor = errors.New("failed to place condor")
	// ErrBuildCallSide means the call vertical could not be verified.
	ErrBuildCallSide = errors.New("failed to build call side")
	// ErrBuildPutSide means the put vertical could not be verified.
	ErrBuildPutSide = errors.New("failed to build put side")
)

// BuildRequest carries everything needed to construct one or both verticals.
type BuildRequest struct {
	Symbol     string
	Expiration time.Time
	Side       models.Side
	CallStrike float64 // short call strike, ignored unless side covers calls
	PutStrike  float64 // short put strike, ignored unless side covers puts
	WingWidth  float64
	Quantity   int
	StrikeStep float64
}

// BuildResult is a verified, submittable order set with its mark-based
// credit estimate. Orders are not yet executed, so the credit is an estimate
// from current marks, not a fill price.
type BuildResult struct {
	Legs   []models.Leg
	Credit float64 // per-share net credit across all legs
	// Realized short strikes after any unpriceable-leg adjustment.
	CallStrike float64
	PutStrike  float64
}

// SpreadBuilder turns a selected short strike and wing width into a verified
// sell/buy leg pair per side, retrying at adjacent strikes when a leg has no
// obtainable price.
type SpreadBuilder struct {
	provider market.Provider
	logger   *logrus.Logger
}

// NewSpreadBuilder creates a spread builder.
func NewSpreadBuilder(provider market.Provider, logger *logrus.Logger) *SpreadBuilder {
	return &SpreadBuilder{provider: provider, logger: logger}
}

// Build constructs the requested side(s). side=both requires both verticals
// to verify; one side failing fails the whole construction.
func (b *SpreadBuilder) Build(req BuildRequest) (*BuildResult, error) {
	result := &BuildResult{CallStrike: req.CallStrike, PutStrike: req.PutStrike}

	if req.Side.Includes(market.RightCall) {
		legs, credit, strike, ok := b.buildVertical(req, market.RightCall, req.CallStrike)
		if !ok {
			return nil, failureFor(req.Side, market.RightCall)
		}
		result.Legs = append(result.Legs, legs...)
		result.Credit += credit
		result.CallStrike = strike
	}

	if req.Side.Includes(market.RightPut) {
		legs, credit, strike, ok := b.buildVertical(req, market.RightPut, req.PutStrike)
		if !ok {
			return nil, failureFor(req.Side, market.RightPut)
		}
		result.Legs = append(result.Legs, legs...)
		result.Credit += credit
		result.PutStrike = strike
	}

	result.Credit = util.Round2(result.Credit)
	return result, nil
}

// buildVertical verifies a short/long pair for one right, shifting the short
// strike one step further from the money on each failed attempt.
func (b *SpreadBuilder) buildVertical(
	req BuildRequest, right market.Right, shortStrike float64,
) (legs []models.Leg, credit float64, realizedStrike float64, ok bool) {
	// Away from the money: up for calls, down for puts.
	shift := req.StrikeStep
	wing := req.WingWidth
	if right == market.RightPut {
		shift = -req.StrikeStep
		wing = -req.WingWidth
	}

	for attempt := 0; attempt < buildAttempts; attempt++ {
		strike := shortStrike + float64(attempt)*shift
		shortInst := market.OptionAt(req.Symbol, req.Expiration, strike, right)
		longInst := market.OptionAt(req.Symbol, req.Expiration, strike+wing, right)

		shortMark, errShort := b.provider.LastPrice(shortInst)
		longMark, errLong := b.provider.LastPrice(longInst)
		if errShort != nil || errLong != nil {
			b.logger.WithFields(logrus.Fields{
				"right":   right,
				"strike":  strike,
				"attempt": attempt + 1,
			}).Debug("leg unpriceable, shifting short strike")
			continue
		}

		legs = []models.Leg{
			{
				Instrument: shortInst,
				Quantity:   -req.Quantity,
				Order:      market.Order{Instrument: shortInst, Quantity: req.Quantity, Side: market.Sell},
			},
			{
				Instrument: longInst,
				Quantity:   req.Quantity,
				Order:      market.Order{Instrument: longInst, Quantity: req.Quantity, Side: market.Buy},
			},
		}
		return legs, shortMark - longMark, strike, true
	}

	return nil, 0, 0, false
}

func failureFor(side models.Side, right market.Right) error {
	if side == models.SideBoth {
		return ErrBuildCondor
	}
	if right == market.RightCall {
		return ErrBuildCallSide
	}
	return ErrBuildPutSide
}
