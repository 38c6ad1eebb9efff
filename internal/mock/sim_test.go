package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/utica_condor/internal/market"
)

func newTestSim(closes []float64) *SimProvider {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) // a Friday
	return NewSimProvider("SPY", start, 10000, closes)
}

func TestAdvanceSkipsWeekends(t *testing.T) {
	s := newTestSim([]float64{450, 451, 452})

	assert.Equal(t, time.Friday, s.Today().Weekday())
	require.True(t, s.Advance())
	assert.Equal(t, time.Monday, s.Today().Weekday())
	require.True(t, s.Advance())
	assert.Equal(t, time.Tuesday, s.Today().Weekday())
	// Path exhausted.
	assert.False(t, s.Advance())
	assert.True(t, s.Exhausted())
}

func TestLastPriceFollowsPath(t *testing.T) {
	s := newTestSim([]float64{450, 460})

	p, err := s.LastPrice(market.Underlying("SPY"))
	require.NoError(t, err)
	assert.Equal(t, 450.0, p)

	s.Advance()
	p, err = s.LastPrice(market.Underlying("SPY"))
	require.NoError(t, err)
	assert.Equal(t, 460.0, p)
}

func TestUnlistedExpirationUnavailable(t *testing.T) {
	s := newTestSim([]float64{450})
	exp := s.Today().AddDate(0, 0, 30)
	s.MarkUnlisted(exp)

	inst := market.OptionAt("SPY", exp, 450, market.RightCall)
	_, err := s.LastPrice(inst)
	assert.ErrorIs(t, err, market.ErrUnavailable)

	_, err = s.Greeks(inst)
	assert.ErrorIs(t, err, market.ErrUnavailable)

	_, _, err = s.ChainStrikes("SPY", exp, 10, 450)
	assert.ErrorIs(t, err, market.ErrUnavailable)
}

func TestDeltaShape(t *testing.T) {
	s := newTestSim([]float64{450})
	exp := s.Today().AddDate(0, 0, 30)

	atm, err := s.Greeks(market.OptionAt("SPY", exp, 450, market.RightCall))
	require.NoError(t, err)
	far, err := s.Greeks(market.OptionAt("SPY", exp, 480, market.RightCall))
	require.NoError(t, err)

	// Call delta decays away from the money.
	assert.InDelta(t, 0.5, atm.Delta, 1e-9)
	assert.Less(t, far.Delta, atm.Delta)
	assert.Greater(t, far.Delta, 0.0)

	put, err := s.Greeks(market.OptionAt("SPY", exp, 450, market.RightPut))
	require.NoError(t, err)
	assert.InDelta(t, -0.5, put.Delta, 1e-9)
}

func TestSubmitAndLiquidateConservesValue(t *testing.T) {
	s := newTestSim([]float64{450})
	exp := s.Today().AddDate(0, 0, 30)
	inst := market.OptionAt("SPY", exp, 460, market.RightCall)

	mark, err := s.LastPrice(inst)
	require.NoError(t, err)

	// Selling credits cash and opens a short.
	require.NoError(t, s.Submit(market.Order{Instrument: inst, Quantity: 2, Side: market.Sell}))
	cash, err := s.Cash()
	require.NoError(t, err)
	assert.InDelta(t, 10000+2*mark*100, cash, 1e-6)

	positions, err := s.Positions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, -2, positions[0].Quantity)

	// Portfolio value nets the short liability back out.
	pv, err := s.PortfolioValue()
	require.NoError(t, err)
	assert.InDelta(t, 10000, pv, 1e-6)

	// Flattening at the same mark restores the starting cash.
	require.NoError(t, s.LiquidateAll())
	cash, err = s.Cash()
	require.NoError(t, err)
	assert.InDelta(t, 10000, cash, 1e-6)

	positions, err = s.Positions()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestLiquidateSideLeavesOtherSide(t *testing.T) {
	s := newTestSim([]float64{450})
	exp := s.Today().AddDate(0, 0, 30)
	call := market.OptionAt("SPY", exp, 460, market.RightCall)
	put := market.OptionAt("SPY", exp, 440, market.RightPut)

	require.NoError(t, s.Submit(market.Order{Instrument: call, Quantity: 1, Side: market.Sell}))
	require.NoError(t, s.Submit(market.Order{Instrument: put, Quantity: 1, Side: market.Sell}))

	require.NoError(t, s.LiquidateSide(market.RightCall))
	positions, err := s.Positions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, market.RightPut, positions[0].Instrument.Right)
}

func TestCycleDateAfterThirdFriday(t *testing.T) {
	s := newTestSim([]float64{450})

	// 2024-03-15 is the third Friday of March.
	got := s.CycleDateAfter(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)

	// Past the third Friday the cycle rolls into April (2024-04-19).
	got = s.CycleDateAfter(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC), got)

	// The cycle date itself is "at or after".
	got = s.CycleDateAfter(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestChainStrikesWindow(t *testing.T) {
	s := newTestSim([]float64{450})
	exp := s.Today().AddDate(0, 0, 30)

	puts, calls, err := s.ChainStrikes("SPY", exp, 5, 450)
	require.NoError(t, err)
	assert.Len(t, puts, 11)
	assert.Len(t, calls, 11)
	assert.Equal(t, 445.0, calls[0])
	assert.Equal(t, 455.0, calls[len(calls)-1])
}

func TestMarkersRecorded(t *testing.T) {
	s := newTestSim([]float64{450})
	s.AddMarker(market.Marker{Label: "opened", Color: "green"})
	s.AddMarker(market.Marker{Label: "closed", Color: "red"})

	markers := s.Markers()
	require.Len(t, markers, 2)
	assert.Equal(t, "opened", markers[0].Label)
}

func TestUnderlyingReturn(t *testing.T) {
	s := newTestSim([]float64{400, 420, 440})
	assert.InDelta(t, 0.10, s.UnderlyingReturn(), 1e-9)

	assert.Equal(t, 0.0, newTestSim(nil).UnderlyingReturn())
}

func TestGeneratePathDeterministic(t *testing.T) {
	a := GeneratePath("seed-a", 50, 450)
	b := GeneratePath("seed-a", 50, 450)
	c := GeneratePath("seed-b", 50, 450)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.Len(t, a, 50)
	for _, p := range a {
		assert.Greater(t, p, 0.0)
	}
}
