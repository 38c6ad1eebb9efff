package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestRecordPriceRounds(t *testing.T) {
	s := NewLifecycleState()
	s.RecordPrice(452.49, day(0))
	s.RecordPrice(452.51, day(1))

	require.Len(t, s.PriceHistory, 2)
	assert.Equal(t, 452.0, s.PriceHistory[0].Price)
	assert.Equal(t, 453.0, s.PriceHistory[1].Price)
}

func TestVolMoveExceeded(t *testing.T) {
	tests := []struct {
		name      string
		prices    []float64
		threshold float64
		want      bool
	}{
		{"not enough history", []float64{100, 100}, 0.05, false},
		{"flat", []float64{100, 100, 100}, 0.05, false},
		{"down move beyond threshold", []float64{100, 100, 90}, 0.05, true},
		{"up move beyond threshold", []float64{100, 100, 110}, 0.05, true},
		{"move inside threshold", []float64{100, 100, 103}, 0.05, false},
		{"threshold zero disables", []float64{100, 100, 50}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewLifecycleState()
			for i, p := range tt.prices {
				s.RecordPrice(p, day(i))
			}
			assert.Equal(t, tt.want, s.VolMoveExceeded(tt.threshold))
		})
	}
}

// A second qualifying move during an active cooldown restarts the shared
// counter instead of stacking a second cooldown.
func TestBeginHaltRestartsCounter(t *testing.T) {
	s := NewLifecycleState()

	s.BeginHalt(HaltVolatility)
	s.SkippedDays = 3

	s.BeginHalt(HaltVolatility)
	assert.True(t, s.StayOut)
	assert.Equal(t, HaltVolatility, s.Halt)
	assert.Equal(t, 0, s.SkippedDays)
}

func TestHaltReasonOverwritten(t *testing.T) {
	s := NewLifecycleState()
	s.BeginHalt(HaltMaxLoss)
	s.SkippedDays = 2

	// Most recently triggered halt wins.
	s.BeginHalt(HaltVolatility)
	assert.Equal(t, HaltVolatility, s.Halt)
	assert.Equal(t, 0, s.SkippedDays)

	s.ClearHalt()
	assert.False(t, s.StayOut)
	assert.Equal(t, HaltNone, s.Halt)
}

func TestMissingExpiryMemo(t *testing.T) {
	s := NewLifecycleState()
	d := day(30)

	assert.False(t, s.IsMissingExpiry(d))
	s.MarkMissingExpiry(d)
	assert.True(t, s.IsMissingExpiry(d))
	assert.False(t, s.IsMissingExpiry(day(31)))
}

func TestResetForOpenAndClose(t *testing.T) {
	s := NewLifecycleState()
	s.HoldLength = 7
	s.RollCount = 2

	spread := NewSpread("SPY", day(30), nil, 2.50, 3, day(0))
	s.ResetForOpen(spread, 10)

	assert.Same(t, spread, s.Spread)
	assert.Equal(t, 0, s.HoldLength)
	assert.Equal(t, 0, s.RollCount)
	assert.Equal(t, 3, s.LastTradeSize)
	assert.Equal(t, 3000.0, s.MarginReserve)

	s.ResetForClose()
	assert.Nil(t, s.Spread)
	assert.Equal(t, 0, s.HoldLength)
	assert.Equal(t, 0, s.RollCount)
	assert.Equal(t, 0.0, s.MarginReserve)
}
