package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/ledger"
)

const sweepStrategy = `
symbol = "SPY"
trade_strategy = "iron-condor"
option_duration = 30
strike_step_size = 1.0
max_strikes = 40
call_delta_required = 0.16
put_delta_required = 0.16
maximum_rolls = 2
days_before_expiry_to_buy_back = 5
quantity_to_trade = 1
minimum_hold_period = 3
distance_of_wings = 10.0
strike_roll_distance = 5.0
max_loss_multiplier = 0.75
roll_strategy = "distance"
skip_on_max_rolls = false
delta_threshold = 0.30
roll_delta_target = 0.0
maximum_portfolio_allocation = 0.75
max_loss_trade_days_to_skip = 5
max_volatility_days_to_skip = 10
max_symbol_volatility = 0.05
starting_date = "2024-03-04"
ending_date = "2024-03-15"
trading_fee = 0.65
`

func sweepConfig(dir string) *appconfig.Config {
	return &appconfig.Config{
		Environment: appconfig.EnvironmentConfig{Mode: "sim", LogLevel: "error"},
		Ledger:      appconfig.LedgerConfig{Path: filepath.Join(dir, "condor.db")},
		Runner:      appconfig.RunnerConfig{StrategiesDir: dir, Concurrency: 1},
	}
}

func sweepLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestWeekdaysBetween(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday
	assert.Equal(t, 5, weekdaysBetween(start, start.AddDate(0, 0, 4)))
	// Spanning a weekend adds nothing.
	assert.Equal(t, 5, weekdaysBetween(start, start.AddDate(0, 0, 6)))
	assert.Equal(t, 10, weekdaysBetween(start, start.AddDate(0, 0, 11)))
	assert.Equal(t, 1, weekdaysBetween(start, start))
}

func TestSweepRecordsRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spy.toml"), []byte(sweepStrategy), 0o600))

	db := ledger.NewMockLedger()
	runner := NewRunner(sweepConfig(dir), db, sweepLogger())
	require.NoError(t, runner.Run(context.Background()))

	strat, err := appconfig.LoadStrategy(filepath.Join(dir, "spy.toml"))
	require.NoError(t, err)
	fingerprint, err := strat.Fingerprint()
	require.NoError(t, err)

	summary, found := db.Recorded(fingerprint)
	require.True(t, found)
	assert.Equal(t, strat.Name(), summary.RunName)
	assert.Equal(t, "SPY", summary.Symbol)
	assert.Equal(t, 10, summary.DaysTraded)
	assert.True(t, summary.StartingCash.IsPositive())
	assert.False(t, summary.EndingValue.IsZero())
}

func TestSweepSkipsRecordedFingerprint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spy.toml"), []byte(sweepStrategy), 0o600))

	strat, err := appconfig.LoadStrategy(filepath.Join(dir, "spy.toml"))
	require.NoError(t, err)
	fingerprint, err := strat.Fingerprint()
	require.NoError(t, err)

	db := ledger.NewMockLedger()
	sentinel := ledger.RunSummary{Fingerprint: fingerprint, RunName: "prior", DaysTraded: 1}
	require.NoError(t, db.Record(sentinel))

	runner := NewRunner(sweepConfig(dir), db, sweepLogger())
	require.NoError(t, runner.Run(context.Background()))

	// The prior record is untouched: the run was skipped, not re-executed.
	summary, found := db.Recorded(fingerprint)
	require.True(t, found)
	assert.Equal(t, "prior", summary.RunName)
	assert.Equal(t, 1, summary.DaysTraded)
}

func TestSweepIgnoresBadStrategyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte(`symbol = "SPY"`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.toml"), []byte(sweepStrategy), 0o600))

	db := ledger.NewMockLedger()
	runner := NewRunner(sweepConfig(dir), db, sweepLogger())
	require.NoError(t, runner.Run(context.Background()))

	strat, err := appconfig.LoadStrategy(filepath.Join(dir, "good.toml"))
	require.NoError(t, err)
	fingerprint, err := strat.Fingerprint()
	require.NoError(t, err)
	_, found := db.Recorded(fingerprint)
	assert.True(t, found)
}

func TestSweepCanceledContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spy.toml"), []byte(sweepStrategy), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := ledger.NewMockLedger()
	runner := NewRunner(sweepConfig(dir), db, sweepLogger())
	assert.Error(t, runner.Run(ctx))
}
