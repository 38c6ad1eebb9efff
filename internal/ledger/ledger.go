// Package ledger persists completed run results keyed by the strategy
// parameter fingerprint, so a sweep never re-runs a configuration it has
// already recorded.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// RunSummary is one finished run's accounting. Monetary fields use decimals
// so the recorded returns are exact regardless of how the run computed them.
type RunSummary struct {
	Fingerprint  string
	RunName      string
	Symbol       string
	TradeShape   string
	StartingDate string
	EndingDate   string
	Parameters   string // canonical JSON of the strategy file
	StartingCash decimal.Decimal
	EndingValue  decimal.Decimal
	TotalReturn  decimal.Decimal // fraction, e.g. 0.1250 for +12.5%
	// UnderlyingReturn is the buy-and-hold return of the underlying over
	// the same window, the benchmark the strategy return is judged against.
	UnderlyingReturn decimal.Decimal
	FeesPaid         decimal.Decimal
	DaysTraded       int
}

// Interface is the contract for run-result persistence. Implementations must
// be safe for concurrent use: the sweep runner records from multiple
// goroutines.
type Interface interface {
	// Exists reports whether a run with this parameter fingerprint has
	// already been recorded.
	Exists(fingerprint string) (bool, error)
	// Record stores a run summary. Recording the same fingerprint twice is
	// a no-op, so a summary lands at most once.
	Record(summary RunSummary) error
	Close() error
}

// SQLiteLedger stores run summaries in a local sqlite database.
type SQLiteLedger struct {
	db *sql.DB
}

var _ Interface = (*SQLiteLedger)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS mwt_benchmark_returns (
	parameter_hash TEXT PRIMARY KEY,
	run_name       TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	trade_strategy TEXT NOT NULL,
	starting_date  TEXT NOT NULL,
	ending_date    TEXT NOT NULL,
	parameters     TEXT NOT NULL,
	starting_cash  TEXT NOT NULL,
	ending_value   TEXT NOT NULL,
	total_return   TEXT NOT NULL,
	underlying_return TEXT NOT NULL,
	fees_paid      TEXT NOT NULL,
	days_traded    INTEGER NOT NULL,
	recorded_at    TEXT NOT NULL
);`

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	// sqlite serializes writers; a single connection avoids lock contention
	// between sweep goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Exists reports whether the fingerprint has a recorded run.
func (l *SQLiteLedger) Exists(fingerprint string) (bool, error) {
	var one int
	err := l.db.QueryRow(
		`SELECT 1 FROM mwt_benchmark_returns WHERE parameter_hash = ?`, fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return true, nil
}

// Record stores the summary, ignoring duplicates of the same fingerprint.
func (l *SQLiteLedger) Record(summary RunSummary) error {
	if summary.Fingerprint == "" {
		return fmt.Errorf("run summary has no fingerprint")
	}
	_, err := l.db.Exec(`
		INSERT INTO mwt_benchmark_returns (
			parameter_hash, run_name, symbol, trade_strategy,
			starting_date, ending_date, parameters,
			starting_cash, ending_value, total_return, underlying_return,
			fees_paid, days_traded, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(parameter_hash) DO NOTHING`,
		summary.Fingerprint, summary.RunName, summary.Symbol, summary.TradeShape,
		summary.StartingDate, summary.EndingDate, summary.Parameters,
		summary.StartingCash.String(), summary.EndingValue.String(),
		summary.TotalReturn.String(), summary.UnderlyingReturn.String(),
		summary.FeesPaid.String(),
		summary.DaysTraded, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", summary.RunName, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
