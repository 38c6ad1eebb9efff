package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/eddiefleurent/utica_condor/internal/models"
)

// RollMode selects what triggers a single-side roll.
type RollMode string

const (
	// RollModeDistance rolls when the underlying price crosses within
	// StrikeRollDistance of the short strike.
	RollModeDistance RollMode = "distance"
	// RollModeDelta rolls when the short leg's absolute delta crosses
	// DeltaThreshold.
	RollModeDelta RollMode = "delta"
	// RollModeNone disables rolling entirely.
	RollModeNone RollMode = "none"
)

// Strategy is the immutable parameter snapshot for one run. Created once at
// run start from a TOML file and never mutated afterwards. The field set
// mirrors the strategy_configurations files the sweep runner consumes.
type Strategy struct {
	Symbol                 string       `toml:"symbol" json:"symbol"`
	TradeShape             models.Shape `toml:"trade_strategy" json:"trade_strategy"`
	OptionDuration         int          `toml:"option_duration" json:"option_duration"`
	StrikeStepSize         float64      `toml:"strike_step_size" json:"strike_step_size"`
	MaxStrikes             int          `toml:"max_strikes" json:"max_strikes"`
	CallDeltaRequired      float64      `toml:"call_delta_required" json:"call_delta_required"`
	PutDeltaRequired       float64      `toml:"put_delta_required" json:"put_delta_required"`
	MaximumRolls           int          `toml:"maximum_rolls" json:"maximum_rolls"`
	DaysBeforeExpiryClose  int          `toml:"days_before_expiry_to_buy_back" json:"days_before_expiry_to_buy_back"`
	QuantityToTrade        int          `toml:"quantity_to_trade" json:"quantity_to_trade"`
	MinimumHoldPeriod      int          `toml:"minimum_hold_period" json:"minimum_hold_period"`
	DistanceOfWings        float64      `toml:"distance_of_wings" json:"distance_of_wings"`
	StrikeRollDistance     float64      `toml:"strike_roll_distance" json:"strike_roll_distance"`
	MaxLossMultiplier      float64      `toml:"max_loss_multiplier" json:"max_loss_multiplier"`
	RollMode               RollMode     `toml:"roll_strategy" json:"roll_strategy"`
	SkipOnMaxRolls         bool         `toml:"skip_on_max_rolls" json:"skip_on_max_rolls"`
	DeltaThreshold         float64      `toml:"delta_threshold" json:"delta_threshold"`
	RollDeltaTarget        float64      `toml:"roll_delta_target" json:"roll_delta_target"` // 0 = use the entry delta targets
	MaxPortfolioAllocation float64      `toml:"maximum_portfolio_allocation" json:"maximum_portfolio_allocation"`
	MaxLossDaysToSkip      int          `toml:"max_loss_trade_days_to_skip" json:"max_loss_trade_days_to_skip"`
	VolatilityDaysToSkip   int          `toml:"max_volatility_days_to_skip" json:"max_volatility_days_to_skip"`
	MaxSymbolVolatility    float64      `toml:"max_symbol_volatility" json:"max_symbol_volatility"`
	StartingDate           string       `toml:"starting_date" json:"starting_date"`
	EndingDate             string       `toml:"ending_date" json:"ending_date"`
	TradingFee             float64      `toml:"trading_fee" json:"trading_fee"` // dollars per contract
}

// LoadStrategy reads and validates one TOML strategy parameter file.
func LoadStrategy(path string) (*Strategy, error) {
	var s Strategy
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("parsing strategy file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy file %s: %w", path, err)
	}
	return &s, nil
}

// ListStrategyFiles returns the TOML files in a directory, sorted by name so
// sweeps run in a stable order.
func ListStrategyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading strategies dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Validate checks all strategy parameters are usable. A failure here is a
// configuration error: fatal for the run, never silently continued.
func (s *Strategy) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !s.TradeShape.Valid() {
		return fmt.Errorf("trade_strategy must be one of iron-condor|bull-put|bear-call|hybrid (got %q)", s.TradeShape)
	}
	if s.OptionDuration <= 0 {
		return fmt.Errorf("option_duration must be > 0")
	}
	if s.StrikeStepSize <= 0 {
		return fmt.Errorf("strike_step_size must be > 0")
	}
	if s.MaxStrikes <= 0 {
		return fmt.Errorf("max_strikes must be > 0")
	}
	if s.CallDeltaRequired <= 0 || s.CallDeltaRequired >= 1 {
		return fmt.Errorf("call_delta_required must be in (0,1)")
	}
	if s.PutDeltaRequired <= 0 || s.PutDeltaRequired >= 1 {
		return fmt.Errorf("put_delta_required must be in (0,1)")
	}
	if s.MaximumRolls < 0 {
		return fmt.Errorf("maximum_rolls must be >= 0")
	}
	if s.DaysBeforeExpiryClose < 0 {
		return fmt.Errorf("days_before_expiry_to_buy_back must be >= 0")
	}
	if s.QuantityToTrade <= 0 {
		return fmt.Errorf("quantity_to_trade must be > 0")
	}
	if s.MinimumHoldPeriod < 0 {
		return fmt.Errorf("minimum_hold_period must be >= 0")
	}
	if s.DistanceOfWings <= 0 {
		return fmt.Errorf("distance_of_wings must be > 0")
	}
	if s.StrikeRollDistance < 0 {
		return fmt.Errorf("strike_roll_distance must be >= 0")
	}
	if s.MaxLossMultiplier < 0 {
		return fmt.Errorf("max_loss_multiplier must be >= 0 (0 disables the check)")
	}
	switch s.RollMode {
	case RollModeDistance, RollModeDelta, RollModeNone:
	default:
		return fmt.Errorf("roll_strategy must be distance|delta|none (got %q)", s.RollMode)
	}
	if s.RollMode == RollModeDelta && (s.DeltaThreshold <= 0 || s.DeltaThreshold >= 1) {
		return fmt.Errorf("delta_threshold must be in (0,1) when roll_strategy is delta")
	}
	if s.RollDeltaTarget < 0 || s.RollDeltaTarget >= 1 {
		return fmt.Errorf("roll_delta_target must be in [0,1)")
	}
	if s.MaxPortfolioAllocation <= 0 || s.MaxPortfolioAllocation > 1 {
		return fmt.Errorf("maximum_portfolio_allocation must be in (0,1]")
	}
	if s.MaxLossDaysToSkip < 0 || s.VolatilityDaysToSkip < 0 {
		return fmt.Errorf("skip-day windows must be >= 0")
	}
	if s.MaxSymbolVolatility < 0 || s.MaxSymbolVolatility >= 1 {
		return fmt.Errorf("max_symbol_volatility must be in [0,1)")
	}
	if s.TradingFee < 0 {
		return fmt.Errorf("trading_fee must be >= 0")
	}

	start, end, err := s.Window()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("starting_date must be before ending_date")
	}

	return nil
}

// Window returns the run's trading window.
func (s *Strategy) Window() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", s.StartingDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("starting_date invalid: %w", err)
	}
	end, err = time.Parse("2006-01-02", s.EndingDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ending_date invalid: %w", err)
	}
	return start, end, nil
}

// Name returns the human-readable run name used for logs and the ledger.
func (s *Strategy) Name() string {
	return fmt.Sprintf("mwt-%s-%s-%s-%s", s.Symbol, s.TradeShape, s.StartingDate, s.EndingDate)
}

// Fingerprint returns a stable hash over the canonicalized parameters, used
// by the ledger to skip re-running an identical configuration. Two Strategy
// values with equal fields always produce the same fingerprint: the struct
// is round-tripped through a map so keys serialize sorted.
func (s *Strategy) Fingerprint() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("canonicalizing strategy: %w", err)
	}
	var canonical map[string]any
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return "", fmt.Errorf("canonicalizing strategy: %w", err)
	}
	sorted, err := json.Marshal(canonical) // map keys marshal sorted
	if err != nil {
		return "", fmt.Errorf("canonicalizing strategy: %w", err)
	}
	sum := sha256.Sum256(sorted)
	return hex.EncodeToString(sum[:]), nil
}
