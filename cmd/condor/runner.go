package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/engine"
	"github.com/eddiefleurent/utica_condor/internal/ledger"
	"github.com/eddiefleurent/utica_condor/internal/market"
	"github.com/eddiefleurent/utica_condor/internal/mock"
	"github.com/eddiefleurent/utica_condor/internal/models"
)

const (
	defaultConcurrency = 4
	startingCash       = 25000.0
)

// Runner sweeps a directory of strategy parameter files, running each one
// whose fingerprint is not yet in the ledger.
type Runner struct {
	cfg    *config.Config
	ledger ledger.Interface
	logger *logrus.Logger
}

// NewRunner creates a sweep runner.
func NewRunner(cfg *config.Config, db ledger.Interface, logger *logrus.Logger) *Runner {
	return &Runner{cfg: cfg, ledger: db, logger: logger}
}

// Run executes every pending strategy file. A single bad file or failed run
// is logged and skipped; only ledger faults abort the sweep.
func (r *Runner) Run(ctx context.Context) error {
	files, err := config.ListStrategyFiles(r.cfg.Runner.StrategiesDir)
	if err != nil {
		return err
	}
	r.logger.WithField("count", len(files)).Info("Strategy files discovered")

	concurrency := r.cfg.Runner.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, file := range files {
		file := file
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return r.runOne(ctx, file)
		})
	}
	return g.Wait()
}

// runOne executes a single strategy file end to end and records the result.
func (r *Runner) runOne(ctx context.Context, path string) error {
	log := r.logger.WithField("file", path)

	strat, err := config.LoadStrategy(path)
	if err != nil {
		log.WithError(err).Error("Skipping unusable strategy file")
		return nil
	}
	log = r.logger.WithField("run", strat.Name())

	fingerprint, err := strat.Fingerprint()
	if err != nil {
		log.WithError(err).Error("Skipping strategy, fingerprint failed")
		return nil
	}
	done, err := r.ledger.Exists(fingerprint)
	if err != nil {
		return err
	}
	if done {
		log.Info("Already recorded, skipping")
		return nil
	}

	start, end, err := strat.Window()
	if err != nil {
		log.WithError(err).Error("Skipping strategy, bad window")
		return nil
	}

	provider := r.newProvider(strat, fingerprint, start, end)
	eng := engine.New(provider, strat, r.logger)
	if !r.cfg.IsSim() {
		eng.SettleWait = r.cfg.GetSettleWait()
		eng.Sleep = time.Sleep
	}

	state := models.NewLifecycleState()
	daysTraded := 0

	for provider.Today().Before(end.AddDate(0, 0, 1)) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		decision, err := eng.Step(state)
		if err != nil {
			log.WithError(err).Error("Run aborted on fatal error")
			return nil
		}
		daysTraded++

		log.WithFields(logrus.Fields{
			"date":     provider.Today().Format("2006-01-02"),
			"decision": decision.Kind,
		}).Debug(decision.String())

		if state.CapitalExhausted && state.Spread == nil {
			log.Warn("Capital exhausted, ending run early")
			break
		}
		if !provider.Advance() {
			break
		}
	}

	return r.record(log, strat, fingerprint, provider, state, daysTraded)
}

// newProvider builds the market provider for one run. Sim mode is fully
// synthetic; live mode keeps synthetic fills but pulls real reference chains
// through the circuit breaker.
func (r *Runner) newProvider(strat *config.Strategy, fingerprint string, start, end time.Time) *mock.SimProvider {
	days := weekdaysBetween(start, end)
	closes := mock.GeneratePath(fingerprint, days, 450.0)

	provider := mock.NewSimProvider(strat.Symbol, start, startingCash, closes)
	provider.StrikeStep = strat.StrikeStepSize

	if !r.cfg.IsSim() {
		polygon := market.NewPolygonClient(r.cfg.Market.PolygonAPIKey, r.logger)
		provider.Chains = polygon
	}
	return provider
}

// record computes the run's accounting and writes it to the ledger exactly
// once.
func (r *Runner) record(
	log *logrus.Entry, strat *config.Strategy, fingerprint string,
	provider *mock.SimProvider, state *models.LifecycleState, daysTraded int,
) error {
	endingValue, err := provider.PortfolioValue()
	if err != nil {
		log.WithError(err).Error("Final portfolio value unavailable, not recording")
		return nil
	}

	params, err := json.Marshal(strat)
	if err != nil {
		log.WithError(err).Error("Parameters not serializable, not recording")
		return nil
	}

	startDec := decimal.NewFromFloat(startingCash)
	endDec := decimal.NewFromFloat(endingValue)
	totalReturn := endDec.Sub(startDec).Div(startDec).Round(6)

	summary := ledger.RunSummary{
		Fingerprint:      fingerprint,
		RunName:          strat.Name(),
		Symbol:           strat.Symbol,
		TradeShape:       string(strat.TradeShape),
		StartingDate:     strat.StartingDate,
		EndingDate:       strat.EndingDate,
		Parameters:       string(params),
		StartingCash:     startDec,
		EndingValue:      endDec,
		TotalReturn:      totalReturn,
		UnderlyingReturn: decimal.NewFromFloat(provider.UnderlyingReturn()).Round(6),
		FeesPaid:         decimal.NewFromFloat(state.FeesPaid).Round(2),
		DaysTraded:       daysTraded,
	}
	if err := r.ledger.Record(summary); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"ending_value": endDec.StringFixed(2),
		"total_return": totalReturn.String(),
		"fees_paid":    summary.FeesPaid.String(),
		"days":         daysTraded,
	}).Info("Run recorded")
	return nil
}

// weekdaysBetween counts the trading days in the inclusive window.
func weekdaysBetween(start, end time.Time) int {
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days++
		}
	}
	return days
}
