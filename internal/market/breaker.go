package market

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitBreakerProvider wraps a Provider with circuit breaker functionality
// so a flapping data vendor cannot stall the daily decision loop.
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerProvider implements Provider at compile time.
var _ Provider = (*CircuitBreakerProvider)(nil)

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with sensible defaults.
func NewCircuitBreakerProvider(provider Provider, logger *logrus.Logger) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(provider, logger, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerProviderWithSettings creates a CircuitBreakerProvider with custom settings.
func NewCircuitBreakerProviderWithSettings(
	provider Provider, logger *logrus.Logger, settings CircuitBreakerSettings,
) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "ProviderCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Missing data is a normal, recoverable outcome and must not
			// trip the breaker.
			return err == nil || errors.Is(err, ErrUnavailable)
		},
	}

	return &CircuitBreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// exec is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// LastPrice wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) LastPrice(inst Instrument) (float64, error) {
	return execBreaker(c.breaker, func() (float64, error) { return c.provider.LastPrice(inst) })
}

// Greeks wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) Greeks(inst Instrument) (*GreeksItem, error) {
	return execBreaker(c.breaker, func() (*GreeksItem, error) { return c.provider.Greeks(inst) })
}

// ChainStrikes wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) ChainStrikes(
	symbol string, expiration time.Time, window int, center float64,
) ([]float64, []float64, error) {
	type pair struct{ puts, calls []float64 }
	p, err := execBreaker(c.breaker, func() (pair, error) {
		puts, calls, err := c.provider.ChainStrikes(symbol, expiration, window, center)
		return pair{puts, calls}, err
	})
	return p.puts, p.calls, err
}

// Positions wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) Positions() ([]PositionItem, error) {
	return execBreaker(c.breaker, func() ([]PositionItem, error) { return c.provider.Positions() })
}

// Cash wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) Cash() (float64, error) {
	return execBreaker(c.breaker, func() (float64, error) { return c.provider.Cash() })
}

// PortfolioValue wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) PortfolioValue() (float64, error) {
	return execBreaker(c.breaker, func() (float64, error) { return c.provider.PortfolioValue() })
}

// Submit wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) Submit(order Order) error {
	_, err := execBreaker(c.breaker, func() (struct{}, error) { return struct{}{}, c.provider.Submit(order) })
	return err
}

// LiquidateAll wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) LiquidateAll() error {
	_, err := execBreaker(c.breaker, func() (struct{}, error) { return struct{}{}, c.provider.LiquidateAll() })
	return err
}

// LiquidateSide wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) LiquidateSide(right Right) error {
	_, err := execBreaker(c.breaker, func() (struct{}, error) { return struct{}{}, c.provider.LiquidateSide(right) })
	return err
}

// Today passes through to the underlying provider; the clock carries no
// failure mode worth breaking on.
func (c *CircuitBreakerProvider) Today() time.Time {
	return c.provider.Today()
}

// CycleDateAfter passes through to the underlying provider.
func (c *CircuitBreakerProvider) CycleDateAfter(t time.Time) time.Time {
	return c.provider.CycleDateAfter(t)
}

// AddMarker passes through; markers are observational and never gate trading.
func (c *CircuitBreakerProvider) AddMarker(m Marker) {
	c.provider.AddMarker(m)
}
