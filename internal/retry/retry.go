// Package retry wraps execution-path provider calls with bounded, jittered
// backoff. Only transient faults are retried; anything else surfaces on the
// first attempt.
package retry

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config bounds one retried operation.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig suits order submission and liquidation against a live
// gateway.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// Do runs fn, retrying transient failures up to cfg.MaxRetries times. The
// sleep function serves the backoff pauses, so simulated runs pay no
// wall-clock cost.
func Do(logger *logrus.Logger, cfg Config, op string, sleep func(time.Duration), fn func() error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.WithField("op", op).Infof("Succeeded on attempt %d", attempt+1)
			}
			return nil
		}

		lastErr = err
		if !IsTransient(err) || attempt == cfg.MaxRetries {
			break
		}

		logger.WithField("op", op).WithError(err).
			Warnf("Attempt %d failed, retrying in %v", attempt+1, backoff)
		sleep(backoff)
		backoff = nextBackoff(backoff, cfg.MaxBackoff)
	}

	return fmt.Errorf("%s failed after retries: %w", op, lastErr)
}

// nextBackoff grows the delay by half with up to 25% jitter, capped at max.
func nextBackoff(current, max time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > max {
		backoff = max
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		if jitter, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			backoff += time.Duration(jitter.Int64())
		}
	}
	return backoff
}

// IsTransient reports whether the error looks like a recoverable transport
// or gateway fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
