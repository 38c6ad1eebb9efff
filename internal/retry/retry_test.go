package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	slept := 0
	err := Do(quietLogger(), DefaultConfig, "op", func(time.Duration) { slept++ }, func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, slept)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	var pauses []time.Duration
	err := Do(quietLogger(), Config{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}, "op", func(d time.Duration) { pauses = append(pauses, d) }, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("gateway: 503")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, pauses, 2)
	assert.Equal(t, time.Second, pauses[0])
	// Backoff grows between attempts.
	assert.GreaterOrEqual(t, pauses[1], pauses[0])
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("insufficient buying power")
	err := Do(quietLogger(), DefaultConfig, "op", func(time.Duration) {}, func() error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	err := Do(quietLogger(), Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, "op", func(time.Duration) {}, func() error {
		calls++
		return fmt.Errorf("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("HTTP 429 rate limit")))
	assert.True(t, IsTransient(errors.New("request timeout")))
	assert.False(t, IsTransient(errors.New("invalid order")))
	assert.False(t, IsTransient(nil))
}
