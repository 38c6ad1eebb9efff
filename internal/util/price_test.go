package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"round down to cent", 1.2341, 0.01, 1.23},
		{"round up to cent", 1.2365, 0.01, 1.24},
		{"whole dollar tick", 452.4, 1.0, 452},
		{"five dollar tick", 447.6, 5.0, 450},
		{"zero tick passes through", 1.2345, 0, 1.2345},
		{"negative tick passes through", 1.2345, -1, 1.2345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundToTick(tt.x, tt.tick), 1e-9)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 2.35, Round2(2.345000001), 1e-9)
	assert.InDelta(t, -1.5, Round2(-1.499), 1e-9)
	assert.InDelta(t, 0, Round2(0.004), 1e-9)
}
