package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowStrikes(t *testing.T) {
	strikes := []float64{400, 410, 420, 430, 440, 450, 460, 470, 480, 490}

	t.Run("window around center", func(t *testing.T) {
		got := WindowStrikes(strikes, 4, 452)
		// Nearest to 452 is 450; half-window of 2 on each side.
		assert.Equal(t, []float64{430, 440, 450, 460}, got)
	})

	t.Run("window larger than list returns all sorted", func(t *testing.T) {
		got := WindowStrikes([]float64{470, 450, 460}, 10, 455)
		assert.Equal(t, []float64{450, 460, 470}, got)
	})

	t.Run("zero window returns all", func(t *testing.T) {
		got := WindowStrikes(strikes, 0, 455)
		assert.Len(t, got, len(strikes))
	})

	t.Run("center at the low edge clamps", func(t *testing.T) {
		got := WindowStrikes(strikes, 4, 395)
		assert.Equal(t, []float64{400, 410}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, WindowStrikes(nil, 4, 450))
	})

	t.Run("input is not mutated", func(t *testing.T) {
		in := []float64{470, 400, 450}
		WindowStrikes(in, 2, 450)
		assert.Equal(t, []float64{470, 400, 450}, in)
	})
}
