package mock

import (
	"hash/fnv"
	"math"
)

// GeneratePath builds a reproducible daily close series for a run. The seed
// (typically the strategy fingerprint) fixes the drift and wave phases, so
// the same parameters always see the same market.
func GeneratePath(seed string, days int, start float64) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum64()

	phase := float64(sum%628) / 100.0
	drift := (float64((sum>>8)%200)/100.0 - 1.0) * 0.0005 // within ±0.05% per day

	closes := make([]float64, days)
	price := start
	for i := range closes {
		wave := math.Sin(phase+float64(i)*0.23) * 0.004
		ripple := math.Sin(float64(i)*1.7+phase*3) * 0.003
		price *= 1 + drift + wave + ripple
		closes[i] = math.Round(price*100) / 100
	}
	return closes
}
