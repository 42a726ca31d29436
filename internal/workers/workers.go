package workers

import (
	"runtime"
)

// MaxConversions caps automatic sizing; each codec run is an external
// process with its own memory footprint.
const MaxConversions = 8

// Count returns GOMAXPROCS * multiplier, at least 1 and at most limit
// (0 means no limit). GOMAXPROCS follows the container CPU quota.
func Count(multiplier float64, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForMixed returns 1.5 workers per CPU, for work that alternates between
// waiting on a subprocess and doing CPU work in-process.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Conversions returns how many codec runs may execute at once: configured
// when positive, otherwise ForMixed capped at MaxConversions.
func Conversions(configured int) int {
	if configured > 0 {
		return configured
	}
	return ForMixed(MaxConversions)
}
