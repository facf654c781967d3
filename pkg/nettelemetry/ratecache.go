package nettelemetry

import (
	"math"
	"sync"
	"time"
)

// defaultWindowSize is the number of recent per-tick rate samples averaged
// into the published rate for a counter; at a 1Hz sampling interval this
// is roughly a 5-second window.
const defaultWindowSize = 5

// sample is a single counter reading at a point in time.
type sample struct {
	value float64
	at    time.Time
}

// RateCache turns cumulative counters into a smoothed per-second rate. For
// each key it keeps the previous cumulative reading (to compute a per-tick
// delta) and a bounded FIFO window of recent per-tick rates, publishing the
// window's arithmetic mean rather than a single noisy tick's value. The
// first sample for a key has no prior reading and no window yet, so it
// reports zero rather than a spurious spike.
type RateCache struct {
	mu         sync.Mutex
	windowSize int
	samples    map[string]sample
	windows    map[string][]float64
}

func NewRateCache() *RateCache {
	return newRateCache(defaultWindowSize)
}

func newRateCache(windowSize int) *RateCache {
	return &RateCache{
		windowSize: windowSize,
		samples:    make(map[string]sample),
		windows:    make(map[string][]float64),
	}
}

// RateFromDelta records the new cumulative value for key, folds the
// resulting per-tick rate into key's sliding window, and returns the
// window's mean, rounded to two decimal places.
func (c *RateCache) RateFromDelta(key string, value float64, now time.Time) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.samples[key]
	c.samples[key] = sample{value: value, at: now}
	if !ok {
		return 0
	}

	elapsed := now.Sub(prev.at).Seconds()
	var rate float64
	if elapsed > 0 {
		delta := value - prev.value
		if delta > 0 {
			// A negative delta means the counter reset (pod restarted,
			// interface replaced): treat as zero rather than negative.
			rate = delta / elapsed
		}
	}

	window := append(c.windows[key], rate)
	if len(window) > c.windowSize {
		window = window[len(window)-c.windowSize:]
	}
	c.windows[key] = window

	return round2(mean(window))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
