package nettelemetry

import (
	"testing"
	"time"
)

func TestRateFromDeltaFirstSampleIsZero(t *testing.T) {
	c := NewRateCache()
	now := time.Unix(1000, 0)

	if got := c.RateFromDelta("eth0.rx", 500, now); got != 0 {
		t.Errorf("first sample rate = %v, want 0", got)
	}
}

func TestRateFromDeltaSlidingWindowMean(t *testing.T) {
	c := newRateCache(5)
	t0 := time.Unix(1000, 0)

	series := []float64{0, 100, 250, 300, 500, 700}
	want := []float64{0, 100, 125, 100, 125, 140}

	for i, value := range series {
		tick := t0.Add(time.Duration(i) * time.Second)
		got := c.RateFromDelta("ns1:rx_bytes", value, tick)
		if got != want[i] {
			t.Errorf("tick %d: RateFromDelta() = %v, want %v", i, got, want[i])
		}
	}
}

func TestRateFromDeltaWindowDropsOldestPastCapacity(t *testing.T) {
	c := newRateCache(3)
	t0 := time.Unix(1000, 0)

	// cumulative series with per-tick deltas 10, 20, 30, 40
	series := []float64{0, 10, 30, 60, 100}
	for i, value := range series[:len(series)-1] {
		c.RateFromDelta("k", value, t0.Add(time.Duration(i)*time.Second))
	}
	// window now holds the rates for deltas 10, 20, 30 (cap 3); the next
	// delta (40) evicts the oldest (10), leaving [20, 30, 40], mean 30.
	got := c.RateFromDelta("k", series[len(series)-1], t0.Add(time.Duration(len(series)-1)*time.Second))
	if got != 30 {
		t.Errorf("RateFromDelta() after window overflow = %v, want 30", got)
	}
}

func TestRateFromDeltaNegativeDeltaResetsToZero(t *testing.T) {
	c := NewRateCache()
	t0 := time.Unix(1000, 0)
	t1 := t0.Add(5 * time.Second)

	c.RateFromDelta("eth0.rx", 5000, t0)
	got := c.RateFromDelta("eth0.rx", 100, t1)

	if got != 0 {
		t.Errorf("RateFromDelta() after counter reset = %v, want 0", got)
	}
}

func TestRateFromDeltaNonPositiveElapsedIsZero(t *testing.T) {
	c := NewRateCache()
	now := time.Unix(1000, 0)

	c.RateFromDelta("eth0.rx", 100, now)
	got := c.RateFromDelta("eth0.rx", 200, now)

	if got != 0 {
		t.Errorf("RateFromDelta() with zero elapsed = %v, want 0", got)
	}
}

func TestRateFromDeltaTracksKeysIndependently(t *testing.T) {
	c := NewRateCache()
	t0 := time.Unix(1000, 0)
	t1 := t0.Add(2 * time.Second)

	c.RateFromDelta("eth0.rx", 0, t0)
	c.RateFromDelta("eth0.tx", 0, t0)

	rx := c.RateFromDelta("eth0.rx", 20, t1)
	tx := c.RateFromDelta("eth0.tx", 4, t1)

	if rx != 10 {
		t.Errorf("rx rate = %v, want 10", rx)
	}
	if tx != 2 {
		t.Errorf("tx rate = %v, want 2", tx)
	}
}
