package main

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RateTracker tracks items received per second for one telemetry signal.
type RateTracker struct {
	mu             sync.Mutex
	signal         string
	counts         map[int64]int // timestamp (seconds) to item count
	startTime      time.Time
	total          int
	lastReportTime time.Time
	reportInterval time.Duration
}

func NewRateTracker(signal string) *RateTracker {
	return &RateTracker{
		signal:         signal,
		counts:         make(map[int64]int),
		startTime:      time.Now(),
		lastReportTime: time.Now(),
		reportInterval: 5 * time.Second,
	}
}

// Track adds the item count to the current second's bucket.
func (t *RateTracker) Track(count int) {
	if count == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.counts[now.Unix()] += count
	t.total += count

	// drop buckets older than the widest reporting window
	if len(t.counts) > 180 {
		cutoff := now.Add(-2 * time.Minute).Unix()
		for ts := range t.counts {
			if ts < cutoff {
				delete(t.counts, ts)
			}
		}
	}

	if now.Sub(t.lastReportTime) >= t.reportInterval {
		t.report()
		t.lastReportTime = now
	}
}

// rate returns the average items/second over the last n seconds.
// Callers hold the lock.
func (t *RateTracker) rate(seconds int) float64 {
	now := time.Now()
	cutoff := now.Add(-time.Duration(seconds) * time.Second).Unix()

	var total int
	for ts, count := range t.counts {
		if ts >= cutoff {
			total += count
		}
	}

	// with less than n seconds of data, use what we have
	actualSeconds := int64(seconds)
	elapsedSeconds := now.Unix() - t.startTime.Unix()
	if elapsedSeconds < int64(seconds) {
		actualSeconds = elapsedSeconds
		if actualSeconds == 0 {
			actualSeconds = 1
		}
	}

	return float64(total) / float64(actualSeconds)
}

func (t *RateTracker) report() {
	log.Infof("%s per second: %.2f (1s) | %.2f (10s) | %.2f (60s) | total: %d",
		t.signal, t.rate(1), t.rate(10), t.rate(60), t.total)
}

func (t *RateTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
