package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Button actions the API accepts on a load change.
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
	ActionInitial  = "initial"
)

// Trigger labels for the logs-generated counter.
const (
	TriggerLoadChange = "load_change"
	TriggerRender     = "render"
	TriggerPeriodic   = "periodic"
)

var periodicSeverities = []logrus.Level{
	logrus.InfoLevel,
	logrus.WarnLevel,
	logrus.ErrorLevel,
}

// Policy maps client events to telemetry volume. The contract is that log
// output scales linearly with the load level and nothing else, so ingestion
// pressure on the backend can be dialed purely from the UI. All randomness
// flows through one seeded Rng, which makes a whole run reproducible; the
// mutex serializes draws since the Rng itself is not safe for concurrent
// use by simultaneous requests.
type Policy struct {
	mu  sync.Mutex
	rng Rng
}

func NewPolicy(rng Rng) *Policy {
	return &Policy{rng: rng}
}

// logsForLoad is ceil(load/per), with non-positive load producing nothing.
func logsForLoad(load, per int) int {
	if load <= 0 {
		return 0
	}
	return (load + per - 1) / per
}

// ApplyLoadChange handles a flame count update. The gauge tracks the new
// level, the fixed-cost side effects fire regardless of level, and exactly
// one info record marks the user action. An empty action means the client
// reported a level without a button press, so no click is counted.
func (p *Policy) ApplyLoadChange(ctx context.Context, em *Emitter, load int, action string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	em.SetFlameCount(ctx, load)
	if action != "" {
		em.RecordButtonClick(ctx, action)
	}
	em.SetTemperature(ctx, p.rng.Float(800, 1200))
	em.AddSparks(ctx, int(p.rng.Intn(10))+load)

	fields := logrus.Fields{
		"load":        load,
		"user_action": true,
	}
	if action != "" {
		fields["action"] = action
	}
	em.Event(logrus.InfoLevel, "flame count updated", fields)
	em.CountGeneratedLogs(ctx, TriggerLoadChange, 1)
}

// ApplyRenderSample records one render duration observation and emits
// ceil(load/5) log records, each warn with probability 0.2 and info
// otherwise. Returns the number of records emitted.
func (p *Policy) ApplyRenderSample(ctx context.Context, em *Emitter, durationMs float64, load int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := logsForLoad(load, 5)
	bucket := time.Now().Unix()
	for i := 0; i < n; i++ {
		level := logrus.InfoLevel
		if p.rng.BoolWithProb(20) {
			level = logrus.WarnLevel
		}
		em.Event(level, "frame batch rendered", logrus.Fields{
			"index":       i,
			"duration_ms": durationMs,
			"flame_count": load,
			"time_bucket": bucket,
		})
	}
	em.ObserveRenderDuration(ctx, durationMs)
	em.CountGeneratedLogs(ctx, TriggerRender, n)
	return n
}

// ApplyPeriodicLogs emits ceil(load/3) flavor-text records with uniformly
// chosen severity. Returns the number of records emitted so the handler can
// report it back to the client.
func (p *Policy) ApplyPeriodicLogs(ctx context.Context, em *Emitter, load int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := logsForLoad(load, 3)
	for i := 0; i < n; i++ {
		level := periodicSeverities[p.rng.Intn(len(periodicSeverities))]
		em.Event(level, p.rng.Choice(flavors), logrus.Fields{
			"load":         load,
			"random_value": p.rng.Float(0, 100),
		})
	}
	em.CountGeneratedLogs(ctx, TriggerPeriodic, n)
	return n
}
