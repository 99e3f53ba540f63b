package main

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
)

func Test_LogsForLoad(t *testing.T) {
	tests := []struct {
		load, per, want int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{4, 3, 2},
		{0, 5, 0},
		{5, 5, 1},
		{6, 5, 2},
		{500, 5, 100},
		{-2, 3, 0},
	}
	for _, tt := range tests {
		if got := logsForLoad(tt.load, tt.per); got != tt.want {
			t.Errorf("logsForLoad(%d, %d): got %d, want %d", tt.load, tt.per, got, tt.want)
		}
	}
}

func Test_Policy_LoadChange(t *testing.T) {
	em, hook := newTestEmitter(t)
	p := NewPolicy(NewRng("embers"))
	ctx := context.Background()

	p.ApplyLoadChange(ctx, em, 15, ActionIncrease)

	if got := testutil.ToFloat64(em.flameCount); got != 15 {
		t.Errorf("flame count gauge: got %f, want 15", got)
	}
	if got := testutil.ToFloat64(em.buttonClicks.WithLabelValues(ActionIncrease)); got != 1 {
		t.Errorf("increase clicks: got %f, want 1", got)
	}
	if got := testutil.ToFloat64(em.temperature); got < 800 || got >= 1200 {
		t.Errorf("temperature %f outside [800, 1200)", got)
	}
	if got := testutil.ToFloat64(em.sparks); got < 15 {
		t.Errorf("sparks %f below load 15", got)
	}

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log record, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != logrus.InfoLevel {
		t.Errorf("level: got %v, want info", entry.Level)
	}
	if entry.Data["load"] != 15 {
		t.Errorf("load field: got %v, want 15", entry.Data["load"])
	}
	if entry.Data["action"] != ActionIncrease {
		t.Errorf("action field: got %v, want %s", entry.Data["action"], ActionIncrease)
	}
	if entry.Data["user_action"] != true {
		t.Errorf("user_action field: got %v, want true", entry.Data["user_action"])
	}
}

func Test_Policy_LoadChangeWithoutAction(t *testing.T) {
	em, hook := newTestEmitter(t)
	p := NewPolicy(NewRng("embers"))
	ctx := context.Background()

	p.ApplyLoadChange(ctx, em, 10, "")

	for _, action := range []string{ActionIncrease, ActionDecrease, ActionInitial} {
		if got := testutil.ToFloat64(em.buttonClicks.WithLabelValues(action)); got != 0 {
			t.Errorf("%s clicks: got %f, want 0", action, got)
		}
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log record emitted")
	}
	if _, ok := entry.Data["action"]; ok {
		t.Error("action field should be omitted when no button was pressed")
	}
}

func Test_Policy_LoadChangeZero(t *testing.T) {
	em, hook := newTestEmitter(t)
	p := NewPolicy(NewRng("embers"))
	ctx := context.Background()

	p.ApplyLoadChange(ctx, em, 0, ActionInitial)

	// fixed-cost side effects fire even at zero load
	if got := testutil.ToFloat64(em.temperature); got < 800 || got >= 1200 {
		t.Errorf("temperature %f outside [800, 1200)", got)
	}
	if len(hook.AllEntries()) != 1 {
		t.Errorf("expected one log record at zero load, got %d", len(hook.AllEntries()))
	}
}

func Test_Policy_SparksAccumulate(t *testing.T) {
	em, _ := newTestEmitter(t)
	p := NewPolicy(NewRng("embers"))
	ctx := context.Background()

	p.ApplyLoadChange(ctx, em, 20, ActionIncrease)
	p.ApplyLoadChange(ctx, em, 20, ActionIncrease)
	if got := testutil.ToFloat64(em.sparks); got < 40 {
		t.Errorf("sparks after two changes at load 20: got %f, want >= 40", got)
	}
}

func Test_Policy_RenderVolume(t *testing.T) {
	for _, tt := range []struct {
		load, want int
	}{
		{0, 0},
		{1, 1},
		{5, 1},
		{6, 2},
		{23, 5},
		{100, 20},
	} {
		em, hook := newTestEmitter(t)
		p := NewPolicy(NewRng("embers"))
		ctx := context.Background()

		n := p.ApplyRenderSample(ctx, em, 12.5, tt.load)
		if n != tt.want {
			t.Errorf("load %d: returned %d, want %d", tt.load, n, tt.want)
		}
		entries := hook.AllEntries()
		if len(entries) != tt.want {
			t.Errorf("load %d: emitted %d records, want %d", tt.load, len(entries), tt.want)
		}
		for i, entry := range entries {
			if entry.Level != logrus.InfoLevel && entry.Level != logrus.WarnLevel {
				t.Errorf("load %d record %d: unexpected level %v", tt.load, i, entry.Level)
			}
			if entry.Data["index"] != i {
				t.Errorf("load %d record %d: index field %v", tt.load, i, entry.Data["index"])
			}
			if entry.Data["duration_ms"] != 12.5 {
				t.Errorf("load %d record %d: duration_ms %v", tt.load, i, entry.Data["duration_ms"])
			}
			if entry.Data["flame_count"] != tt.load {
				t.Errorf("load %d record %d: flame_count %v", tt.load, i, entry.Data["flame_count"])
			}
			if bucket, ok := entry.Data["time_bucket"].(int64); !ok || bucket <= 0 {
				t.Errorf("load %d record %d: bad time_bucket %v", tt.load, i, entry.Data["time_bucket"])
			}
		}

		// one histogram observation per event regardless of load
		if got := testutil.CollectAndCount(em.renderDuration); got != 1 {
			t.Errorf("load %d: histogram series count %d", tt.load, got)
		}
	}
}

func Test_Policy_RenderWarnFraction(t *testing.T) {
	em, hook := newTestEmitter(t)
	p := NewPolicy(NewRng("embers"))
	ctx := context.Background()

	// 100 records per call, 50 calls: 5000 draws at p=0.2
	for i := 0; i < 50; i++ {
		p.ApplyRenderSample(ctx, em, 5, 500)
	}
	warns := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warns++
		}
	}
	if warns < 800 || warns > 1200 {
		t.Errorf("warn fraction off: %d warns out of 5000", warns)
	}
}

func Test_Policy_PeriodicVolume(t *testing.T) {
	for _, tt := range []struct {
		load, want int
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{10, 4},
		{100, 34},
	} {
		em, hook := newTestEmitter(t)
		p := NewPolicy(NewRng("embers"))
		ctx := context.Background()

		n := p.ApplyPeriodicLogs(ctx, em, tt.load)
		if n != tt.want {
			t.Errorf("load %d: returned %d, want %d", tt.load, n, tt.want)
		}
		entries := hook.AllEntries()
		if len(entries) != tt.want {
			t.Errorf("load %d: emitted %d records, want %d", tt.load, len(entries), tt.want)
		}

		known := map[string]bool{}
		for _, f := range flavors {
			known[f] = true
		}
		for i, entry := range entries {
			if !known[entry.Message] {
				t.Errorf("load %d record %d: message %q not a known flavor", tt.load, i, entry.Message)
			}
			if entry.Data["load"] != tt.load {
				t.Errorf("load %d record %d: load field %v", tt.load, i, entry.Data["load"])
			}
			v, ok := entry.Data["random_value"].(float64)
			if !ok || v < 0 || v >= 100 {
				t.Errorf("load %d record %d: random_value %v outside [0, 100)", tt.load, i, entry.Data["random_value"])
			}
			switch entry.Level {
			case logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel:
			default:
				t.Errorf("load %d record %d: unexpected level %v", tt.load, i, entry.Level)
			}
		}

		if got := testutil.ToFloat64(em.logsGenerated.WithLabelValues(TriggerPeriodic)); got != float64(tt.want) {
			t.Errorf("load %d: logs generated counter %f, want %d", tt.load, got, tt.want)
		}
	}
}

func Test_Policy_Deterministic(t *testing.T) {
	run := func() ([]logrus.Level, float64, float64) {
		em, hook := newTestEmitter(t)
		p := NewPolicy(NewRng("embers"))
		ctx := context.Background()

		p.ApplyLoadChange(ctx, em, 30, ActionIncrease)
		p.ApplyRenderSample(ctx, em, 8, 30)
		p.ApplyPeriodicLogs(ctx, em, 30)

		var levels []logrus.Level
		for _, entry := range hook.AllEntries() {
			levels = append(levels, entry.Level)
		}
		return levels, testutil.ToFloat64(em.temperature), testutil.ToFloat64(em.sparks)
	}

	levelsA, tempA, sparksA := run()
	levelsB, tempB, sparksB := run()

	if tempA != tempB {
		t.Errorf("same seed produced different temperatures: %f != %f", tempA, tempB)
	}
	if sparksA != sparksB {
		t.Errorf("same seed produced different spark totals: %f != %f", sparksA, sparksB)
	}
	if len(levelsA) != len(levelsB) {
		t.Fatalf("same seed produced different record counts: %d != %d", len(levelsA), len(levelsB))
	}
	for i := range levelsA {
		if levelsA[i] != levelsB[i] {
			t.Errorf("same seed diverged in severity at record %d", i)
		}
	}
}

func Test_Policy_VolumeUnaffectedByLogLevel(t *testing.T) {
	diag := NewLogger("error", "text")
	diag.SetOutput(io.Discard)
	hook := test.NewLocal(diag)

	em, err := NewEmitter(NewEventLogger(diag), otel.Meter("test"))
	if err != nil {
		t.Fatalf("NewEmitter failed: %v", err)
	}
	p := NewPolicy(NewRng("embers"))
	ctx := context.Background()

	if n := p.ApplyPeriodicLogs(ctx, em, 30); n != 10 {
		t.Errorf("periodic at load 30: returned %d, want 10", n)
	}
	if got := len(hook.AllEntries()); got != 10 {
		t.Errorf("periodic at load 30: emitted %d records, want 10 regardless of diagnostic level", got)
	}

	hook.Reset()
	if n := p.ApplyRenderSample(ctx, em, 8, 30); n != 6 {
		t.Errorf("render at load 30: returned %d, want 6", n)
	}
	if got := len(hook.AllEntries()); got != 6 {
		t.Errorf("render at load 30: emitted %d records, want 6 regardless of diagnostic level", got)
	}

	hook.Reset()
	diag.Info("routine chatter")
	if got := len(hook.AllEntries()); got != 0 {
		t.Errorf("diagnostic info passed the error-level filter: %d records", got)
	}
}
