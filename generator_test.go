package main

import (
	"testing"
	"time"
)

func newTestGenerator(t *testing.T) (*SyntheticGenerator, *NetworkState) {
	t.Helper()
	store, pipeline, _ := newTestEnv(t)
	// Hour-long interval: ticks are driven manually in tests.
	return NewSyntheticGenerator(pipeline, store, time.Hour, 0.3), store
}

func TestGeneratorStartStopIdempotent(t *testing.T) {
	gen, _ := newTestGenerator(t)

	if gen.Status().Running {
		t.Fatalf("generator should start stopped")
	}
	gen.Stop() // stop while stopped is a no-op

	gen.Start()
	gen.Start() // second start is a no-op
	if !gen.Status().Running {
		t.Fatalf("generator should be running")
	}

	gen.Stop()
	gen.Stop() // second stop must not panic on a closed channel
	if gen.Status().Running {
		t.Fatalf("generator should be stopped")
	}
}

func TestGeneratorTickFeedsPipeline(t *testing.T) {
	gen, store := newTestGenerator(t)

	// Every fabricated record carries a fresh temperature reading, so a
	// changed temperature marks a touched device.
	before := map[string]float64{}
	for _, dev := range store.Devices() {
		before[dev.ID] = fval(dev.Metrics.Physical.TemperatureC)
	}

	gen.tick()

	if gen.Status().Ticks != 1 {
		t.Fatalf("expected 1 tick, got %d", gen.Status().Ticks)
	}
	touched := 0
	for _, dev := range store.Devices() {
		if fval(dev.Metrics.Physical.TemperatureC) != before[dev.ID] {
			touched++
		}
	}
	// 30% of 10 seeded devices.
	if touched != 3 {
		t.Fatalf("expected 3 devices touched per tick, got %d", touched)
	}
}

func TestGeneratorSkewSustainsCriticalDevices(t *testing.T) {
	gen, store := newTestGenerator(t)

	critical, _ := store.Device("d7")
	for i := 0; i < 50; i++ {
		rec := gen.fabricate(critical)
		if rec.DeviceID != "d7" || rec.SourceType != "simulator" {
			t.Fatalf("unexpected record identity: %+v", rec)
		}
		// Harsh readings keep the derived status critical instead of
		// letting the fault flap away.
		merged := mergeMetrics(critical.Metrics, rec)
		if got := deriveStatus(merged); got != StatusCritical {
			t.Fatalf("critical skew produced %s: %+v", got, rec)
		}
	}

	healthy, _ := store.Device("d6")
	for i := 0; i < 50; i++ {
		rec := gen.fabricate(healthy)
		merged := mergeMetrics(healthy.Metrics, rec)
		if got := deriveStatus(merged); got != StatusHealthy {
			t.Fatalf("healthy skew produced %s: %+v", got, rec)
		}
	}
}

func TestGeneratorStopWinsWhenTickerReady(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)
	gen := NewSyntheticGenerator(pipeline, store, time.Hour, 0.3)
	// Near-zero interval so the ticker is ready alongside the closed stop
	// channel on the loop's first select.
	gen.interval = time.Nanosecond

	stop := make(chan struct{})
	close(stop)
	for i := 0; i < 50; i++ {
		gen.run(stop)
	}
	if got := gen.Status().Ticks; got != 0 {
		t.Fatalf("ticks fired after stop: %d", got)
	}
}

func TestGeneratorStopPreventsFurtherTicks(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)
	gen := NewSyntheticGenerator(pipeline, store, 10*time.Millisecond, 0.3)

	gen.Start()
	time.Sleep(50 * time.Millisecond)
	gen.Stop()

	// Let any in-flight tick drain before sampling the counter.
	time.Sleep(20 * time.Millisecond)
	stopped := gen.Status().Ticks
	if stopped == 0 {
		t.Fatalf("expected at least one tick before stop")
	}
	time.Sleep(50 * time.Millisecond)
	if got := gen.Status().Ticks; got != stopped {
		t.Fatalf("ticks continued after stop: %d -> %d", stopped, got)
	}
}
