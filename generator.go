package main

import (
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// SyntheticGenerator fabricates telemetry for a random slice of the fleet on
// a fixed tick, to drive the dashboard without real sensors. Devices that are
// already critical get harsher readings so an injected or observed fault
// stays visible instead of flapping back to healthy by chance.
type SyntheticGenerator struct {
	pipeline  *IngestionPipeline
	store     *NetworkState
	interval  time.Duration
	samplePct float64

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	ticks   atomic.Int64
	rng     *rand.Rand
}

func NewSyntheticGenerator(pipeline *IngestionPipeline, store *NetworkState, interval time.Duration, samplePct float64) *SyntheticGenerator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if samplePct <= 0 || samplePct > 1 {
		samplePct = 0.3
	}
	return &SyntheticGenerator{
		pipeline:  pipeline,
		store:     store,
		interval:  interval,
		samplePct: samplePct,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the tick loop. A second Start while running is a no-op.
func (g *SyntheticGenerator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true
	g.stopCh = make(chan struct{})
	go g.run(g.stopCh)
	slog.Info("generator_started", "interval", g.interval.String(), "sample_pct", g.samplePct)
}

// Stop halts the loop; no further ticks fire after it returns the channel
// close. Stop while stopped is a no-op.
func (g *SyntheticGenerator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	g.running = false
	close(g.stopCh)
	slog.Info("generator_stopped", "ticks", g.ticks.Load())
}

func (g *SyntheticGenerator) Status() GeneratorStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GeneratorStatus{
		Running:     g.running,
		IntervalSec: int(g.interval / time.Second),
		Ticks:       g.ticks.Load(),
	}
}

func (g *SyntheticGenerator) run(stop chan struct{}) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// The ticker and the stop channel can both be ready; make
			// sure Stop always wins so no tick fires after it.
			select {
			case <-stop:
				return
			default:
			}
			g.tick()
		}
	}
}

func (g *SyntheticGenerator) tick() {
	devices := g.store.Devices()
	if len(devices) == 0 {
		return
	}

	count := int(float64(len(devices)) * g.samplePct)
	if count < 1 {
		count = 1
	}
	g.rng.Shuffle(len(devices), func(i, j int) {
		devices[i], devices[j] = devices[j], devices[i]
	})

	batch := make([]RawTelemetryRecord, 0, count)
	for _, dev := range devices[:count] {
		batch = append(batch, g.fabricate(dev))
	}
	g.pipeline.IngestBatch(batch)
	g.ticks.Add(1)
}

// fabricate builds one plausible reading for the device, skewed by its
// current status.
func (g *SyntheticGenerator) fabricate(dev Device) RawTelemetryRecord {
	rec := RawTelemetryRecord{
		DeviceID:   dev.ID,
		SourceType: "simulator",
		Timestamp:  time.Now().UnixMilli(),
	}

	jitterSigned := func(base, spread float64) *float64 {
		v := base + (g.rng.Float64()*2-1)*spread
		return &v
	}
	jitter := func(base, spread float64) *float64 {
		v := *jitterSigned(base, spread)
		if v < 0 {
			v = 0
		}
		return &v
	}

	switch dev.Status {
	case StatusCritical:
		rec.L1TemperatureC = jitter(82, 5)
		rec.L2CRCErrors = jitter(70, 25)
		rec.L3PacketLossPct = jitter(7.5, 2.5)
		rec.L7LatencyMs = jitter(1500, 400)
	case StatusWarning:
		rec.L1TemperatureC = jitter(64, 4)
		rec.L2CRCErrors = jitter(20, 10)
		rec.L3PacketLossPct = jitter(2.8, 0.8)
		rec.L7LatencyMs = jitter(600, 150)
	default:
		rec.L1TemperatureC = jitter(42, 8)
		rec.L2CRCErrors = jitter(2, 2)
		rec.L3PacketLossPct = jitter(0.3, 0.3)
		rec.L7LatencyMs = jitter(90, 60)
	}

	switch dev.Class {
	case ClassSwitch, ClassRouter:
		rec.L1OpticalRxDbm = jitterSigned(-8, 2)
		rec.L2UtilizationPct = jitter(40, 20)
	case ClassServer, ClassSCADA:
		rec.L4RetransmitPct = jitter(0.5, 0.4)
		rec.L7ErrorRatePct = jitter(0.6, 0.5)
	}

	return rec
}
