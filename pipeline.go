package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// alertDedupWindow suppresses repeat transition alerts per device name.
const alertDedupWindow = 30 * time.Second

// IngestionPipeline applies raw telemetry batches to the state store. The
// synthetic generator and file imports both funnel through IngestBatch, which
// serializes whole batches so transition detection always compares against a
// coherent pre-batch snapshot.
type IngestionPipeline struct {
	mu    sync.Mutex
	store *NetworkState
	perf  *PerfRecorder

	now        func() time.Time
	lastAlerts map[string]time.Time
}

type BatchResult struct {
	Received   int
	Ingested   int
	Unresolved int
	Faulted    int
	Alerts     []Alert
	Duration   time.Duration
}

func NewIngestionPipeline(store *NetworkState, perf *PerfRecorder) *IngestionPipeline {
	return &IngestionPipeline{
		store:      store,
		perf:       perf,
		now:        time.Now,
		lastAlerts: map[string]time.Time{},
	}
}

func (p *IngestionPipeline) IngestBatch(records []RawTelemetryRecord) BatchResult {
	start := p.now()
	res := BatchResult{Received: len(records)}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Hold the store's coarse operation gate for the whole batch so a
	// scenario injection or reset cannot land between resolving a record
	// and writing it back, which would let a stale mapped device overwrite
	// a freshly pinned one.
	p.store.opMu.Lock()
	defer p.store.opMu.Unlock()

	before := p.store.StatusSnapshot()

	for _, rec := range records {
		dev := p.store.ResolveDevice(rec)
		if dev == nil {
			res.Unresolved++
			slog.Debug("telemetry_unresolved", "device_id", rec.DeviceID, "ip", rec.IP, "mac", rec.Mac)
			continue
		}
		if p.store.IsFaulted(dev.ID) {
			res.Faulted++
			continue
		}

		updated := applyRecord(*dev, rec, p.now().UnixMilli())
		p.store.ApplyDevice(updated)
		res.Ingested++

		prev, ok := before[updated.ID]
		if !ok {
			prev = dev.Status
		}
		if statusRank[updated.Status] <= statusRank[prev] {
			continue
		}
		if last, ok := p.lastAlerts[updated.Name]; ok && p.now().Sub(last) < alertDedupWindow {
			continue
		}

		severity := SeverityMedium
		if updated.Status == StatusCritical {
			severity = SeverityCritical
		}
		finding := localizeFault(updated.Metrics)
		alert := Alert{
			ID:        uuid.NewString(),
			Severity:  severity,
			Layer:     finding.Layer,
			Device:    updated.Name,
			Message:   finding.Message,
			CreatedAt: p.now().UnixMilli(),
		}
		p.store.AddAlert(alert)
		p.lastAlerts[updated.Name] = p.now()
		res.Alerts = append(res.Alerts, alert)
	}

	res.Duration = p.now().Sub(start)
	p.perf.ObserveBatch(res.Received, res.Duration)
	p.perf.CountIngested(res.Ingested)
	p.perf.CountSkipped("unresolved", res.Unresolved)
	p.perf.CountSkipped("faulted", res.Faulted)
	p.perf.CountAlerts(len(res.Alerts))

	if res.Received > 0 {
		slog.Info("batch_ingested",
			"received", res.Received,
			"ingested", res.Ingested,
			"unresolved", res.Unresolved,
			"faulted", res.Faulted,
			"alerts", len(res.Alerts),
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res
}

// ResetDedup clears the transition-alert suppression window, used when the
// whole system is reset.
func (p *IngestionPipeline) ResetDedup() {
	p.mu.Lock()
	p.lastAlerts = map[string]time.Time{}
	p.mu.Unlock()
}
