package main

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestEnv(t *testing.T) (*NetworkState, *IngestionPipeline, *AlertArchive) {
	t.Helper()
	scenarios, err := LoadScenarios("")
	if err != nil {
		t.Fatalf("load scenarios: %v", err)
	}
	archive := NewAlertArchive("")
	store := NewNetworkState(scenarios, archive)
	pipeline := NewIngestionPipeline(store, NewPerfRecorder(prometheus.NewRegistry()))
	return store, pipeline, archive
}

func alertsForDevice(alerts []Alert, name string) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Device == name {
			out = append(out, a)
		}
	}
	return out
}

func TestIngestUnresolvedRecordsAreSkipped(t *testing.T) {
	_, pipeline, _ := newTestEnv(t)

	res := pipeline.IngestBatch([]RawTelemetryRecord{
		{DeviceID: "ghost", L1TemperatureC: fptr(90)},
		{DeviceID: "d6", L1TemperatureC: fptr(45)},
	})

	if res.Unresolved != 1 {
		t.Fatalf("expected 1 unresolved, got %d", res.Unresolved)
	}
	if res.Ingested != 1 {
		t.Fatalf("expected 1 ingested, got %d", res.Ingested)
	}
	if len(res.Alerts) != 0 {
		t.Fatalf("unresolved record must not alert: %+v", res.Alerts)
	}
}

func TestIngestTransitionAlert(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)

	res := pipeline.IngestBatch([]RawTelemetryRecord{
		{DeviceID: "d9", L3PacketLossPct: fptr(6.2)},
	})

	if len(res.Alerts) != 1 {
		t.Fatalf("expected one transition alert, got %d", len(res.Alerts))
	}
	alert := res.Alerts[0]
	if alert.Severity != SeverityCritical {
		t.Fatalf("critical transition should emit critical alert, got %s", alert.Severity)
	}
	if alert.Layer != "L3" {
		t.Fatalf("expected L3 localization, got %s", alert.Layer)
	}
	if !strings.Contains(alert.Message, "6.2") {
		t.Fatalf("message should embed the offending value: %s", alert.Message)
	}
	if alert.Correlation != "" {
		t.Fatalf("transition alerts carry no correlation note, got %q", alert.Correlation)
	}

	dev, _ := store.Device("d9")
	if dev.Status != StatusCritical {
		t.Fatalf("expected d9 critical, got %s", dev.Status)
	}
}

func TestIngestAlertDedupWithinWindow(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)

	res := pipeline.IngestBatch([]RawTelemetryRecord{{DeviceID: "d9", L3PacketLossPct: fptr(6.2)}})
	if len(res.Alerts) != 1 {
		t.Fatalf("first worsening should alert, got %d", len(res.Alerts))
	}

	// Flap the device back to healthy without touching the dedup window,
	// then worsen it again inside 30 s.
	clean := LayerMetricsBundle{Application: ApplicationMetrics{LatencyMs: fptr(100)}}
	if !store.UpdateDevice("d9", DevicePatch{Metrics: &clean}) {
		t.Fatalf("update d9 failed")
	}

	res = pipeline.IngestBatch([]RawTelemetryRecord{{DeviceID: "d9", L3PacketLossPct: fptr(6.5)}})
	if len(res.Alerts) != 0 {
		t.Fatalf("second worsening inside the window should be suppressed, got %d", len(res.Alerts))
	}
	if got := len(alertsForDevice(store.Alerts(), "MES Application Server")); got != 1 {
		t.Fatalf("expected exactly one transition alert live, got %d", got)
	}
}

func TestIngestAlertDedupWindowExpires(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)

	base := time.Now()
	pipeline.now = func() time.Time { return base }

	pipeline.IngestBatch([]RawTelemetryRecord{{DeviceID: "d9", L3PacketLossPct: fptr(6.2)}})

	clean := LayerMetricsBundle{Application: ApplicationMetrics{LatencyMs: fptr(100)}}
	store.UpdateDevice("d9", DevicePatch{Metrics: &clean})

	pipeline.now = func() time.Time { return base.Add(31 * time.Second) }
	res := pipeline.IngestBatch([]RawTelemetryRecord{{DeviceID: "d9", L3PacketLossPct: fptr(6.5)}})
	if len(res.Alerts) != 1 {
		t.Fatalf("worsening after the window should alert again, got %d", len(res.Alerts))
	}
}

func TestIngestIntraBatchStormSuppressed(t *testing.T) {
	_, pipeline, _ := newTestEnv(t)

	// Two records for the same device in one batch, both worsening against
	// the pre-batch snapshot. Only the first may alert.
	res := pipeline.IngestBatch([]RawTelemetryRecord{
		{DeviceID: "d9", L3PacketLossPct: fptr(2.5)},
		{DeviceID: "d9", L3PacketLossPct: fptr(6.2)},
	})
	if res.Ingested != 2 {
		t.Fatalf("both records should apply, got %d", res.Ingested)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("intra-batch storm should produce one alert, got %d", len(res.Alerts))
	}
}

func TestIngestFaultedDeviceExcluded(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)

	if _, err := store.InjectFault("layer1"); err != nil {
		t.Fatalf("inject layer1: %v", err)
	}
	before, _ := store.Device("d1")

	res := pipeline.IngestBatch([]RawTelemetryRecord{
		{DeviceID: "d1", L1TemperatureC: fptr(20), L2CRCErrors: fptr(0)},
	})

	if res.Faulted != 1 {
		t.Fatalf("expected faulted skip, got %+v", res)
	}
	after, _ := store.Device("d1")
	if fval(after.Metrics.Physical.TemperatureC) != fval(before.Metrics.Physical.TemperatureC) {
		t.Fatalf("faulted device metrics changed: %v -> %v",
			fval(before.Metrics.Physical.TemperatureC), fval(after.Metrics.Physical.TemperatureC))
	}
	if after.Status != before.Status {
		t.Fatalf("faulted device status changed: %s -> %s", before.Status, after.Status)
	}
}

func TestIngestAlreadyCriticalDeviceNoDuplicateAlert(t *testing.T) {
	store, pipeline, _ := newTestEnv(t)

	// Seed d7 is already critical; new loss telemetry keeps it critical, so
	// no transition fires, but the metrics merge in.
	res := pipeline.IngestBatch([]RawTelemetryRecord{
		{DeviceID: "d7", L3PacketLossPct: fptr(6.2)},
	})

	if res.Ingested != 1 {
		t.Fatalf("expected ingest, got %+v", res)
	}
	if len(res.Alerts) != 0 {
		t.Fatalf("critical-to-critical must not alert, got %+v", res.Alerts)
	}
	dev, _ := store.Device("d7")
	if dev.Status != StatusCritical {
		t.Fatalf("expected d7 still critical, got %s", dev.Status)
	}
	if got := fval(dev.Metrics.Network.PacketLossPct); got != 6.2 {
		t.Fatalf("loss not merged: %v", got)
	}
	if got := fval(dev.Metrics.Application.LatencyMs); got != 1250 {
		t.Fatalf("sparse merge clobbered latency: %v", got)
	}
	// Were this device below critical beforehand, the alert would localize
	// to L3 with the loss value embedded.
	f := localizeFault(dev.Metrics)
	if f.Layer != "L3" || !strings.Contains(f.Message, "6.2") {
		t.Fatalf("unexpected localization: %+v", f)
	}
}
