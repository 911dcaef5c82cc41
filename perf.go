package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PerfRecorder is the fire-and-forget instrumentation sink: the core reports
// batch sizes, durations and named action timings into it and never reads
// anything back.
type PerfRecorder struct {
	batchRecords   prometheus.Histogram
	batchDuration  prometheus.Histogram
	recordsTotal   prometheus.Counter
	skippedTotal   *prometheus.CounterVec
	alertsTotal    prometheus.Counter
	actionDuration *prometheus.SummaryVec
}

// NewPerfRecorder registers collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so instances never collide.
func NewPerfRecorder(reg prometheus.Registerer) *PerfRecorder {
	factory := promauto.With(reg)
	return &PerfRecorder{
		batchRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nettwin_ingest_batch_records",
			Help:    "Records per ingested telemetry batch.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nettwin_ingest_batch_duration_seconds",
			Help:    "Wall-clock duration of telemetry batch ingestion.",
			Buckets: prometheus.DefBuckets,
		}),
		recordsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nettwin_ingest_records_total",
			Help: "Telemetry records applied to the state store.",
		}),
		skippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nettwin_ingest_skipped_total",
			Help: "Telemetry records skipped during ingestion.",
		}, []string{"reason"}),
		alertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nettwin_transition_alerts_total",
			Help: "Transition alerts emitted by the ingestion pipeline.",
		}),
		actionDuration: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "nettwin_action_duration_seconds",
			Help: "Duration of named dashboard actions.",
		}, []string{"action"}),
	}
}

func (p *PerfRecorder) ObserveBatch(records int, d time.Duration) {
	p.batchRecords.Observe(float64(records))
	p.batchDuration.Observe(d.Seconds())
}

func (p *PerfRecorder) CountIngested(n int) {
	p.recordsTotal.Add(float64(n))
}

func (p *PerfRecorder) CountSkipped(reason string, n int) {
	if n > 0 {
		p.skippedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

func (p *PerfRecorder) CountAlerts(n int) {
	if n > 0 {
		p.alertsTotal.Add(float64(n))
	}
}

// TimeAction returns a stop func that records the elapsed time under the
// named action.
func (p *PerfRecorder) TimeAction(action string) func() {
	start := time.Now()
	return func() {
		p.actionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
}
