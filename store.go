package main

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NetworkState is the shared state container for the digital twin: devices
// (via the asset registry), connections, live alerts, dependency paths and
// the faulted-device exclusion set. All mutation goes through methods; every
// instance is self-contained so tests can run many side by side.
type NetworkState struct {
	// opMu serializes whole ingestion batches with scenario injection and
	// reset. A batch releases mu between resolving, checking the faulted
	// set and writing a record back; without this coarser gate an inject
	// landing mid-batch would have its pinned devices overwritten by stale
	// mapped records.
	opMu sync.Mutex

	mu          sync.RWMutex
	registry    *AssetRegistry
	connections []Connection
	paths       []DependencyPath
	alerts      []Alert
	faulted     map[string]struct{}

	scenarios *ScenarioSet
	archive   *AlertArchive
}

func NewNetworkState(scenarios *ScenarioSet, archive *AlertArchive) *NetworkState {
	s := &NetworkState{
		registry:    NewAssetRegistry(seedDevices()),
		connections: seedConnections(),
		paths:       seedPaths(),
		faulted:     map[string]struct{}{},
		scenarios:   scenarios,
		archive:     archive,
	}
	s.alerts = s.derivedAlertsLocked()
	return s
}

// DevicePatch carries optional field overrides for UpdateDevice. Status is
// deliberately absent: it is recomputed from metrics, never set directly.
type DevicePatch struct {
	Name         *string
	Class        *DeviceClass
	IP           *string
	Mac          *string
	Location     *string
	Manufacturer *string
	Metrics      *LayerMetricsBundle
}

func (s *NetworkState) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.GetAll()
}

func (s *NetworkState) Device(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.registry.GetByID(id)
	if !ok {
		return Device{}, false
	}
	return dev.Clone(), true
}

func (s *NetworkState) Connections() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

// Paths returns the seeded dependency chains with their status rolled up to
// the worst member device status.
func (s *NetworkState) Paths() []DependencyPath {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DependencyPath, len(s.paths))
	for i, path := range s.paths {
		p := path
		p.DeviceIDs = append([]string(nil), path.DeviceIDs...)
		p.Status = StatusHealthy
		for _, id := range path.DeviceIDs {
			if dev, ok := s.registry.GetByID(id); ok {
				if statusRank[dev.Status] > statusRank[p.Status] {
					p.Status = dev.Status
				}
			}
		}
		out[i] = p
	}
	return out
}

func (s *NetworkState) Alerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// RegisterDevice adds or replaces a device. Status is derived from the
// supplied metrics so the purity invariant holds from the first snapshot.
func (s *NetworkState) RegisterDevice(dev Device) Device {
	dev.Status = deriveStatus(dev.Metrics)
	if dev.LastSeen == 0 {
		dev.LastSeen = time.Now().UnixMilli()
	}

	s.mu.Lock()
	s.registry.Register(dev)
	s.mu.Unlock()
	return dev
}

// UpdateDevice merges the patch into one device. No-op if the id is unknown.
func (s *NetworkState) UpdateDevice(id string, patch DevicePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.registry.GetByID(id)
	if !ok {
		return false
	}
	updated := dev.Clone()
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Class != nil {
		updated.Class = *patch.Class
	}
	if patch.IP != nil {
		updated.IP = *patch.IP
	}
	if patch.Mac != nil {
		updated.Mac = *patch.Mac
	}
	if patch.Location != nil {
		updated.Location = *patch.Location
	}
	if patch.Manufacturer != nil {
		updated.Manufacturer = *patch.Manufacturer
	}
	if patch.Metrics != nil {
		updated.Metrics = patch.Metrics.Clone()
		updated.Status = deriveStatus(updated.Metrics)
	}
	s.registry.Register(updated)
	return true
}

// ApplyDevice writes a mapped device back into the registry. Used by the
// ingestion pipeline after the mapper has run.
func (s *NetworkState) ApplyDevice(dev Device) {
	s.mu.Lock()
	s.registry.Register(dev)
	s.mu.Unlock()
}

// ResolveDevice resolves a telemetry record against the registry and returns
// a snapshot of the matched device, or nil.
func (s *NetworkState) ResolveDevice(rec RawTelemetryRecord) *Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev := s.registry.Resolve(rec)
	if dev == nil {
		return nil
	}
	snap := dev.Clone()
	return &snap
}

// StatusSnapshot captures every device's status before a batch mutates state.
func (s *NetworkState) StatusSnapshot() map[string]HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]HealthStatus{}
	for _, dev := range s.registry.GetAll() {
		out[dev.ID] = dev.Status
	}
	return out
}

func (s *NetworkState) IsFaulted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.faulted[id]
	return ok
}

func (s *NetworkState) FaultedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.faulted))
	for _, dev := range s.registry.GetAll() {
		if _, ok := s.faulted[dev.ID]; ok {
			out = append(out, dev.ID)
		}
	}
	return out
}

func (s *NetworkState) AddAlert(alert Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()
}

func (s *NetworkState) SetAlerts(alerts []Alert) {
	s.mu.Lock()
	s.alerts = append([]Alert(nil), alerts...)
	s.mu.Unlock()
}

// RemoveAlertsForDevice deletes all alerts for a device name and hands the
// removed set to the archive. The in-memory removal never waits on, or rolls
// back for, the archive write.
func (s *NetworkState) RemoveAlertsForDevice(name string) int {
	s.mu.Lock()
	kept := s.alerts[:0]
	var removed []Alert
	for _, alert := range s.alerts {
		if alert.Device == name {
			removed = append(removed, alert)
			continue
		}
		kept = append(kept, alert)
	}
	s.alerts = append([]Alert(nil), kept...)
	s.mu.Unlock()

	s.archive.Archive(removed)
	return len(removed)
}

// ResetSystem restores devices, connections and paths to fresh seed clones,
// archives whatever alerts were live, recomputes derived alerts from the new
// state and clears the faulted set.
func (s *NetworkState) ResetSystem() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	old := s.alerts
	s.registry = NewAssetRegistry(seedDevices())
	s.connections = seedConnections()
	s.paths = seedPaths()
	s.faulted = map[string]struct{}{}
	s.alerts = s.derivedAlertsLocked()
	s.mu.Unlock()

	s.archive.Archive(old)
	slog.Info("system_reset", "archived_alerts", len(old))
}

// InjectFault applies a scripted scenario on top of a fresh seed topology, so
// repeated invocations converge on the same end state. Patched device ids are
// pinned against live telemetry until the next reset or injection.
func (s *NetworkState) InjectFault(kind string) (FaultResponse, error) {
	sc, ok := s.scenarios.Get(kind)
	if !ok {
		return FaultResponse{}, fmt.Errorf("unknown fault scenario %q", kind)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	now := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry = NewAssetRegistry(seedDevices())
	s.connections = seedConnections()
	s.paths = seedPaths()

	for id, patch := range sc.Devices {
		dev, ok := s.registry.GetByID(id)
		if !ok {
			slog.Warn("scenario_device_unknown", "scenario", kind, "device_id", id)
			continue
		}
		rec, err := patch.rawRecord()
		if err != nil {
			return FaultResponse{}, fmt.Errorf("scenario %q device %q: %w", kind, id, err)
		}
		updated := dev.Clone()
		updated.Metrics = mergeMetrics(dev.Metrics, rec)
		updated.Status = patch.Status
		updated.LastSeen = now
		s.registry.Register(updated)
	}

	for id, patch := range sc.Connections {
		for i := range s.connections {
			if s.connections[i].ID != id {
				continue
			}
			s.connections[i].Status = patch.Status
			if patch.LatencyMs != nil {
				s.connections[i].LatencyMs = *patch.LatencyMs
			}
			if patch.BandwidthMbps != nil {
				s.connections[i].BandwidthMbps = *patch.BandwidthMbps
			}
		}
	}

	s.faulted = map[string]struct{}{}
	for _, id := range sc.FaultedIDs() {
		s.faulted[id] = struct{}{}
	}

	authored := make([]Alert, 0, len(sc.Alerts))
	covered := map[string]struct{}{}
	for _, a := range sc.Alerts {
		authored = append(authored, Alert{
			ID:          uuid.NewString(),
			Severity:    a.Severity,
			Layer:       a.Layer,
			Device:      a.Device,
			Message:     a.Message,
			CreatedAt:   now,
			Correlation: a.Correlation,
		})
		covered[a.Device] = struct{}{}
	}
	for _, derived := range s.derivedAlertsLocked() {
		if _, ok := covered[derived.Device]; ok {
			continue
		}
		authored = append(authored, derived)
	}
	s.alerts = authored

	slog.Info("fault_injected", "scenario", kind, "faulted_devices", len(s.faulted), "alerts", len(s.alerts))
	return FaultResponse{
		Scenario:    kind,
		Description: sc.Description,
		FaultedIDs:  sc.FaultedIDs(),
		Alerts:      len(s.alerts),
	}, nil
}

// derivedAlertsLocked recomputes the alert list wholesale from current
// device and connection state. Unlike the transition path it reports every
// affected layer per device and ignores the dedup window entirely.
func (s *NetworkState) derivedAlertsLocked() []Alert {
	now := time.Now().UnixMilli()
	var out []Alert

	for _, dev := range s.registry.GetAll() {
		if dev.Status == StatusHealthy {
			continue
		}
		findings := layerFindings(dev.Metrics)
		if len(findings) == 0 {
			findings = []faultFinding{localizeFault(dev.Metrics)}
		}
		for _, f := range findings {
			out = append(out, Alert{
				ID:        uuid.NewString(),
				Severity:  f.Severity,
				Layer:     f.Layer,
				Device:    dev.Name,
				Message:   f.Message,
				CreatedAt: now,
			})
		}
	}

	for _, conn := range s.connections {
		if conn.Status == ConnHealthy {
			continue
		}
		severity := SeverityMedium
		verb := "degraded"
		if conn.Status == ConnDown {
			severity = SeverityCritical
			verb = "down"
		}
		out = append(out, Alert{
			ID:        uuid.NewString(),
			Severity:  severity,
			Layer:     "L2",
			Device:    s.deviceNameLocked(conn.From),
			Message:   fmt.Sprintf("Link %s → %s %s", s.deviceNameLocked(conn.From), s.deviceNameLocked(conn.To), verb),
			CreatedAt: now,
		})
	}

	return out
}

func (s *NetworkState) deviceNameLocked(id string) string {
	if dev, ok := s.registry.GetByID(id); ok {
		return dev.Name
	}
	return id
}

// LayerKPIs rolls device metrics up into one dashboard figure per layer.
func (s *NetworkState) LayerKPIs() []LayerKPI {
	s.mu.RLock()
	devices := s.registry.GetAll()
	s.mu.RUnlock()

	var peakTemp, totalCRC, worstLoss, totalRetransmit, totalDrops, totalTLS, worstLatency float64
	var retransmitSamples int
	for _, dev := range devices {
		if v := fval(dev.Metrics.Physical.TemperatureC); v > peakTemp {
			peakTemp = v
		}
		totalCRC += fval(dev.Metrics.Link.CRCErrors)
		if v := fval(dev.Metrics.Network.PacketLossPct); v > worstLoss {
			worstLoss = v
		}
		if dev.Metrics.Transport.RetransmitPct != nil {
			totalRetransmit += *dev.Metrics.Transport.RetransmitPct
			retransmitSamples++
		}
		totalDrops += fval(dev.Metrics.Session.SessionDrops)
		totalTLS += fval(dev.Metrics.Security.TLSFailures)
		if v := fval(dev.Metrics.Application.LatencyMs); v > worstLatency {
			worstLatency = v
		}
	}
	avgRetransmit := 0.0
	if retransmitSamples > 0 {
		avgRetransmit = totalRetransmit / float64(retransmitSamples)
	}

	grade := func(v, warn, crit float64) HealthStatus {
		switch {
		case v > crit:
			return StatusCritical
		case v > warn:
			return StatusWarning
		default:
			return StatusHealthy
		}
	}

	return []LayerKPI{
		{Layer: "L1", Label: "Peak temperature", Value: peakTemp, Unit: "°C", Status: grade(peakTemp, tempWarnC, tempCritC)},
		{Layer: "L2", Label: "Total CRC errors", Value: totalCRC, Unit: "errors", Status: grade(totalCRC, crcWarn, crcCrit)},
		{Layer: "L3", Label: "Worst packet loss", Value: worstLoss, Unit: "%", Status: grade(worstLoss, lossWarnPct, lossCritPct)},
		{Layer: "L4", Label: "Avg retransmit rate", Value: avgRetransmit, Unit: "%", Status: grade(avgRetransmit, 5, 10)},
		{Layer: "L5", Label: "Total session drops", Value: totalDrops, Unit: "drops", Status: grade(totalDrops, 10, 50)},
		{Layer: "L6", Label: "Total TLS failures", Value: totalTLS, Unit: "failures", Status: grade(totalTLS, 5, 20)},
		{Layer: "L7", Label: "Worst app latency", Value: worstLatency, Unit: "ms", Status: grade(worstLatency, latencyWarnMs, latencyCritMs)},
	}
}
