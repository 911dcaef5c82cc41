package main

import "time"

type DeviceClass string

const (
	ClassSwitch  DeviceClass = "switch"
	ClassRouter  DeviceClass = "router"
	ClassPLC     DeviceClass = "plc"
	ClassSCADA   DeviceClass = "scada"
	ClassSensor  DeviceClass = "sensor"
	ClassGateway DeviceClass = "gateway"
	ClassServer  DeviceClass = "server"
	ClassOther   DeviceClass = "other"
)

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
	StatusOffline  HealthStatus = "offline"
)

// statusRank orders statuses by severity for transition detection.
var statusRank = map[HealthStatus]int{
	StatusHealthy:  0,
	StatusWarning:  1,
	StatusCritical: 2,
	StatusOffline:  3,
}

type ConnStatus string

const (
	ConnHealthy  ConnStatus = "healthy"
	ConnDegraded ConnStatus = "degraded"
	ConnDown     ConnStatus = "down"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Per-layer metric groups. Fields are pointers so an absent reading stays
// distinguishable from a measured zero.

type PhysicalMetrics struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	OpticalRxDbm *float64 `json:"optical_rx_dbm,omitempty"`
	FanRPM       *float64 `json:"fan_rpm,omitempty"`
}

type LinkMetrics struct {
	CRCErrors      *float64 `json:"crc_errors,omitempty"`
	UtilizationPct *float64 `json:"utilization_pct,omitempty"`
	MacFlapping    *bool    `json:"mac_flapping,omitempty"`
}

type NetworkMetrics struct {
	PacketLossPct *float64 `json:"packet_loss_pct,omitempty"`
	RouteChanges  *float64 `json:"route_changes,omitempty"`
}

type TransportMetrics struct {
	RetransmitPct   *float64 `json:"retransmit_pct,omitempty"`
	OpenConnections *float64 `json:"open_connections,omitempty"`
}

type SessionMetrics struct {
	SessionDrops *float64 `json:"session_drops,omitempty"`
	AuthFailures *float64 `json:"auth_failures,omitempty"`
}

type SecurityMetrics struct {
	TLSFailures        *float64 `json:"tls_failures,omitempty"`
	ProtocolViolations *float64 `json:"protocol_violations,omitempty"`
}

type ApplicationMetrics struct {
	LatencyMs       *float64 `json:"latency_ms,omitempty"`
	ErrorRatePct    *float64 `json:"error_rate_pct,omitempty"`
	ProtocolAnomaly *bool    `json:"protocol_anomaly,omitempty"`
}

// LayerMetricsBundle groups one metric set per OSI-inspired layer.
type LayerMetricsBundle struct {
	Physical    PhysicalMetrics    `json:"physical"`
	Link        LinkMetrics        `json:"link"`
	Network     NetworkMetrics     `json:"network"`
	Transport   TransportMetrics   `json:"transport"`
	Session     SessionMetrics     `json:"session"`
	Security    SecurityMetrics    `json:"security"`
	Application ApplicationMetrics `json:"application"`
}

type Device struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Class        DeviceClass        `json:"class"`
	Status       HealthStatus       `json:"status"`
	IP           string             `json:"ip,omitempty"`
	Mac          string             `json:"mac,omitempty"`
	Location     string             `json:"location,omitempty"`
	Manufacturer string             `json:"manufacturer,omitempty"`
	Metrics      LayerMetricsBundle `json:"metrics"`
	LastSeen     int64              `json:"last_seen,omitempty"`
}

type Connection struct {
	ID            string     `json:"id"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	BandwidthMbps float64    `json:"bandwidth_mbps"`
	LatencyMs     float64    `json:"latency_ms"`
	Status        ConnStatus `json:"status"`
}

type Alert struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Layer       string   `json:"layer"`
	Device      string   `json:"device"`
	Message     string   `json:"message"`
	CreatedAt   int64    `json:"created_at"`
	Correlation string   `json:"correlation,omitempty"`
}

// DependencyPath is a seeded chain of devices whose health the dashboard
// rolls up as the worst member status.
type DependencyPath struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	DeviceIDs []string     `json:"device_ids"`
	Status    HealthStatus `json:"status"`
}

type LayerKPI struct {
	Layer  string       `json:"layer"`
	Label  string       `json:"label"`
	Value  float64      `json:"value"`
	Unit   string       `json:"unit"`
	Status HealthStatus `json:"status"`
}

// RawTelemetryRecord is one loosely-typed measurement as produced by the
// simulator or an imported file. Every metric field is optional; a record is
// only usable if it carries at least one identifying hint.
type RawTelemetryRecord struct {
	DeviceID   string `json:"deviceId,omitempty" validate:"required_without_all=IP Mac"`
	IP         string `json:"ip,omitempty"`
	Mac        string `json:"mac,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`

	L1TemperatureC *float64 `json:"l1_temperature_c,omitempty"`
	L1OpticalRxDbm *float64 `json:"l1_optical_rx_dbm,omitempty"`
	L1FanRPM       *float64 `json:"l1_fan_rpm,omitempty"`

	L2CRCErrors      *float64 `json:"l2_crc_errors,omitempty"`
	L2UtilizationPct *float64 `json:"l2_utilization_pct,omitempty"`
	L2MacFlap        *bool    `json:"l2_mac_flap,omitempty"`

	L3PacketLossPct *float64 `json:"l3_packet_loss_pct,omitempty"`
	L3RouteChanges  *float64 `json:"l3_route_changes,omitempty"`

	L4RetransmitPct   *float64 `json:"l4_retransmit_pct,omitempty"`
	L4OpenConnections *float64 `json:"l4_open_connections,omitempty"`

	L5SessionDrops *float64 `json:"l5_session_drops,omitempty"`
	L5AuthFailures *float64 `json:"l5_auth_failures,omitempty"`

	L6TLSFailures        *float64 `json:"l6_tls_failures,omitempty"`
	L6ProtocolViolations *float64 `json:"l6_protocol_violations,omitempty"`

	L7LatencyMs       *float64 `json:"l7_latency_ms,omitempty"`
	L7ErrorRatePct    *float64 `json:"l7_error_rate_pct,omitempty"`
	L7ProtocolAnomaly *bool    `json:"l7_protocol_anomaly,omitempty"`
}

type DevicesResponse struct {
	LastUpdated int64    `json:"last_updated"`
	Devices     []Device `json:"devices"`
}

type AlertsResponse struct {
	LastUpdated int64   `json:"last_updated"`
	Alerts      []Alert `json:"alerts"`
}

type IngestResponse struct {
	Accepted   bool    `json:"accepted"`
	Received   int     `json:"received"`
	Ingested   int     `json:"ingested"`
	Unresolved int     `json:"unresolved"`
	Faulted    int     `json:"faulted"`
	Alerts     []Alert `json:"alerts"`
	DurationMs int64   `json:"duration_ms"`
}

type ImportResponse struct {
	Accepted   bool  `json:"accepted"`
	Received   int   `json:"received"`
	Dropped    int   `json:"dropped"`
	Ingested   int   `json:"ingested"`
	Unresolved int   `json:"unresolved"`
	Faulted    int   `json:"faulted"`
	Alerts     int   `json:"alerts_created"`
	DurationMs int64 `json:"duration_ms"`
}

type FaultResponse struct {
	Scenario    string   `json:"scenario"`
	Description string   `json:"description"`
	FaultedIDs  []string `json:"faulted_ids"`
	Alerts      int      `json:"alerts"`
}

type GeneratorStatus struct {
	Running     bool  `json:"running"`
	IntervalSec int   `json:"interval_sec"`
	Ticks       int64 `json:"ticks"`
}

func fptr(v float64) *float64 { return &v }

func bptr(v bool) *bool { return &v }

func fval(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func bval(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone deep-copies the bundle so resets never alias seed values.
func (m LayerMetricsBundle) Clone() LayerMetricsBundle {
	return LayerMetricsBundle{
		Physical: PhysicalMetrics{
			TemperatureC: cloneFloat(m.Physical.TemperatureC),
			OpticalRxDbm: cloneFloat(m.Physical.OpticalRxDbm),
			FanRPM:       cloneFloat(m.Physical.FanRPM),
		},
		Link: LinkMetrics{
			CRCErrors:      cloneFloat(m.Link.CRCErrors),
			UtilizationPct: cloneFloat(m.Link.UtilizationPct),
			MacFlapping:    cloneBool(m.Link.MacFlapping),
		},
		Network: NetworkMetrics{
			PacketLossPct: cloneFloat(m.Network.PacketLossPct),
			RouteChanges:  cloneFloat(m.Network.RouteChanges),
		},
		Transport: TransportMetrics{
			RetransmitPct:   cloneFloat(m.Transport.RetransmitPct),
			OpenConnections: cloneFloat(m.Transport.OpenConnections),
		},
		Session: SessionMetrics{
			SessionDrops: cloneFloat(m.Session.SessionDrops),
			AuthFailures: cloneFloat(m.Session.AuthFailures),
		},
		Security: SecurityMetrics{
			TLSFailures:        cloneFloat(m.Security.TLSFailures),
			ProtocolViolations: cloneFloat(m.Security.ProtocolViolations),
		},
		Application: ApplicationMetrics{
			LatencyMs:       cloneFloat(m.Application.LatencyMs),
			ErrorRatePct:    cloneFloat(m.Application.ErrorRatePct),
			ProtocolAnomaly: cloneBool(m.Application.ProtocolAnomaly),
		},
	}
}

func (d Device) Clone() Device {
	out := d
	out.Metrics = d.Metrics.Clone()
	return out
}

func seedDevices() []Device {
	now := time.Now().UnixMilli()
	return []Device{
		{
			ID: "d1", Name: "Core Switch A", Class: ClassSwitch, Status: StatusHealthy,
			IP: "10.20.0.2", Mac: "aa:10:20:00:00:01", Location: "MDF rack 1", Manufacturer: "Cisco",
			Metrics: LayerMetricsBundle{
				Physical: PhysicalMetrics{TemperatureC: fptr(41.5), OpticalRxDbm: fptr(-7.2), FanRPM: fptr(5200)},
				Link:     LinkMetrics{CRCErrors: fptr(2), UtilizationPct: fptr(34.1), MacFlapping: bptr(false)},
				Network:  NetworkMetrics{PacketLossPct: fptr(0.1), RouteChanges: fptr(0)},
			},
			LastSeen: now,
		},
		{
			ID: "d2", Name: "Core Switch B", Class: ClassSwitch, Status: StatusHealthy,
			IP: "10.20.0.3", Mac: "aa:10:20:00:00:02", Location: "MDF rack 2", Manufacturer: "Cisco",
			Metrics: LayerMetricsBundle{
				Physical: PhysicalMetrics{TemperatureC: fptr(39.8), OpticalRxDbm: fptr(-8.5), FanRPM: fptr(4950)},
				Link:     LinkMetrics{CRCErrors: fptr(0), UtilizationPct: fptr(27.6), MacFlapping: bptr(false)},
				Network:  NetworkMetrics{PacketLossPct: fptr(0.2), RouteChanges: fptr(0)},
			},
			LastSeen: now,
		},
		{
			ID: "d3", Name: "Edge Router", Class: ClassRouter, Status: StatusHealthy,
			IP: "10.20.0.1", Mac: "aa:10:20:00:00:03", Location: "MDF rack 1", Manufacturer: "Juniper",
			Metrics: LayerMetricsBundle{
				Physical:  PhysicalMetrics{TemperatureC: fptr(44.2), OpticalRxDbm: fptr(-6.4)},
				Network:   NetworkMetrics{PacketLossPct: fptr(0.4), RouteChanges: fptr(1)},
				Transport: TransportMetrics{RetransmitPct: fptr(0.3), OpenConnections: fptr(1840)},
			},
			LastSeen: now,
		},
		{
			ID: "d4", Name: "OT Gateway", Class: ClassGateway, Status: StatusHealthy,
			IP: "10.30.0.1", Mac: "aa:10:30:00:00:04", Location: "Plant floor cabinet", Manufacturer: "Moxa",
			Metrics: LayerMetricsBundle{
				Physical: PhysicalMetrics{TemperatureC: fptr(48.9)},
				Link:     LinkMetrics{CRCErrors: fptr(4), UtilizationPct: fptr(52.3)},
				Session:  SessionMetrics{SessionDrops: fptr(0), AuthFailures: fptr(0)},
			},
			LastSeen: now,
		},
		{
			ID: "d5", Name: "PLC Line 1", Class: ClassPLC, Status: StatusWarning,
			IP: "10.30.0.11", Mac: "aa:10:30:00:00:05", Location: "Line 1", Manufacturer: "Siemens",
			Metrics: LayerMetricsBundle{
				Physical:    PhysicalMetrics{TemperatureC: fptr(63.0), FanRPM: fptr(3100)},
				Link:        LinkMetrics{CRCErrors: fptr(1)},
				Application: ApplicationMetrics{LatencyMs: fptr(18), ProtocolAnomaly: bptr(false)},
			},
			LastSeen: now,
		},
		{
			ID: "d6", Name: "PLC Line 2", Class: ClassPLC, Status: StatusHealthy,
			IP: "10.30.0.12", Mac: "aa:10:30:00:00:06", Location: "Line 2", Manufacturer: "Siemens",
			Metrics: LayerMetricsBundle{
				Physical:    PhysicalMetrics{TemperatureC: fptr(51.4), FanRPM: fptr(3300)},
				Link:        LinkMetrics{CRCErrors: fptr(0)},
				Application: ApplicationMetrics{LatencyMs: fptr(15), ProtocolAnomaly: bptr(false)},
			},
			LastSeen: now,
		},
		{
			ID: "d7", Name: "SCADA Historian", Class: ClassSCADA, Status: StatusCritical,
			IP: "10.30.0.20", Mac: "aa:10:30:00:00:07", Location: "Control room", Manufacturer: "AVEVA",
			Metrics: LayerMetricsBundle{
				Physical:    PhysicalMetrics{TemperatureC: fptr(54.7)},
				Session:     SessionMetrics{SessionDrops: fptr(6)},
				Application: ApplicationMetrics{LatencyMs: fptr(1250), ErrorRatePct: fptr(3.1), ProtocolAnomaly: bptr(false)},
			},
			LastSeen: now,
		},
		{
			ID: "d8", Name: "Vibration Sensor Grid", Class: ClassSensor, Status: StatusHealthy,
			IP: "10.30.0.31", Mac: "aa:10:30:00:00:08", Location: "Line 1", Manufacturer: "Banner",
			Metrics: LayerMetricsBundle{
				Physical:    PhysicalMetrics{TemperatureC: fptr(36.2)},
				Application: ApplicationMetrics{LatencyMs: fptr(9)},
			},
			LastSeen: now,
		},
		{
			ID: "d9", Name: "MES Application Server", Class: ClassServer, Status: StatusHealthy,
			IP: "10.20.0.40", Mac: "aa:10:20:00:00:09", Location: "Server room", Manufacturer: "Dell",
			Metrics: LayerMetricsBundle{
				Physical:    PhysicalMetrics{TemperatureC: fptr(38.5), FanRPM: fptr(6100)},
				Transport:   TransportMetrics{RetransmitPct: fptr(0.2), OpenConnections: fptr(412)},
				Security:    SecurityMetrics{TLSFailures: fptr(0), ProtocolViolations: fptr(0)},
				Application: ApplicationMetrics{LatencyMs: fptr(120), ErrorRatePct: fptr(0.4)},
			},
			LastSeen: now,
		},
		{
			ID: "d10", Name: "Badge System Host", Class: ClassOther, Status: StatusHealthy,
			IP: "10.20.0.50", Mac: "aa:10:20:00:00:0a", Location: "Server room", Manufacturer: "HID",
			Metrics: LayerMetricsBundle{
				Physical:    PhysicalMetrics{TemperatureC: fptr(37.0)},
				Session:     SessionMetrics{AuthFailures: fptr(1)},
				Application: ApplicationMetrics{LatencyMs: fptr(65)},
			},
			LastSeen: now,
		},
	}
}

func seedConnections() []Connection {
	return []Connection{
		{ID: "c1", From: "d3", To: "d1", BandwidthMbps: 10000, LatencyMs: 0.4, Status: ConnHealthy},
		{ID: "c2", From: "d3", To: "d2", BandwidthMbps: 10000, LatencyMs: 0.5, Status: ConnHealthy},
		{ID: "c3", From: "d1", To: "d9", BandwidthMbps: 1000, LatencyMs: 0.8, Status: ConnHealthy},
		{ID: "c4", From: "d1", To: "d4", BandwidthMbps: 1000, LatencyMs: 1.2, Status: ConnHealthy},
		{ID: "c5", From: "d4", To: "d7", BandwidthMbps: 100, LatencyMs: 9.5, Status: ConnDegraded},
		{ID: "c6", From: "d4", To: "d5", BandwidthMbps: 100, LatencyMs: 2.1, Status: ConnHealthy},
		{ID: "c7", From: "d4", To: "d6", BandwidthMbps: 100, LatencyMs: 2.3, Status: ConnHealthy},
		{ID: "c8", From: "d5", To: "d8", BandwidthMbps: 100, LatencyMs: 1.7, Status: ConnHealthy},
	}
}

func seedPaths() []DependencyPath {
	return []DependencyPath{
		{ID: "p1", Name: "Line 1 control loop", DeviceIDs: []string{"d8", "d5", "d4", "d7"}},
		{ID: "p2", Name: "MES reporting", DeviceIDs: []string{"d9", "d1", "d3"}},
		{ID: "p3", Name: "Badge access", DeviceIDs: []string{"d10", "d1", "d3"}},
	}
}
