package main

import "fmt"

// Health thresholds for the status cascade and fault localization.
const (
	tempCritC      = 75.0
	tempWarnC      = 60.0
	opticalCritDbm = -30.0
	crcCrit        = 50.0
	crcWarn        = 10.0
	lossCritPct    = 5.0
	lossWarnPct    = 2.0
	latencyCritMs  = 1000.0
	latencyWarnMs  = 500.0
)

// mergeMetrics applies the sparse per-layer merge: only fields present on the
// record overwrite the canonical value, absent fields keep the prior reading.
func mergeMetrics(current LayerMetricsBundle, rec RawTelemetryRecord) LayerMetricsBundle {
	m := current.Clone()

	if rec.L1TemperatureC != nil {
		m.Physical.TemperatureC = cloneFloat(rec.L1TemperatureC)
	}
	if rec.L1OpticalRxDbm != nil {
		m.Physical.OpticalRxDbm = cloneFloat(rec.L1OpticalRxDbm)
	}
	if rec.L1FanRPM != nil {
		m.Physical.FanRPM = cloneFloat(rec.L1FanRPM)
	}

	if rec.L2CRCErrors != nil {
		m.Link.CRCErrors = cloneFloat(rec.L2CRCErrors)
	}
	if rec.L2UtilizationPct != nil {
		m.Link.UtilizationPct = cloneFloat(rec.L2UtilizationPct)
	}
	if rec.L2MacFlap != nil {
		m.Link.MacFlapping = cloneBool(rec.L2MacFlap)
	}

	if rec.L3PacketLossPct != nil {
		m.Network.PacketLossPct = cloneFloat(rec.L3PacketLossPct)
	}
	if rec.L3RouteChanges != nil {
		m.Network.RouteChanges = cloneFloat(rec.L3RouteChanges)
	}

	if rec.L4RetransmitPct != nil {
		m.Transport.RetransmitPct = cloneFloat(rec.L4RetransmitPct)
	}
	if rec.L4OpenConnections != nil {
		m.Transport.OpenConnections = cloneFloat(rec.L4OpenConnections)
	}

	if rec.L5SessionDrops != nil {
		m.Session.SessionDrops = cloneFloat(rec.L5SessionDrops)
	}
	if rec.L5AuthFailures != nil {
		m.Session.AuthFailures = cloneFloat(rec.L5AuthFailures)
	}

	if rec.L6TLSFailures != nil {
		m.Security.TLSFailures = cloneFloat(rec.L6TLSFailures)
	}
	if rec.L6ProtocolViolations != nil {
		m.Security.ProtocolViolations = cloneFloat(rec.L6ProtocolViolations)
	}

	if rec.L7LatencyMs != nil {
		m.Application.LatencyMs = cloneFloat(rec.L7LatencyMs)
	}
	if rec.L7ErrorRatePct != nil {
		m.Application.ErrorRatePct = cloneFloat(rec.L7ErrorRatePct)
	}
	if rec.L7ProtocolAnomaly != nil {
		m.Application.ProtocolAnomaly = cloneBool(rec.L7ProtocolAnomaly)
	}

	return m
}

// deriveStatus evaluates the fixed threshold cascade top-down against merged
// metrics, first match wins. Absent fields compare as zero.
func deriveStatus(m LayerMetricsBundle) HealthStatus {
	switch {
	case fval(m.Physical.TemperatureC) > tempCritC:
		return StatusCritical
	case fval(m.Physical.TemperatureC) > tempWarnC:
		return StatusWarning
	case m.Physical.OpticalRxDbm != nil && *m.Physical.OpticalRxDbm < opticalCritDbm:
		return StatusCritical
	case fval(m.Link.CRCErrors) > crcCrit:
		return StatusCritical
	case fval(m.Link.CRCErrors) > crcWarn:
		return StatusWarning
	case fval(m.Network.PacketLossPct) > lossCritPct:
		return StatusCritical
	case fval(m.Network.PacketLossPct) > lossWarnPct:
		return StatusWarning
	case fval(m.Application.LatencyMs) > latencyCritMs:
		return StatusCritical
	case fval(m.Application.LatencyMs) > latencyWarnMs:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// applyRecord is the pure mapping step: merged metrics plus recomputed
// status, leaving the input device untouched.
func applyRecord(dev Device, rec RawTelemetryRecord, nowMs int64) Device {
	out := dev.Clone()
	out.Metrics = mergeMetrics(dev.Metrics, rec)
	out.Status = deriveStatus(out.Metrics)
	out.LastSeen = nowMs
	return out
}

type faultFinding struct {
	Layer    string
	Severity Severity
	Message  string
}

// layerFindings walks the layers bottom-up and reports at most one anomaly
// per layer. Used by derived-alert recomputation, which wants every affected
// layer, not just the first.
func layerFindings(m LayerMetricsBundle) []faultFinding {
	var out []faultFinding

	// Same rule order as deriveStatus, so the severity reported here never
	// disagrees with the device's derived status.
	if temp := fval(m.Physical.TemperatureC); temp > tempCritC {
		out = append(out, faultFinding{"L1", SeverityCritical, fmt.Sprintf("Temperature %.1f°C exceeds critical threshold", temp)})
	} else if temp > tempWarnC {
		out = append(out, faultFinding{"L1", SeverityMedium, fmt.Sprintf("Elevated temperature %.1f°C", temp)})
	} else if m.Physical.OpticalRxDbm != nil && *m.Physical.OpticalRxDbm < opticalCritDbm {
		out = append(out, faultFinding{"L1", SeverityCritical, fmt.Sprintf("Optical receive power %.1f dBm below %.0f dBm floor", *m.Physical.OpticalRxDbm, opticalCritDbm)})
	}

	if crc := fval(m.Link.CRCErrors); crc > crcCrit {
		out = append(out, faultFinding{"L2", SeverityCritical, fmt.Sprintf("CRC error storm: %.0f errors", crc)})
	} else if crc > crcWarn {
		out = append(out, faultFinding{"L2", SeverityMedium, fmt.Sprintf("Elevated CRC errors: %.0f", crc)})
	}

	if loss := fval(m.Network.PacketLossPct); loss > lossCritPct {
		out = append(out, faultFinding{"L3", SeverityCritical, fmt.Sprintf("Packet loss %.1f%% exceeds critical threshold", loss)})
	} else if loss > lossWarnPct {
		out = append(out, faultFinding{"L3", SeverityMedium, fmt.Sprintf("Elevated packet loss %.1f%%", loss)})
	}

	if lat := fval(m.Application.LatencyMs); lat > latencyCritMs {
		out = append(out, faultFinding{"L7", SeverityCritical, fmt.Sprintf("Application latency %.0f ms exceeds critical threshold", lat)})
	} else if lat > latencyWarnMs {
		out = append(out, faultFinding{"L7", SeverityMedium, fmt.Sprintf("Elevated application latency %.0f ms", lat)})
	}

	return out
}

// localizeFault picks the lowest-layer anomaly for a transition alert. Falls
// back to a generic application-layer anomaly when no rule matches.
func localizeFault(m LayerMetricsBundle) faultFinding {
	if findings := layerFindings(m); len(findings) > 0 {
		return findings[0]
	}
	return faultFinding{"L7", SeverityMedium, "Telemetry anomaly detected"}
}
