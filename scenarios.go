package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultScenarioTable []byte

// Scenario is a declarative failure story: device patches (raw-field naming),
// connection patches, hand-authored narrative alerts and the set of device
// ids pinned against live telemetry.
type Scenario struct {
	Description string                         `yaml:"description"`
	Devices     map[string]ScenarioDevicePatch `yaml:"devices"`
	Connections map[string]ScenarioConnPatch   `yaml:"connections"`
	Alerts      []ScenarioAlert                `yaml:"alerts"`
	Faulted     []string                       `yaml:"faulted,omitempty"`
}

type ScenarioDevicePatch struct {
	Status  HealthStatus   `yaml:"status"`
	Metrics map[string]any `yaml:"metrics"`
}

type ScenarioConnPatch struct {
	Status        ConnStatus `yaml:"status"`
	LatencyMs     *float64   `yaml:"latency_ms,omitempty"`
	BandwidthMbps *float64   `yaml:"bandwidth_mbps,omitempty"`
}

type ScenarioAlert struct {
	Severity    Severity `yaml:"severity"`
	Layer       string   `yaml:"layer"`
	Device      string   `yaml:"device"`
	Message     string   `yaml:"message"`
	Correlation string   `yaml:"correlation,omitempty"`
}

type ScenarioSet struct {
	Scenarios map[string]Scenario `yaml:"scenarios"`
}

// LoadScenarios reads the scenario table from path, or the embedded default
// table when path is empty.
func LoadScenarios(path string) (*ScenarioSet, error) {
	data := defaultScenarioTable
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scenario table: %w", err)
		}
		data = b
	}

	var set ScenarioSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse scenario table: %w", err)
	}
	if len(set.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario table defines no scenarios")
	}
	return &set, nil
}

func (s *ScenarioSet) Get(kind string) (Scenario, bool) {
	sc, ok := s.Scenarios[kind]
	return sc, ok
}

func (s *ScenarioSet) Names() []string {
	out := make([]string, 0, len(s.Scenarios))
	for name := range s.Scenarios {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FaultedIDs is the pinned device set: explicit list if given, otherwise
// every patched device id.
func (sc Scenario) FaultedIDs() []string {
	if len(sc.Faulted) > 0 {
		return append([]string(nil), sc.Faulted...)
	}
	out := make([]string, 0, len(sc.Devices))
	for id := range sc.Devices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// rawRecord converts the patch's metric map into a telemetry record so device
// patches flow through the same sparse merge as live telemetry.
func (p ScenarioDevicePatch) rawRecord() (RawTelemetryRecord, error) {
	var rec RawTelemetryRecord
	b, err := json.Marshal(p.Metrics)
	if err != nil {
		return rec, fmt.Errorf("encode scenario metrics: %w", err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("decode scenario metrics: %w", err)
	}
	return rec, nil
}
