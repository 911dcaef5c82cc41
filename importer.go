package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var recordValidator = validator.New()

// parseImportPayload decodes an imported telemetry document. The payload must
// be a JSON array; elements that fail the minimal shape check (at least one
// of device id, IP, MAC) are silently dropped and counted. A payload that is
// not a list, or not JSON, rejects the whole import.
func parseImportPayload(data []byte) ([]RawTelemetryRecord, int, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("import payload must be a JSON array of records: %w", err)
	}

	records := make([]RawTelemetryRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		var rec RawTelemetryRecord
		if err := json.Unmarshal(row, &rec); err != nil {
			dropped++
			continue
		}
		rec.DeviceID = strings.TrimSpace(rec.DeviceID)
		rec.IP = strings.TrimSpace(rec.IP)
		rec.Mac = strings.TrimSpace(rec.Mac)
		if err := recordValidator.Struct(rec); err != nil {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped, nil
}
