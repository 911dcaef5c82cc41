package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ArchivedAlert is a resolved alert keyed by its original id plus the time it
// left live state.
type ArchivedAlert struct {
	Alert
	ArchiveID  string `json:"archive_id"`
	ResolvedAt int64  `json:"resolved_at"`
}

// AlertArchive persists resolved alerts for later review. All failures stay
// at this boundary: a bad file read or write is logged and never reaches the
// caller's mutation path.
type AlertArchive struct {
	mu       sync.Mutex
	entries  []ArchivedAlert
	filePath string
}

func NewAlertArchive(path string) *AlertArchive {
	a := &AlertArchive{filePath: path}
	if path == "" {
		return a
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	data, err := os.ReadFile(path)
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &a.entries); err != nil {
			slog.Warn("archive_load_failed", "path", path, "error", err)
			a.entries = nil
		}
	}
	return a
}

// Archive appends the given alerts with a resolution timestamp. Empty input
// is a no-op.
func (a *AlertArchive) Archive(alerts []Alert) {
	if len(alerts) == 0 {
		return
	}

	now := time.Now().UnixMilli()
	a.mu.Lock()
	for _, alert := range alerts {
		a.entries = append(a.entries, ArchivedAlert{
			Alert:      alert,
			ArchiveID:  uuid.NewString(),
			ResolvedAt: now,
		})
	}
	a.mu.Unlock()

	a.save()
}

// QueryHistory returns archived alerts most-recently-resolved first.
func (a *AlertArchive) QueryHistory(limit int) []ArchivedAlert {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ArchivedAlert, 0, limit)
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.entries[i])
	}
	return out
}

func (a *AlertArchive) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func (a *AlertArchive) Clear() {
	a.mu.Lock()
	a.entries = nil
	a.mu.Unlock()
	a.save()
}

func (a *AlertArchive) save() {
	if a.filePath == "" {
		return
	}

	a.mu.Lock()
	payload := append([]ArchivedAlert(nil), a.entries...)
	a.mu.Unlock()

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		slog.Warn("archive_marshal_failed", "error", err)
		return
	}
	if err := os.WriteFile(a.filePath, b, 0o644); err != nil {
		slog.Warn("archive_write_failed", "path", a.filePath, "error", err)
	}
}
