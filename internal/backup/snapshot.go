package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Metadata describes a snapshot without requiring payload verification,
// so operators can inspect an artifact before deciding to restore it
type Metadata struct {
	Version       string            `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	SystemInfo    map[string]string `json:"systemInfo"`
	DataIntegrity map[string]int    `json:"dataIntegrity"`
}

// SlotValue is one payload entry. Present distinguishes "slot was never
// written" from "slot holds an explicitly empty value"; restore skips
// absent entries instead of clobbering live defaults with nulls.
type SlotValue struct {
	Present bool            `json:"present"`
	Value   json.RawMessage `json:"value"`
}

// Payload maps slot names to their captured values
type Payload map[string]SlotValue

// Snapshot is the self-contained backup artifact
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Payload  Payload  `json:"payload"`
	Checksum string   `json:"checksum"`
}

// canonicalBytes serializes the payload to its canonical byte form: JSON
// with lexically sorted keys and compacted values. The checksum covers
// exactly these bytes, never the metadata.
func (p Payload) canonicalBytes() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return data, nil
}

// integrityCounts computes per-collection record counts for the counted
// slots. Used later as a sanity check; the checksum is the authoritative
// integrity mechanism.
func (p Payload) integrityCounts() map[string]int {
	counts := make(map[string]int)
	for _, slot := range registry {
		if !slot.Counted {
			continue
		}

		entry, ok := p[slot.Name]
		if !ok || !entry.Present {
			counts[slot.Name] = 0
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(entry.Value, &items); err != nil {
			counts[slot.Name] = 0
			continue
		}
		counts[slot.Name] = len(items)
	}
	return counts
}

// ArtifactFilename returns the conventional artifact name for a backup
// taken at t, e.g. backup-pdv-completo-25082026-143005.json
func ArtifactFilename(t time.Time) string {
	return fmt.Sprintf("backup-pdv-completo-%s-%s.json", t.Format("02012006"), t.Format("150405"))
}

// SystemInfo captures environment details embedded in snapshot metadata
func SystemInfo(appVersion string) map[string]string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return map[string]string{
		"app":        "pdv-manager",
		"appVersion": appVersion,
		"platform":   runtime.GOOS,
		"arch":       runtime.GOARCH,
		"goVersion":  runtime.Version(),
		"hostname":   hostname,
	}
}
