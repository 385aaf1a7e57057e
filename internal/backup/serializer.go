package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedArtifact marks byte streams that are not well-formed snapshots
var ErrMalformedArtifact = errors.New("malformed backup artifact")

// Serialize composes a snapshot from a collected payload: stamps the schema
// version and timestamp, computes integrity counts and the payload checksum,
// and renders the portable artifact bytes (indented JSON, human-diffable).
func Serialize(payload Payload, systemInfo map[string]string, now time.Time) (*Snapshot, []byte, error) {
	canonical, err := payload.canonicalBytes()
	if err != nil {
		return nil, nil, err
	}

	snapshot := &Snapshot{
		Metadata: Metadata{
			Version:       SchemaVersion,
			Timestamp:     now.UTC(),
			SystemInfo:    systemInfo,
			DataIntegrity: payload.integrityCounts(),
		},
		Payload:  payload,
		Checksum: Fingerprint(canonical),
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	return snapshot, data, nil
}

// Deserialize parses artifact bytes back into a Snapshot. Any structural
// problem is reported as ErrMalformedArtifact so callers can distinguish a
// broken file from validation failures.
func Deserialize(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	if snapshot.Metadata.Version == "" {
		return nil, fmt.Errorf("%w: missing metadata.version", ErrMalformedArtifact)
	}
	if snapshot.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedArtifact)
	}
	if snapshot.Checksum == "" {
		return nil, fmt.Errorf("%w: missing checksum", ErrMalformedArtifact)
	}

	for name, entry := range snapshot.Payload {
		if entry.Present && len(entry.Value) == 0 {
			return nil, fmt.Errorf("%w: slot %s marked present without a value", ErrMalformedArtifact, name)
		}
	}

	return &snapshot, nil
}
