package backup

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationStatus is the outcome of snapshot validation
type ValidationStatus string

const (
	StatusValid              ValidationStatus = "valid"
	StatusMalformed          ValidationStatus = "malformed"
	StatusVersionUnsupported ValidationStatus = "version_unsupported"
	StatusChecksumMismatch   ValidationStatus = "checksum_mismatch"
)

// ValidationResult reports what a validator found. Callers decide whether to
// proceed past a non-valid result; validation itself never mutates state.
type ValidationResult struct {
	Status           ValidationStatus `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	SnapshotVersion  string           `json:"snapshot_version,omitempty"`
	EngineVersion    string           `json:"engine_version"`
	ExpectedChecksum string           `json:"expected_checksum,omitempty"`
	ActualChecksum   string           `json:"actual_checksum,omitempty"`
}

// Validator checks snapshots before a restore is allowed to proceed
type Validator struct {
	version string
}

// NewValidator creates a validator accepting the current schema version
func NewValidator() *Validator {
	return &Validator{version: SchemaVersion}
}

// Validate runs the structural check, then version compatibility, then
// checksum recomputation, stopping at the first failure.
func (v *Validator) Validate(snapshot *Snapshot) ValidationResult {
	result := ValidationResult{EngineVersion: v.version}

	if snapshot == nil {
		result.Status = StatusMalformed
		result.Reason = "snapshot is nil"
		return result
	}

	result.SnapshotVersion = snapshot.Metadata.Version

	if snapshot.Metadata.Version == "" || snapshot.Payload == nil || snapshot.Checksum == "" {
		result.Status = StatusMalformed
		result.Reason = "snapshot is missing required fields"
		return result
	}

	snapMajor, err := majorVersion(snapshot.Metadata.Version)
	if err != nil {
		result.Status = StatusVersionUnsupported
		result.Reason = fmt.Sprintf("unparseable snapshot version %q", snapshot.Metadata.Version)
		return result
	}

	engineMajor, _ := majorVersion(v.version)
	if snapMajor > engineMajor {
		result.Status = StatusVersionUnsupported
		result.Reason = fmt.Sprintf("snapshot version %s is newer than engine version %s",
			snapshot.Metadata.Version, v.version)
		return result
	}

	canonical, err := snapshot.Payload.canonicalBytes()
	if err != nil {
		result.Status = StatusMalformed
		result.Reason = err.Error()
		return result
	}

	actual := Fingerprint(canonical)
	if actual != snapshot.Checksum {
		result.Status = StatusChecksumMismatch
		result.Reason = "payload does not match embedded checksum"
		result.ExpectedChecksum = snapshot.Checksum
		result.ActualChecksum = actual
		return result
	}

	result.Status = StatusValid
	return result
}

func majorVersion(version string) (int, error) {
	head, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return major, nil
}
