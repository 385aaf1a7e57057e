package backup

import (
	"bytes"
	"testing"
	"time"
)

func TestValidateAcceptsGoodSnapshot(t *testing.T) {
	payload := collectTestPayload(t)
	_, data, err := Serialize(payload, SystemInfo("test"), time.Now())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	snapshot, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}

	result := NewValidator().Validate(snapshot)
	if result.Status != StatusValid {
		t.Fatalf("expected valid, got %s (%s)", result.Status, result.Reason)
	}
}

func TestValidateDetectsCorruptedPayload(t *testing.T) {
	payload := collectTestPayload(t)
	_, data, err := Serialize(payload, SystemInfo("test"), time.Now())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	// Corrupt one character inside the payload section
	corrupted := bytes.Replace(data, []byte(`"u1"`), []byte(`"u9"`), 1)
	if bytes.Equal(corrupted, data) {
		t.Fatalf("corruption did not apply")
	}

	snapshot, err := Deserialize(corrupted)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}

	result := NewValidator().Validate(snapshot)
	if result.Status != StatusChecksumMismatch {
		t.Fatalf("expected checksum mismatch, got %s", result.Status)
	}
	if result.ExpectedChecksum == "" || result.ActualChecksum == "" {
		t.Fatalf("mismatch result must carry both checksums")
	}
	if result.ExpectedChecksum == result.ActualChecksum {
		t.Fatalf("checksums should differ")
	}
}

func TestValidateMetadataEditsDoNotAffectChecksum(t *testing.T) {
	payload := collectTestPayload(t)
	_, data, err := Serialize(payload, SystemInfo("test"), time.Now())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	// The checksum covers the payload only; metadata stays inspectable
	edited := bytes.Replace(data, []byte(`"app": "pdv-manager"`), []byte(`"app": "edited-tool"`), 1)
	if bytes.Equal(edited, data) {
		t.Fatalf("metadata edit did not apply")
	}

	snapshot, err := Deserialize(edited)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}

	if result := NewValidator().Validate(snapshot); result.Status != StatusValid {
		t.Fatalf("metadata-only edit must not fail validation, got %s", result.Status)
	}
}

func TestValidateRejectsNewerMajorVersion(t *testing.T) {
	payload := collectTestPayload(t)
	snapshot, _, err := Serialize(payload, SystemInfo("test"), time.Now())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	snapshot.Metadata.Version = "99.0.0"
	result := NewValidator().Validate(snapshot)
	if result.Status != StatusVersionUnsupported {
		t.Fatalf("expected version unsupported, got %s", result.Status)
	}
}

func TestValidateAcceptsOlderMajorVersion(t *testing.T) {
	payload := collectTestPayload(t)
	snapshot, _, err := Serialize(payload, SystemInfo("test"), time.Now())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	snapshot.Metadata.Version = "0.9.0"
	result := NewValidator().Validate(snapshot)
	if result.Status != StatusValid {
		t.Fatalf("older snapshots must stay restorable, got %s (%s)", result.Status, result.Reason)
	}
}

func TestValidateMalformed(t *testing.T) {
	result := NewValidator().Validate(nil)
	if result.Status != StatusMalformed {
		t.Fatalf("expected malformed for nil snapshot, got %s", result.Status)
	}

	result = NewValidator().Validate(&Snapshot{Metadata: Metadata{Version: "1.0.0"}})
	if result.Status != StatusMalformed {
		t.Fatalf("expected malformed for missing payload, got %s", result.Status)
	}

	snapshot := &Snapshot{
		Metadata: Metadata{Version: "banana"},
		Payload:  Payload{},
		Checksum: "abc",
	}
	result = NewValidator().Validate(snapshot)
	if result.Status != StatusVersionUnsupported {
		t.Fatalf("expected version unsupported for unparseable version, got %s", result.Status)
	}
}
