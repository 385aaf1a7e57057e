package models

// CreateBackupRequest represents a manual backup request
type CreateBackupRequest struct {
	Description string `json:"description"`
}

// DeleteBackupsRequest represents a bulk history deletion request
type DeleteBackupsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// RestoreOverrides carries the operator's confirmation flags for a restore
// that did not validate cleanly
type RestoreOverrides struct {
	AllowVersionMismatch  bool `json:"allow_version_mismatch"`
	AllowChecksumMismatch bool `json:"allow_checksum_mismatch"`
}
