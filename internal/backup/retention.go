package backup

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// RetentionManager prunes old artifacts from the local destination.
// Ledger rows are deliberately left alone: the audit history stays
// complete even after the artifacts themselves are gone.
type RetentionManager struct {
	local *LocalDestination
}

// NewRetentionManager creates a retention manager over the primary destination
func NewRetentionManager(local *LocalDestination) *RetentionManager {
	return &RetentionManager{local: local}
}

// Prune deletes artifacts older than retentionDays. Zero or negative
// retention keeps everything.
func (rm *RetentionManager) Prune(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	files, err := rm.local.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list artifacts: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	deleted := 0
	for _, file := range files {
		if !strings.HasPrefix(file.Filename, "backup-pdv-completo-") {
			continue
		}
		if file.CreatedAt >= cutoff {
			continue
		}

		if err := rm.local.Delete(file.Filename); err != nil {
			log.Printf("[Retention] Error deleting artifact %s: %v", file.Filename, err)
			continue
		}

		deleted++
	}

	if deleted > 0 {
		log.Printf("[Retention] Pruned %d artifact(s) older than %d days", deleted, retentionDays)
	}

	return deleted, nil
}
