package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/yourusername/pdv-manager/internal/kvstore"
)

// SlotFailure records one slot that could not be written during restore
type SlotFailure struct {
	Slot  string `json:"slot"`
	Error string `json:"error"`
}

// RestoreReport summarizes what a restore actually did
type RestoreReport struct {
	Applied    []string      `json:"applied"`
	Skipped    []string      `json:"skipped"`
	Failures   []SlotFailure `json:"failures"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Complete reports whether every present slot was written
func (r *RestoreReport) Complete() bool {
	return len(r.Failures) == 0
}

// PartialRestoreError signals that one or more slots failed to write.
// The restore is still best-effort complete; the report lists exactly
// which slots need operator attention.
type PartialRestoreError struct {
	Report *RestoreReport
}

func (e *PartialRestoreError) Error() string {
	slots := make([]string, len(e.Report.Failures))
	for i, failure := range e.Report.Failures {
		slots[i] = failure.Slot
	}
	return fmt.Sprintf("restore partially failed: %d slot(s) not written: %s",
		len(slots), strings.Join(slots, ", "))
}

// Restorer applies validated snapshots back into the store
type Restorer struct {
	store       kvstore.Store
	slotTimeout time.Duration
}

// NewRestorer creates a restorer writing into store. slotTimeout bounds
// each individual write; zero selects a 5 second default.
func NewRestorer(store kvstore.Store, slotTimeout time.Duration) *Restorer {
	if slotTimeout <= 0 {
		slotTimeout = 5 * time.Second
	}
	return &Restorer{store: store, slotTimeout: slotTimeout}
}

// Restore writes every present payload slot into the store. Writes are
// ordered by data importance: business collections first, then
// configuration, then preferences and backup settings, then slots unknown
// to this engine version (written through unchanged, the store accepts
// arbitrary keys). A failed slot is recorded and the remaining slots are
// still attempted; rollback is not possible on this storage layer.
func (r *Restorer) Restore(ctx context.Context, snapshot *Snapshot) (*RestoreReport, error) {
	report := &RestoreReport{StartedAt: time.Now()}

	for _, name := range restoreOrder(snapshot.Payload) {
		entry := snapshot.Payload[name]

		if !entry.Present {
			report.Skipped = append(report.Skipped, name)
			continue
		}

		if err := r.writeSlot(ctx, name, entry); err != nil {
			log.Printf("[Restore] Failed to write slot %s: %v", name, err)
			report.Failures = append(report.Failures, SlotFailure{Slot: name, Error: err.Error()})
			continue
		}

		report.Applied = append(report.Applied, name)
	}

	report.FinishedAt = time.Now()

	if len(report.Failures) > 0 {
		return report, &PartialRestoreError{Report: report}
	}

	return report, nil
}

func (r *Restorer) writeSlot(ctx context.Context, name string, entry SlotValue) error {
	slotCtx, cancel := context.WithTimeout(ctx, r.slotTimeout)
	defer cancel()

	// The artifact is rendered with MarshalIndent, so the raw slot bytes
	// carry that indentation; compact them so a restore reproduces the
	// store's original byte form.
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, entry.Value); err != nil {
		return fmt.Errorf("failed to compact slot value: %w", err)
	}

	return r.store.Set(slotCtx, name, compacted.Bytes())
}

// restoreOrder returns payload slot names grouped by restore priority.
// Registered slots keep registry order within their group; unknown slots
// come last in name order so the sequence stays deterministic.
func restoreOrder(payload Payload) []string {
	var ordered []string
	for group := GroupBusiness; group <= GroupSettings; group++ {
		for _, slot := range registry {
			if slot.Group != group {
				continue
			}
			if _, ok := payload[slot.Name]; ok {
				ordered = append(ordered, slot.Name)
			}
		}
	}

	var unknown []string
	for name := range payload {
		if _, ok := lookupSlot(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	return append(ordered, unknown...)
}
