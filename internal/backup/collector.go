package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/pdv-manager/internal/kvstore"
)

// CollectionError reports which slot could not be read during collection
type CollectionError struct {
	Slot string
	Err  error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("failed to collect slot %s: %v", e.Slot, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Collector assembles the full application state into a snapshot payload
type Collector struct {
	store       kvstore.Store
	slotTimeout time.Duration
}

// NewCollector creates a collector reading from store. slotTimeout bounds
// each individual read; zero selects a 5 second default.
func NewCollector(store kvstore.Store, slotTimeout time.Duration) *Collector {
	if slotTimeout <= 0 {
		slotTimeout = 5 * time.Second
	}
	return &Collector{store: store, slotTimeout: slotTimeout}
}

// Collect reads every registered slot. Slots that have never been written
// are recorded as explicit absent entries with a default value, so the
// payload always enumerates the complete slot set. Any read failure aborts
// the whole collection: partial snapshots are never produced.
func (c *Collector) Collect(ctx context.Context) (Payload, error) {
	payload := make(Payload, len(registry))

	for _, slot := range registry {
		value, ok, err := c.readSlot(ctx, slot.Name)
		if err != nil {
			return nil, &CollectionError{Slot: slot.Name, Err: err}
		}

		if !ok {
			payload[slot.Name] = SlotValue{Present: false, Value: slot.defaultValue()}
			continue
		}

		payload[slot.Name] = SlotValue{Present: true, Value: value}
	}

	return payload, nil
}

func (c *Collector) readSlot(ctx context.Context, name string) ([]byte, bool, error) {
	slotCtx, cancel := context.WithTimeout(ctx, c.slotTimeout)
	defer cancel()

	return c.store.Get(slotCtx, name)
}
