package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/pdv-manager/internal/kvstore"
)

// autoBackupSlot is where the host UI persists auto-backup configuration
const autoBackupSlot = "autoBackupSettings"

// AutoBackupSettings is owned by the host UI; the engine only reads it to
// decide whether and when an automatic run should execute.
type AutoBackupSettings struct {
	Enabled       bool   `json:"enabled"`
	Frequency     string `json:"frequency"` // "hourly", "daily", "weekly"
	Time          string `json:"time"`      // "HH:MM", local time
	RetentionDays int    `json:"retentionDays"`

	// Per-category inclusion flags persisted by the UI. Collection always
	// captures the complete slot set; these do not filter it.
	IncludeBusinessData  bool `json:"includeBusinessData"`
	IncludeConfiguration bool `json:"includeConfiguration"`
	IncludePreferences   bool `json:"includePreferences"`

	// Reserved for future use, never acted on
	Encryption bool `json:"encryption"`
	CloudSync  bool `json:"cloudSync"`
}

// DefaultAutoBackupSettings returns the settings used before the operator
// has ever saved any
func DefaultAutoBackupSettings() AutoBackupSettings {
	return AutoBackupSettings{
		Enabled:              false,
		Frequency:            "daily",
		Time:                 "03:00",
		RetentionDays:        30,
		IncludeBusinessData:  true,
		IncludeConfiguration: true,
		IncludePreferences:   true,
	}
}

// LoadAutoBackupSettings reads the settings slot, falling back to defaults
// when it has never been written
func LoadAutoBackupSettings(ctx context.Context, store kvstore.Store) (AutoBackupSettings, error) {
	value, ok, err := store.Get(ctx, autoBackupSlot)
	if err != nil {
		return AutoBackupSettings{}, fmt.Errorf("failed to read auto-backup settings: %w", err)
	}
	if !ok {
		return DefaultAutoBackupSettings(), nil
	}

	settings := DefaultAutoBackupSettings()
	if err := json.Unmarshal(value, &settings); err != nil {
		return AutoBackupSettings{}, fmt.Errorf("failed to parse auto-backup settings: %w", err)
	}

	return settings, nil
}

// SaveAutoBackupSettings persists the settings slot
func SaveAutoBackupSettings(ctx context.Context, store kvstore.Store, settings AutoBackupSettings) error {
	if _, err := settings.CronExpr(); err != nil {
		return err
	}

	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal auto-backup settings: %w", err)
	}

	if err := store.Set(ctx, autoBackupSlot, value); err != nil {
		return fmt.Errorf("failed to save auto-backup settings: %w", err)
	}

	return nil
}

// CronExpr derives the cron expression driving automatic runs
func (s AutoBackupSettings) CronExpr() (string, error) {
	hour, minute, err := s.parseTime()
	if err != nil {
		return "", err
	}

	switch s.Frequency {
	case "hourly":
		return fmt.Sprintf("%d * * * *", minute), nil
	case "daily", "":
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case "weekly":
		// Sunday, matching the storefront's closed day
		return fmt.Sprintf("%d %d * * 0", minute, hour), nil
	default:
		return "", fmt.Errorf("unsupported backup frequency: %s", s.Frequency)
	}
}

func (s AutoBackupSettings) parseTime() (hour, minute int, err error) {
	value := s.Time
	if strings.TrimSpace(value) == "" {
		value = "03:00"
	}

	head, tail, found := strings.Cut(value, ":")
	if !found {
		return 0, 0, fmt.Errorf("invalid backup time %q", s.Time)
	}

	hour, err = strconv.Atoi(head)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid backup time %q", s.Time)
	}

	minute, err = strconv.Atoi(tail)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid backup time %q", s.Time)
	}

	return hour, minute, nil
}
