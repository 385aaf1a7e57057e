package backup

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yourusername/pdv-manager/internal/kvstore"
)

// ScheduleRunner executes automatic backups.
// It polls the settings slot so operator changes take effect without a
// restart.
type ScheduleRunner struct {
	engine    *Engine
	store     kvstore.Store
	retention *RetentionManager
	interval  time.Duration

	cachedExpr string
	nextRun    time.Time
}

// NewScheduleRunner creates a runner driving engine from the auto-backup
// settings slot. interval controls poll frequency; zero selects 30s.
func NewScheduleRunner(engine *Engine, store kvstore.Store, interval time.Duration) *ScheduleRunner {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &ScheduleRunner{
		engine:    engine,
		store:     store,
		retention: NewRetentionManager(engine.Local()),
		interval:  interval,
	}
}

// Start launches the polling loop until ctx is cancelled
func (sr *ScheduleRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("[BackupSchedule] Stopping schedule runner")
				return
			case <-ticker.C:
				sr.tick(ctx)
			}
		}
	}()
}

func (sr *ScheduleRunner) tick(ctx context.Context) {
	settings, err := LoadAutoBackupSettings(ctx, sr.store)
	if err != nil {
		log.Printf("[BackupSchedule] Failed to load settings: %v", err)
		return
	}

	if !settings.Enabled {
		sr.cachedExpr = ""
		sr.nextRun = time.Time{}
		return
	}

	expr, err := settings.CronExpr()
	if err != nil {
		log.Printf("[BackupSchedule] Invalid schedule settings: %v", err)
		return
	}

	now := time.Now()

	// Recompute the next run when the schedule changed or was never set
	if expr != sr.cachedExpr || sr.nextRun.IsZero() {
		next, err := computeNextRun(expr, now)
		if err != nil {
			log.Printf("[BackupSchedule] Invalid schedule %q: %v", expr, err)
			return
		}
		sr.cachedExpr = expr
		sr.nextRun = next
		return
	}

	if now.Before(sr.nextRun) {
		return
	}

	sr.execute(ctx, settings)

	next, err := computeNextRun(expr, now)
	if err != nil {
		log.Printf("[BackupSchedule] Invalid schedule %q: %v", expr, err)
		return
	}
	sr.nextRun = next
}

func (sr *ScheduleRunner) execute(ctx context.Context, settings AutoBackupSettings) {
	log.Printf("[BackupSchedule] Running automatic backup")

	if _, err := sr.engine.CreateBackup(ctx, TypeAutomatic, "Scheduled automatic backup"); err != nil {
		if errors.Is(err, ErrBackupInProgress) {
			log.Printf("[BackupSchedule] Skipping run: another operation is in progress")
			return
		}
		log.Printf("[BackupSchedule] Automatic backup failed: %v", err)
		return
	}

	if settings.RetentionDays > 0 {
		if _, err := sr.retention.Prune(settings.RetentionDays); err != nil {
			log.Printf("[BackupSchedule] Retention enforcement failed: %v", err)
		}
	}
}

func computeNextRun(schedule string, from time.Time) (time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	parsed, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}

	return parsed.Next(from), nil
}
