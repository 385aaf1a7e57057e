package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/yourusername/pdv-manager/internal/config"
	"github.com/yourusername/pdv-manager/internal/kvstore"
)

// ErrBackupInProgress rejects a second backup or restore while one is running
var ErrBackupInProgress = errors.New("a backup or restore operation is already in progress")

// ErrVersionUnsupported rejects restoring snapshots from a newer schema
// without an explicit operator override
var ErrVersionUnsupported = errors.New("snapshot schema version is not supported")

// ErrChecksumMismatch rejects restoring snapshots whose payload does not
// match the embedded checksum without an explicit operator override
var ErrChecksumMismatch = errors.New("snapshot checksum does not match payload")

// ProgressFunc receives named step events with a completion percentage.
// Purely UI feedback; it carries no concurrency semantics.
type ProgressFunc func(step string, percent int)

// RestoreOptions carries the operator's explicit overrides for non-valid
// validation results. Both default to false: a plain restore refuses to
// proceed past any warning.
type RestoreOptions struct {
	AllowVersionMismatch  bool `json:"allow_version_mismatch"`
	AllowChecksumMismatch bool `json:"allow_checksum_mismatch"`
}

// Options configures a new Engine
type Options struct {
	Store        kvstore.Store
	Ledger       *Ledger
	BackupDir    string
	SlotTimeout  time.Duration
	AppVersion   string
	Destinations []config.DestinationConfig
	SSH          config.SSHConfig
	Progress     ProgressFunc
}

// Engine orchestrates backup and restore: collection, serialization,
// artifact storage, validation, restore execution, and ledger bookkeeping.
type Engine struct {
	store      kvstore.Store
	ledger     *Ledger
	collector  *Collector
	restorer   *Restorer
	validator  *Validator
	local      *LocalDestination
	extras     []Destination
	progress   ProgressFunc
	appVersion string

	mu       sync.Mutex
	inFlight bool
}

// NewEngine creates the engine. The local backup directory is always the
// primary destination; extra configured destinations receive best-effort
// replicas.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine requires a store")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("engine requires a ledger")
	}
	if opts.BackupDir == "" {
		return nil, fmt.Errorf("engine requires a backup directory")
	}

	engine := &Engine{
		store:      opts.Store,
		ledger:     opts.Ledger,
		collector:  NewCollector(opts.Store, opts.SlotTimeout),
		restorer:   NewRestorer(opts.Store, opts.SlotTimeout),
		validator:  NewValidator(),
		local:      NewLocalDestination(opts.BackupDir),
		progress:   opts.Progress,
		appVersion: opts.AppVersion,
	}

	for _, destCfg := range opts.Destinations {
		dest, err := NewDestination(destCfg, opts.SSH)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s destination: %w", destCfg.Type, err)
		}
		engine.extras = append(engine.extras, dest)
	}

	return engine, nil
}

// Ledger exposes the backup history for the host's audit views
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Local exposes the primary artifact destination
func (e *Engine) Local() *LocalDestination {
	return e.local
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return ErrBackupInProgress
	}
	e.inFlight = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

func (e *Engine) emit(step string, percent int) {
	if e.progress != nil {
		e.progress(step, percent)
	}
}

// CreateBackup collects the full application state, serializes it into an
// artifact, stores it, and appends a ledger record. Exactly one ledger
// record is written per attempt, success or failure.
func (e *Engine) CreateBackup(ctx context.Context, backupType, description string) (*Record, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	now := time.Now()
	log.Printf("[Engine] Starting %s backup", backupType)

	record := &Record{
		CreatedAt:   now,
		Type:        backupType,
		Description: description,
		Version:     SchemaVersion,
		DataTypes:   SlotNames(),
	}

	fail := func(err error) (*Record, error) {
		record.Status = StatusError
		record.ErrorMessage = err.Error()
		if ledgerErr := e.ledger.Append(record); ledgerErr != nil {
			log.Printf("[Engine] Warning: Failed to record failed backup: %v", ledgerErr)
		}
		return nil, err
	}

	e.emit("collecting", 10)
	payload, err := e.collector.Collect(ctx)
	if err != nil {
		return fail(err)
	}

	e.emit("serializing", 40)
	snapshot, data, err := Serialize(payload, SystemInfo(e.appVersion), now)
	if err != nil {
		return fail(err)
	}

	filename := ArtifactFilename(now)
	record.Filename = filename
	record.SizeBytes = int64(len(data))
	record.Checksum = snapshot.Checksum

	e.emit("storing", 70)
	if err := e.local.Upload(filename, bytes.NewReader(data), int64(len(data))); err != nil {
		return fail(fmt.Errorf("failed to store artifact: %w", err))
	}

	// Extra destinations are best-effort replicas; their failure never
	// invalidates the local artifact
	for _, dest := range e.extras {
		if err := dest.Upload(filename, bytes.NewReader(data), int64(len(data))); err != nil {
			log.Printf("[Engine] Warning: Failed to replicate artifact to %s destination: %v",
				dest.GetType(), err)
		}
	}

	record.Status = StatusSuccess
	if err := e.ledger.Append(record); err != nil {
		return nil, fmt.Errorf("backup stored but history update failed: %w", err)
	}

	e.emit("done", 100)
	log.Printf("[Engine] Backup %s complete: %s (%d bytes)", record.ID, filename, len(data))

	return record, nil
}

// PreviewRestore parses and validates an artifact without applying it, so
// the host can show the operator the embedded metadata before confirming.
func (e *Engine) PreviewRestore(data []byte) (*Snapshot, ValidationResult, error) {
	snapshot, err := Deserialize(data)
	if err != nil {
		return nil, ValidationResult{
			Status:        StatusMalformed,
			Reason:        err.Error(),
			EngineVersion: SchemaVersion,
		}, err
	}

	return snapshot, e.validator.Validate(snapshot), nil
}

// Restore validates an artifact and applies it to the store, replacing
// everything currently persisted. Validation warnings require explicit
// operator overrides; a checksum mismatch in particular is never bypassed
// implicitly. Once slot writes begin the operation is not cancellable.
func (e *Engine) Restore(ctx context.Context, data []byte, opts RestoreOptions) (*RestoreReport, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	e.emit("validating", 10)
	snapshot, err := Deserialize(data)
	if err != nil {
		return nil, err
	}

	result := e.validator.Validate(snapshot)
	switch result.Status {
	case StatusValid:
	case StatusMalformed:
		return nil, fmt.Errorf("%w: %s", ErrMalformedArtifact, result.Reason)
	case StatusVersionUnsupported:
		if !opts.AllowVersionMismatch {
			return nil, fmt.Errorf("%w: %s", ErrVersionUnsupported, result.Reason)
		}
		log.Printf("[Engine] Proceeding past version mismatch on operator override: %s", result.Reason)
	case StatusChecksumMismatch:
		if !opts.AllowChecksumMismatch {
			return nil, fmt.Errorf("%w: expected %s, computed %s",
				ErrChecksumMismatch, result.ExpectedChecksum, result.ActualChecksum)
		}
		log.Printf("[Engine] Proceeding past checksum mismatch on operator override")
	}

	e.emit("restoring", 40)
	report, err := e.restorer.Restore(ctx, snapshot)

	if err != nil {
		e.emit("done_with_failures", 100)
		log.Printf("[Engine] Restore finished with failures: %v", err)
	} else {
		e.emit("done", 100)
		log.Printf("[Engine] Restore complete: %d slot(s) applied, %d skipped",
			len(report.Applied), len(report.Skipped))
	}

	return report, err
}

// OpenArtifact streams a stored artifact by filename into w
func (e *Engine) OpenArtifact(filename string, w io.Writer) error {
	return e.local.Download(filename, w)
}
