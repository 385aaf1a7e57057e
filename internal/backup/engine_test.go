package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourusername/pdv-manager/internal/database"
	"github.com/yourusername/pdv-manager/internal/kvstore"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewLedger(db.DB)
}

func newTestEngine(t *testing.T, store kvstore.Store) *Engine {
	t.Helper()

	engine, err := NewEngine(Options{
		Store:      store,
		Ledger:     newTestLedger(t),
		BackupDir:  t.TempDir(),
		AppVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestCreateBackupWritesArtifactAndLedger(t *testing.T) {
	store := kvstore.NewMemoryStore()
	ctx := context.Background()
	if err := store.Set(ctx, "users", json.RawMessage(`[{"id":"u1"}]`)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	engine := newTestEngine(t, store)

	record, err := engine.CreateBackup(ctx, TypeManual, "before upgrade")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if record.Status != StatusSuccess {
		t.Fatalf("expected success status, got %s", record.Status)
	}
	if record.ID == "" || record.Filename == "" || record.Checksum == "" {
		t.Fatalf("record missing identifiers: %+v", record)
	}
	if record.SizeBytes <= 0 {
		t.Fatalf("expected a non-empty artifact")
	}

	// Artifact must exist and round-trip through validation
	var buf bytes.Buffer
	if err := engine.OpenArtifact(record.Filename, &buf); err != nil {
		t.Fatalf("failed to read artifact back: %v", err)
	}
	_, result, err := engine.PreviewRestore(buf.Bytes())
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if result.Status != StatusValid {
		t.Fatalf("fresh artifact must validate, got %s (%s)", result.Status, result.Reason)
	}

	records, err := engine.Ledger().List(ListFilter{})
	if err != nil {
		t.Fatalf("ledger list failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Fatalf("expected exactly the new record in the ledger, got %d", len(records))
	}
}

func TestCreateBackupRecordsFailures(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.FailGet = map[string]error{"sales": errors.New("connection lost")}

	engine := newTestEngine(t, store)

	_, err := engine.CreateBackup(context.Background(), TypeManual, "")
	if err == nil {
		t.Fatalf("expected backup to fail")
	}
	var collErr *CollectionError
	if !errors.As(err, &collErr) || collErr.Slot != "sales" {
		t.Fatalf("expected a collection error for sales, got %v", err)
	}

	// The failed attempt still lands in the ledger
	records, err := engine.Ledger().List(ListFilter{})
	if err != nil {
		t.Fatalf("ledger list failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one ledger record, got %d", len(records))
	}
	if records[0].Status != StatusError || records[0].ErrorMessage == "" {
		t.Fatalf("expected an error record, got %+v", records[0])
	}
}

// blockingStore parks any Get until released, holding the engine mid-backup
type blockingStore struct {
	*kvstore.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    bool
}

func (b *blockingStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if !b.once {
		b.once = true
		close(b.entered)
		<-b.release
	}
	return b.MemoryStore.Get(ctx, key)
}

func TestCreateBackupSingleFlight(t *testing.T) {
	store := &blockingStore{
		MemoryStore: kvstore.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	engine := newTestEngine(t, store)

	done := make(chan error, 1)
	go func() {
		_, err := engine.CreateBackup(context.Background(), TypeManual, "")
		done <- err
	}()

	<-store.entered

	if _, err := engine.CreateBackup(context.Background(), TypeManual, ""); !errors.Is(err, ErrBackupInProgress) {
		t.Fatalf("expected ErrBackupInProgress, got %v", err)
	}
	if _, err := engine.Restore(context.Background(), nil, RestoreOptions{}); !errors.Is(err, ErrBackupInProgress) {
		t.Fatalf("expected restore to also be rejected, got %v", err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first backup failed: %v", err)
	}

	// The guard releases once the first operation finishes
	if _, err := engine.CreateBackup(context.Background(), TypeManual, ""); err != nil {
		t.Fatalf("backup after release failed: %v", err)
	}
}

func TestRestoreRefusesChecksumMismatchWithoutOverride(t *testing.T) {
	store := kvstore.NewMemoryStore()
	ctx := context.Background()
	if err := store.Set(ctx, "users", json.RawMessage(`[{"id":"u1"}]`)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	engine := newTestEngine(t, store)
	record, err := engine.CreateBackup(ctx, TypeManual, "")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	var buf bytes.Buffer
	if err := engine.OpenArtifact(record.Filename, &buf); err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	corrupted := bytes.Replace(buf.Bytes(), []byte(`"u1"`), []byte(`"u9"`), 1)

	if _, err := engine.Restore(ctx, corrupted, RestoreOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	// Explicit override lets the operator proceed anyway
	report, err := engine.Restore(ctx, corrupted, RestoreOptions{AllowChecksumMismatch: true})
	if err != nil {
		t.Fatalf("override restore failed: %v", err)
	}
	if len(report.Applied) == 0 {
		t.Fatalf("expected slots to be applied under override")
	}
}

func TestRestoreRefusesNewerVersionWithoutOverride(t *testing.T) {
	store := kvstore.NewMemoryStore()
	ctx := context.Background()
	engine := newTestEngine(t, store)

	record, err := engine.CreateBackup(ctx, TypeManual, "")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	var buf bytes.Buffer
	if err := engine.OpenArtifact(record.Filename, &buf); err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}

	// Pretend the artifact came from a future engine
	future := bytes.Replace(buf.Bytes(),
		[]byte(`"version": "`+SchemaVersion+`"`),
		[]byte(`"version": "99.0.0"`), 1)
	if bytes.Equal(future, buf.Bytes()) {
		t.Fatalf("version edit did not apply")
	}

	if _, err := engine.Restore(ctx, future, RestoreOptions{}); !errors.Is(err, ErrVersionUnsupported) {
		t.Fatalf("expected ErrVersionUnsupported, got %v", err)
	}

	if _, err := engine.Restore(ctx, future, RestoreOptions{AllowVersionMismatch: true}); err != nil {
		t.Fatalf("override restore failed: %v", err)
	}
}

func TestBackupRestoreFullCycle(t *testing.T) {
	ctx := context.Background()
	source := kvstore.NewMemoryStore()
	seed := map[string]string{
		"users":       `[{"id":"u1","name":"Ana"},{"id":"u2","name":"Rui"}]`,
		"products":    `[{"id":"p1","price":4.5}]`,
		"companyData": `{"name":"Banca Central","cnpj":"00.000.000/0001-00"}`,
		"theme":       `"dark"`,
	}
	for key, value := range seed {
		if err := source.Set(ctx, key, json.RawMessage(value)); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	engine := newTestEngine(t, source)
	record, err := engine.CreateBackup(ctx, TypeManual, "full cycle")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	artifactPath := filepath.Join(engine.Local().GetPath(), record.Filename)
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		t.Fatalf("failed to read artifact file: %v", err)
	}

	// Restore into a fresh store, simulating a new installation
	target := kvstore.NewMemoryStore()
	targetEngine := newTestEngine(t, target)
	report, err := targetEngine.Restore(ctx, data, RestoreOptions{})
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(report.Applied) != len(seed) {
		t.Fatalf("expected %d applied slots, got %d: %v", len(seed), len(report.Applied), report.Applied)
	}

	for key, want := range seed {
		got, ok, err := target.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("slot %s missing after restore: ok=%v err=%v", key, ok, err)
		}
		var wantVal, gotVal interface{}
		mustUnmarshal(t, []byte(want), &wantVal)
		mustUnmarshal(t, got, &gotVal)
		if !jsonEqual(wantVal, gotVal) {
			t.Fatalf("slot %s changed across the cycle: %s != %s", key, want, got)
		}
	}
}

func jsonEqual(a, b interface{}) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return bytes.Equal(aj, bj)
}

func TestRestoreProgressDistinguishesFailures(t *testing.T) {
	source := kvstore.NewMemoryStore()
	ctx := context.Background()
	if err := source.Set(ctx, "users", json.RawMessage(`[{"id":"u1"}]`)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := source.Set(ctx, "products", json.RawMessage(`[{"id":"p1"}]`)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	payload, err := NewCollector(source, 0).Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	_, data, err := Serialize(payload, SystemInfo("test"), time.Now())
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	newProgressEngine := func(store kvstore.Store, steps *[]string) *Engine {
		engine, err := NewEngine(Options{
			Store:      store,
			Ledger:     newTestLedger(t),
			BackupDir:  t.TempDir(),
			AppVersion: "1.0.0",
			Progress: func(step string, percent int) {
				*steps = append(*steps, step)
			},
		})
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		return engine
	}

	var failedSteps []string
	broken := kvstore.NewMemoryStore()
	broken.FailSet = map[string]error{"products": errors.New("disk full")}
	_, err = newProgressEngine(broken, &failedSteps).Restore(ctx, data, RestoreOptions{})
	var partial *PartialRestoreError
	if !errors.As(err, &partial) {
		t.Fatalf("expected a partial restore error, got %v", err)
	}
	if len(failedSteps) == 0 || failedSteps[len(failedSteps)-1] != "done_with_failures" {
		t.Fatalf("expected final step done_with_failures, got %v", failedSteps)
	}
	for _, step := range failedSteps {
		if step == "done" {
			t.Fatalf("partial restore must not report a clean finish: %v", failedSteps)
		}
	}

	var cleanSteps []string
	if _, err := newProgressEngine(kvstore.NewMemoryStore(), &cleanSteps).Restore(ctx, data, RestoreOptions{}); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(cleanSteps) == 0 || cleanSteps[len(cleanSteps)-1] != "done" {
		t.Fatalf("expected final step done, got %v", cleanSteps)
	}
}
