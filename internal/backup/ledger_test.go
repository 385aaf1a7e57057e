package backup

import (
	"strings"
	"testing"
	"time"
)

func TestLedgerAppendAndList(t *testing.T) {
	ledger := newTestLedger(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	inputs := []*Record{
		{CreatedAt: base, Type: TypeManual, Status: StatusSuccess, Filename: "a.json", SizeBytes: 2048, DataTypes: []string{"users", "products"}},
		{CreatedAt: base.Add(time.Hour), Type: TypeAutomatic, Status: StatusSuccess, Filename: "b.json", SizeBytes: 512},
		{CreatedAt: base.Add(2 * time.Hour), Type: TypeManual, Status: StatusError, ErrorMessage: "disk full"},
	}
	for _, record := range inputs {
		if err := ledger.Append(record); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if record.ID == "" || !strings.HasPrefix(record.ID, "backup-") {
			t.Fatalf("expected a generated id, got %q", record.ID)
		}
	}

	records, err := ledger.List(ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Most recent first
	if records[0].Status != StatusError || records[2].Filename != "a.json" {
		t.Fatalf("unexpected order: %v, %v, %v", records[0].ID, records[1].ID, records[2].ID)
	}

	if records[2].Size != "2.0 KB" {
		t.Fatalf("expected formatted size 2.0 KB, got %q", records[2].Size)
	}
	if len(records[2].DataTypes) != 2 {
		t.Fatalf("data types not preserved: %v", records[2].DataTypes)
	}
}

func TestLedgerListFilters(t *testing.T) {
	ledger := newTestLedger(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, backupType := range []string{TypeManual, TypeAutomatic, TypeManual} {
		record := &Record{
			CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
			Type:      backupType,
			Status:    StatusSuccess,
		}
		if err := ledger.Append(record); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	manual, err := ledger.List(ListFilter{Type: TypeManual})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(manual) != 2 {
		t.Fatalf("expected 2 manual records, got %d", len(manual))
	}

	from := base.Add(12 * time.Hour)
	to := base.Add(36 * time.Hour)
	ranged, err := ledger.List(ListFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ranged) != 1 || ranged[0].Type != TypeAutomatic {
		t.Fatalf("expected the middle record only, got %d", len(ranged))
	}
}

func TestLedgerGetRemoveClear(t *testing.T) {
	ledger := newTestLedger(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		record := &Record{CreatedAt: base.Add(time.Duration(i) * time.Minute), Type: TypeManual, Status: StatusSuccess}
		if err := ledger.Append(record); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		ids = append(ids, record.ID)
	}

	found, err := ledger.Get(ids[1])
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found.ID != ids[1] {
		t.Fatalf("got wrong record: %s", found.ID)
	}
	if _, err := ledger.Get("backup-missing"); err == nil {
		t.Fatalf("expected an error for an unknown id")
	}

	removed, err := ledger.Remove(ids[:2])
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	if removed, err := ledger.Remove(nil); err != nil || removed != 0 {
		t.Fatalf("empty remove should be a no-op, got %d, %v", removed, err)
	}

	remaining, err := ledger.List(ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != ids[2] {
		t.Fatalf("unexpected remaining records: %d", len(remaining))
	}

	if err := ledger.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	cleared, err := ledger.List(ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(cleared) != 0 {
		t.Fatalf("expected an empty ledger, got %d records", len(cleared))
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, c := range cases {
		if got := formatSize(c.bytes); got != c.want {
			t.Fatalf("formatSize(%d) = %q, want %q", c.bytes, got, c.want)
		}
	}
}
