package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/ledger"
	_ "github.com/dmkor/pricewatch/pkg/ledger/sqlite"
)

func newTestLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	l, err := ledger.New(context.Background(), ledger.Config{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	t.Cleanup(func() { l.Close(context.Background()) })
	return l
}

func TestSaveSnapshot_PathLayout(t *testing.T) {
	s := New(t.TempDir())

	table := catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}}
	path, err := s.SaveSnapshot("altacera", "2026-03-14", table)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	want := filepath.Join(s.Base(), "altacera", "2026-03-14", SnapshotFile)
	if path != want {
		t.Errorf("expected path %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
}

func TestSaveSnapshot_SameDayOverwrites(t *testing.T) {
	s := New(t.TempDir())

	first := catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}}
	path1, err := s.SaveSnapshot("altacera", "2026-03-14", first)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	second := catalog.Table{
		{Name: "Плитка", Article: "A1", Unit: "шт", Price: 12},
		{Name: "Клей", Article: "K1", Unit: "шт", Price: 5},
	}
	path2, err := s.SaveSnapshot("altacera", "2026-03-14", second)
	if err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}
	if path1 != path2 {
		t.Errorf("same-day path must be stable: %s vs %s", path1, path2)
	}

	l := newTestLedger(t)
	ctx := context.Background()
	err = l.Upsert(ctx, ledger.Record{Date: "2026-03-14", SupplierName: "altacera", CurrentPath: path2})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	prev, err := s.LoadPrevious(ctx, l, "altacera")
	if err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}
	if prev == nil || len(prev.Table) != 2 {
		t.Errorf("expected overwritten snapshot with 2 rows, got %+v", prev)
	}
}

func TestLoadPrevious_NoRecords(t *testing.T) {
	s := New(t.TempDir())
	l := newTestLedger(t)

	prev, err := s.LoadPrevious(context.Background(), l, "altacera")
	if err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil previous for empty ledger, got %+v", prev)
	}
}

func TestLoadPrevious_RoundTrip(t *testing.T) {
	s := New(t.TempDir())
	l := newTestLedger(t)
	ctx := context.Background()

	table := catalog.Table{
		{Name: "Плитка A", Article: "A1", Unit: "шт", Price: 10},
		{Name: "Плитка B", Article: "B1", Unit: "шт", Price: 20},
	}
	path, err := s.SaveSnapshot("altacera", "2026-03-13", table)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	err = l.Upsert(ctx, ledger.Record{Date: "2026-03-13", SupplierName: "altacera", CurrentPath: path})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	prev, err := s.LoadPrevious(ctx, l, "altacera")
	if err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}
	if prev == nil {
		t.Fatal("expected previous snapshot")
	}
	if prev.Date != "2026-03-13" || prev.Path != path {
		t.Errorf("unexpected metadata: %+v", prev)
	}
	if len(prev.Table) != 2 || prev.Table[0] != table[0] {
		t.Errorf("unexpected table: %+v", prev.Table)
	}
}

func TestLoadPrevious_MissingFileSoftFails(t *testing.T) {
	s := New(t.TempDir())
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.Upsert(ctx, ledger.Record{
		Date:         "2026-03-13",
		SupplierName: "altacera",
		CurrentPath:  filepath.Join(s.Base(), "altacera", "2026-03-13", SnapshotFile),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	prev, err := s.LoadPrevious(ctx, l, "altacera")
	if err == nil {
		t.Fatal("expected error for missing snapshot file")
	}
	if prev != nil {
		t.Errorf("previous must be nil on read failure, got %+v", prev)
	}
}

func TestLoadPrevious_CorruptFileSoftFails(t *testing.T) {
	s := New(t.TempDir())
	l := newTestLedger(t)
	ctx := context.Background()

	dir := s.Dir("altacera", "2026-03-13")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, SnapshotFile)
	if err := os.WriteFile(path, []byte("not an xlsx"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := l.Upsert(ctx, ledger.Record{Date: "2026-03-13", SupplierName: "altacera", CurrentPath: path})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	prev, err := s.LoadPrevious(ctx, l, "altacera")
	if err == nil {
		t.Fatal("expected error for corrupt snapshot file")
	}
	if prev != nil {
		t.Errorf("previous must be nil on read failure, got %+v", prev)
	}
}
