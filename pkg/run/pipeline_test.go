package run

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/diff"
	"github.com/dmkor/pricewatch/pkg/ledger"
	_ "github.com/dmkor/pricewatch/pkg/ledger/sqlite"
	"github.com/dmkor/pricewatch/pkg/store"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// fakeSupplier отдает заранее заданную таблицу или ошибку
type fakeSupplier struct {
	name     string
	table    catalog.Table
	fetchErr error
	normErr  error
	fetches  int
}

func (f *fakeSupplier) Name() string { return f.name }

func (f *fakeSupplier) Fetch(ctx context.Context) (any, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.table, nil
}

func (f *fakeSupplier) Normalize(raw any) (catalog.Table, error) {
	if f.normErr != nil {
		return nil, f.normErr
	}
	return raw.(catalog.Table), nil
}

var _ suppliers.Supplier = (*fakeSupplier)(nil)

func newTestLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	l, err := ledger.New(context.Background(), ledger.Config{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	t.Cleanup(func() { l.Close(context.Background()) })
	return l
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, ledger.Ledger) {
	t.Helper()
	st := store.New(t.TempDir())
	led := newTestLedger(t)
	return NewPipeline(st, led, nil), st, led
}

func TestPipeline_FirstRun(t *testing.T) {
	p, _, led := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}

	res := p.Run(ctx, sup)
	if res.State != StateDone || res.Err != nil {
		t.Fatalf("expected clean run, got state=%s err=%v", res.State, res.Err)
	}
	if !res.Diff.FirstRun || !res.Diff.HasChanges() {
		t.Error("first run must be reportable change")
	}
	if res.Diff.Stats.AddedCount != 1 {
		t.Errorf("whole table must be added on first run: %+v", res.Diff.Stats)
	}
	if res.PreviousPath != "" {
		t.Errorf("no previous path expected, got %q", res.PreviousPath)
	}

	rec, err := led.Latest(ctx, "altacera")
	if err != nil || rec == nil {
		t.Fatalf("ledger record expected: rec=%v err=%v", rec, err)
	}
	if rec.CurrentPath != res.SnapshotPath || rec.ReportPath != res.ReportPath || rec.PreviousPath != "" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if _, err := os.Stat(res.SnapshotPath); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		t.Errorf("report missing: %v", err)
	}
}

func TestPipeline_SecondRunDiffsAgainstPrevious(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}
	first := p.Run(ctx, sup)
	if first.Err != nil {
		t.Fatalf("first run: %v", first.Err)
	}

	// Второй запуск в тот же день: цена изменилась, добавилась позиция.
	sup.table = catalog.Table{
		{Name: "Плитка", Article: "A1", Unit: "шт", Price: 12},
		{Name: "Бордюр", Article: "B1", Unit: "шт", Price: 5},
	}
	second := p.Run(ctx, sup)
	if second.Err != nil {
		t.Fatalf("second run: %v", second.Err)
	}

	// Повторный запуск в тот же день перезаписывает файл снимка,
	// сравнение обязано идти с таблицей, прочитанной до перезаписи.
	if second.Date != first.Date {
		t.Fatalf("runs must share the date: %q vs %q", second.Date, first.Date)
	}
	if second.Diff.FirstRun {
		t.Error("second run must not be first run")
	}
	if second.PreviousPath != first.SnapshotPath {
		t.Errorf("previous path must point to first snapshot: %q vs %q",
			second.PreviousPath, first.SnapshotPath)
	}
	stats := second.Diff.Stats
	if stats.ChangedCount != 1 || stats.AddedCount != 1 || stats.RemovedCount != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPipeline_FetchFailureAborts(t *testing.T) {
	p, _, led := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{name: "altacera", fetchErr: errors.New("connection refused")}

	res := p.Run(ctx, sup)
	if res.State != StateAborted {
		t.Fatalf("expected aborted state, got %s", res.State)
	}
	if res.Err == nil {
		t.Fatal("expected error")
	}

	// Прерванный запуск не оставляет записи в журнале.
	rec, err := led.Latest(ctx, "altacera")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rec != nil {
		t.Errorf("aborted run must not write ledger record: %+v", rec)
	}
}

func TestPipeline_NormalizeFailureAborts(t *testing.T) {
	p, _, led := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{name: "altacera", normErr: errors.New("schema mismatch")}

	res := p.Run(ctx, sup)
	if res.State != StateAborted || res.Err == nil {
		t.Fatalf("expected aborted run, got state=%s err=%v", res.State, res.Err)
	}
	if rec, _ := led.Latest(ctx, "altacera"); rec != nil {
		t.Errorf("aborted run must not write ledger record: %+v", rec)
	}
}

func TestPipeline_ReportFailureRecovered(t *testing.T) {
	p, _, led := newTestPipeline(t)
	ctx := context.Background()

	p.buildReport = func(path, supplier string, result diff.Result, checkedAt time.Time) error {
		return errors.New("disk full")
	}

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}

	res := p.Run(ctx, sup)
	if res.State != StateDone || res.Err != nil {
		t.Fatalf("report failure must not abort: state=%s err=%v", res.State, res.Err)
	}
	if res.ReportErr == nil {
		t.Error("report error must be recorded")
	}
	if res.ReportPath != "" {
		t.Errorf("report path must be empty, got %q", res.ReportPath)
	}

	rec, err := led.Latest(ctx, "altacera")
	if err != nil || rec == nil {
		t.Fatalf("ledger record expected: rec=%v err=%v", rec, err)
	}
	if rec.ReportPath != "" {
		t.Errorf("record must have empty report path, got %q", rec.ReportPath)
	}
	if rec.CurrentPath == "" {
		t.Error("snapshot path must still be recorded")
	}
}

// failingLedger отдает предыдущие записи, но не принимает новые
type failingLedger struct {
	ledger.Ledger
	upsertErr error
}

func (f *failingLedger) Upsert(ctx context.Context, rec ledger.Record) error {
	return f.upsertErr
}

func TestPipeline_LedgerWriteFailureSurfaced(t *testing.T) {
	st := store.New(t.TempDir())
	led := &failingLedger{Ledger: newTestLedger(t), upsertErr: errors.New("connection lost")}
	p := NewPipeline(st, led, nil)
	ctx := context.Background()

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}

	res := p.Run(ctx, sup)
	if res.Err == nil {
		t.Fatal("ledger write failure must surface")
	}
	if res.State != StatePersisting {
		t.Errorf("state must stay persisting, got %s", res.State)
	}
	// Файлы не откатываются.
	if _, err := os.Stat(res.SnapshotPath); err != nil {
		t.Errorf("snapshot must survive ledger failure: %v", err)
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		t.Errorf("report must survive ledger failure: %v", err)
	}
}

func TestPipeline_EmptyFirstSnapshotIsReportable(t *testing.T) {
	p, _, led := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{name: "altacera", table: catalog.Table{}}

	res := p.Run(ctx, sup)
	if res.State != StateDone || res.Err != nil {
		t.Fatalf("empty feed is a valid snapshot: state=%s err=%v", res.State, res.Err)
	}
	if !res.Diff.HasChanges() {
		t.Error("empty first snapshot must still count as change")
	}
	if rec, _ := led.Latest(ctx, "altacera"); rec == nil {
		t.Error("ledger record expected for empty first snapshot")
	}
}

func TestPipeline_NoChangesWritesStatusReport(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}

	if res := p.Run(ctx, sup); res.Err != nil {
		t.Fatalf("first run: %v", res.Err)
	}

	second := p.Run(ctx, sup)
	if second.Err != nil {
		t.Fatalf("second run: %v", second.Err)
	}
	if second.Diff.HasChanges() {
		t.Error("identical snapshot must have no changes")
	}
	// Отчёт пишется и при отсутствии изменений (статусный).
	if second.ReportPath == "" {
		t.Fatal("status report path expected")
	}
	if _, err := os.Stat(second.ReportPath); err != nil {
		t.Errorf("status report missing: %v", err)
	}
}

func TestPipeline_UnreadablePreviousFallsBackToFirstRun(t *testing.T) {
	p, st, led := newTestPipeline(t)
	ctx := context.Background()

	// Запись в журнале есть, а файла на диске нет.
	err := led.Upsert(ctx, ledger.Record{
		Date:         "2026-03-10",
		SupplierName: "altacera",
		CurrentPath:  st.SnapshotPath("altacera", "2026-03-10"),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}

	res := p.Run(ctx, sup)
	if res.State != StateDone || res.Err != nil {
		t.Fatalf("unreadable previous must not abort: state=%s err=%v", res.State, res.Err)
	}
	if !res.Diff.FirstRun {
		t.Error("run must degrade to first-run semantics")
	}
	if res.PreviousPath != "" {
		t.Errorf("previous path must be empty, got %q", res.PreviousPath)
	}
}
