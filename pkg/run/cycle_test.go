package run

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/notify"
	"github.com/dmkor/pricewatch/pkg/resultlog"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// capturePublisher собирает опубликованные итоги
type capturePublisher struct {
	mu      sync.Mutex
	results []resultlog.RunResult
	errs    []error
}

func (cp *capturePublisher) Publish(ctx context.Context, result resultlog.RunResult, execErr error) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.results = append(cp.results, result)
	cp.errs = append(cp.errs, execErr)
	return nil
}

// captureNotifier собирает события изменений
type captureNotifier struct {
	mu     sync.Mutex
	events []notify.ChangeEvent
}

func (cn *captureNotifier) Connect(ctx context.Context) error { return nil }
func (cn *captureNotifier) Close() error                      { return nil }

func (cn *captureNotifier) Publish(ctx context.Context, event notify.ChangeEvent) error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	cn.events = append(cn.events, event)
	return nil
}

func TestCycle_SequentialAndIsolated(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	broken := &fakeSupplier{name: "altacera", fetchErr: errors.New("feed down")}
	healthy := &fakeSupplier{
		name:  "mir_keramiki",
		table: catalog.Table{{Name: "Плитка", Article: "MK-1", Unit: "м2", Price: 450}},
	}

	cycle := NewCycle(p, []suppliers.Supplier{broken, healthy}, nil)
	results := cycle.Run(ctx)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].State != StateAborted {
		t.Errorf("first supplier must abort: %+v", results[0])
	}
	if results[1].State != StateDone || results[1].Err != nil {
		t.Errorf("second supplier must succeed despite first failure: %+v", results[1])
	}
	if healthy.fetches != 1 {
		t.Errorf("healthy supplier must be fetched once, got %d", healthy.fetches)
	}
}

func TestCycle_PublishesResults(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	broken := &fakeSupplier{name: "altacera", fetchErr: errors.New("feed down")}
	healthy := &fakeSupplier{
		name:  "mir_keramiki",
		table: catalog.Table{{Name: "Плитка", Article: "MK-1", Unit: "м2", Price: 450}},
	}

	publisher := &capturePublisher{}
	cycle := NewCycle(p, []suppliers.Supplier{broken, healthy}, nil).
		WithResultPublisher(publisher)
	cycle.Run(ctx)

	if len(publisher.results) != 2 {
		t.Fatalf("expected 2 published results, got %d", len(publisher.results))
	}
	if publisher.errs[0] == nil {
		t.Error("aborted run must publish its error")
	}
	if publisher.errs[1] != nil {
		t.Errorf("successful run must publish nil error, got %v", publisher.errs[1])
	}
	if !publisher.results[1].HasChanges || !publisher.results[1].FirstRun {
		t.Errorf("first run result flags wrong: %+v", publisher.results[1])
	}
}

func TestCycle_NotifiesOnlyChangedRuns(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	sup := &fakeSupplier{
		name:  "altacera",
		table: catalog.Table{{Name: "Плитка", Article: "A1", Unit: "шт", Price: 10}},
	}

	notifier := &captureNotifier{}
	cycle := NewCycle(p, []suppliers.Supplier{sup}, nil).WithNotifier(notifier)

	// Первый запуск: изменения (first run), событие есть.
	cycle.Run(ctx)
	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 event after first run, got %d", len(notifier.events))
	}
	if notifier.events[0].SupplierName != "altacera" || !notifier.events[0].FirstRun {
		t.Errorf("unexpected event: %+v", notifier.events[0])
	}

	// Второй запуск без изменений: события нет.
	cycle.Run(ctx)
	if len(notifier.events) != 1 {
		t.Errorf("no event expected for unchanged run, got %d", len(notifier.events))
	}
}

func TestCycle_ContextCancelledStops(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sup := &fakeSupplier{name: "altacera", table: catalog.Table{}}
	cycle := NewCycle(p, []suppliers.Supplier{sup}, nil)

	results := cycle.Run(ctx)
	if len(results) != 0 {
		t.Errorf("cancelled cycle must not run suppliers, got %d results", len(results))
	}
	if sup.fetches != 0 {
		t.Errorf("supplier must not be fetched after cancel, got %d", sup.fetches)
	}
}

func TestScheduler_OverlapSkipped(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()

	slow := &slowSupplier{release: make(chan struct{})}
	cycle := NewCycle(p, []suppliers.Supplier{slow}, nil)
	s := NewScheduler(cycle, time.Hour, nil)

	started := make(chan struct{})
	slow.started = started

	done := make(chan struct{})
	go func() {
		s.TryRunNow(ctx)
		close(done)
	}()
	<-started

	// Пока первый цикл висит в Fetch, второй запуск должен быть пропущен.
	if s.TryRunNow(ctx) {
		t.Error("overlapping run must be skipped")
	}

	close(slow.release)
	<-done

	// После завершения первого цикла запуск снова разрешен.
	if !s.TryRunNow(ctx) {
		t.Error("run must be allowed after previous cycle finished")
	}
}

// slowSupplier блокируется в Fetch до закрытия release
type slowSupplier struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowSupplier) Name() string { return "slow" }

func (s *slowSupplier) Fetch(ctx context.Context) (any, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return catalog.Table{}, nil
}

func (s *slowSupplier) Normalize(raw any) (catalog.Table, error) {
	return raw.(catalog.Table), nil
}
