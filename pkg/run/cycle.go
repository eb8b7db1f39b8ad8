package run

import (
	"context"
	"time"

	"github.com/dmkor/pricewatch/pkg/notify"
	"github.com/dmkor/pricewatch/pkg/resultlog"
	"github.com/dmkor/pricewatch/pkg/runlog"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// ResultPublisher публикует итог запуска во внешнее хранилище состояния.
// Реализуется resultlog.RedisPublisher.
type ResultPublisher interface {
	Publish(ctx context.Context, result resultlog.RunResult, execErr error) error
}

// Cycle - один проход по всем поставщикам, строго последовательно.
// Сбой одного поставщика не мешает остальным.
type Cycle struct {
	pipeline  *Pipeline
	suppliers []suppliers.Supplier
	log       *runlog.Logger

	// Опциональные публикации итогов
	results  ResultPublisher
	notifier notify.Publisher
}

// NewCycle создает цикл по списку поставщиков в заданном порядке
func NewCycle(pipeline *Pipeline, sups []suppliers.Supplier, log *runlog.Logger) *Cycle {
	if log == nil {
		log = runlog.NewLogger()
	}
	return &Cycle{
		pipeline:  pipeline,
		suppliers: sups,
		log:       log,
	}
}

// WithResultPublisher включает публикацию итогов в Redis
func (c *Cycle) WithResultPublisher(rp ResultPublisher) *Cycle {
	c.results = rp
	return c
}

// WithNotifier включает отправку событий об изменениях в брокер
func (c *Cycle) WithNotifier(n notify.Publisher) *Cycle {
	c.notifier = n
	return c
}

// Run проходит по всем поставщикам и возвращает итоги в их порядке
func (c *Cycle) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(c.suppliers))

	for _, sup := range c.suppliers {
		if ctx.Err() != nil {
			break
		}

		res := c.pipeline.Run(ctx, sup)
		results = append(results, res)

		c.publishResult(ctx, res)
		c.notifyChanges(ctx, res)
	}

	return results
}

// publishResult отправляет итог запуска в Redis, если publisher настроен.
// Ошибка публикации логируется и не влияет на цикл.
func (c *Cycle) publishResult(ctx context.Context, res Result) {
	if c.results == nil {
		return
	}

	rr := resultlog.RunResult{
		SupplierName: res.SupplierName,
		Date:         res.Date,
		HasChanges:   res.State == StateDone && res.Diff.HasChanges(),
		FirstRun:     res.Diff.FirstRun,
		Added:        res.Diff.Stats.AddedCount,
		Removed:      res.Diff.Stats.RemovedCount,
		Changed:      res.Diff.Stats.ChangedCount,
		SnapshotPath: res.SnapshotPath,
		ReportPath:   res.ReportPath,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		DurationMs:   res.Duration().Milliseconds(),
	}
	if err := c.results.Publish(ctx, rr, res.Err); err != nil {
		c.log.Failure(ctx, res.SupplierName, "resultlog", "итог не опубликован", err)
	}
}

// notifyChanges отправляет событие в брокер для успешных запусков
// с изменениями. Ошибка отправки логируется и не влияет на цикл.
func (c *Cycle) notifyChanges(ctx context.Context, res Result) {
	if c.notifier == nil || res.State != StateDone || res.Err != nil || !res.Diff.HasChanges() {
		return
	}

	event := notify.ChangeEvent{
		SupplierName: res.SupplierName,
		Date:         res.Date,
		FirstRun:     res.Diff.FirstRun,
		Added:        res.Diff.Stats.AddedCount,
		Removed:      res.Diff.Stats.RemovedCount,
		Changed:      res.Diff.Stats.ChangedCount,
		ReportPath:   res.ReportPath,
		OccurredAt:   time.Now(),
	}
	if err := c.notifier.Publish(ctx, event); err != nil {
		c.log.Failure(ctx, res.SupplierName, "notify", "событие не отправлено", err)
	}
}
