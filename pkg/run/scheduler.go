package run

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmkor/pricewatch/pkg/runlog"
)

// Scheduler запускает цикл сразу при старте и далее по тикеру.
// Если предыдущий цикл еще идет, очередной тик пропускается целиком,
// частичных запусков не бывает.
type Scheduler struct {
	cycle    *Cycle
	interval time.Duration
	log      *runlog.Logger

	running atomic.Bool
}

// NewScheduler создает планировщик с заданным интервалом
func NewScheduler(cycle *Cycle, interval time.Duration, log *runlog.Logger) *Scheduler {
	if log == nil {
		log = runlog.NewLogger()
	}
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		log:      log,
	}
}

// Start блокируется до отмены контекста. Первый цикл выполняется
// немедленно, последующие по интервалу.
func (s *Scheduler) Start(ctx context.Context) error {
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.trigger(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// trigger запускает цикл, если он не идет прямо сейчас
func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Skipped(ctx, "предыдущий цикл еще выполняется, запуск пропущен")
		return
	}

	go func() {
		defer s.running.Store(false)
		s.cycle.Run(ctx)
	}()
}

// TryRunNow запускает цикл немедленно, если он не идет.
// Возвращает false, если запуск пропущен из-за перекрытия.
func (s *Scheduler) TryRunNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Skipped(ctx, "цикл уже выполняется, ручной запуск пропущен")
		return false
	}
	defer s.running.Store(false)
	s.cycle.Run(ctx)
	return true
}
