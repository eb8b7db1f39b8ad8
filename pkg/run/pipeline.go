// Package run - оркестратор запусков: конвейер одного поставщика,
// цикл по всем поставщикам и планировщик по расписанию.
//
// Конвейер проходит этапы строго по порядку: загрузка, нормализация,
// сохранение снимка, сравнение с предыдущим, отчёт, запись в журнал.
// Сбой до записи снимка прерывает запуск без следов в журнале БД.
// Сбой отчёта запуск не прерывает: запись в журнал делается с пустым
// путем отчёта. Сбой записи в журнал возвращается вызывающему, уже
// записанные файлы не откатываются.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/diff"
	"github.com/dmkor/pricewatch/pkg/ledger"
	"github.com/dmkor/pricewatch/pkg/report"
	"github.com/dmkor/pricewatch/pkg/runlog"
	"github.com/dmkor/pricewatch/pkg/store"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// State - этап конвейера
type State string

const (
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateSaving      State = "saving"
	StateDiffing     State = "diffing"
	StateReporting   State = "reporting"
	StatePersisting  State = "persisting"
	StateDone        State = "done"

	// StateAborted - поглощающее состояние: запуск прерван,
	// запись в журнал БД не делается
	StateAborted State = "aborted"
)

// Result - итог запуска конвейера для одного поставщика
type Result struct {
	// SupplierName - поставщик
	SupplierName string

	// Date - дата запуска (YYYY-MM-DD)
	Date string

	// State - финальное состояние: done, aborted либо persisting,
	// если снимок и отчёт записаны, а журнал БД - нет
	State State

	// Diff - результат сравнения (заполнен, если дошли до diffing)
	Diff diff.Result

	// SnapshotPath - путь к записанному снимку
	SnapshotPath string

	// PreviousPath - путь к предыдущему снимку (пусто на первом запуске)
	PreviousPath string

	// ReportPath - путь к отчёту (пусто, если отчёт не записался)
	ReportPath string

	// StartedAt, FinishedAt - границы запуска
	StartedAt  time.Time
	FinishedAt time.Time

	// Err - ошибка, прервавшая запуск или записанная при persisting
	Err error

	// ReportErr - восстановленная ошибка записи отчёта
	ReportErr error
}

// Duration - длительность запуска
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Pipeline выполняет запуск одного поставщика
type Pipeline struct {
	store  *store.Store
	ledger ledger.Ledger
	log    *runlog.Logger

	// now и buildReport подменяются в тестах
	now         func() time.Time
	buildReport func(path, supplier string, result diff.Result, checkedAt time.Time) error
}

// NewPipeline создает конвейер
func NewPipeline(st *store.Store, led ledger.Ledger, log *runlog.Logger) *Pipeline {
	if log == nil {
		log = runlog.NewLogger()
	}
	return &Pipeline{
		store:       st,
		ledger:      led,
		log:         log,
		now:         time.Now,
		buildReport: report.Build,
	}
}

// Run проводит поставщика через весь конвейер
func (p *Pipeline) Run(ctx context.Context, sup suppliers.Supplier) Result {
	startedAt := p.now()
	res := Result{
		SupplierName: sup.Name(),
		Date:         startedAt.Format(ledger.DateLayout),
		StartedAt:    startedAt,
	}

	abort := func(state State, err error) Result {
		res.State = StateAborted
		res.Err = fmt.Errorf("%s: %w", state, err)
		res.FinishedAt = p.now()
		p.log.Failure(ctx, res.SupplierName, string(state), "запуск прерван", err)
		return res
	}

	// Загрузка фида
	res.State = StateFetching
	p.log.Info(ctx, res.SupplierName, string(StateFetching), "загрузка фида")
	raw, err := sup.Fetch(ctx)
	if err != nil {
		return abort(StateFetching, err)
	}

	// Нормализация в унифицированную таблицу
	res.State = StateNormalizing
	table, err := sup.Normalize(raw)
	if err != nil {
		return abort(StateNormalizing, err)
	}
	p.log.Success(ctx, res.SupplierName, string(StateNormalizing), "таблица нормализована", len(table))

	// Предыдущий снимок читается до записи текущего: повторный запуск
	// в тот же день перезаписывает файл, на который указывает свежая
	// запись журнала. Нечитаемый журнал или файл не прерывают запуск,
	// сравнение идет как при первом запуске.
	var previous *catalog.Table
	prev, err := p.store.LoadPrevious(ctx, p.ledger, res.SupplierName)
	if err != nil {
		p.log.Failure(ctx, res.SupplierName, string(StateDiffing),
			"предыдущий снимок недоступен, сравнение как при первом запуске", err)
	} else if prev != nil {
		previous = &prev.Table
		res.PreviousPath = prev.Path
	}

	// Сохранение текущего снимка
	res.State = StateSaving
	snapshotPath, err := p.store.SaveSnapshot(res.SupplierName, res.Date, table)
	if err != nil {
		return abort(StateSaving, err)
	}
	res.SnapshotPath = snapshotPath

	// Сравнение
	res.State = StateDiffing
	res.Diff = diff.Compare(previous, table)
	p.log.Success(ctx, res.SupplierName, string(StateDiffing),
		fmt.Sprintf("добавлено %d, удалено %d, изменено %d",
			res.Diff.Stats.AddedCount, res.Diff.Stats.RemovedCount, res.Diff.Stats.ChangedCount),
		res.Diff.Stats.CurrentTotal)

	// Отчёт: сбой не прерывает запуск
	res.State = StateReporting
	reportPath := p.store.ReportPath(res.SupplierName, res.Date)
	if err := p.buildReport(reportPath, res.SupplierName, res.Diff, p.now()); err != nil {
		res.ReportErr = err
		p.log.Failure(ctx, res.SupplierName, string(StateReporting),
			"отчёт не записан, запуск продолжается", err)
	} else {
		res.ReportPath = reportPath
	}

	// Запись в журнал БД: ошибка возвращается, файлы не откатываются
	res.State = StatePersisting
	rec := ledger.Record{
		Date:         res.Date,
		SupplierName: res.SupplierName,
		CurrentPath:  res.SnapshotPath,
		PreviousPath: res.PreviousPath,
		ReportPath:   res.ReportPath,
	}
	if err := p.ledger.Upsert(ctx, rec); err != nil {
		res.Err = fmt.Errorf("%s: %w", StatePersisting, err)
		res.FinishedAt = p.now()
		p.log.Failure(ctx, res.SupplierName, string(StatePersisting), "журнал не записан", err)
		return res
	}

	res.State = StateDone
	res.FinishedAt = p.now()
	p.log.Finished(ctx, res.SupplierName, res.Duration(), "запуск завершен")
	return res
}
