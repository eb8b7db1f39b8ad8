// Package diff сравнивает два снапшота прайс-листа по бизнес-ключу
// и классифицирует строки: добавленные, удалённые, изменённые.
//
// Сравнение — чистая функция над таблицами в памяти: пакет не читает
// и не пишет хранилище и никогда не падает на пустых таблицах.
package diff

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/dmkor/pricewatch/pkg/catalog"
)

// ChangeSet — три под-таблицы в канонической схеме.
// Изменённые строки содержат значения текущей стороны.
type ChangeSet struct {
	Added   catalog.Table
	Removed catalog.Table
	Changed catalog.Table
}

// Stats — счётчики сравнения, попадают в сводный лист отчёта.
type Stats struct {
	CurrentTotal   int
	PreviousTotal  int
	AddedCount     int
	RemovedCount   int
	ChangedCount   int
	UnchangedCount int
}

// Result — результат сравнения двух снапшотов.
type Result struct {
	ChangeSet ChangeSet
	Stats     Stats

	// FirstRun — предыдущего снапшота не было. Первое наблюдение
	// поставщика всегда отчётно, даже если текущая таблица пуста.
	FirstRun bool
}

// HasChanges сообщает, является ли результат отчётным изменением.
func (r Result) HasChanges() bool {
	return r.FirstRun ||
		r.Stats.AddedCount > 0 ||
		r.Stats.RemovedCount > 0 ||
		r.Stats.ChangedCount > 0
}

// Compare сравнивает предыдущий и текущий снапшоты по бизнес-ключу.
// previous == nil означает первый запуск: вся текущая таблица — Added.
//
// Порядок строк в результате детерминирован: Added и Changed следуют
// порядку current, Removed — порядку previous.
func Compare(previous *catalog.Table, current catalog.Table) Result {
	result := Result{
		Stats: Stats{CurrentTotal: len(current)},
	}

	if previous == nil {
		result.FirstRun = true
		result.ChangeSet.Added = append(catalog.Table(nil), current...)
		result.Stats.AddedCount = len(current)
		return result
	}

	result.Stats.PreviousTotal = len(*previous)

	prevIdx := previous.Index()
	currIdx := current.Index()

	// Отпечатки строк предыдущей стороны: совпадение отпечатка —
	// быстрый путь «без изменений», полевое сравнение не нужно.
	prevFp := make(map[string]uint64, len(prevIdx))
	for key, row := range prevIdx {
		prevFp[key] = fingerprint(row)
	}

	seen := make(map[string]bool, len(currIdx))
	for _, row := range current {
		key := row.Key()
		if seen[key] {
			continue // дубликат ключа в current: индекс уже хранит победителя
		}
		seen[key] = true

		effective := currIdx[key]
		prevRow, existed := prevIdx[key]
		switch {
		case !existed:
			result.ChangeSet.Added = append(result.ChangeSet.Added, effective)
			result.Stats.AddedCount++
		case prevFp[key] == fingerprint(effective) && prevRow.Equal(effective):
			result.Stats.UnchangedCount++
		default:
			result.ChangeSet.Changed = append(result.ChangeSet.Changed, effective)
			result.Stats.ChangedCount++
		}
	}

	seenPrev := make(map[string]bool, len(prevIdx))
	for _, row := range *previous {
		key := row.Key()
		if seenPrev[key] {
			continue
		}
		seenPrev[key] = true

		if _, exists := currIdx[key]; !exists {
			result.ChangeSet.Removed = append(result.ChangeSet.Removed, prevIdx[key])
			result.Stats.RemovedCount++
		}
	}

	return result
}

// fingerprint — xxh3-отпечаток строки по каноническому представлению полей.
func fingerprint(r catalog.Row) uint64 {
	var sb strings.Builder
	sb.WriteString(r.Name)
	sb.WriteByte('|')
	sb.WriteString(r.Article)
	sb.WriteByte('|')
	sb.WriteString(r.Unit)
	sb.WriteByte('|')
	sb.WriteString(catalog.FormatPrice(r.Price))
	return xxh3.HashString(sb.String())
}

// FormatText — текстовая сводка результата для логов и CLI-вывода.
func (r Result) FormatText() string {
	var sb strings.Builder

	sb.WriteString("=== Diff Statistics ===\n")
	sb.WriteString(fmt.Sprintf("Current:   %d\n", r.Stats.CurrentTotal))
	sb.WriteString(fmt.Sprintf("Previous:  %d\n", r.Stats.PreviousTotal))
	sb.WriteString(fmt.Sprintf("Added:     %d\n", r.Stats.AddedCount))
	sb.WriteString(fmt.Sprintf("Removed:   %d\n", r.Stats.RemovedCount))
	sb.WriteString(fmt.Sprintf("Changed:   %d\n", r.Stats.ChangedCount))
	sb.WriteString(fmt.Sprintf("Unchanged: %d\n", r.Stats.UnchangedCount))
	if r.FirstRun {
		sb.WriteString("(first run: no previous snapshot)\n")
	}

	writeRows := func(title string, rows catalog.Table, sign byte) {
		if len(rows) == 0 {
			return
		}
		sb.WriteString(fmt.Sprintf("\n=== %s (%d) ===\n", title, len(rows)))
		for _, row := range rows {
			sb.WriteString(fmt.Sprintf("%c %s | %s | %s | %s\n",
				sign, row.Article, row.Name, row.Unit, catalog.FormatPrice(row.Price)))
		}
	}

	writeRows("Added", r.ChangeSet.Added, '+')
	writeRows("Removed", r.ChangeSet.Removed, '-')
	writeRows("Changed", r.ChangeSet.Changed, '~')

	return sb.String()
}
