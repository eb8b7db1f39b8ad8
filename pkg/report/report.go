// Package report собирает XLSX-отчёты по результату сравнения снимков.
//
// Отчёт с изменениями: лист «Сводка» с пятью счётчиками и листы
// «Добавленные», «Удаленные», «Измененные» с соответствующими
// строками (для измененных пишутся текущие значения). Если изменений
// нет, вместо этого пишется одностраничный отчёт «Статус».
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/diff"
	"github.com/dmkor/pricewatch/pkg/sheet"
)

// Имена листов отчёта.
const (
	SummarySheet = "Сводка"
	AddedSheet   = "Добавленные"
	RemovedSheet = "Удаленные"
	ChangedSheet = "Измененные"
	StatusSheet  = "Статус"
)

// timestampLayout - формат даты проверки в отчёте
const timestampLayout = "02.01.2006 15:04:05"

// Build пишет отчёт по результату сравнения в filePath.
// Результат с изменениями даёт детальный отчёт, без изменений -
// статусный. Первый запуск считается изменением.
func Build(filePath, supplierName string, result diff.Result, checkedAt time.Time) error {
	if result.HasChanges() {
		return WriteChangeReport(filePath, result)
	}
	return WriteStatusReport(filePath, supplierName, checkedAt)
}

// WriteChangeReport пишет детальный отчёт: сводка и три категории строк.
func WriteChangeReport(filePath string, result diff.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SummarySheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := writeSummary(f, result.Stats); err != nil {
		return err
	}
	if err := writeCategory(f, AddedSheet, result.ChangeSet.Added); err != nil {
		return err
	}
	if err := writeCategory(f, RemovedSheet, result.ChangeSet.Removed); err != nil {
		return err
	}
	if err := writeCategory(f, ChangedSheet, result.ChangeSet.Changed); err != nil {
		return err
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save report %s: %w", filePath, err)
	}
	return nil
}

// WriteStatusReport пишет одностраничный отчёт об отсутствии изменений.
func WriteStatusReport(filePath, supplierName string, checkedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(StatusSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	style, err := sheet.HeaderStyle(f)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{"Информация", "Дата проверки", "Поставщик"}
	for col, header := range headers {
		cell := sheet.ColumnName(col+1) + "1"
		f.SetCellValue(StatusSheet, cell, header)
		f.SetCellStyle(StatusSheet, cell, cell, style)
	}

	f.SetCellValue(StatusSheet, "A2", "Изменений в данных не обнаружено")
	f.SetCellValue(StatusSheet, "B2", checkedAt.Format(timestampLayout))
	f.SetCellValue(StatusSheet, "C2", supplierName)

	f.SetColWidth(StatusSheet, "A", "A", 40)
	f.SetColWidth(StatusSheet, "B", "C", 22)

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save report %s: %w", filePath, err)
	}
	return nil
}

// writeSummary пишет лист «Сводка» с пятью счётчиками.
func writeSummary(f *excelize.File, stats diff.Stats) error {
	style, err := sheet.HeaderStyle(f)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	f.SetCellValue(SummarySheet, "A1", "Метрика")
	f.SetCellValue(SummarySheet, "B1", "Количество")
	f.SetCellStyle(SummarySheet, "A1", "B1", style)

	metrics := []struct {
		name  string
		value int
	}{
		{"Всего (текущих)", stats.CurrentTotal},
		{"Всего (предыдущих)", stats.PreviousTotal},
		{"Добавленные", stats.AddedCount},
		{"Удаленные", stats.RemovedCount},
		{"Измененные", stats.ChangedCount},
	}
	for i, m := range metrics {
		line := strconv.Itoa(i + 2)
		f.SetCellValue(SummarySheet, "A"+line, m.name)
		f.SetCellValue(SummarySheet, "B"+line, m.value)
	}

	f.SetColWidth(SummarySheet, "A", "A", 25)
	f.SetColWidth(SummarySheet, "B", "B", 15)
	return nil
}

// writeCategory пишет лист категории в формате унифицированного прайса.
// Лист создается даже для пустой категории, чтобы структура отчёта
// была одинаковой для всех запусков.
func writeCategory(f *excelize.File, sheetName string, rows catalog.Table) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetName, err)
	}

	style, err := sheet.HeaderStyle(f)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for col, header := range sheet.Headers {
		cell := sheet.ColumnName(col+1) + "1"
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, style)
	}

	for rowIdx, row := range rows {
		line := strconv.Itoa(rowIdx + 2)
		f.SetCellValue(sheetName, "A"+line, row.Name)
		f.SetCellValue(sheetName, "B"+line, row.Article)
		f.SetCellValue(sheetName, "C"+line, row.Unit)
		f.SetCellValue(sheetName, "D"+line, row.Price)
	}

	f.SetColWidth(sheetName, "A", "A", 40)
	f.SetColWidth(sheetName, "B", "D", 15)
	return nil
}
