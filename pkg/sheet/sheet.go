// Package sheet читает и пишет унифицированные прайс-таблицы в XLSX.
//
// Формат файла: один лист «Прайс» с колонками «Название», «Артикул»,
// «Единица измерения», «Цена». Заголовок стилизован, цена хранится
// числом. Снимки на диске и отчёты собираются из этого же формата.
package sheet

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/dmkor/pricewatch/pkg/catalog"
)

// SheetName - имя листа унифицированного прайса
const SheetName = "Прайс"

// Headers - колонки унифицированной схемы, в фиксированном порядке
var Headers = []string{"Название", "Артикул", "Единица измерения", "Цена"}

// WriteTable сохраняет таблицу в XLSX по указанному пути.
// Порядок строк сохраняется как есть.
func WriteTable(filePath string, table catalog.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	if err := writeHeader(f, SheetName, Headers); err != nil {
		return err
	}

	for rowIdx, row := range table {
		line := strconv.Itoa(rowIdx + 2)
		f.SetCellValue(SheetName, "A"+line, row.Name)
		f.SetCellValue(SheetName, "B"+line, row.Article)
		f.SetCellValue(SheetName, "C"+line, row.Unit)
		f.SetCellValue(SheetName, "D"+line, row.Price)
	}

	autoFitColumns(f, SheetName, len(Headers))

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save %s: %w", filePath, err)
	}
	return nil
}

// ReadTable читает унифицированный прайс из XLSX.
// Недостающие ячейки в хвосте строки считаются пустыми,
// нечисловая цена коэрцируется в 0.
func ReadTable(filePath string) (catalog.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheetName := SheetName
	if idx, _ := f.GetSheetIndex(sheetName); idx < 0 {
		sheetName = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return catalog.Table{}, nil
	}

	table := make(catalog.Table, 0, len(rows)-1)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		cells := rows[rowIdx]
		table = append(table, catalog.Row{
			Name:    cellAt(cells, 0),
			Article: cellAt(cells, 1),
			Unit:    cellAt(cells, 2),
			Price:   catalog.CoercePriceString(cellAt(cells, 3)),
		})
	}
	return table, nil
}

// HeaderStyle создает стиль заголовка: жирный белый текст на синем фоне.
func HeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

// writeHeader пишет стилизованную строку заголовков на лист.
func writeHeader(f *excelize.File, sheetName string, headers []string) error {
	style, err := HeaderStyle(f)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for col, header := range headers {
		cell := ColumnName(col+1) + "1"
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, style)
	}
	return nil
}

// autoFitColumns выставляет ширину колонок листа.
func autoFitColumns(f *excelize.File, sheetName string, count int) {
	for col := 1; col <= count; col++ {
		name := ColumnName(col)
		width := 15.0
		if col == 1 {
			// Название обычно длиннее остальных полей
			width = 40.0
		}
		f.SetColWidth(sheetName, name, name, width)
	}
}

// cellAt возвращает ячейку строки или пустую строку за границей.
func cellAt(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// ColumnName - convert column index to Excel column name (1 → A, 27 → AA)
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
