// Package store раскладывает снимки и отчёты по датированным папкам.
//
// Схема хранения: {base}/{поставщик}/{YYYY-MM-DD}/unified.xlsx и
// report.xlsx рядом. Путь детерминирован, повторный запуск за тот же
// день перезаписывает файлы на месте.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/ledger"
	"github.com/dmkor/pricewatch/pkg/sheet"
)

// Имена файлов внутри датированной папки.
const (
	SnapshotFile = "unified.xlsx"
	ReportFile   = "report.xlsx"
)

// Store - файловое хранилище снимков
type Store struct {
	base string
}

// New создает хранилище с корнем base
func New(base string) *Store {
	return &Store{base: base}
}

// Base возвращает корень хранилища
func (s *Store) Base() string {
	return s.base
}

// Dir возвращает датированную папку поставщика
func (s *Store) Dir(supplierName, date string) string {
	return filepath.Join(s.base, supplierName, date)
}

// SnapshotPath возвращает путь к унифицированному снимку
func (s *Store) SnapshotPath(supplierName, date string) string {
	return filepath.Join(s.Dir(supplierName, date), SnapshotFile)
}

// ReportPath возвращает путь к отчёту
func (s *Store) ReportPath(supplierName, date string) string {
	return filepath.Join(s.Dir(supplierName, date), ReportFile)
}

// SaveSnapshot пишет унифицированный снимок и возвращает его путь.
// Папка создается при необходимости, существующий снимок перезаписывается.
func (s *Store) SaveSnapshot(supplierName, date string, table catalog.Table) (string, error) {
	dir := s.Dir(supplierName, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, SnapshotFile)
	if err := sheet.WriteTable(path, table); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return path, nil
}

// Previous - предыдущий снимок, найденный через журнал
type Previous struct {
	// Table - строки снимка
	Table catalog.Table

	// Path - путь к файлу снимка
	Path string

	// Date - дата снимка (YYYY-MM-DD)
	Date string
}

// LoadPrevious находит последний снимок поставщика через журнал и читает
// его с диска. (nil, nil) если записей нет. Нечитаемый журнал или файл
// дают (nil, err): вызывающий логирует ошибку и продолжает как при
// первом запуске, не прерывая цикл.
func (s *Store) LoadPrevious(ctx context.Context, l ledger.Ledger, supplierName string) (*Previous, error) {
	rec, err := l.Latest(ctx, supplierName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up previous snapshot for %s: %w", supplierName, err)
	}
	if rec == nil || rec.CurrentPath == "" {
		return nil, nil
	}

	table, err := sheet.ReadTable(rec.CurrentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous snapshot %s: %w", rec.CurrentPath, err)
	}

	return &Previous{
		Table: table,
		Path:  rec.CurrentPath,
		Date:  rec.Date,
	}, nil
}
