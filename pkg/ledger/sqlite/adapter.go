// Package sqlite - адаптер журнала запусков на SQLite (modernc.org/sqlite,
// чистый Go, без cgo). Основной вариант для одиночной установки.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmkor/pricewatch/pkg/ledger"
)

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс ledger.Ledger
var _ ledger.Ledger = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	ledger.Register("sqlite", func() ledger.Ledger {
		return &Adapter{}
	})
}

// Adapter - журнал запусков поверх SQLite
type Adapter struct {
	db      *sql.DB
	timeout time.Duration
}

// Connect открывает базу и проверяет соединение
func (a *Adapter) Connect(ctx context.Context, cfg ledger.Config) error {
	db, err := sql.Open(driverSqlite, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite не переносит конкурентную запись из нескольких соединений
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	a.db = db
	a.timeout = cfg.Timeout
	return nil
}

// Init создает таблицу file_records, если её нет
func (a *Adapter) Init(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS file_records (
			date          TEXT NOT NULL,
			supplier_name TEXT NOT NULL,
			current_path  TEXT NOT NULL DEFAULT '',
			previous_path TEXT NOT NULL DEFAULT '',
			report_path   TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (date, supplier_name)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create file_records: %w", err)
	}
	return nil
}

// Upsert вставляет запись или обновляет пути при конфликте ключа
func (a *Adapter) Upsert(ctx context.Context, rec ledger.Record) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO file_records (date, supplier_name, current_path, previous_path, report_path)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (date, supplier_name) DO UPDATE SET
			current_path  = excluded.current_path,
			previous_path = excluded.previous_path,
			report_path   = excluded.report_path`,
		rec.Date, rec.SupplierName, rec.CurrentPath, rec.PreviousPath, rec.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to upsert record for %s/%s: %w", rec.SupplierName, rec.Date, err)
	}
	return nil
}

// Latest возвращает последнюю по дате запись поставщика, (nil, nil) если записей нет
func (a *Adapter) Latest(ctx context.Context, supplierName string) (*ledger.Record, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	row := a.db.QueryRowContext(ctx, `
		SELECT date, supplier_name, current_path, previous_path, report_path, created_at
		FROM file_records
		WHERE supplier_name = ?
		ORDER BY date DESC
		LIMIT 1`, supplierName)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest record for %s: %w", supplierName, err)
	}
	return rec, nil
}

// LatestPerSupplier возвращает последнюю запись каждого поставщика
func (a *Adapter) LatestPerSupplier(ctx context.Context) ([]ledger.Record, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	rows, err := a.db.QueryContext(ctx, `
		SELECT f.date, f.supplier_name, f.current_path, f.previous_path, f.report_path, f.created_at
		FROM file_records f
		JOIN (
			SELECT supplier_name, MAX(date) AS max_date
			FROM file_records
			GROUP BY supplier_name
		) m ON f.supplier_name = m.supplier_name AND f.date = m.max_date
		ORDER BY f.supplier_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// History возвращает записи поставщика от новых к старым
func (a *Adapter) History(ctx context.Context, supplierName string, limit int) ([]ledger.Record, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = -1 // SQLite: без ограничения
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT date, supplier_name, current_path, previous_path, report_path, created_at
		FROM file_records
		WHERE supplier_name = ?
		ORDER BY date DESC
		LIMIT ?`, supplierName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", supplierName, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close закрывает соединение с БД
func (a *Adapter) Close(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*ledger.Record, error) {
	var rec ledger.Record
	var createdAt any
	err := s.Scan(&rec.Date, &rec.SupplierName, &rec.CurrentPath,
		&rec.PreviousPath, &rec.ReportPath, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTimestamp(createdAt)
	return &rec, nil
}

// parseTimestamp разбирает created_at: драйвер может отдать
// time.Time или текстовое представление CURRENT_TIMESTAMP.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	case []byte:
		return parseTimestamp(string(t))
	}
	return time.Time{}
}

func scanRecords(rows *sql.Rows) ([]ledger.Record, error) {
	var records []ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}
