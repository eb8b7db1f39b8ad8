// Package mysql - адаптер журнала запусков на MySQL/MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dmkor/pricewatch/pkg/ledger"
)

const driverMysql = "mysql"

// Compile-time check: Adapter должен реализовывать интерфейс ledger.Ledger
var _ ledger.Ledger = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	ledger.Register("mysql", func() ledger.Ledger {
		return &Adapter{}
	})
}

// Adapter - журнал запусков поверх MySQL
type Adapter struct {
	db      *sql.DB
	timeout time.Duration
}

// Connect открывает пул соединений и проверяет подключение.
// DSN должен содержать parseTime=true, иначе created_at
// вернется строкой; параметр добавляется автоматически.
func (a *Adapter) Connect(ctx context.Context, cfg ledger.Config) error {
	dsn := withParseTime(cfg.DSN)

	db, err := sql.Open(driverMysql, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
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
			date          VARCHAR(10)  NOT NULL,
			supplier_name VARCHAR(128) NOT NULL,
			current_path  VARCHAR(512) NOT NULL DEFAULT '',
			previous_path VARCHAR(512) NOT NULL DEFAULT '',
			report_path   VARCHAR(512) NOT NULL DEFAULT '',
			created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
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
		ON DUPLICATE KEY UPDATE
			current_path  = VALUES(current_path),
			previous_path = VALUES(previous_path),
			report_path   = VALUES(report_path)`,
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

	var rec ledger.Record
	err := row.Scan(&rec.Date, &rec.SupplierName, &rec.CurrentPath,
		&rec.PreviousPath, &rec.ReportPath, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest record for %s: %w", supplierName, err)
	}
	return &rec, nil
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

	return collectRecords(rows)
}

// History возвращает записи поставщика от новых к старым
func (a *Adapter) History(ctx context.Context, supplierName string, limit int) ([]ledger.Record, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT date, supplier_name, current_path, previous_path, report_path, created_at
		FROM file_records
		WHERE supplier_name = ?
		ORDER BY date DESC`
	args := []any{supplierName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", supplierName, err)
	}
	defer rows.Close()

	return collectRecords(rows)
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

// withParseTime добавляет parseTime=true к DSN, если его там нет
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

func collectRecords(rows *sql.Rows) ([]ledger.Record, error) {
	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		err := rows.Scan(&rec.Date, &rec.SupplierName, &rec.CurrentPath,
			&rec.PreviousPath, &rec.ReportPath, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}
