// Package postgres - адаптер журнала запусков на PostgreSQL через pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmkor/pricewatch/pkg/ledger"
)

// Compile-time check: Adapter должен реализовывать интерфейс ledger.Ledger
var _ ledger.Ledger = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	ledger.Register("postgres", func() ledger.Ledger {
		return &Adapter{}
	})
}

// Adapter - журнал запусков поверх PostgreSQL
type Adapter struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Connect создает connection pool и проверяет подключение
func (a *Adapter) Connect(ctx context.Context, cfg ledger.Config) error {
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	} else {
		config.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.pool = pool
	a.timeout = cfg.Timeout
	return nil
}

// Init создает таблицу file_records, если её нет
func (a *Adapter) Init(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS file_records (
			date          TEXT NOT NULL,
			supplier_name TEXT NOT NULL,
			current_path  TEXT NOT NULL DEFAULT '',
			previous_path TEXT NOT NULL DEFAULT '',
			report_path   TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
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

	_, err := a.pool.Exec(ctx, `
		INSERT INTO file_records (date, supplier_name, current_path, previous_path, report_path)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date, supplier_name) DO UPDATE SET
			current_path  = EXCLUDED.current_path,
			previous_path = EXCLUDED.previous_path,
			report_path   = EXCLUDED.report_path`,
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

	row := a.pool.QueryRow(ctx, `
		SELECT date, supplier_name, current_path, previous_path, report_path, created_at
		FROM file_records
		WHERE supplier_name = $1
		ORDER BY date DESC
		LIMIT 1`, supplierName)

	var rec ledger.Record
	err := row.Scan(&rec.Date, &rec.SupplierName, &rec.CurrentPath,
		&rec.PreviousPath, &rec.ReportPath, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := a.pool.Query(ctx, `
		SELECT DISTINCT ON (supplier_name)
			date, supplier_name, current_path, previous_path, report_path, created_at
		FROM file_records
		ORDER BY supplier_name, date DESC`)
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
		WHERE supplier_name = $1
		ORDER BY date DESC`
	args := []any{supplierName}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", supplierName, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close закрывает connection pool
func (a *Adapter) Close(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

func collectRecords(rows pgx.Rows) ([]ledger.Record, error) {
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
