// Package mssql - адаптер журнала запусков на MS SQL Server.
// Upsert реализован через MERGE, в отличие от ON CONFLICT остальных СУБД.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/dmkor/pricewatch/pkg/ledger"
)

const driverMssql = "sqlserver"

// Compile-time check: Adapter должен реализовывать интерфейс ledger.Ledger
var _ ledger.Ledger = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	ledger.Register("mssql", func() ledger.Ledger {
		return &Adapter{}
	})
}

// Adapter - журнал запусков поверх MS SQL Server
type Adapter struct {
	db      *sql.DB
	timeout time.Duration
}

// Connect открывает пул соединений и проверяет подключение
func (a *Adapter) Connect(ctx context.Context, cfg ledger.Config) error {
	db, err := sql.Open(driverMssql, cfg.DSN)
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
		IF OBJECT_ID('file_records', 'U') IS NULL
		CREATE TABLE file_records (
			date          NVARCHAR(10)  NOT NULL,
			supplier_name NVARCHAR(128) NOT NULL,
			current_path  NVARCHAR(512) NOT NULL DEFAULT '',
			previous_path NVARCHAR(512) NOT NULL DEFAULT '',
			report_path   NVARCHAR(512) NOT NULL DEFAULT '',
			created_at    DATETIME2     NOT NULL DEFAULT SYSUTCDATETIME(),
			PRIMARY KEY (date, supplier_name)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create file_records: %w", err)
	}
	return nil
}

// Upsert вставляет запись или обновляет пути существующей через MERGE
func (a *Adapter) Upsert(ctx context.Context, rec ledger.Record) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.db.ExecContext(ctx, `
		MERGE file_records AS target
		USING (SELECT @p1 AS date, @p2 AS supplier_name) AS source
		ON target.date = source.date AND target.supplier_name = source.supplier_name
		WHEN MATCHED THEN
			UPDATE SET current_path = @p3, previous_path = @p4, report_path = @p5
		WHEN NOT MATCHED THEN
			INSERT (date, supplier_name, current_path, previous_path, report_path)
			VALUES (@p1, @p2, @p3, @p4, @p5);`,
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
		SELECT TOP 1 date, supplier_name, current_path, previous_path, report_path, created_at
		FROM file_records
		WHERE supplier_name = @p1
		ORDER BY date DESC`, supplierName)

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
		WHERE supplier_name = @p1
		ORDER BY date DESC`
	args := []any{supplierName}
	if limit > 0 {
		query += " OFFSET 0 ROWS FETCH NEXT @p2 ROWS ONLY"
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
