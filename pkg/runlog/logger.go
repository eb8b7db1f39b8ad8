package runlog

import (
	"context"
	"time"
)

// Logger - журнал запусков поверх набора appenders.
// Ошибки записи не прерывают запуск, последняя доступна через LastError.
type Logger struct {
	appender Appender
	lastErr  error
}

// NewLogger создает логгер. Без appenders события уходят в NullAppender.
func NewLogger(appenders ...Appender) *Logger {
	if len(appenders) == 0 {
		return &Logger{appender: NewNullAppender()}
	}
	if len(appenders) == 1 {
		return &Logger{appender: appenders[0]}
	}
	return &Logger{appender: NewMultiAppender(appenders...)}
}

// Log записывает событие во все appenders
func (l *Logger) Log(ctx context.Context, entry *Entry) {
	if err := l.appender.Append(ctx, entry); err != nil {
		l.lastErr = err
	}
}

// Info - информационное событие этапа
func (l *Logger) Info(ctx context.Context, supplier, stage, message string) {
	l.Log(ctx, NewEntry(StatusInfo, message).WithSupplier(supplier).WithStage(stage))
}

// Success - успешное завершение этапа
func (l *Logger) Success(ctx context.Context, supplier, stage, message string, rows int) {
	l.Log(ctx, NewEntry(StatusSuccess, message).
		WithSupplier(supplier).WithStage(stage).WithRows(rows))
}

// Failure - сбой этапа
func (l *Logger) Failure(ctx context.Context, supplier, stage, message string, err error) {
	l.Log(ctx, NewEntry(StatusFailure, message).
		WithSupplier(supplier).WithStage(stage).WithError(err))
}

// Skipped - пропуск запуска (перекрытие по времени)
func (l *Logger) Skipped(ctx context.Context, message string) {
	l.Log(ctx, NewEntry(StatusSkipped, message))
}

// Finished - итог запуска поставщика
func (l *Logger) Finished(ctx context.Context, supplier string, duration time.Duration, message string) {
	l.Log(ctx, NewEntry(StatusSuccess, message).
		WithSupplier(supplier).WithDuration(duration))
}

// LastError возвращает последнюю ошибку записи журнала
func (l *Logger) LastError() error {
	return l.lastErr
}

// Close закрывает appenders
func (l *Logger) Close() error {
	return l.appender.Close()
}
