package runlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Appender - приемник событий журнала
type Appender interface {
	// Append - записать событие
	Append(ctx context.Context, entry *Entry) error

	// Close - закрыть appender
	Close() error
}

// MultiAppender - запись во все приемники по очереди.
// Отказ одного не мешает остальным, возвращается первая ошибка.
type MultiAppender struct {
	appenders []Appender
}

// NewMultiAppender - создать multi appender
func NewMultiAppender(appenders ...Appender) *MultiAppender {
	return &MultiAppender{appenders: appenders}
}

// Append - записать во все appenders
func (ma *MultiAppender) Append(ctx context.Context, entry *Entry) error {
	var firstErr error
	for _, appender := range ma.appenders {
		if err := appender.Append(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close - закрыть все appenders
func (ma *MultiAppender) Close() error {
	var firstErr error
	for _, appender := range ma.appenders {
		if err := appender.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Add - добавить appender
func (ma *MultiAppender) Add(appender Appender) {
	ma.appenders = append(ma.appenders, appender)
}

// ConsoleAppender - вывод в stdout, ошибки в stderr
type ConsoleAppender struct{}

// NewConsoleAppender - создать console appender
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{}
}

// Append - вывести событие
func (ca *ConsoleAppender) Append(ctx context.Context, entry *Entry) error {
	if entry.Status == StatusFailure {
		fmt.Fprintln(os.Stderr, entry.String())
	} else {
		fmt.Println(entry.String())
	}
	return nil
}

// Close - noop
func (ca *ConsoleAppender) Close() error {
	return nil
}

// FileAppender - JSONL-файл, одна строка на событие
type FileAppender struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileAppender - открыть файл журнала на дозапись
func NewFileAppender(filePath string) (*FileAppender, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileAppender{file: file, path: filePath}, nil
}

// Append - записать событие строкой JSON
func (fa *FileAppender) Append(ctx context.Context, entry *Entry) error {
	data, err := entry.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	data = append(data, '\n')

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if _, err := fa.file.Write(data); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// Close - закрыть файл
func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.file != nil {
		return fa.file.Close()
	}
	return nil
}

// Path - путь к файлу журнала
func (fa *FileAppender) Path() string {
	return fa.path
}

// NullAppender - пустой appender для тестов
type NullAppender struct{}

// NewNullAppender - создать null appender
func NewNullAppender() *NullAppender {
	return &NullAppender{}
}

// Append - ничего не делает
func (na *NullAppender) Append(ctx context.Context, entry *Entry) error {
	return nil
}

// Close - ничего не делает
func (na *NullAppender) Close() error {
	return nil
}
