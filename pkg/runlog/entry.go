// Package runlog - структурированный журнал хода запусков.
// Каждое событие привязано к поставщику и этапу конвейера и пишется
// во все настроенные appenders: консоль, JSONL-файл.
package runlog

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status - статус события
type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Entry - одно событие журнала запуска
type Entry struct {
	// Timestamp - время события
	Timestamp time.Time `json:"timestamp"`

	// Supplier - имя поставщика (пусто для событий планировщика)
	Supplier string `json:"supplier,omitempty"`

	// Stage - этап конвейера ("fetching", "diffing", ...)
	Stage string `json:"stage,omitempty"`

	// Status - статус события
	Status Status `json:"status"`

	// Message - человекочитаемое сообщение
	Message string `json:"message"`

	// Rows - количество строк, если применимо к этапу
	Rows int `json:"rows,omitempty"`

	// Duration - длительность этапа или запуска
	Duration time.Duration `json:"duration,omitempty"`

	// ErrorMessage - текст ошибки для событий со статусом failure
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewEntry создает событие с текущим временем
func NewEntry(status Status, message string) *Entry {
	return &Entry{
		Timestamp: time.Now(),
		Status:    status,
		Message:   message,
	}
}

// WithSupplier - установить поставщика
func (e *Entry) WithSupplier(supplier string) *Entry {
	e.Supplier = supplier
	return e
}

// WithStage - установить этап
func (e *Entry) WithStage(stage string) *Entry {
	e.Stage = stage
	return e
}

// WithRows - установить количество строк
func (e *Entry) WithRows(rows int) *Entry {
	e.Rows = rows
	return e
}

// WithDuration - установить длительность
func (e *Entry) WithDuration(d time.Duration) *Entry {
	e.Duration = d
	return e
}

// WithError - установить ошибку и статус failure
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
	}
	return e
}

// ToJSON - преобразовать в JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// String - строковое представление для консоли
func (e *Entry) String() string {
	s := fmt.Sprintf("[%s] %s", e.Timestamp.Format(time.RFC3339), e.Status)
	if e.Supplier != "" {
		s += " " + e.Supplier
	}
	if e.Stage != "" {
		s += " " + e.Stage
	}
	s += ": " + e.Message
	if e.Rows > 0 {
		s += fmt.Sprintf(" (rows=%d)", e.Rows)
	}
	if e.Duration > 0 {
		s += fmt.Sprintf(" (%v)", e.Duration)
	}
	if e.ErrorMessage != "" {
		s += " error=" + e.ErrorMessage
	}
	return s
}
