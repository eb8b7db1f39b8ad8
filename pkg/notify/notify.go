// Package notify отправляет события об изменениях прайсов во внешние
// очереди сообщений. Поддерживаются RabbitMQ и Apache Kafka, событие
// сериализуется в JSON.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChangeEvent - событие завершенного запуска с изменениями
type ChangeEvent struct {
	// SupplierName - поставщик, по которому найдены изменения
	SupplierName string `json:"supplier_name"`

	// Date - дата запуска (YYYY-MM-DD)
	Date string `json:"date"`

	// FirstRun - первый запуск поставщика
	FirstRun bool `json:"first_run"`

	// Added, Removed, Changed - счётчики изменений
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Changed int `json:"changed"`

	// ReportPath - путь к отчёту (пусто, если отчёт не записался)
	ReportPath string `json:"report_path,omitempty"`

	// OccurredAt - момент завершения запуска
	OccurredAt time.Time `json:"occurred_at"`
}

// Marshal сериализует событие в JSON
func (e ChangeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher - издатель событий об изменениях
type Publisher interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Publish отправляет событие
	Publish(ctx context.Context, event ChangeEvent) error

	// Close закрывает соединение
	Close() error
}

// Config содержит параметры подключения к брокеру уведомлений
type Config struct {
	// Type - тип брокера: "rabbitmq", "kafka"
	Type string `yaml:"type"`

	// RabbitMQ
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Queue    string `yaml:"queue"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"use_tls"`
	Durable  bool   `yaml:"durable"`

	// Kafka
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// New создает Publisher на основе конфигурации
func New(cfg Config) (Publisher, error) {
	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	case "kafka":
		return NewKafka(cfg)
	default:
		return nil, fmt.Errorf("unsupported notify broker type: %s (supported: rabbitmq, kafka)", cfg.Type)
	}
}
