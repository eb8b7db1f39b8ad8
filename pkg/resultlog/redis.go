// Package resultlog публикует итог запуска поставщика в Redis,
// чтобы внешние системы могли опрашивать состояние или подписываться
// на события завершения.
package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config - подключение к Redis для публикации результатов
type Config struct {
	// Address - host:port Redis
	Address string `yaml:"address"`

	// Password - пароль (пусто, если не требуется)
	Password string `yaml:"password"`

	// DB - номер базы Redis
	DB int `yaml:"db"`

	// TTL - время жизни state-ключа в секундах
	TTL int `yaml:"ttl"`
}

// RunResult представляет итог запуска поставщика, публикуемый в Redis
// после завершения выполнения (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  pricewatch:run:<supplier>:state  <JSON>  EX <ttl>  — для GET-запросов
//	PUB  pricewatch:run:<supplier>                          — для подписчиков
type RunResult struct {
	SupplierName string    `json:"supplier_name"`
	Date         string    `json:"date"`
	Status       string    `json:"status"` // "success" | "failed"
	HasChanges   bool      `json:"has_changes"`
	FirstRun     bool      `json:"first_run"`
	Added        int       `json:"added"`
	Removed      int       `json:"removed"`
	Changed      int       `json:"changed"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
	ReportPath   string    `json:"report_path,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
	Error        *string   `json:"error,omitempty"`
}

// RedisPublisher публикует итоги запусков в Redis
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPublisher создает publisher на основе конфигурации
func NewRedisPublisher(cfg Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := time.Duration(cfg.TTL) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPublisher{client: client, ttl: ttl}
}

// Publish публикует итог запуска:
//   - SET pricewatch:run:<supplier>:state <JSON> EX <ttl>  → для опроса (polling)
//   - PUBLISH pricewatch:run:<supplier> <JSON>             → для подписки (pub/sub)
//
// Вызывается независимо от исхода запуска, execErr == nil означает успех.
func (p *RedisPublisher) Publish(ctx context.Context, result RunResult, execErr error) error {
	if execErr != nil {
		result.Status = "failed"
		errStr := execErr.Error()
		result.Error = &errStr
	} else {
		result.Status = "success"
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	stateKey := fmt.Sprintf("pricewatch:run:%s:state", result.SupplierName)
	eventChannel := fmt.Sprintf("pricewatch:run:%s", result.SupplierName)

	if err := p.client.Set(ctx, stateKey, payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	if err := p.client.Publish(ctx, eventChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
