// Package fetch загружает сырые данные фидов поставщиков по HTTP.
//
// Ошибки делятся на два класса: временные транспортные (сеть, таймаут,
// не-2xx ответ) — повторяются ограниченное число раз с фиксированной
// задержкой; и порча содержимого (битый архив, невалидный JSON) —
// фатальны сразу, без повторов: повторная загрузка того же битого
// файла ничего не изменит.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/dmkor/pricewatch/pkg/retry"
)

// Sentinel errors для классификации сбоев загрузки.
var (
	// ErrTransient — сетевой сбой или неуспешный HTTP-статус; повторяемо.
	ErrTransient = errors.New("transient fetch error")

	// ErrPayloadCorrupt — содержимое получено, но непригодно
	// (битый ZIP, невалидный JSON); не повторяется.
	ErrPayloadCorrupt = errors.New("payload corrupt")
)

// Config — параметры HTTP-клиента фида.
type Config struct {
	// Timeout — таймаут одного HTTP-запроса.
	Timeout time.Duration

	// Attempts — максимум попыток, включая первую.
	Attempts int

	// Delay — фиксированная задержка между попытками.
	Delay time.Duration

	// OnRetry — опциональный callback перед повтором.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Client — HTTP-клиент для загрузки фидов с повторами.
type Client struct {
	httpClient *http.Client
	retryer    *retry.Retryer
}

// NewClient создаёт клиент. Нулевые поля конфигурации получают значения
// по умолчанию: 10s таймаут, 3 попытки, 5s задержка.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 5 * time.Second
	}

	retryCfg := retry.FixedDelay(cfg.Attempts, cfg.Delay)
	retryCfg.RetryIf = func(err error) bool {
		return errors.Is(err, ErrTransient)
	}
	retryCfg.OnRetry = cfg.OnRetry

	retryer, err := retry.NewRetryer(retryCfg)
	if err != nil {
		return nil, fmt.Errorf("fetch client: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryer:    retryer,
	}, nil
}

// GetBytes загружает тело ответа по URL с повторами.
// headers добавляются к каждому запросу (например, authorization).
func (c *Client) GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var body []byte

	err := c.retryer.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrTransient, err.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%w: HTTP %d from %s", ErrTransient, resp.StatusCode, url)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read body: %s", ErrTransient, err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON загружает URL и декодирует тело как JSON в v.
// Невалидный JSON — ErrPayloadCorrupt, без повторов.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.GetBytes(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode JSON from %s: %s", ErrPayloadCorrupt, url, err.Error())
	}
	return nil
}

// GetZippedJSON загружает ZIP-архив, извлекает первый файл и декодирует
// его как JSON в v. Битый архив или JSON — ErrPayloadCorrupt.
func (c *Client) GetZippedJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.GetBytes(ctx, url, headers)
	if err != nil {
		return err
	}

	raw, err := extractFirstEntry(body)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrPayloadCorrupt, url, err.Error())
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode JSON from archive %s: %s", ErrPayloadCorrupt, url, err.Error())
	}
	return nil
}

// extractFirstEntry читает первый файл ZIP-архива.
func extractFirstEntry(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("archive is empty")
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %q: %w", zr.File[0].Name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read archive entry %q: %w", zr.File[0].Name, err)
	}
	return data, nil
}
