// Package mirkeramiki - поставщик Мир Керамики: плоский JSON по API
// с авторизацией через сырое значение заголовка authorization.
// Цена берется из поля PriceDiler2.
package mirkeramiki

import (
	"context"
	"fmt"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/fetch"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// Compile-time check
var _ suppliers.Supplier = (*Supplier)(nil)

func init() {
	suppliers.Register("mir_keramiki", New)
}

// Supplier - реализация фида Мир Керамики
type Supplier struct {
	name   string
	apiURL string
	apiKey string
	client *fetch.Client
}

// New создает поставщика по конфигурации
func New(cfg suppliers.Config) (suppliers.Supplier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mir_keramiki: base_url is required")
	}
	client, err := fetch.NewClient(fetch.Config{
		Timeout:  cfg.Timeout,
		Attempts: cfg.Attempts,
		Delay:    cfg.Delay,
	})
	if err != nil {
		return nil, fmt.Errorf("mir_keramiki: %w", err)
	}
	return &Supplier{
		name:   cfg.Name,
		apiURL: cfg.BaseURL,
		apiKey: cfg.APIKey,
		client: client,
	}, nil
}

// Name возвращает имя поставщика
func (s *Supplier) Name() string {
	return s.name
}

// item - позиция фида как её отдает API
type item struct {
	Name        string `json:"Name"`
	Article     string `json:"Article"`
	Unit        string `json:"Unit"`
	PriceDiler2 any    `json:"PriceDiler2"`
}

// Fetch загружает фид. API отдает заголовок авторизации как есть,
// без схемы Bearer.
func (s *Supplier) Fetch(ctx context.Context) (any, error) {
	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"authorization": s.apiKey}
	}

	var items []item
	if err := s.client.GetJSON(ctx, s.apiURL, headers, &items); err != nil {
		return nil, fmt.Errorf("mir_keramiki: fetch feed: %w", err)
	}
	return items, nil
}

// Normalize приводит позиции фида к унифицированной таблице.
// PriceDiler2 может прийти числом, строкой или null.
func (s *Supplier) Normalize(rawAny any) (catalog.Table, error) {
	items, ok := rawAny.([]item)
	if !ok {
		return nil, fmt.Errorf("mir_keramiki: unexpected raw type %T", rawAny)
	}

	table := make(catalog.Table, 0, len(items))
	for _, it := range items {
		table = append(table, catalog.Row{
			Name:    it.Name,
			Article: it.Article,
			Unit:    it.Unit,
			Price:   catalog.CoercePrice(it.PriceDiler2),
		})
	}
	return suppliers.Finalize(table), nil
}
