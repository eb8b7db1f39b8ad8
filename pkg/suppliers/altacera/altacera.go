// Package altacera - поставщик Altacera: два ZIP-архива с JSON,
// номенклатура и цены, соединяемые по паре (tovar_id, unit_id).
package altacera

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/fetch"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// Имена файлов фида на сервере поставщика.
const (
	nomArchive   = "tovar_json.zip"
	priceArchive = "price_json.zip"
)

// defaultUnit - единица измерения, если фид её не прислал
const defaultUnit = "шт"

// Compile-time check
var _ suppliers.Supplier = (*Supplier)(nil)

func init() {
	suppliers.Register("altacera", New)
}

// Supplier - реализация фида Altacera
type Supplier struct {
	name    string
	baseURL string
	client  *fetch.Client
}

// New создает поставщика по конфигурации
func New(cfg suppliers.Config) (suppliers.Supplier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("altacera: base_url is required")
	}
	client, err := fetch.NewClient(fetch.Config{
		Timeout:  cfg.Timeout,
		Attempts: cfg.Attempts,
		Delay:    cfg.Delay,
	})
	if err != nil {
		return nil, fmt.Errorf("altacera: %w", err)
	}
	return &Supplier{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}, nil
}

// Name возвращает имя поставщика
func (s *Supplier) Name() string {
	return s.name
}

// Raw - сырые данные фида: номенклатура и блоки цен
type Raw struct {
	Nom   []nomItem
	Price []priceBlock
}

// nomItem - позиция номенклатуры. Поля имеют альтернативные имена,
// фид не стабилен в их выборе.
type nomItem struct {
	TovarID any    `json:"tovar_id"`
	ID      any    `json:"id"`
	Tovar   string `json:"tovar"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Artikul string `json:"artikul"`
	Article string `json:"article"`
	SKU     string `json:"sku"`
	Units   []unitItem `json:"units"`
}

type unitItem struct {
	UnitID any    `json:"unit_id"`
	Unit   string `json:"unit"`
}

type priceBlock struct {
	PriceList []priceItem `json:"price_list"`
}

type priceItem struct {
	TovarID any `json:"tovar_id"`
	UnitID  any `json:"unit_id"`
	Price   any `json:"price"`
	Value   any `json:"value"`
}

// Fetch загружает оба архива фида
func (s *Supplier) Fetch(ctx context.Context) (any, error) {
	var raw Raw

	if err := s.client.GetZippedJSON(ctx, s.baseURL+"/"+nomArchive, nil, &raw.Nom); err != nil {
		return nil, fmt.Errorf("altacera: fetch %s: %w", nomArchive, err)
	}
	if err := s.client.GetZippedJSON(ctx, s.baseURL+"/"+priceArchive, nil, &raw.Price); err != nil {
		return nil, fmt.Errorf("altacera: fetch %s: %w", priceArchive, err)
	}
	return raw, nil
}

// Normalize соединяет номенклатуру с ценами по (tovar_id, unit_id)
// и приводит результат к унифицированной таблице. Позиции цен без
// соответствия в номенклатуре и позиции без цены пропускаются.
func (s *Supplier) Normalize(rawAny any) (catalog.Table, error) {
	raw, ok := rawAny.(Raw)
	if !ok {
		return nil, fmt.Errorf("altacera: unexpected raw type %T", rawAny)
	}

	type info struct {
		name    string
		article string
		unit    string
	}
	mapping := make(map[string]info)
	for _, item := range raw.Nom {
		tovarKey := idKey(firstID(item.TovarID, item.ID))
		name := firstString(item.Tovar, item.Name, item.Title)
		article := firstString(item.Artikul, item.Article, item.SKU)
		for _, unit := range item.Units {
			unitKey := idKey(unit.UnitID)
			if tovarKey == "" || unitKey == "" {
				continue
			}
			unitName := unit.Unit
			if unitName == "" {
				unitName = defaultUnit
			}
			mapping[tovarKey+"|"+unitKey] = info{name: name, article: article, unit: unitName}
		}
	}

	var table catalog.Table
	for _, block := range raw.Price {
		for _, p := range block.PriceList {
			key := idKey(p.TovarID) + "|" + idKey(p.UnitID)
			inf, ok := mapping[key]
			priceVal := firstID(p.Price, p.Value)
			if !ok || priceVal == nil {
				continue
			}
			table = append(table, catalog.Row{
				Name:    inf.name,
				Article: inf.article,
				Unit:    inf.unit,
				Price:   catalog.CoercePrice(priceVal),
			})
		}
	}

	return suppliers.Finalize(table), nil
}

// idKey приводит идентификатор фида к строковому ключу.
// Числа без дробной части печатаются как целые, чтобы 5 и 5.0
// из разных файлов давали один ключ. Пустые и нулевые значения
// дают пустой ключ и отбрасываются вызывающим.
func idKey(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		if id == 0 {
			return ""
		}
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		if id == 0 {
			return ""
		}
		return strconv.Itoa(id)
	case int64:
		if id == 0 {
			return ""
		}
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprintf("%v", id)
	}
}

// firstID возвращает первое непустое значение
func firstID(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// firstString возвращает первую непустую строку
func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
