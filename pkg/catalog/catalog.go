// Package catalog определяет каноническую табличную схему, в которую
// нормализуются прайс-листы всех поставщиков: четыре колонки
// (Название, Артикул, Единица измерения, Цена).
package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Row — одна позиция унифицированного прайс-листа.
// Бизнес-ключ для сравнения снапшотов — Article (артикул поставщика):
// название позиции поставщики периодически переформулируют, артикул стабилен.
type Row struct {
	Name    string
	Article string
	Unit    string
	Price   float64
}

// Key возвращает бизнес-ключ строки.
func (r Row) Key() string {
	return r.Article
}

// Equal сравнивает все поля строки. Цена сравнивается точно,
// без допуска: изменение десятичного представления — реальное изменение.
func (r Row) Equal(other Row) bool {
	return r.Name == other.Name &&
		r.Article == other.Article &&
		r.Unit == other.Unit &&
		r.Price == other.Price
}

// Table — снапшот прайс-листа одного поставщика в канонической схеме.
type Table []Row

// Dedupe удаляет дубликаты по бизнес-ключу, сохраняя последнее вхождение
// на его позиции (более поздняя строка фида перекрывает раннюю).
func (t Table) Dedupe() Table {
	if len(t) == 0 {
		return t
	}

	last := make(map[string]int, len(t))
	for i, row := range t {
		last[row.Key()] = i
	}

	out := make(Table, 0, len(last))
	for i, row := range t {
		if last[row.Key()] == i {
			out = append(out, row)
		}
	}
	return out
}

// Index строит отображение бизнес-ключ → строка.
// При дубликатах побеждает последняя строка (согласовано с Dedupe).
func (t Table) Index() map[string]Row {
	idx := make(map[string]Row, len(t))
	for _, row := range t {
		idx[row.Key()] = row
	}
	return idx
}

// CoercePrice приводит сырое значение цены из JSON к числу.
// Нечисловое или отсутствующее значение — это 0, а не ошибка строки:
// фиды поставщиков регулярно содержат пустые и мусорные цены.
func CoercePrice(v any) float64 {
	switch p := v.(type) {
	case nil:
		return 0
	case float64:
		return p
	case int:
		return float64(p)
	case int64:
		return float64(p)
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		return CoercePriceString(p)
	default:
		return 0
	}
}

// CoercePriceString — строковый вариант CoercePrice.
// Понимает запятую как десятичный разделитель («12,5» встречается в фидах).
func CoercePriceString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// FormatPrice возвращает каноническое десятичное представление цены.
// Используется при записи в XLSX и при вычислении отпечатков строк.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
