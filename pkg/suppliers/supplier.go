// Package suppliers определяет интерфейс поставщика прайс-фида и
// реестр реализаций. Каждый поставщик загружает сырые данные своего
// формата и нормализует их в унифицированную таблицу каталога.
// Реализации регистрируются в init() своих пакетов.
package suppliers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmkor/pricewatch/pkg/catalog"
)

// Supplier - один прайс-фид поставщика
type Supplier interface {
	// Name возвращает имя поставщика (ключ журнала и папки хранилища)
	Name() string

	// Fetch загружает сырые данные фида. Формат результата специфичен
	// для поставщика и понимается только его же Normalize.
	Fetch(ctx context.Context) (any, error)

	// Normalize приводит сырые данные к унифицированной таблице
	Normalize(raw any) (catalog.Table, error)
}

// Config - конфигурация одного поставщика
type Config struct {
	// Name - имя поставщика; по умолчанию совпадает с Type
	Name string `yaml:"name"`

	// Type - тип реализации: "altacera", "mir_keramiki"
	Type string `yaml:"type"`

	// BaseURL - базовый URL или полный адрес API фида
	BaseURL string `yaml:"base_url"`

	// APIKey - ключ авторизации (сырое значение заголовка authorization)
	APIKey string `yaml:"api_key"`

	// Timeout - таймаут одного HTTP-запроса
	Timeout time.Duration `yaml:"timeout"`

	// Attempts - максимум попыток загрузки
	Attempts int `yaml:"attempts"`

	// Delay - задержка между попытками
	Delay time.Duration `yaml:"delay"`
}

// Constructor - функция-конструктор поставщика
type Constructor func(cfg Config) (Supplier, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register регистрирует конструктор поставщика для типа.
// Обычно вызывается в init() пакета реализации.
func Register(supplierType string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[supplierType] = constructor
}

// RegisteredTypes возвращает отсортированный список зарегистрированных типов
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New создает поставщика по конфигурации
func New(cfg Config) (Supplier, error) {
	registryMu.RLock()
	constructor, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown supplier type: %s (available types: %v)",
			cfg.Type, RegisteredTypes())
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}
	return constructor(cfg)
}

// Finalize завершает нормализацию: дедупликация по бизнес-ключу
// с сохранением последнего вхождения. Порядок строк сохраняется.
func Finalize(table catalog.Table) catalog.Table {
	return table.Dedupe()
}
