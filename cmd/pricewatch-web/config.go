package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WebConfig — конфигурация pricewatch-web
type WebConfig struct {
	Web     WebSection     `yaml:"web"`
	Storage StorageSection `yaml:"storage"`
	Ledger  LedgerSection  `yaml:"ledger"`
}

// WebSection — HTTP сервер
type WebSection struct {
	Name string `yaml:"name"` // заголовок в шапке, по умолчанию "pricewatch"
	Port int    `yaml:"port"` // по умолчанию 8080
}

// StorageSection — файловое хранилище снимков
type StorageSection struct {
	BasePath string `yaml:"base_path"` // корень хранилища, по умолчанию "data"
}

// LedgerSection — журнал запусков в БД
type LedgerSection struct {
	Type    string        `yaml:"type"` // sqlite, postgres, mysql, mssql
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

// loadConfig читает и валидирует YAML конфиг.
// DSN может ссылаться на переменные окружения через ${VAR}.
func loadConfig(path string) (*WebConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var cfg WebConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Web.Name == "" {
		cfg.Web.Name = "pricewatch"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "data"
	}

	if cfg.Ledger.Type == "" {
		cfg.Ledger.Type = "sqlite"
	}
	cfg.Ledger.DSN = os.ExpandEnv(cfg.Ledger.DSN)
	if cfg.Ledger.DSN == "" {
		return nil, fmt.Errorf("ledger: dsn is required")
	}

	return &cfg, nil
}
