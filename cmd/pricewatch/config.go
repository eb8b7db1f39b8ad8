package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmkor/pricewatch/pkg/ledger"
	"github.com/dmkor/pricewatch/pkg/notify"
	"github.com/dmkor/pricewatch/pkg/resultlog"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

// Config — конфигурация pricewatch
type Config struct {
	Storage   StorageSection     `yaml:"storage"`
	Ledger    LedgerSection      `yaml:"ledger"`
	Suppliers []suppliers.Config `yaml:"suppliers"`
	Schedule  ScheduleSection    `yaml:"schedule"`
	Log       LogSection         `yaml:"log"`
	ResultLog *resultlog.Config  `yaml:"resultlog"` // опционально
	Notify    *notify.Config     `yaml:"notify"`    // опционально
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

// ScheduleSection — расписание запусков
type ScheduleSection struct {
	Interval time.Duration `yaml:"interval"` // по умолчанию 24h
}

// LogSection — журнал хода запусков
type LogSection struct {
	File string `yaml:"file"` // JSONL-файл, пусто = только консоль
}

// loadConfig читает и валидирует YAML конфиг.
// Секреты и адреса в конфиге могут ссылаться на переменные окружения
// через ${VAR}, они разворачиваются при загрузке.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(cfg.Suppliers) == 0 {
		return nil, fmt.Errorf("no suppliers configured")
	}

	for i := range cfg.Suppliers {
		s := &cfg.Suppliers[i]
		if s.Type == "" {
			return nil, fmt.Errorf("supplier[%d]: type is required", i)
		}
		if s.Name == "" {
			s.Name = s.Type
		}
		s.BaseURL = os.ExpandEnv(s.BaseURL)
		s.APIKey = os.ExpandEnv(s.APIKey)
		if s.BaseURL == "" {
			return nil, fmt.Errorf("supplier %q: base_url is required", s.Name)
		}
	}

	seen := make(map[string]bool)
	for _, s := range cfg.Suppliers {
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate supplier name %q", s.Name)
		}
		seen[s.Name] = true
	}

	if cfg.Ledger.Type == "" {
		cfg.Ledger.Type = "sqlite"
	}
	cfg.Ledger.DSN = os.ExpandEnv(cfg.Ledger.DSN)
	if cfg.Ledger.DSN == "" {
		return nil, fmt.Errorf("ledger: dsn is required")
	}

	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "data"
	}
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = 24 * time.Hour
	}

	if cfg.ResultLog != nil {
		cfg.ResultLog.Address = os.ExpandEnv(cfg.ResultLog.Address)
		cfg.ResultLog.Password = os.ExpandEnv(cfg.ResultLog.Password)
		if cfg.ResultLog.Address == "" {
			return nil, fmt.Errorf("resultlog: address is required")
		}
	}

	if cfg.Notify != nil {
		cfg.Notify.Password = os.ExpandEnv(cfg.Notify.Password)
		if cfg.Notify.Type == "" {
			return nil, fmt.Errorf("notify: type is required")
		}
	}

	return &cfg, nil
}

// ledgerConfig собирает конфигурацию журнала
func (c *Config) ledgerConfig() ledger.Config {
	return ledger.Config{
		Type:    c.Ledger.Type,
		DSN:     c.Ledger.DSN,
		Timeout: c.Ledger.Timeout,
	}
}
