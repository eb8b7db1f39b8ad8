// pricewatch — служба слежения за прайсами поставщиков.
//
// По расписанию загружает фиды, нормализует их в унифицированные
// XLSX-снимки, сравнивает с предыдущим снимком и складывает отчёты
// об изменениях в датированные папки. Журнал запусков ведется в БД.
//
// Запуск:
//
//	pricewatch --config pricewatch.yaml          # служба по расписанию
//	pricewatch --config pricewatch.yaml --once   # один цикл и выход
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dmkor/pricewatch/pkg/ledger"
	"github.com/dmkor/pricewatch/pkg/notify"
	"github.com/dmkor/pricewatch/pkg/resultlog"
	"github.com/dmkor/pricewatch/pkg/run"
	"github.com/dmkor/pricewatch/pkg/runlog"
	"github.com/dmkor/pricewatch/pkg/store"
	"github.com/dmkor/pricewatch/pkg/suppliers"

	// DB adapter registrations — подключить достаточно, остальное уже написано
	_ "github.com/dmkor/pricewatch/pkg/ledger/mssql"
	_ "github.com/dmkor/pricewatch/pkg/ledger/mysql"
	_ "github.com/dmkor/pricewatch/pkg/ledger/postgres"
	_ "github.com/dmkor/pricewatch/pkg/ledger/sqlite"

	// Supplier registrations
	_ "github.com/dmkor/pricewatch/pkg/suppliers/altacera"
	_ "github.com/dmkor/pricewatch/pkg/suppliers/mirkeramiki"
)

func main() {
	configFile := flag.String("config", "", "path to config YAML (required)")
	once := flag.Bool("once", false, "run one cycle and exit")
	envFile := flag.String("env", ".env.suppliers", "dotenv file with supplier secrets")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: pricewatch --config <name>.yaml [--once]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fmt.Fprintln(os.Stderr, "  --config  path to YAML config file (required)")
		fmt.Fprintln(os.Stderr, "  --once    run one cycle and exit")
		fmt.Fprintln(os.Stderr, "  --env     dotenv file with secrets (default: .env.suppliers)")
		os.Exit(1)
	}

	// Секреты поставщиков из dotenv; отсутствие файла не ошибка,
	// переменные могут прийти из окружения
	godotenv.Load(*envFile)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runService(cfg, *once); err != nil {
		fmt.Fprintf(os.Stderr, "pricewatch error: %v\n", err)
		os.Exit(1)
	}
}

func runService(cfg *Config, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Журнал хода запусков
	appenders := []runlog.Appender{runlog.NewConsoleAppender()}
	if cfg.Log.File != "" {
		fa, err := runlog.NewFileAppender(cfg.Log.File)
		if err != nil {
			return fmt.Errorf("failed to open run log: %w", err)
		}
		appenders = append(appenders, fa)
	}
	log := runlog.NewLogger(appenders...)
	defer log.Close()

	// Журнал запусков в БД
	led, err := ledger.New(ctx, cfg.ledgerConfig())
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer led.Close(context.Background())

	// Поставщики в порядке конфигурации
	sups := make([]suppliers.Supplier, 0, len(cfg.Suppliers))
	for _, sc := range cfg.Suppliers {
		sup, err := suppliers.New(sc)
		if err != nil {
			return fmt.Errorf("failed to create supplier %q: %w", sc.Name, err)
		}
		sups = append(sups, sup)
	}

	pipeline := run.NewPipeline(store.New(cfg.Storage.BasePath), led, log)
	cycle := run.NewCycle(pipeline, sups, log)

	if cfg.ResultLog != nil {
		rp := resultlog.NewRedisPublisher(*cfg.ResultLog)
		defer rp.Close()
		cycle.WithResultPublisher(rp)
	}

	if cfg.Notify != nil {
		notifier, err := notify.New(*cfg.Notify)
		if err != nil {
			return fmt.Errorf("failed to create notifier: %w", err)
		}
		if err := notifier.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect notifier: %w", err)
		}
		defer notifier.Close()
		cycle.WithNotifier(notifier)
	}

	if once {
		for _, res := range cycle.Run(ctx) {
			if res.Err != nil {
				return fmt.Errorf("supplier %s: %w", res.SupplierName, res.Err)
			}
		}
		return nil
	}

	scheduler := run.NewScheduler(cycle, cfg.Schedule.Interval, log)
	if err := scheduler.Start(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
