// pricewatch-web — просмотр журнала запусков pricewatch в браузере.
//
// Показывает последний запуск каждого поставщика, историю запусков
// и отдает снимки и отчёты на скачивание. Читает ту же БД журнала,
// что и служба pricewatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dmkor/pricewatch/pkg/ledger"

	// DB adapter registrations
	_ "github.com/dmkor/pricewatch/pkg/ledger/mssql"
	_ "github.com/dmkor/pricewatch/pkg/ledger/mysql"
	_ "github.com/dmkor/pricewatch/pkg/ledger/postgres"
	_ "github.com/dmkor/pricewatch/pkg/ledger/sqlite"
)

func main() {
	configFile := flag.String("config", "", "path to config YAML (required)")
	port := flag.Int("port", 0, "HTTP port, overrides config value")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: pricewatch-web --config <name>.yaml [--port 8080]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fmt.Fprintln(os.Stderr, "  --config  path to YAML config file (required)")
		fmt.Fprintln(os.Stderr, "  --port    HTTP port, overrides config (default: 8080)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Web.Port = *port
	}

	led, err := ledger.New(context.Background(), ledger.Config{
		Type:    cfg.Ledger.Type,
		DSN:     cfg.Ledger.DSN,
		Timeout: cfg.Ledger.Timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		os.Exit(1)
	}
	defer led.Close(context.Background())

	if err := runServer(cfg, led); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
