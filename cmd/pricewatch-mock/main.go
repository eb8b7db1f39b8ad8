// pricewatch-mock — минимальный mock-сервер фидов поставщиков для E2E тестирования.
//
// Реализует:
//   GET /tovar_json.zip — номенклатура altacera (ZIP с JSON внутри)
//   GET /price_json.zip — цены altacera (ZIP с JSON внутри)
//   GET /mir_keramiki   — плоский фид Мир Керамики, требует заголовок authorization
//   GET /healthz        — liveness probe
//
// Запуск:
//
//	go run ./cmd/pricewatch-mock/ --addr :3000 --key dev-key
//
// Переменные окружения (альтернатива флагам):
//
//	MOCK_ADDR        — адрес (по умолчанию :3000)
//	MOCK_FEED_KEY    — ключ фида Мир Керамики (по умолчанию "dev-key")
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/klauspost/compress/zip"
)

// Номенклатура altacera: товар с двумя единицами измерения и товар без цены
const tovarJSON = `[
  {"tovar_id": 101, "tovar": "Плитка настенная Felicity белая", "artikul": "FLC-W-200",
   "units": [{"unit_id": 1, "unit": "шт"}, {"unit_id": 2, "unit": "м2"}]},
  {"tovar_id": 102, "tovar": "Керамогранит Stockholm серый", "artikul": "STK-G-600",
   "units": [{"unit_id": 2, "unit": "м2"}]},
  {"tovar_id": 103, "tovar": "Бордюр Felicity", "artikul": "FLC-B-60",
   "units": [{"unit_id": 1, "unit": "шт"}]}
]`

// Цены altacera: позиция 103 цены не имеет и в фиде отсутствует
const priceJSON = `[
  {"price_list": [
    {"tovar_id": 101, "unit_id": 1, "price": 38.5},
    {"tovar_id": 101, "unit_id": 2, "price": 990},
    {"tovar_id": 102, "unit_id": 2, "price": 1450.9}
  ]}
]`

// Фид Мир Керамики: цена числом, строкой с запятой и null
const mirKeramikiJSON = `[
  {"Name": "Плитка Verona беж", "Article": "VR-B-300", "Unit": "м2", "PriceDiler2": 780},
  {"Name": "Мозаика Antique", "Article": "ANT-M-25", "Unit": "шт", "PriceDiler2": "125,50"},
  {"Name": "Ступень Granite", "Article": "GRN-S-120", "Unit": "шт", "PriceDiler2": null}
]`

func main() {
	addr := flag.String("addr", envOr("MOCK_ADDR", ":3000"), "listen address")
	key := flag.String("key", envOr("MOCK_FEED_KEY", "dev-key"), "mir_keramiki feed key")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/tovar_json.zip", makeZipHandler("tovar.json", tovarJSON))
	mux.HandleFunc("/price_json.zip", makeZipHandler("price.json", priceJSON))
	mux.HandleFunc("/mir_keramiki", makeMirKeramikiHandler(*key))

	log.Printf("[pricewatch-mock] listening on %s  key=%q", *addr, *key)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// makeZipHandler отдает JSON, завернутый в ZIP-архив, как это делает
// настоящий фид altacera
func makeZipHandler(fileName, payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		f, err := zw.Create(fileName)
		if err == nil {
			_, err = f.Write([]byte(payload))
		}
		if err == nil {
			err = zw.Close()
		}
		if err != nil {
			http.Error(w, "archive build failed", http.StatusInternalServerError)
			return
		}

		log.Printf("[feed] %s → %d bytes", r.URL.Path, buf.Len())

		w.Header().Set("Content-Type", "application/zip")
		w.Write(buf.Bytes())
	}
}

func makeMirKeramikiHandler(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Настоящий API принимает ключ как есть, без схемы Bearer
		if r.Header.Get("authorization") != key {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		log.Printf("[feed] %s → %d items", r.URL.Path, 3)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, mirKeramikiJSON)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
