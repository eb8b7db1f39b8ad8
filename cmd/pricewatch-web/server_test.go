package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmkor/pricewatch/pkg/ledger"
)

func newTestServer(t *testing.T) (*Server, ledger.Ledger) {
	t.Helper()
	ctx := context.Background()

	led, err := ledger.New(ctx, ledger.Config{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	t.Cleanup(func() { led.Close(context.Background()) })

	base := t.TempDir()
	cfg := &WebConfig{
		Web:     WebSection{Name: "pricewatch", Port: 8080},
		Storage: StorageSection{BasePath: base},
	}
	return &Server{cfg: cfg, led: led, base: base, startedAt: time.Now()}, led
}

func seedRecord(t *testing.T, led ledger.Ledger, supplier, date string) ledger.Record {
	t.Helper()
	rec := ledger.Record{
		Date:         date,
		SupplierName: supplier,
		CurrentPath:  filepath.Join("data", supplier, date, "unified.xlsx"),
		ReportPath:   filepath.Join("data", supplier, date, "report.xlsx"),
	}
	if err := led.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return rec
}

func TestIndex_EmptyLedger(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.handleIndex(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Журнал пуст") {
		t.Error("empty ledger must render the placeholder message")
	}
}

func TestIndex_ListsSuppliers(t *testing.T) {
	srv, led := newTestServer(t)
	seedRecord(t, led, "altacera", "2026-03-14")
	seedRecord(t, led, "mir_keramiki", "2026-03-15")

	rr := httptest.NewRecorder()
	srv.handleIndex(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rr.Body.String()
	for _, want := range []string{"altacera", "mir_keramiki", "2026-03-14", "2026-03-15"} {
		if !strings.Contains(body, want) {
			t.Errorf("index must contain %q", want)
		}
	}
}

func TestHistory_UnknownSupplier(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.handleSupplier(rr, httptest.NewRequest(http.MethodGet, "/supplier/ghost", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHistory_ShowsDownloadLinks(t *testing.T) {
	srv, led := newTestServer(t)
	seedRecord(t, led, "altacera", "2026-03-14")
	seedRecord(t, led, "altacera", "2026-03-15")

	rr := httptest.NewRecorder()
	srv.handleSupplier(rr, httptest.NewRequest(http.MethodGet, "/supplier/altacera", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "/download?path=") {
		t.Error("history must link files through /download")
	}
	// Имя файла встречается и в href, и в тексте ссылки,
	// поэтому считаем закрывающие якоря.
	if got := strings.Count(body, ">unified.xlsx</a>"); got != 2 {
		t.Errorf("expected snapshot links for both runs, got %d", got)
	}
}

func TestDownload_ServesFileInsideBase(t *testing.T) {
	srv, _ := newTestServer(t)

	path := filepath.Join(srv.base, "altacera", "2026-03-14", "unified.xlsx")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/download?path="+path, nil)
	srv.handleDownload(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "payload" {
		t.Errorf("unexpected body: %q", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "unified.xlsx") {
		t.Errorf("attachment filename missing: %q", rr.Header().Get("Content-Disposition"))
	}
}

func TestDownload_RejectsOutsideBase(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []string{
		"/etc/passwd",
		srv.base + "/../secret.txt",
		srv.base + "suffix/file.xlsx", // префикс без разделителя не считается вложенным
	}
	for _, p := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/download?path="+p, nil)
		srv.handleDownload(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Errorf("path %q: status = %d, want 403", p, rr.Code)
		}
	}
}

func TestDownload_MissingParam(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.handleDownload(rr, httptest.NewRequest(http.MethodGet, "/download", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
