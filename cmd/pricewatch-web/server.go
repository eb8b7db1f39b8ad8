package main

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmkor/pricewatch/pkg/ledger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Server
// ─────────────────────────────────────────────────────────────────────────────

// Server — HTTP сервер просмотра журнала запусков
type Server struct {
	cfg       *WebConfig
	led       ledger.Ledger
	base      string // абсолютный корень хранилища, граница для скачивания
	startedAt time.Time
}

const historyLimit = 30

func runServer(cfg *WebConfig, led ledger.Ledger) error {
	base, err := filepath.Abs(cfg.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("resolving storage base: %w", err)
	}

	srv := &Server{
		cfg:       cfg,
		led:       led,
		base:      base,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleIndex)
	mux.HandleFunc("/supplier/", srv.handleSupplier)
	mux.HandleFunc("/download", srv.handleDownload)
	mux.HandleFunc("/healthz", srv.handleHealth)

	addr := fmt.Sprintf(":%d", cfg.Web.Port)
	fmt.Printf("pricewatch-web ready → http://localhost%s\n", addr)

	return http.ListenAndServe(addr, mux)
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	records, err := s.led.LatestPerSupplier(r.Context())
	if err != nil {
		http.Error(w, "ledger error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.renderIndex(w, records)
}

func (s *Server) handleSupplier(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/supplier/")
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	records, err := s.led.History(r.Context(), name, historyLimit)
	if err != nil {
		http.Error(w, "ledger error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		http.Error(w, "supplier not found: "+name, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.renderHistory(w, name, records)
}

// handleDownload отдает снимок или отчёт по пути из журнала.
// Пути вне корня хранилища отклоняются.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		http.Error(w, "path parameter is required", http.StatusBadRequest)
		return
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	if abs != s.base && !strings.HasPrefix(abs, s.base+string(filepath.Separator)) {
		http.Error(w, "path is outside the storage root", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(abs)))
	http.ServeFile(w, r, abs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.led.Ping(r.Context()); err != nil {
		http.Error(w, "ledger unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ok")
}

// ─────────────────────────────────────────────────────────────────────────────
// HTML rendering — index page
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) renderIndex(w http.ResponseWriter, records []ledger.Record) {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>` + html.EscapeString(s.cfg.Web.Name) + `</title>
` + commonCSS() + `
<style>
  .grid { display:grid; grid-template-columns:repeat(auto-fill,minmax(300px,1fr)); gap:16px; }
  .card-link { text-decoration:none; color:inherit; display:block; }
  .sup-card {
    background:#1e293b; border:1px solid #334155; border-radius:12px;
    padding:20px; transition:border-color .15s, transform .1s;
    cursor:pointer;
  }
  .sup-card:hover { border-color:#3b82f6; transform:translateY(-1px); }
  .card-top { display:flex; align-items:center; gap:12px; margin-bottom:12px; }
  .card-icon {
    width:36px; height:36px; border-radius:8px; display:flex; align-items:center;
    justify-content:center; font-size:17px; flex-shrink:0; background:#1e3a5f;
  }
  .card-name { font-size:16px; font-weight:700; color:#f1f5f9; }
  .card-meta { display:flex; gap:8px; flex-wrap:wrap; margin-top:8px; }
  .tag {
    font-size:11px; font-weight:600; padding:2px 8px; border-radius:10px;
    background:#1e293b; color:#94a3b8; border:1px solid #334155;
  }
  .tag-date   { color:#34d399; border-color:#1a3a2a; background:#0d2019; }
  .tag-report { color:#60a5fa; border-color:#1e3a5f; background:#0d1f3c; }
  .tag-none   { color:#64748b; }
  .section-title {
    font-size:12px; font-weight:700; color:#475569;
    text-transform:uppercase; letter-spacing:.06em;
    margin:24px 0 12px;
  }
  .empty { color:#64748b; padding:24px 0; font-size:14px; }
</style>
</head>
<body>
<div class="container">
`)
	writeNavbar(&b, s.cfg.Web.Name, "")

	b.WriteString(`<div class="meta-grid" style="margin-bottom:24px;">`)
	writeMetaItem(&b, "Поставщики", strconv.Itoa(len(records)))
	writeMetaItem(&b, "Хранилище", s.base)
	writeMetaItem(&b, "Запущен", s.startedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(`</div>`)

	if len(records) == 0 {
		b.WriteString(`<div class="empty">Журнал пуст. Записи появятся после первого запуска pricewatch.</div>`)
	} else {
		b.WriteString(`<div class="section-title">Последние запуски</div><div class="grid">`)
		for _, rec := range records {
			writeSupplierCard(&b, rec)
		}
		b.WriteString(`</div>`)
	}

	b.WriteString(`<div class="footer">pricewatch-web</div>`)
	b.WriteString(`</div></body></html>`)

	fmt.Fprint(w, b.String())
}

func writeSupplierCard(b *strings.Builder, rec ledger.Record) {
	b.WriteString(`<a class="card-link" href="/supplier/` + url.PathEscape(rec.SupplierName) + `">`)
	b.WriteString(`<div class="sup-card">`)
	b.WriteString(`<div class="card-top">`)
	b.WriteString(`<div class="card-icon">&#x1F4E6;</div>`)
	b.WriteString(`<span class="card-name">` + html.EscapeString(rec.SupplierName) + `</span>`)
	b.WriteString(`</div>`)
	b.WriteString(`<div class="card-meta">`)
	b.WriteString(`<span class="tag tag-date">` + html.EscapeString(rec.Date) + `</span>`)
	if rec.ReportPath != "" {
		b.WriteString(`<span class="tag tag-report">отчёт</span>`)
	} else {
		b.WriteString(`<span class="tag tag-none">без отчёта</span>`)
	}
	b.WriteString(`</div>`)
	b.WriteString(`</div></a>`)
}

// ─────────────────────────────────────────────────────────────────────────────
// HTML rendering — history page
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) renderHistory(w http.ResponseWriter, name string, records []ledger.Record) {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>` + html.EscapeString(name) + ` — ` + html.EscapeString(s.cfg.Web.Name) + `</title>
` + commonCSS() + `
<style>
  table { width:100%; border-collapse:collapse; font-size:13px; }
  th {
    text-align:left; padding:10px 20px; font-size:11px; font-weight:600;
    color:#64748b; text-transform:uppercase; letter-spacing:.05em;
    border-bottom:1px solid #334155; background:#0f172a;
  }
  td { padding:10px 20px; border-bottom:1px solid #1e293b; color:#cbd5e1; }
  tr:hover td { background:#0f172a; }
  td a { color:#60a5fa; text-decoration:none; }
  td a:hover { color:#93c5fd; }
  .dim { color:#64748b; }
</style>
</head>
<body>
<div class="container">
`)
	writeNavbar(&b, s.cfg.Web.Name, name)

	b.WriteString(`<div class="meta-grid" style="margin-bottom:24px;">`)
	writeMetaItem(&b, "Поставщик", name)
	writeMetaItem(&b, "Запусков показано", strconv.Itoa(len(records)))
	b.WriteString(`</div>`)

	b.WriteString(`<div class="card"><table>`)
	b.WriteString(`<tr><th>Дата</th><th>Снимок</th><th>Предыдущий</th><th>Отчёт</th><th>Записано</th></tr>`)
	for _, rec := range records {
		b.WriteString(`<tr>`)
		b.WriteString(`<td>` + html.EscapeString(rec.Date) + `</td>`)
		writeFileCell(&b, rec.CurrentPath)
		writeFileCell(&b, rec.PreviousPath)
		writeFileCell(&b, rec.ReportPath)
		b.WriteString(`<td class="dim">` + rec.CreatedAt.Format("2006-01-02 15:04:05") + `</td>`)
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table></div>`)

	b.WriteString(`<div class="footer">pricewatch-web</div>`)
	b.WriteString(`</div></body></html>`)

	fmt.Fprint(w, b.String())
}

func writeFileCell(b *strings.Builder, path string) {
	if path == "" {
		b.WriteString(`<td class="dim">&mdash;</td>`)
		return
	}
	b.WriteString(`<td><a href="/download?path=` + url.QueryEscape(path) + `">` +
		html.EscapeString(filepath.Base(path)) + `</a></td>`)
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared HTML helpers
// ─────────────────────────────────────────────────────────────────────────────

func commonCSS() string {
	return `<style>
  * { box-sizing:border-box; margin:0; padding:0; }
  body { font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif; background:#0f1117; color:#e2e8f0; min-height:100vh; padding:24px; }
  .container { max-width:1600px; margin:0 auto; }
  .navbar {
    display:flex; align-items:center; gap:12px; margin-bottom:24px;
    padding-bottom:16px; border-bottom:1px solid #1e293b;
  }
  .nav-title { font-size:18px; font-weight:700; color:#f1f5f9; }
  .nav-sep   { color:#334155; }
  .nav-sub   { font-size:16px; color:#94a3b8; font-weight:500; }
  .nav-home  { color:#60a5fa; text-decoration:none; font-weight:700; }
  .nav-home:hover { color:#93c5fd; }
  .meta-grid   { display:grid; grid-template-columns:repeat(auto-fill,minmax(200px,1fr)); gap:12px; }
  .meta-item   { display:flex; flex-direction:column; gap:2px; }
  .meta-label  { font-size:11px; font-weight:600; color:#64748b; text-transform:uppercase; letter-spacing:.05em; }
  .meta-value  { font-size:13px; color:#cbd5e1; font-family:monospace; word-break:break-all; }
  .card        { background:#1e293b; border:1px solid #334155; border-radius:12px; margin-bottom:20px; overflow:hidden; }
  .footer      { text-align:center; padding:20px; font-size:11px; color:#334155; }
</style>`
}

func writeNavbar(b *strings.Builder, serverName, supplierName string) {
	b.WriteString(`<div class="navbar">`)
	b.WriteString(`<a class="nav-home" href="/">` + html.EscapeString(serverName) + `</a>`)
	if supplierName != "" {
		b.WriteString(`<span class="nav-sep">/</span>`)
		b.WriteString(`<span class="nav-sub">` + html.EscapeString(supplierName) + `</span>`)
	}
	b.WriteString(`</div>`)
}

func writeMetaItem(b *strings.Builder, label, value string) {
	b.WriteString(`<div class="meta-item">`)
	b.WriteString(`<span class="meta-label">` + html.EscapeString(label) + `</span>`)
	b.WriteString(`<span class="meta-value">` + html.EscapeString(value) + `</span>`)
	b.WriteString(`</div>`)
}
