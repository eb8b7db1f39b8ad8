package mirkeramiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmkor/pricewatch/pkg/catalog"
	"github.com/dmkor/pricewatch/pkg/suppliers"
)

const feedJSON = `[
	{"Name": "Плитка напольная", "Article": "MK-1", "Unit": "м2", "PriceDiler2": 450.5},
	{"Name": "Бордюр", "Article": "MK-2", "Unit": "шт", "PriceDiler2": "99.9"},
	{"Name": "Декор", "Article": "MK-3", "Unit": "шт", "PriceDiler2": null},
	{"Name": "Декор новый", "Article": "MK-3", "Unit": "шт", "PriceDiler2": 10}
]`

func newSupplier(t *testing.T, url, key string) suppliers.Supplier {
	t.Helper()
	s, err := suppliers.New(suppliers.Config{Type: "mir_keramiki", BaseURL: url, APIKey: key})
	if err != nil {
		t.Fatalf("suppliers.New: %v", err)
	}
	return s
}

func TestFetchAndNormalize(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("authorization")
		w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	s := newSupplier(t, srv.URL, "raw-api-key")

	raw, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAuth != "raw-api-key" {
		t.Errorf("authorization header must be the raw key, got %q", gotAuth)
	}

	table, err := s.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	// Дубликат MK-3 схлопнут, остается последнее вхождение.
	want := catalog.Table{
		{Name: "Плитка напольная", Article: "MK-1", Unit: "м2", Price: 450.5},
		{Name: "Бордюр", Article: "MK-2", Unit: "шт", Price: 99.9},
		{Name: "Декор новый", Article: "MK-3", Unit: "шт", Price: 10},
	}
	if len(table) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(table), table)
	}
	for i := range want {
		if table[i] != want[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, want[i], table[i])
		}
	}
}

func TestNormalize_NullPriceCoercedToZero(t *testing.T) {
	s := newSupplier(t, "http://example.com", "")

	table, err := s.Normalize([]item{{Name: "Декор", Article: "MK-3", Unit: "шт", PriceDiler2: nil}})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(table) != 1 || table[0].Price != 0 {
		t.Errorf("null price must become 0: %+v", table)
	}
}

func TestNormalize_EmptyFeed(t *testing.T) {
	s := newSupplier(t, "http://example.com", "")

	table, err := s.Normalize([]item{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("empty feed must give empty table, got %+v", table)
	}
}

func TestFetch_NoKeySendsNoHeader(t *testing.T) {
	sentHeader := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sentHeader = r.Header.Get("authorization") != ""
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s := newSupplier(t, srv.URL, "")
	if _, err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sentHeader {
		t.Error("authorization header must be absent without api key")
	}
}

func TestNormalize_WrongRawType(t *testing.T) {
	s := newSupplier(t, "http://example.com", "")
	if _, err := s.Normalize(42); err == nil {
		t.Fatal("expected error for wrong raw type")
	}
}
