package polygon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/config"
	"github.com/portrec/portrec/pkg/httputil"
	"github.com/portrec/portrec/pkg/logger"
)

func newTestClient(serverURL string) *Client {
	log := logger.Nop()
	httpClient := httputil.New(&config.Config{}, log).DisableRetry()
	return NewClient(httpClient, log, serverURL, "test-key")
}

const tickerDetailsJSON = `{
	"status": "OK",
	"results": {
		"ticker": "MSFT",
		"name": "Microsoft Corp.",
		"type": "CS",
		"primary_exchange": "XNAS",
		"currency_name": "usd",
		"market_cap": 3100000000000,
		"sic_code": "7372",
		"sic_description": "PREPACKAGED SOFTWARE",
		"description": "Microsoft develops software."
	}
}`

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/reference/tickers/MSFT" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("apiKey") != "test-key" {
			t.Errorf("apiKey = %q", r.URL.Query().Get("apiKey"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tickerDetailsJSON))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	rec, err := client.Fetch(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if rec.Name != "Microsoft Corp." {
		t.Errorf("Name = %q", rec.Name)
	}
	if rec.AssetType != "EQUITY" {
		t.Errorf("AssetType = %q, want EQUITY", rec.AssetType)
	}
	if rec.SICCode != "7372" {
		t.Errorf("SICCode = %q, want 7372", rec.SICCode)
	}
	if rec.SICDescription != "PREPACKAGED SOFTWARE" {
		t.Errorf("SICDescription = %q", rec.SICDescription)
	}
	// Polygon reports no GICS sector.
	if rec.Sector != "" {
		t.Errorf("Sector = %q, want empty", rec.Sector)
	}
	if rec.MarketCap == nil || *rec.MarketCap != 3100000000000 {
		t.Errorf("MarketCap = %v", rec.MarketCap)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Fetch(context.Background(), "ZZZZ")
	if provider.KindOf(err) != provider.KindNotFound {
		t.Errorf("KindOf = %v, want not_found", provider.KindOf(err))
	}
}

func TestMapAssetType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"CS", "EQUITY"},
		{"ADRC", "EQUITY"},
		{"ETF", "ETF"},
		{"ETN", "ETF"},
		{"FUND", "MUTUALFUND"},
		{"WARRANT", "WARRANT"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := mapAssetType(tt.input); got != tt.want {
				t.Errorf("mapAssetType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConventions(t *testing.T) {
	client := newTestClient("http://unused")
	if client.Conventions().Taxonomy != provider.TaxonomySIC {
		t.Errorf("Taxonomy = %v, want sic", client.Conventions().Taxonomy)
	}
}
