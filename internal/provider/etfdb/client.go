// Package etfdb fetches ETF metadata from the ETF Database screener.
// The screener reports assets under management in millions of dollars
// and classifies funds by asset class instead of GICS sectors.
package etfdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/httputil"
	"github.com/portrec/portrec/pkg/logger"
)

const sourceName = "etfdb"

// Client handles communication with the ETF Database screener.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	pageSize   int
}

// NewClient creates a new ETFDB client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string, pageSize int) *Client {
	if baseURL == "" {
		baseURL = "https://etfdb.com"
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		pageSize:   pageSize,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() string {
	return sourceName
}

// Conventions implements provider.Adapter. ETFDB reports AUM in
// millions of dollars and classifies by asset class.
func (c *Client) Conventions() provider.Conventions {
	return provider.Conventions{
		MarketCapMillions:    true,
		DividendYieldDecimal: false,
		Taxonomy:             provider.TaxonomyAssetClass,
	}
}

// screenerCell is either a plain string or a {"type":"link","text":...}
// object depending on the column.
type screenerCell struct {
	Text string
}

func (s *screenerCell) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Text = plain
		return nil
	}

	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Text = obj.Text
	return nil
}

type screenerRow struct {
	Symbol        screenerCell `json:"symbol"`
	Name          screenerCell `json:"name"`
	Price         screenerCell `json:"price"`
	Assets        screenerCell `json:"assets"`
	AverageVolume screenerCell `json:"average_volume"`
	AssetClass    screenerCell `json:"asset_class"`
	YTD           screenerCell `json:"ytd"`
}

type screenerResponse struct {
	Meta struct {
		TotalRecords int `json:"total_records"`
	} `json:"meta"`
	Data []screenerRow `json:"data"`
}

// Page is one screener page of parsed ETF records.
type Page struct {
	Records      []*provider.Record
	TotalRecords int
}

// FetchPage retrieves one screener page (1-based), sorted by symbol so
// runs over the same universe see a stable order.
func (c *Client) FetchPage(ctx context.Context, page int) (*Page, error) {
	payload := map[string]interface{}{
		"page":           page,
		"per_page":       c.pageSize,
		"sort_by":        "symbol",
		"sort_direction": "asc",
		"only":           []string{"meta", "data"},
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/api/screener/", payload)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, "", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// Cloudflare challenge; backing off and retrying later usually clears it.
		return nil, provider.NewError(provider.KindRateLimited, sourceName, "",
			fmt.Errorf("request blocked (status 403)"))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, provider.NewError(provider.KindRateLimited, sourceName, "", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, provider.NewError(provider.KindTimeout, sourceName, "",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, "", err)
	}

	// A Cloudflare interstitial comes back as HTML with a 200.
	if looksLikeHTML(body) {
		c.logger.WithField("page", page).Warn("Screener returned HTML, falling back to page scrape")
		return c.fetchPageHTML(ctx, page)
	}

	var decoded screenerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, provider.NewError(provider.KindMalformed, sourceName, "", err)
	}

	records := make([]*provider.Record, 0, len(decoded.Data))
	for _, row := range decoded.Data {
		rec := c.parseRow(row)
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}

	c.logger.WithFields(map[string]interface{}{
		"page":    page,
		"records": len(records),
		"total":   decoded.Meta.TotalRecords,
	}).Debug("Fetched screener page")

	return &Page{Records: records, TotalRecords: decoded.Meta.TotalRecords}, nil
}

// Fetch implements provider.Adapter by filtering the screener to a
// single symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (*provider.Record, error) {
	payload := map[string]interface{}{
		"page":     1,
		"per_page": c.pageSize,
		"symbols":  symbol,
		"only":     []string{"meta", "data"},
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/api/screener/", payload)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return nil, provider.NewError(provider.KindRateLimited, sourceName, symbol, nil)
	case resp.StatusCode != http.StatusOK:
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol, err)
	}

	var decoded screenerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, provider.NewError(provider.KindMalformed, sourceName, symbol, err)
	}

	for _, row := range decoded.Data {
		if !strings.EqualFold(row.Symbol.Text, symbol) {
			continue
		}
		if rec := c.parseRow(row); rec != nil {
			return rec, nil
		}
	}

	return nil, provider.NewError(provider.KindNotFound, sourceName, symbol, nil)
}

// parseRow converts a screener row into a raw record. Rows without a
// symbol are skipped; unparseable numeric cells are dropped with a
// warning, never coerced to zero.
func (c *Client) parseRow(row screenerRow) *provider.Record {
	symbol := strings.ToUpper(strings.TrimSpace(row.Symbol.Text))
	if symbol == "" {
		return nil
	}

	rec := &provider.Record{
		Symbol:    symbol,
		Name:      strings.TrimSpace(row.Name.Text),
		AssetType: "ETF",
		Currency:  "USD",
		Sector:    strings.TrimSpace(row.AssetClass.Text),
	}

	if v, err := ParseAssets(row.Assets.Text); err == nil {
		rec.MarketCap = v
	} else {
		c.warnCell(symbol, "assets", row.Assets.Text)
	}

	if v, err := ParseNumber(row.Price.Text); err == nil {
		rec.CurrentPrice = v
	} else {
		c.warnCell(symbol, "price", row.Price.Text)
	}

	if v, err := ParseNumber(row.AverageVolume.Text); err == nil && v != nil {
		n := int64(*v)
		rec.AvgVolume = &n
	} else if err != nil {
		c.warnCell(symbol, "average_volume", row.AverageVolume.Text)
	}

	if v, err := ParsePercent(row.YTD.Text); err == nil {
		rec.YearPerformance = v
	} else {
		c.warnCell(symbol, "ytd", row.YTD.Text)
	}

	return rec
}

func (c *Client) warnCell(symbol, field, value string) {
	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"field":  field,
		"value":  value,
	}).Warn("Dropping unparseable screener cell")
}

func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html")
}
