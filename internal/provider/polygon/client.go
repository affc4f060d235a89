// Package polygon fetches ticker reference data from the Polygon.io
// v3 reference API. Polygon classifies companies by SIC code rather
// than GICS sectors.
package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/httputil"
	"github.com/portrec/portrec/pkg/logger"
)

const sourceName = "polygon"

// Client handles communication with Polygon.io.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a new Polygon client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.polygon.io"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() string {
	return sourceName
}

// Conventions implements provider.Adapter.
func (c *Client) Conventions() provider.Conventions {
	return provider.Conventions{
		MarketCapMillions:    false,
		DividendYieldDecimal: false,
		Taxonomy:             provider.TaxonomySIC,
	}
}

type tickerDetailsResponse struct {
	Status  string `json:"status"`
	Results *struct {
		Ticker          string   `json:"ticker"`
		Name            string   `json:"name"`
		Type            string   `json:"type"`
		PrimaryExchange string   `json:"primary_exchange"`
		CurrencyName    string   `json:"currency_name"`
		MarketCap       *float64 `json:"market_cap"`
		SICCode         string   `json:"sic_code"`
		SICDescription  string   `json:"sic_description"`
		Description     string   `json:"description"`
	} `json:"results"`
	Error string `json:"error"`
}

// Fetch implements provider.Adapter.
func (c *Client) Fetch(ctx context.Context, symbol string) (*provider.Record, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)

	fullURL := fmt.Sprintf("%s/v3/reference/tickers/%s?%s",
		c.baseURL, url.PathEscape(symbol), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, provider.NewError(provider.KindNotFound, sourceName, symbol, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, provider.NewError(provider.KindRateLimited, sourceName, symbol, nil)
	case resp.StatusCode != http.StatusOK:
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol, err)
	}

	var decoded tickerDetailsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, provider.NewError(provider.KindMalformed, sourceName, symbol, err)
	}

	if decoded.Results == nil {
		return nil, provider.NewError(provider.KindNotFound, sourceName, symbol,
			fmt.Errorf("%s", decoded.Error))
	}

	r := decoded.Results
	rec := &provider.Record{
		Symbol:         symbol,
		Name:           r.Name,
		AssetType:      mapAssetType(r.Type),
		Exchange:       r.PrimaryExchange,
		Currency:       r.CurrencyName,
		MarketCap:      r.MarketCap,
		SICCode:        r.SICCode,
		SICDescription: r.SICDescription,
		Description:    r.Description,
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"source": sourceName,
	}).Debug("Fetched ticker details")

	return rec, nil
}

// mapAssetType converts Polygon's type codes to canonical asset types.
func mapAssetType(t string) string {
	switch strings.ToUpper(t) {
	case "CS", "ADRC":
		return "EQUITY"
	case "ETF", "ETN", "ETV":
		return "ETF"
	case "FUND":
		return "MUTUALFUND"
	default:
		return t
	}
}
