// Package alphavantage fetches company overviews from the Alpha
// Vantage OVERVIEW endpoint. The free tier allows 5 requests per
// minute and 25 per day, so this source is used sparingly.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/httputil"
	"github.com/portrec/portrec/pkg/logger"
)

const sourceName = "alpha_vantage"

// Client handles communication with Alpha Vantage.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a new Alpha Vantage client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
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

// Conventions implements provider.Adapter. Alpha Vantage reports market
// cap in dollars and dividend yield as a decimal fraction.
func (c *Client) Conventions() provider.Conventions {
	return provider.Conventions{
		MarketCapMillions:    false,
		DividendYieldDecimal: true,
		Taxonomy:             provider.TaxonomyGICS,
	}
}

// overview is the flat all-strings payload of the OVERVIEW function.
type overview struct {
	Symbol               string `json:"Symbol"`
	AssetType            string `json:"AssetType"`
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Exchange             string `json:"Exchange"`
	Currency             string `json:"Currency"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	DividendYield        string `json:"DividendYield"`
	FiftyTwoWeekHigh     string `json:"52WeekHigh"`
	FiftyTwoWeekLow      string `json:"52WeekLow"`
	Beta                 string `json:"Beta"`

	// Error channels: Alpha Vantage signals failures inside a 200 body.
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// Fetch implements provider.Adapter.
func (c *Client) Fetch(ctx context.Context, symbol string) (*provider.Record, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	fullURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, symbol, err)
	}
	defer resp.Body.Close()

	switch {
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

	var ov overview
	if err := json.Unmarshal(body, &ov); err != nil {
		return nil, provider.NewError(provider.KindMalformed, sourceName, symbol, err)
	}

	// Rate limit notices arrive as a 200 with a Note/Information field.
	if ov.Note != "" || ov.Information != "" {
		return nil, provider.NewError(provider.KindRateLimited, sourceName, symbol,
			fmt.Errorf("%s%s", ov.Note, ov.Information))
	}
	if ov.ErrorMessage != "" {
		return nil, provider.NewError(provider.KindNotFound, sourceName, symbol,
			fmt.Errorf("%s", ov.ErrorMessage))
	}
	// An empty object means the symbol is unknown.
	if ov.Symbol == "" && ov.Name == "" {
		return nil, provider.NewError(provider.KindNotFound, sourceName, symbol, nil)
	}

	rec := &provider.Record{
		Symbol:      symbol,
		Name:        ov.Name,
		AssetType:   ov.AssetType,
		Description: ov.Description,
		Exchange:    ov.Exchange,
		Currency:    ov.Currency,
		Sector:      ov.Sector,
		Industry:    ov.Industry,
	}

	rec.MarketCap = c.parseFloat(symbol, "MarketCapitalization", ov.MarketCapitalization)
	rec.PERatio = c.parseFloat(symbol, "PERatio", ov.PERatio)
	rec.DividendYield = c.parseFloat(symbol, "DividendYield", ov.DividendYield)
	rec.FiftyTwoWeekHigh = c.parseFloat(symbol, "52WeekHigh", ov.FiftyTwoWeekHigh)
	rec.FiftyTwoWeekLow = c.parseFloat(symbol, "52WeekLow", ov.FiftyTwoWeekLow)
	rec.Beta = c.parseFloat(symbol, "Beta", ov.Beta)

	return rec, nil
}

// parseFloat converts an Alpha Vantage string value. "None", "-" and
// empty strings mean absent; anything unparseable is dropped with a
// warning rather than coerced to zero.
func (c *Client) parseFloat(symbol, field, value string) *float64 {
	if value == "" || value == "None" || value == "-" {
		return nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"field":  field,
			"value":  value,
		}).Warn("Dropping unparseable value")
		return nil
	}

	return &f
}
