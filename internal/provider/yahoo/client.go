// Package yahoo fetches security metadata and ETF holdings from the
// Yahoo Finance quoteSummary API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/portrec/portrec/internal/provider"
	"github.com/portrec/portrec/pkg/httputil"
	"github.com/portrec/portrec/pkg/logger"
)

const sourceName = "yahoo"

// Client handles communication with Yahoo Finance.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
	}
}

// Name implements provider.Adapter.
func (c *Client) Name() string {
	return sourceName
}

// Conventions implements provider.Adapter. Yahoo reports market cap in
// dollars and dividend yield in percentage points, with GICS sectors.
func (c *Client) Conventions() provider.Conventions {
	return provider.Conventions{
		MarketCapMillions:    false,
		DividendYieldDecimal: false,
		Taxonomy:             provider.TaxonomyGICS,
	}
}

// rawValue is Yahoo's {"raw": n, "fmt": "..."} number envelope.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v rawValue) float() *float64 {
	return v.Raw
}

func (v rawValue) int() *int64 {
	if v.Raw == nil {
		return nil
	}
	n := int64(*v.Raw)
	return &n
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	Price *struct {
		LongName           string   `json:"longName"`
		ShortName          string   `json:"shortName"`
		QuoteType          string   `json:"quoteType"`
		Currency           string   `json:"currency"`
		ExchangeName       string   `json:"exchangeName"`
		MarketCap           rawValue `json:"marketCap"`
		RegularMarketPrice  rawValue `json:"regularMarketPrice"`
		RegularMarketVolume rawValue `json:"regularMarketVolume"`
	} `json:"price"`
	SummaryDetail *struct {
		TrailingPE       rawValue `json:"trailingPE"`
		DividendYield    rawValue `json:"dividendYield"`
		FiftyTwoWeekHigh rawValue `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow  rawValue `json:"fiftyTwoWeekLow"`
		Beta             rawValue `json:"beta"`
		AverageVolume    rawValue `json:"averageVolume"`
	} `json:"summaryDetail"`
	AssetProfile *struct {
		Sector              string `json:"sector"`
		Industry            string `json:"industry"`
		LongBusinessSummary string `json:"longBusinessSummary"`
	} `json:"assetProfile"`
	DefaultKeyStatistics *struct {
		YearChange rawValue `json:"52WeekChange"`
	} `json:"defaultKeyStatistics"`
	FundProfile *struct {
		FeesExpensesInvestment struct {
			AnnualReportExpenseRatio rawValue `json:"annualReportExpenseRatio"`
		} `json:"feesExpensesInvestment"`
	} `json:"fundProfile"`
	TopHoldings *struct {
		Holdings []struct {
			Symbol         string   `json:"symbol"`
			HoldingName    string   `json:"holdingName"`
			HoldingPercent rawValue `json:"holdingPercent"`
		} `json:"holdings"`
	} `json:"topHoldings"`
}

func (c *Client) fetchSummary(ctx context.Context, symbol string, modules string) (*quoteSummaryResult, error) {
	params := url.Values{}
	params.Set("modules", modules)

	fullURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s",
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

	var decoded quoteSummaryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, provider.NewError(provider.KindMalformed, sourceName, symbol, err)
	}

	if decoded.QuoteSummary.Error != nil {
		return nil, provider.NewError(provider.KindNotFound, sourceName, symbol,
			fmt.Errorf("%s: %s", decoded.QuoteSummary.Error.Code, decoded.QuoteSummary.Error.Description))
	}

	if len(decoded.QuoteSummary.Result) == 0 {
		return nil, provider.NewError(provider.KindNotFound, sourceName, symbol, nil)
	}

	return &decoded.QuoteSummary.Result[0], nil
}

// Fetch implements provider.Adapter.
func (c *Client) Fetch(ctx context.Context, symbol string) (*provider.Record, error) {
	result, err := c.fetchSummary(ctx, symbol,
		"price,summaryDetail,assetProfile,defaultKeyStatistics,fundProfile")
	if err != nil {
		return nil, err
	}

	rec := &provider.Record{Symbol: symbol}

	if p := result.Price; p != nil {
		rec.Name = p.LongName
		if rec.Name == "" {
			rec.Name = p.ShortName
		}
		rec.AssetType = p.QuoteType
		rec.Currency = p.Currency
		rec.Exchange = p.ExchangeName
		rec.MarketCap = p.MarketCap.float()
		rec.CurrentPrice = p.RegularMarketPrice.float()
		rec.Volume = p.RegularMarketVolume.int()
	}

	if d := result.SummaryDetail; d != nil {
		rec.PERatio = d.TrailingPE.float()
		rec.DividendYield = d.DividendYield.float()
		rec.FiftyTwoWeekHigh = d.FiftyTwoWeekHigh.float()
		rec.FiftyTwoWeekLow = d.FiftyTwoWeekLow.float()
		rec.Beta = d.Beta.float()
		rec.AvgVolume = d.AverageVolume.int()
	}

	if a := result.AssetProfile; a != nil {
		rec.Sector = a.Sector
		rec.Industry = a.Industry
		rec.Description = a.LongBusinessSummary
	}

	if k := result.DefaultKeyStatistics; k != nil {
		if chg := k.YearChange.float(); chg != nil {
			perf := *chg * 100
			rec.YearPerformance = &perf
		}
	}

	if f := result.FundProfile; f != nil {
		rec.ExpenseRatio = f.FeesExpensesInvestment.AnnualReportExpenseRatio.float()
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"source": sourceName,
	}).Debug("Fetched security metadata")

	return rec, nil
}

// FetchHoldings implements provider.HoldingsProvider. Yahoo exposes the
// top 10 constituents of an ETF, ordered by descending weight.
func (c *Client) FetchHoldings(ctx context.Context, etfSymbol string) ([]provider.Holding, error) {
	result, err := c.fetchSummary(ctx, etfSymbol, "topHoldings")
	if err != nil {
		return nil, err
	}

	if result.TopHoldings == nil {
		return nil, nil
	}

	holdings := make([]provider.Holding, 0, len(result.TopHoldings.Holdings))
	for _, h := range result.TopHoldings.Holdings {
		if h.Symbol == "" {
			continue
		}
		pct := 0.0
		if h.HoldingPercent.Raw != nil {
			pct = *h.HoldingPercent.Raw * 100
		}
		holdings = append(holdings, provider.Holding{
			Symbol:  h.Symbol,
			Name:    h.HoldingName,
			Percent: pct,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"etf":   etfSymbol,
		"count": len(holdings),
	}).Debug("Fetched ETF holdings")

	return holdings, nil
}
