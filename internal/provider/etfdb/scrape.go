package etfdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/portrec/portrec/internal/provider"
)

// fetchPageHTML scrapes one screener page from the HTML table. Used
// when the JSON API serves an interstitial page instead of data.
func (c *Client) fetchPageHTML(ctx context.Context, page int) (*Page, error) {
	fullURL := fmt.Sprintf("%s/screener/?page=%d", c.baseURL, page)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewError(provider.KindTimeout, sourceName, "",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(provider.KindTimeout, sourceName, "", err)
	}

	records, err := c.parseScreenerHTML(string(body))
	if err != nil {
		return nil, provider.NewError(provider.KindMalformed, sourceName, "", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"page":    page,
		"records": len(records),
	}).Debug("Scraped screener page")

	// The HTML table does not expose a total count; callers paginate
	// until a page comes back empty.
	return &Page{Records: records, TotalRecords: 0}, nil
}

// parseScreenerHTML extracts ETF rows from the screener table. Cells
// carry a data-th attribute naming their column.
func (c *Client) parseScreenerHTML(html string) ([]*provider.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []*provider.Record
	doc.Find("table tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := make(map[string]string)
		row.Find("td").Each(func(j int, cell *goquery.Selection) {
			if th, ok := cell.Attr("data-th"); ok {
				cells[th] = strings.TrimSpace(cell.Text())
			}
		})

		symbol := strings.ToUpper(cells["Symbol"])
		if symbol == "" {
			return
		}

		rec := &provider.Record{
			Symbol:    symbol,
			Name:      cells["ETF Name"],
			AssetType: "ETF",
			Currency:  "USD",
			Sector:    cells["Asset Class"],
		}

		if v, err := ParseAssets(cells["Total Assets ($MM)"]); err == nil {
			rec.MarketCap = v
		} else {
			c.warnCell(symbol, "Total Assets ($MM)", cells["Total Assets ($MM)"])
		}

		if v, err := ParseNumber(cells["Previous Closing Price"]); err == nil {
			rec.CurrentPrice = v
		} else {
			c.warnCell(symbol, "Previous Closing Price", cells["Previous Closing Price"])
		}

		if v, err := ParseNumber(cells["Avg. Daily Volume"]); err == nil && v != nil {
			n := int64(*v)
			rec.AvgVolume = &n
		} else if err != nil {
			c.warnCell(symbol, "Avg. Daily Volume", cells["Avg. Daily Volume"])
		}

		if v, err := ParsePercent(cells["YTD"]); err == nil {
			rec.YearPerformance = v
		} else {
			c.warnCell(symbol, "YTD", cells["YTD"])
		}

		records = append(records, rec)
	})

	return records, nil
}
