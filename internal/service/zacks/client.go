package zacks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"FinRank/internal/domain/models"
	xhttp "FinRank/pkg/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/kaptinlin/jsonrepair"
)

// DefaultHoldingsURL is the holdings page template; %s is the ETF symbol.
const DefaultHoldingsURL = "https://www.zacks.com/funds/etf/%s/holding"

var holdingsPattern = regexp.MustCompile(`(?s)etf_holdings\.formatted_data\s*=\s*(\[.*?\]);`)

// Client scrapes ETF constituents from Zacks holdings pages. The page embeds
// the table as a JavaScript array whose cells are HTML fragments.
type Client struct {
	http        *xhttp.Client
	urlTemplate string
}

// NewClient creates a holdings client. An empty urlTemplate uses DefaultHoldingsURL.
func NewClient(httpClient *xhttp.Client, urlTemplate string) *Client {
	if urlTemplate == "" {
		urlTemplate = DefaultHoldingsURL
	}
	return &Client{http: httpClient, urlTemplate: urlTemplate}
}

func (c *Client) Name() string { return "zacks" }

// Holdings returns the raw symbols listed for etf, in page order. Errors wrap
// models.ErrSourceUnavailable.
func (c *Client) Holdings(ctx context.Context, etf string) ([]string, error) {
	url := fmt.Sprintf(c.urlTemplate, etf)
	body, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zacks %s: %v", models.ErrSourceUnavailable, etf, err)
	}

	symbols, err := ParseHoldings(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: zacks %s: %v", models.ErrSourceUnavailable, etf, err)
	}
	return symbols, nil
}

// ParseHoldings extracts symbols from a holdings page. The symbol lives in
// the second column, either inside span.hoverquote-symbol or as plain text.
func ParseHoldings(page string) ([]string, error) {
	m := holdingsPattern.FindStringSubmatch(page)
	if m == nil {
		return nil, errors.New("holdings array not found")
	}

	rows, err := decodeRows(m[1])
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if s := symbolFromCell(row[1]); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}

func decodeRows(raw string) ([][]string, error) {
	var rows [][]string
	if err := json.Unmarshal([]byte(raw), &rows); err == nil {
		return rows, nil
	}

	// The array is JavaScript, not JSON: single quotes and trailing commas
	// show up from time to time.
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair holdings array: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &rows); err != nil {
		return nil, fmt.Errorf("decode holdings array: %w", err)
	}
	return rows, nil
}

func symbolFromCell(cell string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cell))
	if err == nil {
		if span := doc.Find("span.hoverquote-symbol").First(); span.Length() > 0 {
			return strings.TrimSpace(span.Text())
		}
	}
	return strings.TrimSpace(cell)
}
