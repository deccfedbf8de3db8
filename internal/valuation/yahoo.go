package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const yahooBase = "https://query1.finance.yahoo.com"

// YahooFeed implements PriceFeed using the Yahoo Finance chart API. The quote is the latest
// non-null close of the intraday chart.
type YahooFeed struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	MaxAge    time.Duration     // reject quotes older than this; zero disables the check
	Now       func() time.Time
}

// NewYahooFeed creates a Yahoo Finance feed with optional proxy support.
func NewYahooFeed(proxyURL string) *YahooFeed {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFeed{
		BaseURL: yahooBase,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"WETH": "ETH-USD",
			"ETH":  "ETH-USD",
			"WBTC": "BTC-USD",
			"BTC":  "BTC-USD",
		},
		MaxAge: 6 * time.Hour,
		Now:    time.Now,
	}
}

func (f *YahooFeed) Name() string { return "yahoo" }

func (f *YahooFeed) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*decimal.Decimal `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooFeed) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	base := strings.TrimRight(f.BaseURL, "/")
	if base == "" {
		base = yahooBase
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=5m&range=1d", base, url.PathEscape(f.yahooSymbol(symbol)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return decimal.Zero, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return decimal.Zero, &MissingPriceError{Symbol: symbol}
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	// Walk back over null bars to the latest close.
	for i := len(closes) - 1; i >= 0; i-- {
		c := closes[i]
		if c == nil || !c.IsPositive() {
			continue
		}
		if f.MaxAge > 0 && i < len(result.Timestamp) {
			now := time.Now
			if f.Now != nil {
				now = f.Now
			}
			if age := now().Sub(time.Unix(result.Timestamp[i], 0)); age > f.MaxAge {
				return decimal.Zero, fmt.Errorf("yahoo: %s quote is %s old", symbol, age.Truncate(time.Second))
			}
		}
		return *c, nil
	}
	return decimal.Zero, &MissingPriceError{Symbol: symbol}
}
