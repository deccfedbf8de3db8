package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPFeed implements PriceFeed against a REST quote endpoint.
type HTTPFeed struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPFeed creates a feed with optional proxy support.
func NewHTTPFeed(baseURL, apiKey, proxyURL string) *HTTPFeed {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPFeed{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *HTTPFeed) Name() string { return "http" }

// Price fetches GET {BaseURL}/api/v1/quote?symbol=... and reads {"price": ...}.
// The price may be a JSON number or a decimal string.
func (f *HTTPFeed) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("fetch price: status %d, body: %s", resp.StatusCode, string(body))
	}
	var result struct {
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("decode price: %w", err)
	}
	if result.Price == nil {
		return decimal.Zero, &MissingPriceError{Symbol: symbol}
	}
	if result.Price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s for %s", result.Price, symbol)
	}
	return *result.Price, nil
}
