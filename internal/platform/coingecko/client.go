// Package coingecko implements the domain.PriceFeed interface against the
// CoinGecko REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
)

// Client is the REST client for the CoinGecko markets API, used as the price
// feed provider for tracked assets.
type Client struct {
	baseURL    string
	vsCurrency string
	apiKey     string
	httpClient *http.Client
}

// New creates a new CoinGecko client.
//
// baseURL is the API root, e.g. "https://api.coingecko.com/api/v3".
// vsCurrency is the quote currency for prices, e.g. "usd". apiKey may be
// empty for the public tier. The timeout bounds each request so a slow
// provider call cannot delay the next scheduled refresh indefinitely.
func New(baseURL, vsCurrency, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: vsCurrency,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiQuote mirrors one entry of the /simple/price response. Field names
// depend on the configured vs_currency, so the response is decoded into a
// generic map first; see FetchPrices.
type apiQuote map[string]float64

// FetchPrices returns the current quote for each requested feed key. Keys
// missing from the provider response are simply absent from the returned
// map; callers treat that as a per-asset refresh failure while the rest
// succeed.
func (c *Client) FetchPrices(ctx context.Context, feedKeys []string) (map[string]domain.Quote, error) {
	if len(feedKeys) == 0 {
		return map[string]domain.Quote{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(feedKeys, ","))
	params.Set("vs_currencies", c.vsCurrency)
	params.Set("include_market_cap", "true")
	params.Set("include_24hr_vol", "true")
	params.Set("include_24hr_change", "true")

	body, err := c.doGet(ctx, "/simple/price?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("coingecko: fetch prices: %w", err)
	}

	var raw map[string]apiQuote
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("coingecko: decode prices: %w", err)
	}

	cur := c.vsCurrency
	quotes := make(map[string]domain.Quote, len(raw))
	for key, q := range raw {
		price, ok := q[cur]
		if !ok {
			// Provider returned the key without a usable price; treat as
			// missing so the asset's refresh fails this cycle.
			continue
		}
		quotes[key] = domain.Quote{
			Price:     price,
			Change24h: q[cur+"_24h_change"],
			MarketCap: q[cur+"_market_cap"],
			Volume24h: q[cur+"_24h_vol"],
		}
	}

	return quotes, nil
}

// doGet performs a GET request against the API and returns the raw response
// body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status 429", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.PriceFeed = (*Client)(nil)
