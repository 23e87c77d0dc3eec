package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictpulse/roundbot/internal/domain"
)

func TestFetchPrices_ParsesQuotes(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bitcoin": {
				"usd": 50000.12,
				"usd_market_cap": 987654321,
				"usd_24h_vol": 12345678,
				"usd_24h_change": 1.53
			},
			"ethereum": {
				"usd": 3000.5,
				"usd_24h_change": -0.81
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "usd", "", 5*time.Second)
	quotes, err := c.FetchPrices(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "ids=bitcoin%2Cethereum")
	assert.Contains(t, gotQuery, "vs_currencies=usd")

	require.Len(t, quotes, 2)
	assert.Equal(t, 50000.12, quotes["bitcoin"].Price)
	assert.Equal(t, 1.53, quotes["bitcoin"].Change24h)
	assert.Equal(t, 987654321.0, quotes["bitcoin"].MarketCap)
	assert.Equal(t, 3000.5, quotes["ethereum"].Price)
}

func TestFetchPrices_OmitsKeysWithoutPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"bitcoin": {"usd": 50000},
			"solana": {"usd_24h_change": 4.2}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "usd", "", 5*time.Second)
	quotes, err := c.FetchPrices(context.Background(), []string{"bitcoin", "solana"})
	require.NoError(t, err)

	assert.Contains(t, quotes, "bitcoin")
	assert.NotContains(t, quotes, "solana", "entries without a price field are treated as missing")
}

func TestFetchPrices_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "usd", "", 5*time.Second)
	_, err := c.FetchPrices(context.Background(), []string{"bitcoin"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchPrices_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "usd", "", 5*time.Second)
	_, err := c.FetchPrices(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchPrices_EmptyKeys(t *testing.T) {
	c := New("http://unused.invalid", "usd", "", time.Second)
	quotes, err := c.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestFetchPrices_SendsAPIKeyHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-cg-demo-api-key")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "usd", "secret", 5*time.Second)
	_, err := c.FetchPrices(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, "secret", gotHeader)
}
