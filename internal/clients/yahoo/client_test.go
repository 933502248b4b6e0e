package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHistoricalPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/VTI", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1y", r.URL.Query().Get("range"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"chart": {
				"result": [{
					"timestamp": [1704153600, 1704240000, 1704326400],
					"indicators": {
						"quote": [{
							"open":   [100.0, 101.0, 0],
							"high":   [102.0, 103.0, 0],
							"low":    [99.0, 100.5, 0],
							"close":  [101.0, 102.5, 0],
							"volume": [10000, 12000, 0]
						}],
						"adjclose": [{"adjclose": [100.5, 102.0, 0]}]
					}
				}],
				"error": null
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	prices, err := client.GetHistoricalPrices(context.Background(), "VTI", "1y")
	require.NoError(t, err)

	// The all-zero bar is dropped.
	require.Len(t, prices, 2)
	assert.Equal(t, 101.0, prices[0].Close)
	assert.Equal(t, 100.5, prices[0].AdjClose)
	assert.Equal(t, int64(12000), prices[1].Volume)
}

func TestGetHistoricalPricesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": {"code": "Not Found"}}}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.GetHistoricalPrices(context.Background(), "BOGUS", "1y")
	assert.Error(t, err)
}

func TestGetHistoricalPricesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	_, err := client.GetHistoricalPrices(context.Background(), "VTI", "1y")
	assert.Error(t, err)
}

func TestGetHistoricalPricesEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": null}}`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop())
	client.SetBaseURL(server.URL)

	prices, err := client.GetHistoricalPrices(context.Background(), "VTI", "1y")
	require.NoError(t, err)
	assert.Empty(t, prices)
}
