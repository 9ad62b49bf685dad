package marketfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.MarketFeedConfig{
		ServiceURL: serverURL,
		Timeout:    5,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(&config.MarketFeedConfig{ServiceURL: "http://feed:3001/"})

	assert.Equal(t, "http://feed:3001", client.BaseURL)
	assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)
}

func TestClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","version":"1.2.0"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestClient_GetCandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/candles", r.URL.Path)
		assert.Equal(t, "SPY", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("end"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"symbol": "SPY",
			"candles": [
				{"date":"2024-01-02","open":"470.1","high":"473.5","low":"469.8","close":"472.65","volume":"81964874"},
				{"date":"2024-01-03","close":"468.79"}
			]
		}`))
	}))
	defer server.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	candles, err := newTestClient(server.URL).GetCandles(context.Background(), "SPY", start, end)
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, "SPY", candles[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), candles[0].Date)
	assert.True(t, candles[0].Close.Equal(decimal.RequireFromString("472.65")))
	// Missing optional OHLCV fields decode to zero, only close is required.
	assert.True(t, candles[1].Open.IsZero())
}

func TestClient_GetCandles_MissingClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"SPY","candles":[{"date":"2024-01-02","open":"470.1"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetCandles(context.Background(), "SPY", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.True(t, utils.IsSchemaError(err), "want SchemaError, got %v", err)
}

func TestClient_GetPositioning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/positioning", r.URL.Path)
		assert.Equal(t, "ES", r.URL.Query().Get("market"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"market": "ES",
			"reports": [{"report_date":"2024-01-02","commercial_long":"451203","commercial_short":"512876"}]
		}`))
	}))
	defer server.Close()

	points, err := newTestClient(server.URL).GetPositioning(context.Background(), "ES", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.True(t, points[0].CommercialLong.Equal(decimal.NewFromInt(451203)))
	assert.True(t, points[0].CommercialShort.Equal(decimal.NewFromInt(512876)))
}

func TestClient_GetPositioning_MissingColumn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"market":"ES","reports":[{"report_date":"2024-01-02","commercial_long":"451203"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetPositioning(context.Background(), "ES", time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.True(t, utils.IsSchemaError(err))
	assert.Contains(t, err.Error(), "commercial_short")
}

func TestClient_GetSentiment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sentiment", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"readings": [{"report_date":"2024-01-04","bullish":"48.6","neutral":"27.2","bearish":"24.2"}]
		}`))
	}))
	defer server.Close()

	points, err := newTestClient(server.URL).GetSentiment(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.True(t, points[0].Bullish.Equal(decimal.RequireFromString("48.6")))
	assert.True(t, points[0].Bearish.Equal(decimal.RequireFromString("24.2")))
}

func TestClient_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream provider unavailable"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetSentiment(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream provider unavailable")
}

func TestClient_InvalidDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"readings":[{"report_date":"01/04/2024","bullish":"48.6","neutral":"27.2","bearish":"24.2"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetSentiment(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid day")
}
