package marketfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// Client is the HTTP client for the market data sidecar serving daily
// candles, commercial positioning reports and sentiment survey readings.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	timeout    time.Duration
}

// NewClient creates a market feed client from the service configuration.
func NewClient(cfg *config.MarketFeedConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(cfg.ServiceURL, "/"),
		timeout: timeout,
	}
}

// HealthCheck checks if the sidecar is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var response HealthResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/health", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetCandles retrieves daily OHLCV candles for a symbol over [start, end]
// and converts them to the domain model. Candles with no close are a
// schema failure: the feature table cannot be built without them.
func (c *Client) GetCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	path := "/api/v1/candles?" + dateRangeQuery(start, end, url.Values{"symbol": {symbol}})
	var response CandlesResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(response.Candles))
	for _, d := range response.Candles {
		if d.Close == nil {
			return nil, utils.NewSchemaError("candles", "close")
		}
		candle := models.Candle{
			Symbol: symbol,
			Date:   models.NormalizeDay(d.Date.Time),
			Close:  *d.Close,
		}
		if d.Open != nil {
			candle.Open = *d.Open
		}
		if d.High != nil {
			candle.High = *d.High
		}
		if d.Low != nil {
			candle.Low = *d.Low
		}
		if d.Volume != nil {
			candle.Volume = *d.Volume
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetPositioning retrieves weekly commercial positioning reports for a
// market over [start, end].
func (c *Client) GetPositioning(ctx context.Context, market string, start, end time.Time) ([]models.PositioningPoint, error) {
	path := "/api/v1/positioning?" + dateRangeQuery(start, end, url.Values{"market": {market}})
	var response PositioningResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	points := make([]models.PositioningPoint, 0, len(response.Reports))
	for _, d := range response.Reports {
		if d.CommercialLong == nil {
			return nil, utils.NewSchemaError("positioning", "commercial_long")
		}
		if d.CommercialShort == nil {
			return nil, utils.NewSchemaError("positioning", "commercial_short")
		}
		points = append(points, models.PositioningPoint{
			Date:            models.NormalizeDay(d.ReportDate.Time),
			CommercialLong:  *d.CommercialLong,
			CommercialShort: *d.CommercialShort,
		})
	}
	return points, nil
}

// GetSentiment retrieves weekly sentiment survey readings over [start, end].
func (c *Client) GetSentiment(ctx context.Context, start, end time.Time) ([]models.SentimentPoint, error) {
	path := "/api/v1/sentiment?" + dateRangeQuery(start, end, url.Values{})
	var response SentimentResponse
	if err := c.makeRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	points := make([]models.SentimentPoint, 0, len(response.Readings))
	for _, d := range response.Readings {
		if d.Bullish == nil {
			return nil, utils.NewSchemaError("sentiment", "bullish")
		}
		if d.Neutral == nil {
			return nil, utils.NewSchemaError("sentiment", "neutral")
		}
		if d.Bearish == nil {
			return nil, utils.NewSchemaError("sentiment", "bearish")
		}
		points = append(points, models.SentimentPoint{
			Date:    models.NormalizeDay(d.ReportDate.Time),
			Bullish: *d.Bullish,
			Neutral: *d.Neutral,
			Bearish: *d.Bearish,
		})
	}
	return points, nil
}

func dateRangeQuery(start, end time.Time, params url.Values) string {
	params.Set("start", start.UTC().Format(dayLayout))
	params.Set("end", end.UTC().Format(dayLayout))
	return params.Encode()
}

// makeRequest is a helper method to make HTTP requests to the sidecar.
func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SentiPulse-Go/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return fmt.Errorf("market feed error (%d): %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("market feed error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// Close closes the HTTP client (provided for interface compatibility).
func (c *Client) Close() error {
	return nil
}
