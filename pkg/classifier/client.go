package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// Client is the HTTP implementation of Predictor against the model
// sidecar. Feature vectors go out with the date excluded from the model
// input; undefined features are sent as null and the sidecar fills them
// with zero, matching how the model was trained.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

var _ Predictor = (*Client)(nil)

// NewClient creates a classifier client from the service configuration.
func NewClient(cfg *config.ClassifierConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(cfg.ServiceURL, "/"),
	}
}

// featureVector is one row of model input on the wire. The date rides
// along only as the row key for matching responses back to rows.
type featureVector struct {
	Date           string               `json:"date"`
	Close          decimal.Decimal      `json:"close"`
	Return1D       *decimal.Decimal     `json:"return_1d"`
	MA10           *decimal.Decimal     `json:"ma_10"`
	MA20           *decimal.Decimal     `json:"ma_20"`
	Volatility10D  *decimal.Decimal     `json:"volatility_10d"`
	NetCommercial  *decimal.Decimal     `json:"net_commercial"`
	Bullish        *decimal.Decimal     `json:"bullish"`
	Bearish        *decimal.Decimal     `json:"bearish"`
	Neutral        *decimal.Decimal     `json:"neutral"`
	BullBearSpread *decimal.Decimal     `json:"bull_bear_spread"`
}

type predictRequest struct {
	Rows []featureVector `json:"rows"`
}

type predictionData struct {
	Date        string           `json:"date"`
	Prediction  *int             `json:"prediction"`
	Probability *decimal.Decimal `json:"probability"`
}

type predictResponse struct {
	Predictions []predictionData `json:"predictions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Predict scores the given feature rows via POST /api/v1/predict. The
// sidecar must return one prediction per row; direction outside {0,1} or
// probability outside [0,1] rejects the whole response.
func (c *Client) Predict(ctx context.Context, rows []models.FeatureRow) ([]models.Prediction, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	request := predictRequest{Rows: make([]featureVector, len(rows))}
	for i, row := range rows {
		request.Rows[i] = featureVector{
			Date:           models.DayKey(row.Date),
			Close:          row.Close,
			Return1D:       nullableDecimal(row.Return1D),
			MA10:           nullableDecimal(row.MA10),
			MA20:           nullableDecimal(row.MA20),
			Volatility10D:  nullableDecimal(row.Volatility10D),
			NetCommercial:  nullableDecimal(row.NetCommercial),
			Bullish:        nullableDecimal(row.Bullish),
			Bearish:        nullableDecimal(row.Bearish),
			Neutral:        nullableDecimal(row.Neutral),
			BullBearSpread: nullableDecimal(row.BullBearSpread),
		}
	}

	var response predictResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/api/v1/predict", request, &response); err != nil {
		return nil, err
	}

	if len(response.Predictions) != len(rows) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d rows",
			len(response.Predictions), len(rows))
	}

	predictions := make([]models.Prediction, len(response.Predictions))
	for i, p := range response.Predictions {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("classifier returned invalid date %q: %w", p.Date, err)
		}
		if p.Prediction == nil || (*p.Prediction != 0 && *p.Prediction != 1) {
			return nil, utils.NewSchemaValueError("classifier", "prediction",
				fmt.Sprintf("invalid for %s: want 0 or 1", p.Date))
		}
		if p.Probability == nil ||
			p.Probability.LessThan(decimal.Zero) ||
			p.Probability.GreaterThan(decimal.NewFromInt(1)) {
			return nil, utils.NewSchemaValueError("classifier", "probability",
				fmt.Sprintf("outside [0, 1] for %s", p.Date))
		}
		predictions[i] = models.Prediction{
			Date:        models.NormalizeDay(date),
			Direction:   models.Direction(*p.Prediction),
			Probability: *p.Probability,
		}
	}
	return predictions, nil
}

func nullableDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
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
		var errorResp errorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return fmt.Errorf("classifier error (%d): %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("classifier error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
