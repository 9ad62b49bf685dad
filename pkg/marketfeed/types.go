package marketfeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Day is a calendar day serialized as "2006-01-02" on the wire.
type Day struct {
	time.Time
}

const dayLayout = "2006-01-02"

// UnmarshalJSON parses the sidecar's date format.
func (d *Day) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid day value: %w", err)
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return fmt.Errorf("invalid day %q: %w", s, err)
	}
	d.Time = t.UTC()
	return nil
}

// MarshalJSON formats the day for the sidecar.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dayLayout))
}

// CandleData is one daily OHLCV bar in a sidecar response. Pointer fields
// let the decode boundary distinguish absent from zero.
type CandleData struct {
	Date   Day              `json:"date"`
	Open   *decimal.Decimal `json:"open"`
	High   *decimal.Decimal `json:"high"`
	Low    *decimal.Decimal `json:"low"`
	Close  *decimal.Decimal `json:"close"`
	Volume *decimal.Decimal `json:"volume"`
}

// CandlesResponse is the payload of GET /api/v1/candles.
type CandlesResponse struct {
	Symbol  string       `json:"symbol"`
	Candles []CandleData `json:"candles"`
}

// PositioningData is one commercial positioning report.
type PositioningData struct {
	ReportDate      Day              `json:"report_date"`
	CommercialLong  *decimal.Decimal `json:"commercial_long"`
	CommercialShort *decimal.Decimal `json:"commercial_short"`
}

// PositioningResponse is the payload of GET /api/v1/positioning.
type PositioningResponse struct {
	Market  string            `json:"market"`
	Reports []PositioningData `json:"reports"`
}

// SentimentData is one sentiment survey reading in percent.
type SentimentData struct {
	ReportDate Day              `json:"report_date"`
	Bullish    *decimal.Decimal `json:"bullish"`
	Neutral    *decimal.Decimal `json:"neutral"`
	Bearish    *decimal.Decimal `json:"bearish"`
}

// SentimentResponse is the payload of GET /api/v1/sentiment.
type SentimentResponse struct {
	Readings []SentimentData `json:"readings"`
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the sidecar's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
