package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one daily OHLCV bar for a symbol
type Candle struct {
	Symbol string          `json:"symbol" db:"symbol"`
	Date   time.Time       `json:"date" db:"day"`
	Open   decimal.Decimal `json:"open" db:"open"`
	High   decimal.Decimal `json:"high" db:"high"`
	Low    decimal.Decimal `json:"low" db:"low"`
	Close  decimal.Decimal `json:"close" db:"close"`
	Volume decimal.Decimal `json:"volume" db:"volume"`
}

// PricePoint is the minimal price observation consumed by the feature aggregator
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// PositioningPoint represents one commercial positioning report
type PositioningPoint struct {
	Date            time.Time       `json:"date" db:"report_date"`
	CommercialLong  decimal.Decimal `json:"commercial_long" db:"commercial_long"`
	CommercialShort decimal.Decimal `json:"commercial_short" db:"commercial_short"`
}

// SentimentPoint represents one sentiment survey reading in percent
type SentimentPoint struct {
	Date    time.Time       `json:"date" db:"report_date"`
	Bullish decimal.Decimal `json:"bullish" db:"bullish"`
	Neutral decimal.Decimal `json:"neutral" db:"neutral"`
	Bearish decimal.Decimal `json:"bearish" db:"bearish"`
}

// NormalizeDay truncates a timestamp to its UTC calendar day
func NormalizeDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a timestamp as the date key used for exact-date merges
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PricePointsFromCandles projects candles onto the close-only series used
// for feature aggregation
func PricePointsFromCandles(candles []Candle) []PricePoint {
	points := make([]PricePoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, PricePoint{Date: c.Date, Close: c.Close})
	}
	return points
}
