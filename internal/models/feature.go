package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the classifier's directional call for a trading day
type Direction int

const (
	// DirectionBearish models a short bias (class 0)
	DirectionBearish Direction = 0
	// DirectionBullish models a long bias (class 1)
	DirectionBullish Direction = 1
)

// String returns the human-readable direction label
func (d Direction) String() string {
	if d == DirectionBullish {
		return "bullish"
	}
	return "bearish"
}

// IsBullish reports whether the call is a long bias
func (d Direction) IsBullish() bool {
	return d == DirectionBullish
}

// FeatureRow is one trading day after the merge of price, positioning and
// sentiment series. Close is always present; every derived or merged column
// is null until its window fills or an exact-date match exists.
type FeatureRow struct {
	Date           time.Time           `json:"date" db:"day"`
	Close          decimal.Decimal     `json:"close" db:"close"`
	Return1D       decimal.NullDecimal `json:"return_1d" db:"return_1d"`
	MA10           decimal.NullDecimal `json:"ma_10" db:"ma_10"`
	MA20           decimal.NullDecimal `json:"ma_20" db:"ma_20"`
	Volatility10D  decimal.NullDecimal `json:"volatility_10d" db:"volatility_10d"`
	NetCommercial  decimal.NullDecimal `json:"net_commercial" db:"net_commercial"`
	Bullish        decimal.NullDecimal `json:"bullish" db:"bullish"`
	Bearish        decimal.NullDecimal `json:"bearish" db:"bearish"`
	Neutral        decimal.NullDecimal `json:"neutral" db:"neutral"`
	BullBearSpread decimal.NullDecimal `json:"bull_bear_spread" db:"bull_bear_spread"`
}

// Prediction is one classifier output: a direction call plus the model's
// confidence that the true label is bullish
type Prediction struct {
	Date        time.Time       `json:"date"`
	Direction   Direction       `json:"prediction"`
	Probability decimal.Decimal `json:"probability"`
}

// PredictionRecord is a feature row with the classifier's output attached.
// Both fields stay nil/invalid for days the classifier never scored.
type PredictionRecord struct {
	FeatureRow
	Prediction  *Direction          `json:"prediction"`
	Probability decimal.NullDecimal `json:"probability"`
}

// HasPrediction reports whether both the direction call and its probability
// are present, the precondition for trade eligibility
func (r PredictionRecord) HasPrediction() bool {
	return r.Prediction != nil && r.Probability.Valid
}
