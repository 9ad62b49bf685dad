package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is one persisted classifier call for a symbol and day
type Signal struct {
	ID          string          `json:"id" db:"id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Date        time.Time       `json:"date" db:"day"`
	Prediction  Direction       `json:"prediction" db:"prediction"`
	Probability decimal.Decimal `json:"probability" db:"probability"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// SignalOverviewRequest narrows and orders the signal overview
type SignalOverviewRequest struct {
	MinProbability decimal.Decimal `json:"min_probability"`
	Since          *time.Time      `json:"since,omitempty"`
	Limit          int             `json:"limit"`
}
