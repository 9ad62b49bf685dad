package services

import (
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// Rolling window widths of the feature schema. Fixed constants, not
// configuration: the classifier was trained against exactly these columns.
const (
	maShortWindow    = 10
	maLongWindow     = 20
	volatilityWindow = 10
)

// FeatureAggregator merges a primary daily price series with the weekly
// positioning and sentiment series into one feature table. Pure transform:
// inputs are never mutated and every call returns a fresh table.
//
// Merge policy is a left join on the exact calendar day of the price
// series. Auxiliary dates with no price row are dropped; price days with
// no auxiliary match keep null feature values, never interpolated or
// forward-filled.
type FeatureAggregator struct{}

// NewFeatureAggregator creates a feature aggregator.
func NewFeatureAggregator() *FeatureAggregator {
	return &FeatureAggregator{}
}

// Aggregate builds the feature table from the given series.
//
// The price series is defensively sorted ascending and de-duplicated by
// day (last observation wins) before any window math, so the output is
// sorted and unique by date. Rolling statistics use trailing inclusive
// windows; the first W-1 rows of a window are null. return_1d is null on
// the first row.
func (fa *FeatureAggregator) Aggregate(
	prices []models.PricePoint,
	positioning []models.PositioningPoint,
	sentiment []models.SentimentPoint,
) []models.FeatureRow {
	series := sortAndDedupPrices(prices)

	rows := make([]models.FeatureRow, len(series))
	closes := make([]float64, len(series))
	for i, p := range series {
		rows[i] = models.FeatureRow{
			Date:  models.NormalizeDay(p.Date),
			Close: p.Close,
		}
		closes[i] = p.Close.InexactFloat64()
	}

	// return_1d stays in decimal so the simulator's money math never
	// round-trips through float64
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Close
		if prev.IsZero() {
			continue
		}
		change := series[i].Close.Sub(prev).Div(prev)
		rows[i].Return1D = decimal.NullDecimal{Decimal: change, Valid: true}
	}

	applySMA(rows, closes, maShortWindow, func(r *models.FeatureRow, v decimal.NullDecimal) { r.MA10 = v })
	applySMA(rows, closes, maLongWindow, func(r *models.FeatureRow, v decimal.NullDecimal) { r.MA20 = v })

	// Trailing sample standard deviation of close
	for i := volatilityWindow - 1; i < len(closes); i++ {
		window := closes[i-volatilityWindow+1 : i+1]
		vol := sampleStdDev(window)
		rows[i].Volatility10D = decimal.NullDecimal{Decimal: decimal.NewFromFloat(vol), Valid: true}
	}

	posByDay := make(map[string]models.PositioningPoint, len(positioning))
	for _, p := range positioning {
		posByDay[models.DayKey(p.Date)] = p
	}
	sentByDay := make(map[string]models.SentimentPoint, len(sentiment))
	for _, s := range sentiment {
		sentByDay[models.DayKey(s.Date)] = s
	}

	for i := range rows {
		key := models.DayKey(rows[i].Date)

		if p, ok := posByDay[key]; ok {
			net := p.CommercialLong.Sub(p.CommercialShort)
			rows[i].NetCommercial = decimal.NullDecimal{Decimal: net, Valid: true}
		}

		if s, ok := sentByDay[key]; ok {
			rows[i].Bullish = decimal.NullDecimal{Decimal: s.Bullish, Valid: true}
			rows[i].Bearish = decimal.NullDecimal{Decimal: s.Bearish, Valid: true}
			rows[i].Neutral = decimal.NullDecimal{Decimal: s.Neutral, Valid: true}
			spread := s.Bullish.Sub(s.Bearish)
			rows[i].BullBearSpread = decimal.NullDecimal{Decimal: spread, Valid: true}
		}
	}

	return rows
}

// applySMA computes the trailing simple moving average of width w and
// writes it onto the rows where the window is full. The indicator emits
// len(closes)-w+1 values; value j belongs to row j+w-1.
func applySMA(rows []models.FeatureRow, closes []float64, w int, set func(*models.FeatureRow, decimal.NullDecimal)) {
	if len(closes) < w {
		return
	}

	sma := trend.NewSmaWithPeriod[float64](w)
	values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes)))

	for j, v := range values {
		i := j + w - 1
		if i >= len(rows) {
			break
		}
		set(&rows[i], decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true})
	}
}

// sortAndDedupPrices returns a copy of the price series sorted ascending
// by day and unique by day, keeping the last observation for a day. The
// input slice is left untouched.
func sortAndDedupPrices(prices []models.PricePoint) []models.PricePoint {
	sorted := make([]models.PricePoint, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return models.NormalizeDay(sorted[i].Date).Before(models.NormalizeDay(sorted[j].Date))
	})

	out := sorted[:0]
	for _, p := range sorted {
		if len(out) > 0 && models.DayKey(out[len(out)-1].Date) == models.DayKey(p.Date) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
