package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// SignalFilter selects tradeable rows out of a prediction table. Pure
// transforms over the input slice, which is never mutated.
type SignalFilter struct{}

// NewSignalFilter creates a signal filter.
func NewSignalFilter() *SignalFilter {
	return &SignalFilter{}
}

// Filter returns the ordered subsequence of records whose prediction and
// probability are both present and whose probability is at or above the
// threshold. Input order is preserved. Raising the threshold can only
// shrink the result, never grow it.
func (sf *SignalFilter) Filter(records []models.PredictionRecord, threshold decimal.Decimal) []models.PredictionRecord {
	out := make([]models.PredictionRecord, 0, len(records))
	for _, r := range records {
		if !r.HasPrediction() {
			continue
		}
		if r.Probability.Decimal.LessThan(threshold) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Overview returns the digest view of a prediction table: rows passing
// Filter and an optional minimum date, sorted by probability descending
// with ties broken by ascending date, truncated to limit when limit > 0.
func (sf *SignalFilter) Overview(records []models.PredictionRecord, minProbability decimal.Decimal, since *time.Time, limit int) []models.PredictionRecord {
	passed := sf.Filter(records, minProbability)

	if since != nil {
		bound := models.NormalizeDay(*since)
		kept := passed[:0]
		for _, r := range passed {
			if !r.Date.Before(bound) {
				kept = append(kept, r)
			}
		}
		passed = kept
	}

	sort.SliceStable(passed, func(i, j int) bool {
		pi, pj := passed[i].Probability.Decimal, passed[j].Probability.Decimal
		if !pi.Equal(pj) {
			return pi.GreaterThan(pj)
		}
		return passed[i].Date.Before(passed[j].Date)
	})

	if limit > 0 && len(passed) > limit {
		passed = passed[:limit]
	}
	return passed
}
