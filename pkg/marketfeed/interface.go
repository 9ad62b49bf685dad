package marketfeed

import (
	"context"
	"time"

	"github.com/sentipulse/sentipulse-go/internal/models"
)

// MarketFeed is the capability the collector consumes. The HTTP Client is
// the production implementation; tests inject deterministic fakes.
type MarketFeed interface {
	HealthCheck(ctx context.Context) (*HealthResponse, error)
	GetCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
	GetPositioning(ctx context.Context, market string, start, end time.Time) ([]models.PositioningPoint, error)
	GetSentiment(ctx context.Context, start, end time.Time) ([]models.SentimentPoint, error)
	Close() error
}

var _ MarketFeed = (*Client)(nil)
