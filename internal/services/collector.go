package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sentipulse/sentipulse-go/internal/cache"
	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
	"github.com/sentipulse/sentipulse-go/pkg/marketfeed"
)

// Source names used for cooldowns and logging.
const (
	sourceCandles     = "candles"
	sourcePositioning = "positioning"
	sourceSentiment   = "sentiment"
)

// cooldownAfterFailures is how many consecutive failures park a
// source/symbol pair until its cooldown expires.
const cooldownAfterFailures = 3

// cooldownTTL is how long a failing source/symbol pair sits out.
const cooldownTTL = 30 * time.Minute

// CollectorService ingests the three raw series from the market feed
// sidecar into Postgres on a fixed interval. Per-source failures are
// logged and counted, never fatal to the loop; a source/symbol pair that
// keeps failing is parked in the cooldown cache instead of being retried
// every tick.
type CollectorService struct {
	feed      marketfeed.MarketFeed
	markets   MarketStore
	cfg       *config.Config
	logger    *logrus.Logger
	recovery  *ErrorRecoveryManager
	cooldowns cache.SourceCooldownCache
	tracer    *telemetry.BusinessTracer

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	failures map[string]int
}

// NewCollectorService creates a collector service.
func NewCollectorService(feed marketfeed.MarketFeed, markets MarketStore, cfg *config.Config, recovery *ErrorRecoveryManager, cooldowns cache.SourceCooldownCache, logger *logrus.Logger) *CollectorService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CollectorService{
		feed:      feed,
		markets:   markets,
		cfg:       cfg,
		logger:    logger,
		recovery:  recovery,
		cooldowns: cooldowns,
		tracer:    telemetry.NewBusinessTracer(),
		ctx:       ctx,
		cancel:    cancel,
		failures:  make(map[string]int),
	}
}

// Start launches the collection loop. The first pass runs immediately so
// a fresh deployment has data before the first interval elapses.
func (c *CollectorService) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("collector service already started")
	}
	if !c.cfg.Collector.Enabled {
		c.logger.Info("Collector service disabled by configuration")
		return nil
	}
	c.running = true

	interval := time.Duration(c.cfg.Collector.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	c.wg.Add(1)
	go c.run(interval)

	c.logger.WithField("interval", interval).Info("Collector service started")
	return nil
}

// Stop cancels the collection loop and waits for it to drain.
func (c *CollectorService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.logger.Info("Collector service stopped")
}

// IsHealthy reports whether the loop is running, or trivially true when
// collection is disabled.
func (c *CollectorService) IsHealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running || !c.cfg.Collector.Enabled
}

func (c *CollectorService) run(interval time.Duration) {
	defer c.wg.Done()

	if err := c.CollectOnce(c.ctx); err != nil {
		c.logger.WithError(err).Warn("Initial collection pass failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.CollectOnce(c.ctx); err != nil {
				c.logger.WithError(err).Warn("Collection pass failed")
			}
		}
	}
}

// CollectOnce performs one full collection pass over every configured
// symbol plus the positioning and sentiment series. The pass always
// visits every source; the first error is returned after the pass.
func (c *CollectorService) CollectOnce(ctx context.Context) error {
	ctx, span := c.tracer.TraceMarketDataCollection(ctx, "market_feed", c.cfg.MarketFeed.Symbols)
	defer span.End()

	started := time.Now()
	collected, failed := 0, 0
	var firstErr error

	record := func(source, symbol string, err error) {
		if err == nil {
			collected++
			c.clearFailure(source, symbol)
			return
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		c.recordFailure(source, symbol, err)
	}

	end := models.NormalizeDay(time.Now())
	start := end.AddDate(0, 0, -c.backfillDays())

	for _, symbol := range c.cfg.MarketFeed.Symbols {
		record(sourceCandles, symbol, c.collectCandles(ctx, symbol, start, end))
	}
	record(sourcePositioning, c.cfg.MarketFeed.COTMarket, c.collectPositioning(ctx, start, end))
	record(sourceSentiment, c.primarySymbol(), c.collectSentiment(ctx, start, end))

	metrics := telemetry.MarketDataMetrics{
		CollectedCount: collected,
		FailedCount:    failed,
		CollectionTime: time.Since(started),
	}
	if collected+failed > 0 {
		metrics.SuccessRate = float64(collected) / float64(collected+failed)
	}
	c.tracer.RecordMarketDataMetrics(span, metrics)

	if firstErr != nil {
		telemetry.RecordError(span, firstErr)
	}
	return firstErr
}

func (c *CollectorService) collectCandles(ctx context.Context, symbol string, start, end time.Time) error {
	if cooling, reason := c.cooldowns.IsCoolingDown(sourceCandles, symbol); cooling {
		c.logger.WithFields(logrus.Fields{"symbol": symbol, "reason": reason}).Debug("Skipping candles: cooling down")
		return nil
	}

	// Incremental after the first fill: only fetch from the last stored day.
	if latest, err := c.markets.LatestCandleDay(ctx, symbol); err == nil && latest != nil && latest.After(start) {
		start = *latest
	}

	return c.withRetry(ctx, func() error {
		candles, err := c.feed.GetCandles(ctx, symbol, start, end)
		if err != nil {
			return err
		}
		stored, err := c.markets.UpsertCandles(ctx, candles)
		if err != nil {
			return err
		}
		c.logger.WithFields(logrus.Fields{"symbol": symbol, "rows": stored}).Debug("Stored candles")
		return nil
	})
}

func (c *CollectorService) collectPositioning(ctx context.Context, start, end time.Time) error {
	market := c.cfg.MarketFeed.COTMarket
	if cooling, _ := c.cooldowns.IsCoolingDown(sourcePositioning, market); cooling {
		return nil
	}

	return c.withRetry(ctx, func() error {
		points, err := c.feed.GetPositioning(ctx, market, start, end)
		if err != nil {
			return err
		}
		stored, err := c.markets.UpsertPositioning(ctx, market, points)
		if err != nil {
			return err
		}
		c.logger.WithFields(logrus.Fields{"market": market, "rows": stored}).Debug("Stored positioning")
		return nil
	})
}

func (c *CollectorService) collectSentiment(ctx context.Context, start, end time.Time) error {
	symbol := c.primarySymbol()
	if cooling, _ := c.cooldowns.IsCoolingDown(sourceSentiment, symbol); cooling {
		return nil
	}

	return c.withRetry(ctx, func() error {
		points, err := c.feed.GetSentiment(ctx, start, end)
		if err != nil {
			return err
		}
		stored, err := c.markets.UpsertSentiment(ctx, symbol, points)
		if err != nil {
			return err
		}
		c.logger.WithField("rows", stored).Debug("Stored sentiment")
		return nil
	})
}

// withRetry runs fn under the marketfeed_api retry policy when an error
// recovery manager is wired, plain otherwise.
func (c *CollectorService) withRetry(ctx context.Context, fn func() error) error {
	if c.recovery == nil {
		return fn()
	}
	return c.recovery.ExecuteWithRetry(ctx, "marketfeed_api", fn)
}

func (c *CollectorService) recordFailure(source, symbol string, err error) {
	key := source + ":" + symbol
	c.mu.Lock()
	c.failures[key]++
	count := c.failures[key]
	c.mu.Unlock()

	c.logger.WithError(err).WithFields(logrus.Fields{
		"source":   source,
		"symbol":   symbol,
		"failures": count,
	}).Warn("Collection source failed")

	if count >= cooldownAfterFailures {
		c.cooldowns.Add(source, symbol, err.Error(), cooldownTTL)
		c.mu.Lock()
		delete(c.failures, key)
		c.mu.Unlock()
	}
}

func (c *CollectorService) clearFailure(source, symbol string) {
	c.mu.Lock()
	delete(c.failures, source+":"+symbol)
	c.mu.Unlock()
}

// backfillDays is how far back the series are requested. The upserts are
// idempotent, so re-fetching an already stored range is harmless.
func (c *CollectorService) backfillDays() int {
	if c.cfg.Collector.BackfillDays > 0 {
		return c.cfg.Collector.BackfillDays
	}
	return 730
}

// primarySymbol keys the sentiment series: survey readings are
// market-wide, not per ticker, so they are stored under the first
// configured symbol.
func (c *CollectorService) primarySymbol() string {
	return c.cfg.MarketFeed.Symbols[0]
}
