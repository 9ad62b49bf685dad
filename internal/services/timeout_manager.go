package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StageTimeouts bounds each pipeline stage. Collection and backtesting
// get the widest budgets since they fan out over the full backfill
// window; notify is a single Telegram call.
type StageTimeouts struct {
	Collect  time.Duration
	Features time.Duration
	Predict  time.Duration
	Backtest time.Duration
	Notify   time.Duration
	Default  time.Duration
}

// DefaultStageTimeouts returns the stock stage budgets.
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Collect:  60 * time.Second,
		Features: 30 * time.Second,
		Predict:  30 * time.Second,
		Backtest: 60 * time.Second,
		Notify:   10 * time.Second,
		Default:  30 * time.Second,
	}
}

// TimeoutManager derives deadline-bound contexts for pipeline stages and
// tracks the cancel funcs of stages still in flight so a shutdown can
// abort them.
type TimeoutManager struct {
	timeouts StageTimeouts
	logger   *logrus.Logger

	mu     sync.RWMutex
	active map[string]context.CancelFunc
}

// NewTimeoutManager creates a timeout manager. Zero-valued budgets fall
// back to their defaults.
func NewTimeoutManager(timeouts StageTimeouts, logger *logrus.Logger) *TimeoutManager {
	defaults := DefaultStageTimeouts()
	if timeouts.Collect <= 0 {
		timeouts.Collect = defaults.Collect
	}
	if timeouts.Features <= 0 {
		timeouts.Features = defaults.Features
	}
	if timeouts.Predict <= 0 {
		timeouts.Predict = defaults.Predict
	}
	if timeouts.Backtest <= 0 {
		timeouts.Backtest = defaults.Backtest
	}
	if timeouts.Notify <= 0 {
		timeouts.Notify = defaults.Notify
	}
	if timeouts.Default <= 0 {
		timeouts.Default = defaults.Default
	}
	return &TimeoutManager{
		timeouts: timeouts,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// TimeoutFor returns the budget for a stage name.
func (tm *TimeoutManager) TimeoutFor(stage string) time.Duration {
	switch stage {
	case "collect":
		return tm.timeouts.Collect
	case "features":
		return tm.timeouts.Features
	case "predict":
		return tm.timeouts.Predict
	case "backtest":
		return tm.timeouts.Backtest
	case "notify":
		return tm.timeouts.Notify
	default:
		return tm.timeouts.Default
	}
}

// StageContext returns a child context bounded by the stage's budget.
// The returned cancel must be called when the stage finishes; it also
// removes the stage from the active registry.
func (tm *TimeoutManager) StageContext(parent context.Context, runID, stage string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, tm.TimeoutFor(stage))
	key := runID + ":" + stage

	tm.mu.Lock()
	tm.active[key] = cancel
	tm.mu.Unlock()

	return ctx, func() {
		tm.mu.Lock()
		delete(tm.active, key)
		tm.mu.Unlock()
		cancel()
	}
}

// ActiveStages returns the run:stage keys currently in flight.
func (tm *TimeoutManager) ActiveStages() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	keys := make([]string, 0, len(tm.active))
	for key := range tm.active {
		keys = append(keys, key)
	}
	return keys
}

// ActiveStageCount returns the number of stages currently in flight.
func (tm *TimeoutManager) ActiveStageCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.active)
}

// Shutdown cancels every in-flight stage.
func (tm *TimeoutManager) Shutdown() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for key, cancel := range tm.active {
		cancel()
		if tm.logger != nil {
			tm.logger.WithField("stage", key).Info("Stage cancelled during shutdown")
		}
	}
	tm.active = make(map[string]context.CancelFunc)
}
