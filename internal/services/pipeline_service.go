package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
)

// ErrPipelineBusy is returned when a run is triggered while another run
// is still executing. The API maps it to 409.
var ErrPipelineBusy = errors.New("a pipeline run is already in progress")

// Stage dependencies, satisfied by the concrete services. Kept narrow so
// pipeline tests can stub each stage independently.

// CollectStage ingests the raw series from the market feed.
type CollectStage interface {
	CollectOnce(ctx context.Context) error
}

// FeatureStage rebuilds the feature table for a symbol and window.
type FeatureStage interface {
	Rebuild(ctx context.Context, symbol string, from, to time.Time) ([]models.FeatureRow, error)
}

// PredictStage scores the feature table and persists fresh signals.
type PredictStage interface {
	Refresh(ctx context.Context, symbol string) (int, error)
	Digest(ctx context.Context, symbol string, minProbability decimal.Decimal, size int) ([]string, error)
}

// BacktestStage simulates trading over the scored table.
type BacktestStage interface {
	Run(ctx context.Context, cfg BacktestRunConfig, from, to *time.Time) (*models.BacktestRun, error)
}

// NotifyStage delivers the run outcome and signal digest.
type NotifyStage interface {
	Enabled() bool
	NotifyPipelineRun(ctx context.Context, run *models.PipelineRun, summaryText string) error
	NotifySignalDigest(ctx context.Context, symbol string, lines []string) error
}

// PipelineService executes the ordered stages collect, features,
// predict, backtest, notify. Stages run strictly sequentially, each
// under its timeout budget, and the first stage error aborts the run;
// later stages do not execute. Only one run may be active at a time.
type PipelineService struct {
	collector CollectStage
	features  FeatureStage
	signals   PredictStage
	backtests BacktestStage
	notifier  NotifyStage
	runs      PipelineStore
	monitor   *ResourceMonitor
	timeouts  *TimeoutManager
	cfg       *config.Config
	logger    *logrus.Logger
	tracer    *telemetry.BusinessTracer
	titler    cases.Caser

	mu      sync.Mutex
	running bool
}

// NewPipelineService creates a pipeline service.
func NewPipelineService(
	collector CollectStage,
	features FeatureStage,
	signals PredictStage,
	backtests BacktestStage,
	notifier NotifyStage,
	runs PipelineStore,
	monitor *ResourceMonitor,
	cfg *config.Config,
	logger *logrus.Logger,
) *PipelineService {
	return &PipelineService{
		collector: collector,
		features:  features,
		signals:   signals,
		backtests: backtests,
		notifier:  notifier,
		runs:      runs,
		monitor:   monitor,
		timeouts:  NewTimeoutManager(DefaultStageTimeouts(), logger),
		cfg:       cfg,
		logger:    logger,
		tracer:    telemetry.NewBusinessTracer(),
		titler:    cases.Title(language.English),
	}
}

// Running reports whether a pipeline run is currently executing.
func (p *PipelineService) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger starts a pipeline run. It returns ErrPipelineBusy when
// another run is still active. The persisted run is returned with its
// final status and stage results.
func (p *PipelineService) Trigger(ctx context.Context) (*models.PipelineRun, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrPipelineBusy
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	run := &models.PipelineRun{
		ID:        uuid.New().String(),
		Status:    models.PipelineStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := p.runs.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist pipeline run: %w", err)
	}

	p.logger.WithField("run_id", run.ID).Info("Pipeline run started")
	p.execute(ctx, run)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err := p.runs.UpdateRun(ctx, run); err != nil {
		p.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to persist pipeline run outcome")
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"status":   run.Status,
		"stages":   len(run.Stages),
		"duration": finished.Sub(run.StartedAt).String(),
	}).Info("Pipeline run finished")

	return run, nil
}

// GetRun returns a stored pipeline run by id.
func (p *PipelineService) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	return p.runs.GetRun(ctx, id)
}

// ListRuns returns up to limit most recent pipeline runs.
func (p *PipelineService) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	return p.runs.ListRuns(ctx, limit)
}

type pipelineStage struct {
	name string
	fn   func(ctx context.Context, state *pipelineState) (string, error)
}

// pipelineState carries stage outputs forward to later stages.
type pipelineState struct {
	backtestRun *models.BacktestRun
	digest      []string
}

func (p *PipelineService) execute(ctx context.Context, run *models.PipelineRun) {
	symbol := p.cfg.Pipeline.Symbol
	from, to := p.window()
	state := &pipelineState{}

	stages := []pipelineStage{
		{name: "collect", fn: func(ctx context.Context, _ *pipelineState) (string, error) {
			if err := p.collector.CollectOnce(ctx); err != nil {
				return "", err
			}
			return "raw series collected", nil
		}},
		{name: "features", fn: func(ctx context.Context, _ *pipelineState) (string, error) {
			rows, err := p.features.Rebuild(ctx, symbol, from, to)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d feature rows", len(rows)), nil
		}},
		{name: "predict", fn: func(ctx context.Context, state *pipelineState) (string, error) {
			count, err := p.signals.Refresh(ctx, symbol)
			if err != nil {
				return "", err
			}
			minProbability := decimal.NewFromFloat(p.cfg.Pipeline.MinProbability)
			digest, err := p.signals.Digest(ctx, symbol, minProbability, p.digestSize())
			if err != nil {
				return "", err
			}
			state.digest = digest
			return fmt.Sprintf("%d signals scored", count), nil
		}},
		{name: "backtest", fn: func(ctx context.Context, state *pipelineState) (string, error) {
			btRun, err := p.backtests.Run(ctx, DefaultBacktestRunConfig(symbol, p.cfg.Backtest), &from, &to)
			if err != nil {
				return "", err
			}
			state.backtestRun = btRun
			return fmt.Sprintf("%d trades, cumulative %s%%",
				btRun.Summary.TotalTrades, btRun.Summary.CumulativeReturnPct.StringFixed(2)), nil
		}},
		{name: "notify", fn: func(ctx context.Context, state *pipelineState) (string, error) {
			if !p.notifier.Enabled() {
				return "notifications disabled", nil
			}
			if len(state.digest) > 0 {
				if err := p.notifier.NotifySignalDigest(ctx, symbol, state.digest); err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("%d digest lines delivered", len(state.digest)), nil
		}},
	}

	for _, stage := range stages {
		result := p.runStage(ctx, run.ID, stage, state)
		run.Stages = append(run.Stages, result)
		if !result.Succeeded {
			run.Status = models.PipelineStatusFailed
			run.Error = result.Error
			p.notifyOutcome(ctx, run, state)
			return
		}
	}

	run.Status = models.PipelineStatusSucceeded
	p.notifyOutcome(ctx, run, state)
}

func (p *PipelineService) runStage(ctx context.Context, runID string, stage pipelineStage, state *pipelineState) models.StageResult {
	ctx, span := p.tracer.TracePipelineStage(ctx, runID, stage.name)
	defer span.End()

	ctx, cancel := p.timeouts.StageContext(ctx, runID, stage.name)
	defer cancel()

	p.monitor.LogStageSnapshot(ctx, runID, stage.name)
	started := time.Now()
	detail, err := stage.fn(ctx, state)
	duration := time.Since(started)
	p.tracer.RecordPipelineStageResult(span, duration, err)

	result := models.StageResult{
		Name:       stage.name,
		Succeeded:  err == nil,
		Detail:     detail,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		p.logger.WithError(err).WithFields(logrus.Fields{
			"run_id": runID,
			"stage":  stage.name,
		}).Error("Pipeline stage failed")
	} else {
		p.logger.WithFields(logrus.Fields{
			"run_id":   runID,
			"stage":    stage.name,
			"detail":   detail,
			"duration": duration.String(),
		}).Info("Pipeline stage completed")
	}
	return result
}

func (p *PipelineService) notifyOutcome(ctx context.Context, run *models.PipelineRun, state *pipelineState) {
	if !p.notifier.Enabled() {
		return
	}
	if err := p.notifier.NotifyPipelineRun(ctx, run, p.Summarize(run, state.backtestRun)); err != nil {
		p.logger.WithError(err).WithField("run_id", run.ID).Warn("Failed to deliver pipeline notification")
	}
}

// Summarize renders a human-readable run summary with title-cased stage
// names, per-stage outcomes, and the backtest numbers when available.
func (p *PipelineService) Summarize(run *models.PipelineRun, btRun *models.BacktestRun) string {
	var b strings.Builder
	for _, stage := range run.Stages {
		mark := "✅"
		if !stage.Succeeded {
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s %s (%dms)", mark, p.titler.String(stage.Name), stage.DurationMS)
		if stage.Detail != "" {
			fmt.Fprintf(&b, ": %s", stage.Detail)
		}
		if stage.Error != "" {
			fmt.Fprintf(&b, ": %s", stage.Error)
		}
		b.WriteString("\n")
	}
	if btRun != nil {
		fmt.Fprintf(&b, "Trades: %d | Win rate: %s%% | Avg: %s%% | Cumulative: %s%%\n",
			btRun.Summary.TotalTrades,
			btRun.Summary.WinRate.StringFixed(2),
			btRun.Summary.AvgReturnPct.StringFixed(2),
			btRun.Summary.CumulativeReturnPct.StringFixed(2))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *PipelineService) window() (time.Time, time.Time) {
	days := p.cfg.Collector.BackfillDays
	if days <= 0 {
		days = 730
	}
	to := models.NormalizeDay(time.Now().UTC())
	return to.AddDate(0, 0, -days), to
}

func (p *PipelineService) digestSize() int {
	if p.cfg.Pipeline.DigestSize > 0 {
		return p.cfg.Pipeline.DigestSize
	}
	return 10
}
