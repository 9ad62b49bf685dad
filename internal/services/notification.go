package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/sentipulse/sentipulse-go/internal/config"
	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/telemetry"
)

// NotificationService delivers pipeline outcomes and signal digests over
// Telegram. The service degrades cleanly: with no bot token configured
// every notification is a logged no-op, never an error.
type NotificationService struct {
	bot    *bot.Bot
	chatID int64
	logger *logrus.Logger
	tracer *telemetry.BusinessTracer
}

// NewNotificationService creates a notification service from the
// Telegram configuration. An unusable token or chat id disables delivery
// rather than failing startup.
func NewNotificationService(cfg config.TelegramConfig, logger *logrus.Logger) *NotificationService {
	ns := &NotificationService{
		logger: logger,
		tracer: telemetry.NewBusinessTracer(),
	}

	if !cfg.Enabled || cfg.BotToken == "" {
		logger.Info("Telegram notifications disabled")
		return ns
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		logger.WithError(err).Warn("Invalid telegram chat id, notifications disabled")
		return ns
	}

	telegramBot, err := bot.New(cfg.BotToken)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize telegram bot, notifications disabled")
		return ns
	}

	ns.bot = telegramBot
	ns.chatID = chatID
	return ns
}

// Enabled reports whether a bot is wired and messages will actually send.
func (ns *NotificationService) Enabled() bool {
	return ns.bot != nil
}

// NotifyPipelineRun sends the run's outcome with its per-stage summary.
func (ns *NotificationService) NotifyPipelineRun(ctx context.Context, run *models.PipelineRun, summaryText string) error {
	header := "✅ Pipeline run succeeded"
	if run.Status == models.PipelineStatusFailed {
		header = fmt.Sprintf("❌ Pipeline run failed: %s", run.Error)
	}
	message := fmt.Sprintf("%s\nrun %s\n\n%s", header, run.ID, summaryText)
	return ns.send(ctx, "pipeline_run", message)
}

// NotifySignalDigest sends the top-signal digest for a symbol, one
// signal per line.
func (ns *NotificationService) NotifySignalDigest(ctx context.Context, symbol string, lines []string) error {
	if len(lines) == 0 {
		return ns.send(ctx, "signal_digest", fmt.Sprintf("📊 %s: no signals above the probability floor", symbol))
	}
	message := fmt.Sprintf("📊 Top signals for %s\n\n%s", symbol, strings.Join(lines, "\n"))
	return ns.send(ctx, "signal_digest", message)
}

// NotifyBacktestSummary sends the headline numbers of a completed run.
func (ns *NotificationService) NotifyBacktestSummary(ctx context.Context, run *models.BacktestRun) error {
	message := fmt.Sprintf(
		"🧪 Backtest %s (%s)\ntrades: %d\nwin rate: %s%%\navg return: %s%%\ncumulative: %s%%",
		run.ID, run.Symbol,
		run.Summary.TotalTrades,
		run.Summary.WinRate.Round(2),
		run.Summary.AvgReturnPct.Round(4),
		run.Summary.CumulativeReturnPct.Round(4),
	)
	return ns.send(ctx, "backtest_summary", message)
}

func (ns *NotificationService) send(ctx context.Context, notificationType, message string) error {
	ctx, span := ns.tracer.TraceNotification(ctx, notificationType, "telegram")
	defer span.End()

	if ns.bot == nil {
		ns.logger.WithField("type", notificationType).Debug("Telegram disabled, dropping notification")
		ns.tracer.RecordNotificationResult(span, true, 0, nil)
		return nil
	}

	_, err := ns.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    ns.chatID,
		Text:      message,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		ns.tracer.RecordNotificationResult(span, false, 1, err)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	ns.tracer.RecordNotificationResult(span, true, 1, nil)
	return nil
}
