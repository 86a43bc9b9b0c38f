package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"TradeVision/internal/analyst"
	"TradeVision/internal/calculator"
	"TradeVision/internal/model"
	"TradeVision/internal/notifier"
)

// DataSource is the dataset holder the scheduler reloads and reads.
type DataSource interface {
	Reload(ctx context.Context) *model.Dataset
	Current() *model.Dataset
}

// Analyst answers questions and forecasts trends over raw CSV text.
type Analyst interface {
	Ask(ctx context.Context, question, stockData string) (*model.Answer, error)
	Forecast(ctx context.Context, historicalData string) (*model.TrendForecast, error)
}

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks and the chat command surface.
type Scheduler struct {
	Cron     *cron.Cron
	Data     DataSource
	Analyst  Analyst // nil disables /ask and /forecast
	Notifier Sender  // nil disables pushed messages
	Ctx      context.Context

	logger *zap.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, data DataSource, an Analyst, sender Sender, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Data:     data,
		Analyst:  an,
		Notifier: sender,
		Ctx:      ctx,
		logger:   logger,
	}
}

// RegisterAll registers the reload task and, when forecastCron is set, the
// forecast push task.
func (s *Scheduler) RegisterAll(reloadCron, forecastCron string) error {
	if reloadCron != "" {
		if _, err := s.Cron.AddFunc(reloadCron, s.reloadTask); err != nil {
			return fmt.Errorf("register reload task: %w", err)
		}
	}
	if forecastCron != "" {
		if _, err := s.Cron.AddFunc(forecastCron, s.forecastTask); err != nil {
			return fmt.Errorf("register forecast task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunReloadNow executes the reload task immediately.
func (s *Scheduler) RunReloadNow() *model.Dataset {
	return s.Data.Reload(s.Ctx)
}

func (s *Scheduler) reloadTask() {
	s.logger.Debug("running reload task")
	s.Data.Reload(s.Ctx)
}

func (s *Scheduler) forecastTask() {
	if s.Analyst == nil {
		return
	}
	s.logger.Info("running forecast task")
	ds := s.Data.Current()
	if !ds.HasRaw() {
		s.logger.Warn("forecast skipped: no data loaded")
		return
	}
	fc, err := s.Analyst.Forecast(s.Ctx, ds.Raw)
	if err != nil {
		s.logger.Error("scheduled forecast", zap.Error(err))
		return
	}
	s.trySend(notifier.FormatForecast(ds.Symbol, fc))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, text string) string {
	command, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	// Group chats address commands as /cmd@BotName.
	command, _, _ = strings.Cut(command, "@")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/ask":
		return s.ask(ctx, arg)
	case "/forecast":
		return s.forecast(ctx)
	case "/summary":
		ds := s.Data.Current()
		return notifier.FormatSummary(calculator.Summarize(ds.Symbol, ds.Points))
	case "/reload":
		return notifier.FormatLoad(s.Data.Reload(ctx))
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) ask(ctx context.Context, question string) string {
	if s.Analyst == nil {
		return "The analyst is not configured."
	}
	ans, err := s.Analyst.Ask(ctx, question, s.Data.Current().Raw)
	switch {
	case errors.Is(err, analyst.ErrEmptyQuestion):
		return "Usage: /ask &lt;question&gt;"
	case errors.Is(err, analyst.ErrNoData):
		return "No stock data is loaded yet."
	case err != nil:
		return html.EscapeString(analyst.AskFailedMessage)
	}
	return notifier.FormatAnswer(question, ans)
}

func (s *Scheduler) forecast(ctx context.Context) string {
	if s.Analyst == nil {
		return "The analyst is not configured."
	}
	ds := s.Data.Current()
	fc, err := s.Analyst.Forecast(ctx, ds.Raw)
	switch {
	case errors.Is(err, analyst.ErrNoData):
		return "No stock data is loaded yet."
	case err != nil:
		return html.EscapeString(analyst.ForecastFailedMessage)
	}
	return notifier.FormatForecast(ds.Symbol, fc)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}
