package analyst

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"TradeVision/internal/metrics"
	"TradeVision/internal/model"
	"TradeVision/internal/recorder"
)

var (
	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNoData is returned when there is no raw CSV to forward.
	ErrNoData = errors.New("stock data is not available")
)

// User-facing messages for failed requests.
const (
	AskFailedMessage      = "Sorry, I encountered an error trying to process your request."
	ForecastFailedMessage = "Failed to predict trends. Please try again."
)

// Model produces a JSON object matching schema for a prompt.
type Model interface {
	GenerateJSON(ctx context.Context, prompt string, schema Schema, out any) error
	Name() string
}

// Cache stores model outputs keyed by request. Misses report found=false.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any) error
}

// Options configures an Analyst.
type Options struct {
	Symbol   string
	Timeout  time.Duration // per model call; zero means no deadline
	Cache    Cache
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Analyst forwards questions and forecast requests, together with the raw CSV,
// to a language model. Each call is a single round trip without retries.
type Analyst struct {
	model   Model
	opts    Options
	logger  *zap.Logger
	flights singleflight.Group
}

// New creates an Analyst backed by m.
func New(m Model, opts Options) *Analyst {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Symbol == "" {
		opts.Symbol = "the stock"
	}
	return &Analyst{model: m, opts: opts, logger: logger}
}

// ModelName reports the backing model.
func (a *Analyst) ModelName() string { return a.model.Name() }

// Ask answers a free-form question about stockData.
func (a *Analyst) Ask(ctx context.Context, question, stockData string) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if stockData == "" {
		return nil, ErrNoData
	}

	prompt, err := render(askPrompt, struct {
		Symbol, Question, StockData string
	}{a.opts.Symbol, question, stockData})
	if err != nil {
		return nil, err
	}

	var ans model.Answer
	ex := &recorder.Exchange{Kind: recorder.KindAsk, Question: question}
	if err := a.call(ctx, ex, cacheKey(recorder.KindAsk, question, stockData), prompt, answerSchema, &ans); err != nil {
		return nil, err
	}
	ex.Answer = ans.Answer
	a.record(ex, stockData)
	return &ans, nil
}

// Forecast predicts the trend of historicalData. Concurrent calls for the same
// data share one model request; each caller stops waiting when its own ctx ends.
func (a *Analyst) Forecast(ctx context.Context, historicalData string) (*model.TrendForecast, error) {
	if historicalData == "" {
		return nil, ErrNoData
	}
	key := cacheKey(recorder.KindForecast, "", historicalData)

	ch := a.flights.DoChan(key, func() (any, error) {
		// The shared request outlives any single caller; opts.Timeout still bounds it.
		shared := context.WithoutCancel(ctx)
		prompt, err := render(forecastPrompt, struct{ HistoricalData string }{historicalData})
		if err != nil {
			return nil, err
		}
		var fc model.TrendForecast
		ex := &recorder.Exchange{Kind: recorder.KindForecast}
		if err := a.call(shared, ex, key, prompt, forecastSchema, &fc); err != nil {
			return nil, err
		}
		ex.Answer, ex.Confidence = fc.TrendPrediction, fc.ConfidenceLevel
		a.record(ex, historicalData)
		return &fc, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", recorder.KindForecast, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		fc := *res.Val.(*model.TrendForecast)
		return &fc, nil
	}
}

// call runs one cached model round trip and fills the bookkeeping fields of ex.
func (a *Analyst) call(ctx context.Context, ex *recorder.Exchange, key, prompt string, schema Schema, out any) error {
	ex.ID = uuid.NewString()
	ex.Model = a.model.Name()
	start := time.Now()

	if a.opts.Cache != nil {
		found, err := a.opts.Cache.Get(ctx, key, out)
		if err != nil {
			a.logger.Warn("analyst cache read failed", zap.Error(err))
		} else if found {
			ex.Cached = true
			a.opts.Metrics.ObserveAnalyst(ex.Kind, "cached", 0)
			a.logger.Debug("analyst cache hit", zap.String("kind", ex.Kind), zap.String("id", ex.ID))
			return nil
		}
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	err := a.model.GenerateJSON(ctx, prompt, schema, out)
	ex.Duration = time.Since(start)
	if err != nil {
		ex.Error = err.Error()
		a.opts.Metrics.ObserveAnalyst(ex.Kind, "error", ex.Duration)
		a.logger.Error("analyst request failed",
			zap.String("kind", ex.Kind), zap.String("id", ex.ID),
			zap.Duration("took", ex.Duration), zap.Error(err))
		a.record(ex, "")
		return fmt.Errorf("%s: %w", ex.Kind, err)
	}
	a.opts.Metrics.ObserveAnalyst(ex.Kind, "ok", ex.Duration)
	a.logger.Info("analyst request completed",
		zap.String("kind", ex.Kind), zap.String("id", ex.ID), zap.Duration("took", ex.Duration))

	if a.opts.Cache != nil {
		if err := a.opts.Cache.Set(ctx, key, out); err != nil {
			a.logger.Warn("analyst cache write failed", zap.Error(err))
		}
	}
	return nil
}

func (a *Analyst) record(ex *recorder.Exchange, data string) {
	ex.CreatedAt = time.Now()
	if data != "" {
		ex.DatasetRows = strings.Count(strings.TrimRight(data, "\r\n"), "\n")
	}
	if err := a.opts.Recorder.RecordExchange(ex); err != nil {
		a.logger.Warn("record analyst exchange", zap.Error(err))
	}
}

func cacheKey(kind, question, data string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(data))
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}
