package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"TradeVision/internal/analyst"
	"TradeVision/internal/cache"
	"TradeVision/internal/collector"
	"TradeVision/internal/config"
	"TradeVision/internal/metrics"
	"TradeVision/internal/model"
	"TradeVision/internal/recorder"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	recorder  recorder.Recorder
	collector *collector.Collector
	analyst   *analyst.Analyst // nil without an API key

	closers []func() error
}

// newApp loads the config and builds the data pipeline. The analyst is built
// only when withAnalyst is set and an API key is configured.
func newApp(ctx context.Context, withAnalyst bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	a := &app{cfg: cfg, metrics: metrics.New()}
	a.recorder = a.openRecorder()

	var src collector.Source
	if cfg.Data.CSVURL != "" {
		src = collector.NewHTTPSource(cfg.Data.CSVURL, cfg.Proxy)
	} else {
		src = &collector.FileSource{Path: cfg.Data.CSVPath}
	}
	logger.Info("data source", zap.String("source", src.Name()), zap.String("symbol", cfg.Data.Symbol))

	a.collector = collector.NewCollector(src, cfg.Data.Symbol, collector.ParseOptions{
		Policy:   cfg.Policy(),
		Location: cfg.Location(),
	}, logger)
	a.collector.OnLoaded(a.metrics.ObserveLoad)
	a.collector.OnLoaded(func(ds *model.Dataset) {
		if err := a.recorder.RecordLoad(recorder.NewLoadEvent(ds)); err != nil {
			logger.Warn("record dataset load", zap.Error(err))
		}
	})

	if withAnalyst {
		if err := a.buildAnalyst(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openRecorder() recorder.Recorder {
	path := a.cfg.Database.SQLitePath
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("create sqlite directory failed, using noop recorder", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path, logger)
	if err != nil {
		logger.Warn("init sqlite recorder failed, using noop recorder", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, sr.Close)
	return sr
}

func (a *app) buildAnalyst(ctx context.Context) error {
	if a.cfg.Analyst.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; analyst disabled")
		return nil
	}
	m, err := analyst.NewGeminiModel(ctx, a.cfg.Analyst.APIKey, a.cfg.Analyst.Model)
	if err != nil {
		return err
	}

	opts := analyst.Options{
		Symbol:   a.cfg.Data.Symbol,
		Timeout:  a.cfg.AnalystTimeout(),
		Recorder: a.recorder,
		Metrics:  a.metrics,
		Logger:   logger,
	}
	if a.cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			TTL:      a.cfg.RedisTTL(),
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, answers will not be cached", zap.Error(err))
		} else {
			opts.Cache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	a.analyst = analyst.New(m, opts)
	logger.Info("analyst ready", zap.String("model", a.analyst.ModelName()))
	return nil
}

// requireAnalyst fails commands that cannot run without the model.
func (a *app) requireAnalyst() error {
	if a.analyst == nil {
		return fmt.Errorf("analyst is not configured: set GEMINI_API_KEY")
	}
	return nil
}

// Close releases the recorder and cache.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}
