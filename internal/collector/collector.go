package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"TradeVision/internal/model"
)

// Store holds the most recently published dataset. Points and raw text are
// swapped together, so a reader never pairs them across loads.
type Store struct {
	current atomic.Pointer[model.Dataset]
}

// Load returns the current dataset, or nil before the first publish.
func (s *Store) Load() *model.Dataset {
	return s.current.Load()
}

// Publish replaces the current dataset. Last writer wins.
func (s *Store) Publish(ds *model.Dataset) {
	s.current.Store(ds)
}

// Collector orchestrates fetching, parsing and publishing of the dataset.
type Collector struct {
	Source  Source
	Symbol  string
	Options ParseOptions

	logger *zap.Logger
	store  Store

	mu       sync.Mutex // serializes reloads
	hooksMu  sync.RWMutex
	onLoaded []func(*model.Dataset)
}

// NewCollector creates a new Collector.
func NewCollector(src Source, symbol string, opts ParseOptions, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = logger
	return &Collector{Source: src, Symbol: symbol, Options: opts, logger: logger}
}

// Collect fetches and parses the CSV. On a source failure the returned dataset
// is empty (never nil) and the error describes the failure.
func (c *Collector) Collect(ctx context.Context) (*model.Dataset, error) {
	raw, err := c.Source.Fetch(ctx)
	if err != nil {
		ds := model.EmptyDataset(c.Symbol, c.Source.Name())
		ds.Error = err.Error()
		return ds, err
	}
	points, stats := Parse(string(raw), c.Options)
	return &model.Dataset{
		Symbol:   c.Symbol,
		Source:   c.Source.Name(),
		Points:   points,
		Raw:      string(raw),
		LoadedAt: time.Now(),
		Stats:    stats,
	}, nil
}

// Reload collects and publishes a fresh dataset. Failures publish an empty
// dataset and are logged, never returned.
func (c *Collector) Reload(ctx context.Context) *model.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ds, err := c.Collect(ctx)
	if err != nil {
		c.logger.Error("failed to load stock data", zap.String("source", ds.Source), zap.Error(err))
	} else {
		c.logger.Info("stock data loaded",
			zap.String("source", ds.Source),
			zap.Int("rows_read", ds.Stats.RowsRead),
			zap.Int("rows_kept", ds.Stats.RowsKept),
			zap.Int("rows_dropped", ds.Stats.DroppedTotal()),
			zap.Duration("took", time.Since(start)))
	}
	c.store.Publish(ds)

	c.hooksMu.RLock()
	hooks := c.onLoaded
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ds)
	}
	return ds
}

// Current returns the published dataset, or an empty one if nothing was loaded yet.
func (c *Collector) Current() *model.Dataset {
	if ds := c.store.Load(); ds != nil {
		return ds
	}
	return model.EmptyDataset(c.Symbol, c.Source.Name())
}

// OnLoaded registers fn to run after every reload, successful or not.
func (c *Collector) OnLoaded(fn func(*model.Dataset)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onLoaded = append(c.onLoaded, fn)
}
