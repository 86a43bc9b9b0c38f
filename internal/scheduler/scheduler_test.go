package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeVision/internal/analyst"
	"TradeVision/internal/model"
)

type fakeData struct {
	ds      *model.Dataset
	reloads int
}

func (f *fakeData) Reload(context.Context) *model.Dataset { f.reloads++; return f.ds }
func (f *fakeData) Current() *model.Dataset               { return f.ds }

type fakeAnalyst struct {
	question string
	data     string
	err      error
}

func (f *fakeAnalyst) Ask(_ context.Context, q, data string) (*model.Answer, error) {
	f.question, f.data = q, data
	if f.err != nil {
		return nil, f.err
	}
	if q == "" {
		return nil, analyst.ErrEmptyQuestion
	}
	if data == "" {
		return nil, analyst.ErrNoData
	}
	return &model.Answer{Answer: "It closed at 108.1"}, nil
}

func (f *fakeAnalyst) Forecast(_ context.Context, data string) (*model.TrendForecast, error) {
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	if data == "" {
		return nil, analyst.ErrNoData
	}
	return &model.TrendForecast{TrendPrediction: "Sideways", ConfidenceLevel: "55%"}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func loadedData() *fakeData {
	ds := model.EmptyDataset("TSLA", "file:test.csv")
	ds.Raw = "timestamp,open,high,low,close,volume\n2023-01-03,118.47,118.8,104.64,108.1,231402800\n"
	ds.Points = []model.StockDataPoint{{Date: "2023-01-03", Timestamp: 1672704000000, Open: 118.47, High: 118.8, Low: 104.64, Close: 108.1}}
	ds.Stats.RowsRead, ds.Stats.RowsKept = 1, 1
	return &fakeData{ds: ds}
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	data := loadedData()
	an := &fakeAnalyst{}
	s := NewScheduler(ctx, data, an, nil, nil)

	t.Run("ask", func(t *testing.T) {
		reply := s.HandleCommand(ctx, "/ask@TradeVisionBot  What was the close? ")
		assert.Equal(t, "What was the close?", an.question)
		assert.Equal(t, data.ds.Raw, an.data)
		assert.Contains(t, reply, "It closed at 108.1")
	})
	t.Run("ask without question", func(t *testing.T) {
		assert.Contains(t, s.HandleCommand(ctx, "/ask"), "Usage")
	})
	t.Run("forecast", func(t *testing.T) {
		reply := s.HandleCommand(ctx, "/forecast")
		assert.Contains(t, reply, "TSLA trend forecast")
		assert.Contains(t, reply, "55%")
	})
	t.Run("summary", func(t *testing.T) {
		assert.Contains(t, s.HandleCommand(ctx, "/summary"), "Last close: 108.10")
	})
	t.Run("reload", func(t *testing.T) {
		assert.Contains(t, s.HandleCommand(ctx, "/reload"), "Rows kept: 1 / 1")
		assert.Equal(t, 1, data.reloads)
	})
	t.Run("help", func(t *testing.T) {
		assert.Contains(t, s.HandleCommand(ctx, "hello"), "/forecast")
	})
}

func TestHandleCommandFailures(t *testing.T) {
	ctx := context.Background()

	empty := &fakeData{ds: model.EmptyDataset("TSLA", "file:test.csv")}
	s := NewScheduler(ctx, empty, &fakeAnalyst{}, nil, nil)
	assert.Equal(t, "No stock data is loaded yet.", s.HandleCommand(ctx, "/ask why?"))
	assert.Equal(t, "No stock data is loaded yet.", s.HandleCommand(ctx, "/forecast"))
	assert.Contains(t, s.HandleCommand(ctx, "/summary"), "No TSLA data loaded")

	s = NewScheduler(ctx, loadedData(), &fakeAnalyst{err: errors.New("upstream 500")}, nil, nil)
	assert.Equal(t, analyst.AskFailedMessage, s.HandleCommand(ctx, "/ask why?"))
	assert.Equal(t, analyst.ForecastFailedMessage, s.HandleCommand(ctx, "/forecast"))

	s = NewScheduler(ctx, loadedData(), nil, nil, nil)
	assert.Equal(t, "The analyst is not configured.", s.HandleCommand(ctx, "/forecast"))
}

func TestForecastTaskPushes(t *testing.T) {
	sender := &fakeSender{}
	s := NewScheduler(context.Background(), loadedData(), &fakeAnalyst{}, sender, nil)
	s.forecastTask()
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Sideways")

	sender = &fakeSender{}
	s = NewScheduler(context.Background(), &fakeData{ds: model.EmptyDataset("TSLA", "x")}, &fakeAnalyst{}, sender, nil)
	s.forecastTask()
	assert.Empty(t, sender.sent)
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), loadedData(), nil, nil, nil)
	require.NoError(t, s.RegisterAll("0 */15 * * * *", "0 0 9 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 2)

	s = NewScheduler(context.Background(), loadedData(), nil, nil, nil)
	require.NoError(t, s.RegisterAll("0 */15 * * * *", ""))
	assert.Len(t, s.Cron.Entries(), 1)

	assert.Error(t, s.RegisterAll("not a cron", ""))
}

func TestRunReloadNow(t *testing.T) {
	data := loadedData()
	s := NewScheduler(context.Background(), data, nil, nil, nil)
	s.Start()
	defer s.Stop()
	assert.Same(t, data.ds, s.RunReloadNow())
	assert.Equal(t, 1, data.reloads)
}
