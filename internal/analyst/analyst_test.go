package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeVision/internal/model"
	"TradeVision/internal/recorder"
)

const sampleCSV = "timestamp,open,high,low,close,volume\n2023-01-03,118.47,118.8,104.64,108.1,231402800\n"

type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	schemas []Schema
	reply   string
	err     error
	calls   atomic.Int32
	gate    chan struct{} // when set, calls block until it is closed
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) GenerateJSON(ctx context.Context, prompt string, schema Schema, out any) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.schemas = append(f.schemas, schema)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return decodeJSON(f.reply, out)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

type memRecorder struct {
	recorder.NoopRecorder
	mu        sync.Mutex
	exchanges []recorder.Exchange
}

func (r *memRecorder) RecordExchange(ex *recorder.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, *ex)
	return nil
}

func TestAsk(t *testing.T) {
	m := &fakeModel{reply: `{"answer":"The highest price was 118.8."}`}
	rec := &memRecorder{}
	a := New(m, Options{Symbol: "TSLA", Recorder: rec})

	ans, err := a.Ask(context.Background(), "  What was the highest price?  ", sampleCSV)
	require.NoError(t, err)
	assert.Equal(t, "The highest price was 118.8.", ans.Answer)

	require.Len(t, m.prompts, 1)
	assert.Contains(t, m.prompts[0], "Question: What was the highest price?\n")
	assert.Contains(t, m.prompts[0], sampleCSV)
	assert.Contains(t, m.prompts[0], "You are provided with TSLA stock data")
	assert.Equal(t, "answer", m.schemas[0].Fields[0].Name)

	require.Len(t, rec.exchanges, 1)
	ex := rec.exchanges[0]
	assert.Equal(t, recorder.KindAsk, ex.Kind)
	assert.Equal(t, "What was the highest price?", ex.Question)
	assert.Equal(t, 1, ex.DatasetRows)
	assert.NotEmpty(t, ex.ID)
	assert.Equal(t, "fake", ex.Model)
}

func TestAsk_Validation(t *testing.T) {
	m := &fakeModel{reply: `{"answer":"x"}`}
	a := New(m, Options{})

	_, err := a.Ask(context.Background(), "   ", sampleCSV)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = a.Ask(context.Background(), "anything?", "")
	assert.ErrorIs(t, err, ErrNoData)

	assert.Zero(t, m.calls.Load())
}

func TestAsk_ModelFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	rec := &memRecorder{}
	a := New(&fakeModel{err: boom}, Options{Recorder: rec})

	_, err := a.Ask(context.Background(), "why?", sampleCSV)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.exchanges, 1)
	assert.Equal(t, "quota exceeded", rec.exchanges[0].Error)
}

func TestAsk_Timeout(t *testing.T) {
	m := &fakeModel{gate: make(chan struct{})}
	defer close(m.gate)
	a := New(m, Options{Timeout: 20 * time.Millisecond})

	_, err := a.Ask(context.Background(), "slow?", sampleCSV)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForecast(t *testing.T) {
	m := &fakeModel{reply: "```json\n{\"trendPrediction\":\"Upward drift\",\"confidenceLevel\":\"72%\"}\n```"}
	a := New(m, Options{})

	fc, err := a.Forecast(context.Background(), sampleCSV)
	require.NoError(t, err)
	assert.Equal(t, "Upward drift", fc.TrendPrediction)
	assert.Equal(t, "72%", fc.ConfidenceLevel)
	assert.Equal(t, 72.0, fc.ConfidenceValue())
	assert.Contains(t, m.prompts[0], "Historical Data: "+sampleCSV)

	_, err = a.Forecast(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestForecast_SharesInFlightRequest(t *testing.T) {
	m := &fakeModel{
		reply: `{"trendPrediction":"Flat","confidenceLevel":"50%"}`,
		gate:  make(chan struct{}),
	}
	a := New(m, Options{})

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fc, err := a.Forecast(context.Background(), sampleCSV)
			if err == nil {
				results <- fc.TrendPrediction
			}
		}()
	}

	require.Eventually(t, func() bool { return m.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(m.gate)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), m.calls.Load())
	n := 0
	for r := range results {
		assert.Equal(t, "Flat", r)
		n++
	}
	assert.Equal(t, callers, n)
}

func TestForecast_CancelledCallerDoesNotFailOthers(t *testing.T) {
	m := &fakeModel{
		reply: `{"trendPrediction":"Sideways","confidenceLevel":"40%"}`,
		gate:  make(chan struct{}),
	}
	a := New(m, Options{Timeout: 5 * time.Second})

	ctx1, cancel1 := context.WithCancel(context.Background())
	err1 := make(chan error, 1)
	go func() {
		_, err := a.Forecast(ctx1, sampleCSV)
		err1 <- err
	}()
	require.Eventually(t, func() bool { return m.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		fc  *model.TrendForecast
		err error
	}
	res2 := make(chan result, 1)
	go func() {
		fc, err := a.Forecast(context.Background(), sampleCSV)
		res2 <- result{fc, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel1()
	select {
	case err := <-err1:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(m.gate)
	select {
	case r := <-res2:
		require.NoError(t, r.err)
		assert.Equal(t, "Sideways", r.fc.TrendPrediction)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), m.calls.Load())
}

func TestCacheServesRepeatedQuestions(t *testing.T) {
	m := &fakeModel{reply: `{"answer":"42"}`}
	rec := &memRecorder{}
	a := New(m, Options{Cache: &memCache{data: map[string][]byte{}}, Recorder: rec})

	for i := 0; i < 3; i++ {
		ans, err := a.Ask(context.Background(), "meaning?", sampleCSV)
		require.NoError(t, err)
		assert.Equal(t, "42", ans.Answer)
	}
	assert.Equal(t, int32(1), m.calls.Load())
	require.Len(t, rec.exchanges, 3)
	assert.False(t, rec.exchanges[0].Cached)
	assert.True(t, rec.exchanges[2].Cached)

	_, err := a.Ask(context.Background(), "meaning?", sampleCSV+"2023-01-04,1,2,0.5,1.5,10\n")
	require.NoError(t, err)
	assert.Equal(t, int32(2), m.calls.Load(), "different data must miss the cache")
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Answer string `json:"answer"`
	}
	assert.ErrorIs(t, decodeJSON("  ", &out), ErrEmptyResponse)
	assert.Error(t, decodeJSON("not json", &out))
	require.NoError(t, decodeJSON("```\n{\"answer\":\"ok\"}\n```", &out))
	assert.Equal(t, "ok", out.Answer)
}

func TestTemplateQuestions(t *testing.T) {
	qs := TemplateQuestions("TSLA")
	require.Len(t, qs, 5)
	assert.Equal(t, "What was the highest price TSLA reached in this dataset?", qs[0])
}

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(forecastSchema)
	assert.Equal(t, []string{"trendPrediction", "confidenceLevel"}, s.Required)
	assert.Equal(t, []string{"trendPrediction", "confidenceLevel"}, s.PropertyOrdering)
	require.Contains(t, s.Properties, "confidenceLevel")
	assert.NotEmpty(t, s.Properties["confidenceLevel"].Description)
}
