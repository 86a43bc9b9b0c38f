package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeVision/internal/model"
)

func TestObserveLoad(t *testing.T) {
	m := New()
	ds := &model.Dataset{
		Points:   make([]model.StockDataPoint, 3),
		LoadedAt: time.Unix(1700000000, 0),
		Stats: model.LoadStats{
			Dropped:       map[model.DropReason]int{model.DropEmptyTimestamp: 2},
			LevelWarnings: 1,
		},
	}
	m.ObserveLoad(ds)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetLoads.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DatasetRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues("empty_timestamp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LevelWarnings))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastLoad))

	failed := model.EmptyDataset("TSLA", "file:x.csv")
	failed.Error = "boom"
	m.ObserveLoad(failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetLoads.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DatasetRows))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLoad(&model.Dataset{})
	m.ObserveAnalyst("ask", "ok", time.Second)
	m.SetWSClients(2)
	m.ObserveHTTP("/api/stock", 200, time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveAnalyst("forecast", "ok", 2*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tradevision_analyst_requests_total{kind="forecast",result="ok"} 1`))
	assert.Contains(t, body, "tradevision_analyst_duration_seconds_bucket")
}
