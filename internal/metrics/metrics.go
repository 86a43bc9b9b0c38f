package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TradeVision/internal/model"
)

// Metrics holds all Prometheus metrics for the dashboard backend.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	DatasetLoads   *prometheus.CounterVec // labels: result=ok|error
	DatasetRows    prometheus.Gauge
	RowsDropped    *prometheus.CounterVec // labels: reason
	LevelWarnings  prometheus.Counter
	LastLoad       prometheus.Gauge
	AnalystCalls   *prometheus.CounterVec   // labels: kind, result=ok|error|cached
	AnalystLatency *prometheus.HistogramVec // labels: kind
	WSClients      prometheus.Gauge
	HTTPLatency    *prometheus.HistogramVec // labels: path, code
}

// New registers and returns all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradevision_dataset_loads_total",
			Help: "Dataset load attempts by result",
		}, []string{"result"}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradevision_dataset_rows",
			Help: "Data points in the published dataset",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradevision_rows_dropped_total",
			Help: "CSV records excluded during ingestion by reason",
		}, []string{"reason"}),
		LevelWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradevision_level_parse_warnings_total",
			Help: "Support/Resistance fields that degraded to an empty sequence",
		}),
		LastLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradevision_dataset_loaded_timestamp_seconds",
			Help: "Unix time of the last dataset publish",
		}),
		AnalystCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradevision_analyst_requests_total",
			Help: "Analyst requests by kind and result",
		}, []string{"kind", "result"}),
		AnalystLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradevision_analyst_duration_seconds",
			Help:    "Round-trip latency of model calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"kind"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradevision_ws_clients",
			Help: "Connected websocket clients",
		}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradevision_http_request_duration_seconds",
			Help:    "HTTP handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "code"}),
	}

	m.Registry.MustRegister(
		m.DatasetLoads, m.DatasetRows, m.RowsDropped, m.LevelWarnings, m.LastLoad,
		m.AnalystCalls, m.AnalystLatency, m.WSClients, m.HTTPLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveLoad records one dataset publish.
func (m *Metrics) ObserveLoad(ds *model.Dataset) {
	if m == nil || ds == nil {
		return
	}
	if ds.Error != "" {
		m.DatasetLoads.WithLabelValues("error").Inc()
	} else {
		m.DatasetLoads.WithLabelValues("ok").Inc()
	}
	m.DatasetRows.Set(float64(len(ds.Points)))
	for reason, n := range ds.Stats.Dropped {
		m.RowsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	m.LevelWarnings.Add(float64(ds.Stats.LevelWarnings))
	m.LastLoad.Set(float64(ds.LoadedAt.Unix()))
}

// ObserveAnalyst records one analyst request.
func (m *Metrics) ObserveAnalyst(kind, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.AnalystCalls.WithLabelValues(kind, result).Inc()
	if result != "cached" {
		m.AnalystLatency.WithLabelValues(kind).Observe(took.Seconds())
	}
}

// SetWSClients reports the websocket client count.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(path string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(path, strconv.Itoa(code)).Observe(took.Seconds())
}
