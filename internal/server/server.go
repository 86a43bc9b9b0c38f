package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"TradeVision/internal/analyst"
	"TradeVision/internal/calculator"
	"TradeVision/internal/metrics"
	"TradeVision/internal/model"
	"TradeVision/internal/recorder"
)

// DataSource is the dataset holder the API reads and reloads.
type DataSource interface {
	Reload(ctx context.Context) *model.Dataset
	Current() *model.Dataset
}

// Analyst answers questions and forecasts trends over raw CSV text.
type Analyst interface {
	Ask(ctx context.Context, question, stockData string) (*model.Answer, error)
	Forecast(ctx context.Context, historicalData string) (*model.TrendForecast, error)
}

// Options configures a Server.
type Options struct {
	Symbol      string
	CORSOrigins []string
	Analyst     Analyst // nil answers 503 on the analyst routes
	Recorder    recorder.Recorder
	Metrics     *metrics.Metrics
	Hub         *Hub
	Logger      *zap.Logger
}

// Server exposes the dataset, chart, summary and analyst over HTTP.
type Server struct {
	data   DataSource
	opts   Options
	logger *zap.Logger
	mux    *http.ServeMux
}

// New creates a Server and registers its routes.
func New(data DataSource, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Metrics, logger)
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{data: data, opts: opts, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/stock", s.handleStock)
	s.handle("GET /api/stock/raw", s.handleRaw)
	s.handle("GET /api/chart", s.handleChart)
	s.handle("GET /api/summary", s.handleSummary)
	s.handle("POST /api/reload", s.handleReload)
	s.handle("POST /api/analyze", s.handleAnalyze)
	s.handle("POST /api/predict", s.handlePredict)
	s.handle("GET /api/questions", s.handleQuestions)
	s.handle("GET /api/history", s.handleHistory)
	s.handle("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /ws", s.opts.Hub)
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}
}

// handle wraps h with request metrics, keyed by the route pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, h))
}

// Handler returns the root handler with CORS and request ids applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withCORS(s.mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// current returns the published dataset or writes 503 when it has no points.
func (s *Server) current(w http.ResponseWriter) (*model.Dataset, bool) {
	ds := s.data.Current()
	if ds.Empty() {
		writeError(w, http.StatusServiceUnavailable, "stock data is not available")
		return nil, false
	}
	return ds, true
}

type stockResponse struct {
	Symbol   string                 `json:"symbol"`
	Source   string                 `json:"source"`
	LoadedAt time.Time              `json:"loadedAt"`
	Stats    model.LoadStats        `json:"stats"`
	Points   []model.StockDataPoint `json:"points"`
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ds.Symbol, ds.Source, ds.LoadedAt, ds.Stats, ds.Points})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	ds := s.data.Current()
	if !ds.HasRaw() {
		writeError(w, http.StatusServiceUnavailable, "stock data is not available")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Write([]byte(ds.Raw))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, calculator.BuildChart(ds.Points))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, calculator.Summarize(ds.Symbol, ds.Points))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds := s.data.Reload(r.Context())
	code := http.StatusOK
	if ds.Error != "" {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, NewDatasetEvent(ds))
}

type analyzeRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.opts.Analyst == nil {
		writeError(w, http.StatusServiceUnavailable, "analyst is not configured")
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	ans, err := s.opts.Analyst.Ask(r.Context(), req.Question, s.data.Current().Raw)
	switch {
	case errors.Is(err, analyst.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analyst.ErrNoData):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, analyst.AskFailedMessage)
	default:
		writeJSON(w, http.StatusOK, ans)
	}
}

type predictResponse struct {
	model.TrendForecast
	ConfidenceValue float64 `json:"confidenceValue"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.opts.Analyst == nil {
		writeError(w, http.StatusServiceUnavailable, "analyst is not configured")
		return
	}
	fc, err := s.opts.Analyst.Forecast(r.Context(), s.data.Current().Raw)
	switch {
	case errors.Is(err, analyst.ErrNoData):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, analyst.ForecastFailedMessage)
	default:
		writeJSON(w, http.StatusOK, predictResponse{*fc, fc.ConfidenceValue()})
	}
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"questions": analyst.TemplateQuestions(s.opts.Symbol)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	exchanges, err := s.opts.Recorder.RecentExchanges(limit)
	if err != nil {
		s.logger.Error("read analyst history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history is not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exchanges": exchanges})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds := s.data.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"points":    len(ds.Points),
		"loadedAt":  ds.LoadedAt,
		"wsClients": s.opts.Hub.Clients(),
	})
}

// RequestIDHeader carries the per-request uuid.
const RequestIDHeader = "X-Request-ID"

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(s.opts.CORSOrigins))
	for _, o := range s.opts.CORSOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		took := time.Since(start)
		s.opts.Metrics.ObserveHTTP(route, rec.code, took)
		s.logger.Debug("http request",
			zap.String("route", route), zap.Int("code", rec.code),
			zap.Duration("took", took), zap.String("request_id", w.Header().Get(RequestIDHeader)))
	})
}
