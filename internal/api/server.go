// Package api exposes the evaluation and calibration engines over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"credit-tca/internal/calibration"
	"credit-tca/internal/metrics"
	"credit-tca/internal/observability"
	"credit-tca/internal/storage"
	"credit-tca/internal/tca"
)

// Config holds server dependencies and settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64

	Engine     *tca.Engine
	Calibrator *calibration.Engine

	// Optional stores. Nil disables training from the store and
	// persisting submitted post-trade records.
	Snapshots  storage.SnapshotStore
	PostTrades storage.PostTradeStore

	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	engine     *tca.Engine
	calibrator *calibration.Engine
	snapshots  storage.SnapshotStore
	postTrades storage.PostTradeStore
	costErrors *metrics.Aggregator
	metrics    *observability.Metrics
	gatherer   prometheus.Gatherer
	validate   *validator.Validate
	maxBody    int64

	// writeMu serializes train and calibrate requests.
	writeMu sync.Mutex
}

// New creates a new HTTP server.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Calibrator == nil {
		return nil, fmt.Errorf("api: engine and calibrator are required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "api").Logger(),
		engine:     cfg.Engine,
		calibrator: cfg.Calibrator,
		snapshots:  cfg.Snapshots,
		postTrades: cfg.PostTrades,
		metrics:    cfg.Metrics,
		gatherer:   cfg.Gatherer,
		validate:   v,
		maxBody:    cfg.MaxBodyBytes,
	}

	if cfg.PostTrades != nil {
		s.costErrors = metrics.NewAggregator(cfg.PostTrades)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", observability.HandlerFor(s.gatherer))

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/train", s.handleTrain)
		r.Get("/model", s.handleModel)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/calibrate", s.handleCalibrate)
		r.Post("/stress", s.handleStress)
		if s.costErrors != nil {
			r.Get("/post-trade/summary", s.handleCostErrorSummary)
		}
	})
}

// Start serves until Shutdown. Returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests and records their latency.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(route, ww.Status(), elapsed)

		s.log.Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
