// Package server exposes the analytics platform over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/etl"
)

// Analytics runs the analytical operations over a price panel.
type Analytics interface {
	CalculateRiskMetrics(ctx context.Context, panel domain.Panel) (domain.RiskMetricsResult, error)
	DetectAnomalies(ctx context.Context, panel domain.Panel) (domain.AnomalyDetectionResult, error)
	OptimizeAllocation(ctx context.Context, panel domain.Panel) (domain.AllocationResult, error)
	GenerateReport(ctx context.Context, panel domain.Panel) (domain.Report, error)
}

// PanelStore loads the persisted price panel.
type PanelStore interface {
	LoadPanel() (domain.Panel, error)
	ListFunds() ([]string, error)
	Count() (int, error)
}

// ETLRunner triggers a data refresh.
type ETLRunner interface {
	Run(ctx context.Context) (etl.Result, error)
}

// ReportArchive persists generated reports.
type ReportArchive interface {
	Save(report domain.Report) error
	Load(reportID string) (domain.Report, error)
	List() ([]string, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	DevMode   bool
	Log       zerolog.Logger
	Analytics Analytics
	Store     PanelStore
	ETL       ETLRunner
	Archive   ReportArchive
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	analytics Analytics
	store     PanelStore
	etl       ETLRunner
	archive   ReportArchive
	started   time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		analytics: cfg.Analytics,
		store:     cfg.Store,
		etl:       cfg.ETL,
		archive:   cfg.Archive,
		started:   time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Get("/funds", s.handleFunds)
		r.Get("/metrics/risk", s.handleRiskMetrics)
		r.Get("/anomalies", s.handleAnomalies)
		r.Get("/allocation", s.handleAllocation)

		r.Get("/report", s.handleGenerateReport)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{reportID}", s.handleGetReport)

		r.Post("/etl/run", s.handleRunETL)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
