// Package api implements the C10 HTTP surface: a thin chi-routed adapter
// over the ingestion, gap-detection, backfill, forecasting, scoring, and
// scheduler components. Handlers parse and validate input, call into one
// or two of those components, and serialize the result; none of them do
// upstream I/O directly.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/backfill"
	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/forecast/price"
	"github.com/aristath/chocosentinel/internal/gaps"
	"github.com/aristath/chocosentinel/internal/ingestion"
	"github.com/aristath/chocosentinel/internal/machinery"
	"github.com/aristath/chocosentinel/internal/registry"
	"github.com/aristath/chocosentinel/internal/scheduler"
	"github.com/aristath/chocosentinel/internal/scoring"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

// BuildInfo carries the metadata GET /version reports.
type BuildInfo struct {
	Version string
	Commit  string
	BuiltAt string
}

// Config wires every dependency a handler may need.
type Config struct {
	Log         zerolog.Logger
	Store       timeseries.StoreAPI
	Calendar    *calendar.Calendar
	Ingest      *ingestion.Service
	Detector    *gaps.Detector
	Backfill    *backfill.Service
	Scheduler   *scheduler.Scheduler
	Machinery   *machinery.Spec
	Registry    *registry.Registry
	Mirror      *registry.S3Mirror
	PriceSource ingestion.PriceSource
	ObsSource   backfill.ObservationSource
	RealtimeSource ingestion.WeatherSource
	Port        int
	DevMode     bool
	Build       BuildInfo
}

// Server is the HTTP front door: a chi router plus the mutex-guarded
// trained-artifact state the predict/optimize/insights handlers read.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	store    timeseries.StoreAPI
	cal      *calendar.Calendar
	ingest   *ingestion.Service
	detector *gaps.Detector
	backfillSvc *backfill.Service
	sched    *scheduler.Scheduler
	spec     *machinery.Spec
	reg      *registry.Registry
	mirror   *registry.S3Mirror

	priceSource    ingestion.PriceSource
	obsSource      backfill.ObservationSource
	realtimeSource ingestion.WeatherSource

	build BuildInfo

	mu         sync.RWMutex
	forecaster *price.Model
	regressor  *scoring.EnergyScoreRegressor
	classifier *scoring.ProductionClassifier
	priceTrainedAt   time.Time
	scoringTrainedAt time.Time
}

// New builds a Server, restoring any previously published artifacts from
// the registry so a restart doesn't require an immediate retrain.
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "api").Logger(),
		store:          cfg.Store,
		cal:            cfg.Calendar,
		ingest:         cfg.Ingest,
		detector:       cfg.Detector,
		backfillSvc:    cfg.Backfill,
		sched:          cfg.Scheduler,
		spec:           cfg.Machinery,
		reg:            cfg.Registry,
		mirror:         cfg.Mirror,
		priceSource:    cfg.PriceSource,
		obsSource:      cfg.ObsSource,
		realtimeSource: cfg.RealtimeSource,
		build:          cfg.Build,
	}

	s.restoreArtifacts()
	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// restoreArtifacts loads the latest published model for each kind, if any.
// A missing artifact is not an error: the relevant endpoints surface
// ModelNotTrained until the first POST /predict/*/train call.
func (s *Server) restoreArtifacts() {
	if s.reg == nil {
		return
	}
	if data, err := s.reg.Latest("price_forecaster"); err == nil {
		if m, err := price.UnmarshalModel(data, s.cal); err == nil {
			s.forecaster = m
			if entry, ok, _ := s.reg.LatestEntry("price_forecaster"); ok {
				s.priceTrainedAt = entry.CreatedAt
			}
		} else {
			s.log.Warn().Err(err).Msg("failed to restore price forecaster artifact")
		}
	}
	if data, err := s.reg.Latest("energy_score_regressor"); err == nil {
		if r, err := scoring.UnmarshalEnergyScoreRegressor(data); err == nil {
			s.regressor = r
		} else {
			s.log.Warn().Err(err).Msg("failed to restore energy score regressor artifact")
		}
	}
	if data, err := s.reg.Latest("production_classifier"); err == nil {
		if c, err := scoring.UnmarshalProductionClassifier(data); err == nil {
			s.classifier = c
			if entry, ok, _ := s.reg.LatestEntry("production_classifier"); ok {
				s.scoringTrainedAt = entry.CreatedAt
			}
		} else {
			s.log.Warn().Err(err).Msg("failed to restore production classifier artifact")
		}
	}
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
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
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/version", s.handleVersion)

	s.router.Post("/ingest/now", s.handleIngestNow)

	s.router.Get("/gaps/summary", s.handleGapsSummary)
	s.router.Get("/gaps/detect", s.handleGapsDetect)
	s.router.Post("/gaps/backfill", s.handleGapsBackfill)
	s.router.Post("/gaps/backfill/auto", s.handleGapsBackfillAuto)
	s.router.Post("/gaps/backfill/range", s.handleGapsBackfillRange)

	s.router.Post("/predict/prices/train", s.handleTrainPrices)
	s.router.Get("/predict/prices/weekly", s.handleWeeklyForecast)
	s.router.Get("/predict/prices/hourly", s.handleHourlyForecast)
	s.router.Get("/predict/prices/status", s.handlePriceStatus)
	s.router.Post("/predict/train", s.handleTrainScoring)
	s.router.Post("/predict/energy-optimization", s.handleEnergyOptimization)
	s.router.Post("/predict/production-recommendation", s.handleProductionRecommendation)

	s.router.Post("/optimize/production/daily", s.handleOptimizeDaily)

	s.router.Get("/insights/optimal-windows", s.handleOptimalWindows)
	s.router.Get("/insights/savings-tracking", s.handleSavingsTracking)

	s.router.Get("/dashboard/complete", s.handleDashboardComplete)

	s.router.Get("/scheduler/status", s.handleSchedulerStatus)
}

// ServeHTTP lets Server satisfy http.Handler directly, for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins serving and blocks until the listener fails or is closed.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
