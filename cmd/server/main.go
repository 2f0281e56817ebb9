// Package main is the entry point for chocosentinel, the chocolate
// factory's energy-aware production scheduling system. It wires the
// time-series store, upstream clients, ingestion/gap/backfill pipeline,
// forecasting and scoring models, the cron-driven scheduler, and the HTTP
// API into one running process.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/chocosentinel/internal/api"
	"github.com/aristath/chocosentinel/internal/apierr"
	"github.com/aristath/chocosentinel/internal/backfill"
	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/clients/price"
	"github.com/aristath/chocosentinel/internal/clients/weatherobs"
	"github.com/aristath/chocosentinel/internal/clients/weatherrealtime"
	"github.com/aristath/chocosentinel/internal/config"
	"github.com/aristath/chocosentinel/internal/etl/siar"
	"github.com/aristath/chocosentinel/internal/gaps"
	"github.com/aristath/chocosentinel/internal/ingestion"
	"github.com/aristath/chocosentinel/internal/machinery"
	"github.com/aristath/chocosentinel/internal/registry"
	"github.com/aristath/chocosentinel/internal/scheduler"
	"github.com/aristath/chocosentinel/internal/sidestore"
	"github.com/aristath/chocosentinel/internal/timeseries"
	"github.com/aristath/chocosentinel/pkg/logger"
)

// exit codes, per the operational contract: 0 clean shutdown, 1
// unrecoverable startup failure, 2 configuration error, 130 interrupted.
const (
	exitOK           = 0
	exitStartupError = 1
	exitConfigError  = 2
	exitInterrupted  = 130
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Error().Err(err).Msg("failed to load configuration")
		os.Exit(exitConfigError)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Msg("starting chocosentinel")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", cfg.DataDir).Msg("failed to create data directory")
		os.Exit(exitStartupError)
	}

	cal, err := calendar.New(cfg.Timezone, log)
	if err != nil {
		log.Error().Err(err).Str("timezone", cfg.Timezone).Msg("failed to load calendar")
		os.Exit(exitStartupError)
	}

	store := timeseries.New(timeseries.Config{
		URL:               cfg.StoreURL,
		Token:             cfg.StoreToken,
		Org:               cfg.StoreOrg,
		BucketOperational: cfg.StoreBucketOperational,
		BucketHistorical:  cfg.StoreBucketHistorical,
	}, log)
	defer store.Close()

	sideStore, err := sidestore.Open(filepath.Join(cfg.DataDir, "sidestore.db"))
	if err != nil {
		log.Error().Err(err).Msg("failed to open side store")
		os.Exit(exitStartupError)
	}
	defer sideStore.Close()

	priceClient := price.New(cfg.PriceAPIBase, log)
	weatherObsClient := weatherobs.New(cfg.WeatherObsAPIBase, cfg.WeatherObsAPIKey, cfg.StationID, sideStore, log)
	weatherRealtimeClient := weatherrealtime.New(cfg.WeatherRealtimeAPIBase, cfg.WeatherRealtimeAPIKey, cfg.StationLat, cfg.StationLon, log)

	ingest := ingestion.New(store, cal, "esios", "pvpc", cfg.StationID, log)
	detector := gaps.New(store)
	siarETL := siar.New(filepath.Join(cfg.DataDir, "siar"), ingest, log)
	backfillSvc := backfill.New(ingest, priceClient, weatherObsClient, siarETL, detector, cfg.MunicipalityCode, time.Hour, log)

	spec, err := machinery.Load(cfg.MachinerySpecPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.MachinerySpecPath).Msg("failed to load machinery spec")
		os.Exit(exitStartupError)
	}

	reg, err := registry.New(filepath.Join(cfg.DataDir, "models"), log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open model registry")
		os.Exit(exitStartupError)
	}

	var mirror *registry.S3Mirror
	if cfg.S3Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mirror, err = registry.NewS3Mirror(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey, log)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up S3 artifact mirror, continuing without it")
			mirror = nil
		}
	}

	sched := scheduler.New(log)

	srv := api.New(api.Config{
		Log:            log,
		Store:          store,
		Calendar:       cal,
		Ingest:         ingest,
		Detector:       detector,
		Backfill:       backfillSvc,
		Scheduler:      sched,
		Machinery:      spec,
		Registry:       reg,
		Mirror:         mirror,
		PriceSource:    priceClient,
		ObsSource:      weatherObsClient,
		RealtimeSource: weatherRealtimeClient,
		Port:           cfg.HTTPPort,
		DevMode:        cfg.LogLevel == "debug",
		Build:          api.BuildInfo{Version: "dev"},
	})

	deps := jobDeps{
		ingest:          ingest,
		detector:        detector,
		backfillSvc:     backfillSvc,
		priceClient:     priceClient,
		obsClient:       weatherObsClient,
		realtimeClient:  weatherRealtimeClient,
		sideStore:       sideStore,
		store:           store,
		srv:             srv,
		log:             log,
	}
	if err := registerJobs(sched, deps); err != nil {
		log.Error().Err(err).Msg("failed to register scheduled jobs")
		os.Exit(exitStartupError)
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("api server failed")
			os.Exit(exitStartupError)
		}
	}()
	log.Info().Int("port", cfg.HTTPPort).Msg("api server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("scheduler stop reported jobs still running")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}

	log.Info().Msg("shutdown complete")
	os.Exit(exitInterrupted)
}

// jobDeps bundles the services scheduled jobs close over, so registerJobs
// itself stays a flat list of Register calls.
type jobDeps struct {
	ingest         *ingestion.Service
	detector       *gaps.Detector
	backfillSvc    *backfill.Service
	priceClient    *price.Client
	obsClient      *weatherobs.Client
	realtimeClient *weatherrealtime.Client
	sideStore      *sidestore.Store
	store          *timeseries.Store
	srv            *api.Server
	log            zerolog.Logger
}

// registerJobs binds the fixed scheduler.Catalog entries to the live
// service instances. Kept out of main's body so the wiring of one job to
// its dependencies is easy to audit job by job.
func registerJobs(sched *scheduler.Scheduler, d jobDeps) error {
	jobs := []struct {
		id string
		fn scheduler.Func
	}{
		{"price_ingest", func(ctx context.Context) error {
			end := time.Now().UTC()
			_, err := d.ingest.IngestPriceWindow(ctx, d.priceClient, end.Add(-time.Hour), end)
			return err
		}},
		{"weather_ingest_hybrid", func(ctx context.Context) error {
			_, err := d.ingest.IngestHybridWeather(ctx, d.obsClient, d.realtimeClient)
			return err
		}},
		{"auto_backfill_check", func(ctx context.Context) error {
			_, err := d.backfillSvc.CheckAndRun(ctx, 6)
			return err
		}},
		{"train_scoring", func(ctx context.Context) error {
			_, _, err := d.srv.TrainScoring(ctx)
			return err
		}},
		{"train_forecaster", func(ctx context.Context) error {
			_, err := d.srv.TrainPrices(ctx)
			return err
		}},
		{"health_check", func(ctx context.Context) error {
			if err := d.store.Ping(ctx); err != nil {
				return err
			}
			if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
				d.log.Debug().Float64("cpu_pct", pct[0]).Msg("health check")
			}
			if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
				d.log.Debug().Float64("mem_used_pct", vm.UsedPercent).Msg("health check")
			}
			return nil
		}},
		{"token_refresh", func(ctx context.Context) error {
			_, err := d.obsClient.EnsureToken(ctx)
			return err
		}},
		{"daily_backfill_validation", func(ctx context.Context) error {
			priceGaps, err := d.detector.Detect(ctx, "energy_prices", timeseries.TagFilter{}, time.Hour, 24*time.Hour)
			if err != nil {
				return err
			}
			weatherGaps, err := d.detector.Detect(ctx, "weather_data", timeseries.TagFilter{}, time.Hour, 24*time.Hour)
			if err != nil {
				return err
			}
			d.log.Info().Int("price_gaps", len(priceGaps)).Int("weather_gaps", len(weatherGaps)).Msg("daily backfill validation")
			return nil
		}},
		{"weekly_cleanup", func(ctx context.Context) error {
			removed, err := d.sideStore.DeleteExpired()
			if err != nil {
				return err
			}
			d.log.Info().Int64("removed", removed).Msg("weekly side-store cleanup")
			return nil
		}},
		{"hourly_optimization", func(ctx context.Context) error {
			return d.srv.RunHourlyOptimization(ctx)
		}},
	}

	catalogByID := make(map[string]scheduler.CatalogEntry, len(scheduler.Catalog))
	for _, entry := range scheduler.Catalog {
		catalogByID[entry.ID] = entry
	}

	for _, j := range jobs {
		entry, ok := catalogByID[j.id]
		if !ok {
			return apierr.New(apierr.KindConfigError, "unknown job id in registerJobs: "+j.id)
		}
		if err := sched.Register(entry.ID, entry.Name, entry.Trigger, j.fn); err != nil {
			return err
		}
	}
	return nil
}
