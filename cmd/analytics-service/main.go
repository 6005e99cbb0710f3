package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/analytics/pipeline"
	"github.com/carescope-ai/platform/pkg/analytics/query"
	"github.com/carescope-ai/platform/pkg/analytics/scope"
	"github.com/carescope-ai/platform/pkg/common/config"
	"github.com/carescope-ai/platform/pkg/common/database"
	"github.com/carescope-ai/platform/pkg/common/kafka"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/common/models"
	"github.com/carescope-ai/platform/pkg/facility"
	"github.com/carescope-ai/platform/pkg/knowledge"
	"github.com/carescope-ai/platform/pkg/observability/metrics"
	"github.com/carescope-ai/platform/pkg/storage"
)

type AnalyticsApp struct {
	cache    *storage.ResultCache
	consumer *kafka.Consumer
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	cat, err := knowledge.Load(cfg.KnowledgeCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to load knowledge catalog, using built-in defaults")
		if len(cat.Specialties) == 0 {
			cat = knowledge.DefaultCatalog()
		}
	}
	base := knowledge.NewBase(cat, cfg.EquipmentMatchThreshold)

	pipe, err := pipeline.New(base, pipeline.Config{
		RegionGranularity:  cfg.RegionGranularity,
		GeographicWeight:   cfg.GeographicWeight,
		CapabilityWeight:   cfg.CapabilityWeight,
		LowAccessThreshold: cfg.LowAccessThreshold,
		CapabilityMinimum:  cfg.CapabilityMinimum,
		ClusterThreshold:   cfg.ClusterThreshold,
		Workers:            cfg.PipelineWorkers,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid pipeline configuration")
	}

	runRepo := query.NewRunRepository(db)
	if err := runRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate analysis run tables")
	}

	rollups := storage.NewRollupWriter(db)
	if err := rollups.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate rollup tables")
	}

	resultCache := storage.NewResultCache(database.GetRedis(), cfg.ResultCacheTTL)

	producer := kafka.NewProducer(cfg.AnalysisEventTopic)
	defer producer.Close()

	svc := query.NewService(pipe, scope.NewResolver(base), facility.NewRepository(db), runRepo, cfg.PipelineWorkers,
		query.WithResultCache(resultCache),
		query.WithRollups(rollups),
		query.WithProducer(producer),
	)
	handler := query.NewHTTPHandler(svc, cfg.MaxRequestBody)

	app := &AnalyticsApp{cache: resultCache}
	app.consumer = kafka.NewConsumer(cfg.FacilityEventTopic, cfg.KafkaGroupID)
	defer app.consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := app.consumer.Consume(ctx, app.handleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("facility event consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8082"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8082",
		}).Info("Analytics Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Analytics Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Analytics Service stopped")
}

// handleEvent retires cached analysis results whenever the facility
// registry changes, so the next query recomputes from the new snapshot.
func (a *AnalyticsApp) handleEvent(ctx context.Context, event models.Event) error {
	switch event.Type {
	case "facility_ingested", "facility_updated":
		if err := a.cache.Invalidate(ctx); err != nil {
			return fmt.Errorf("invalidating result cache: %w", err)
		}
		logger.Log.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"type":     event.Type,
		}).Debug("Result cache invalidated")
	default:
		logger.Log.WithField("type", event.Type).Debug("Ignoring event")
	}
	return nil
}
