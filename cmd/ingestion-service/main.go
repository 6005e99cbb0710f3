package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/carescope-ai/platform/pkg/common/config"
	"github.com/carescope-ai/platform/pkg/common/database"
	"github.com/carescope-ai/platform/pkg/common/kafka"
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/facility"
	"github.com/carescope-ai/platform/pkg/observability/metrics"
	"github.com/carescope-ai/platform/pkg/storage"
	"github.com/carescope-ai/platform/pkg/verification"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := facility.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate facility tables")
	}

	validator := facility.NewValidator(cfg.FacilityAllowedSources)

	producer := kafka.NewProducer(cfg.FacilityEventTopic)
	defer producer.Close()

	var dlqProducer *kafka.Producer
	if cfg.DLQTopic != "" {
		dlqProducer = kafka.NewProducer(cfg.DLQTopic)
		defer dlqProducer.Close()
	}

	opts := []facility.Option{
		facility.WithResultCache(storage.NewResultCache(database.GetRedis(), cfg.ResultCacheTTL)),
	}
	if cfg.VerificationEnabled {
		verifier, err := verification.NewClient(context.Background(),
			cfg.VerificationBaseURL, cfg.VerificationTokenURL,
			cfg.VerificationClientID, cfg.VerificationClientSecret)
		if err != nil {
			logger.Log.WithError(err).Warn("external verification misconfigured, continuing without it")
		} else {
			opts = append(opts, facility.WithVerifier(verifier))
		}
	}

	svc := facility.NewService(validator, repo, producer, dlqProducer, opts...)
	handler := facility.NewHTTPHandler(svc, cfg.MaxRequestBody)

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
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8081"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8081",
		}).Info("Ingestion Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Ingestion Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Ingestion Service stopped")
}
