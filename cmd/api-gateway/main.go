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
	"github.com/carescope-ai/platform/pkg/common/logger"
	"github.com/carescope-ai/platform/pkg/gateway/auth"
	"github.com/carescope-ai/platform/pkg/gateway/httpclient"
	"github.com/carescope-ai/platform/pkg/gateway/middleware"
	"github.com/carescope-ai/platform/pkg/gateway/routes"
)

func main() {
	logger.Init()
	cfg := config.Load()

	// Token signing is optional; without a secret the gateway runs open.
	var tokenSigner *auth.JWTManager
	if cfg.JWTSecret != "" {
		var err error
		tokenSigner, err = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
		if err != nil {
			logger.Log.WithError(err).Fatal("invalid JWT configuration")
		}
	} else {
		logger.Log.Warn("JWT authentication not configured, running without auth")
	}

	// Setup router
	router := mux.NewRouter()

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")

	// API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	if tokenSigner != nil {
		routes.NewAuthHandler(tokenSigner, cfg.GatewayAPIKey).Register(apiRouter)
	}

	client := httpclient.New(cfg.GatewayRequestTimeout)

	// Everything below requires a valid token once auth is configured.
	protected := apiRouter.NewRoute().Subrouter()
	if tokenSigner != nil {
		protected.Use(middleware.Authenticate(tokenSigner))
	}

	routes.RegisterQueryRoutes(protected, routes.NewQueryProxy(client, cfg))
	routes.RegisterFacilityRoutes(protected, routes.NewFacilityProxy(client, cfg),
		middleware.RequireRole("admin", "ingest"))

	// Dashboard metrics need the shared database; the proxy surface works
	// without it.
	if db, err := database.GetPostgres(); err != nil {
		logger.Log.WithError(err).Warn("postgres unavailable, metrics endpoints disabled")
	} else {
		routes.NewMetricsHandler(db).Register(protected)
	}

	// Server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("API Gateway started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down API Gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("API Gateway stopped")
}
