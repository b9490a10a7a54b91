// Command detection-service serves the anomaly ledger over HTTP and
// keeps it fresh from dataset-refresh events.
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

	"github.com/claimsight-ai/platform/pkg/common/config"
	"github.com/claimsight-ai/platform/pkg/common/database"
	"github.com/claimsight-ai/platform/pkg/common/kafka"
	"github.com/claimsight-ai/platform/pkg/common/logger"
	"github.com/claimsight-ai/platform/pkg/detect"
	"github.com/claimsight-ai/platform/pkg/ledger"
	"github.com/claimsight-ai/platform/pkg/observability/metrics"
	"github.com/claimsight-ai/platform/pkg/rules"
	"github.com/claimsight-ai/platform/pkg/serving"
	"github.com/claimsight-ai/platform/pkg/serving/middleware"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	detectCfg, err := detect.LoadConfig(cfg.DetectionConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid detection config")
	}
	ref, err := rules.LoadReference(cfg.ReferencePath)
	if err != nil {
		logger.Log.WithError(err).Warn("reference tables fell back to defaults")
	}

	opts := serving.Options{
		Redis:    database.GetRedis(),
		Producer: kafka.NewProducer(cfg.RunEventsTopic),
	}

	if cfg.PersistRuns {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Warn("run persistence disabled, database unavailable")
		} else {
			repo := ledger.NewRepository(db)
			if err := repo.Migrate(); err != nil {
				logger.Log.WithError(err).Warn("run persistence disabled, migration failed")
			} else {
				opts.Repo = repo
			}
		}
	}

	runner := detect.NewRunner(detectCfg, ref)
	service := serving.NewService(cfg, runner, opts)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Refresh(rootCtx); err != nil {
		logger.Log.WithError(err).Fatal("initial detection run failed")
	}

	if cfg.RefreshTopic != "" {
		consumer := kafka.NewConsumer(cfg.RefreshTopic, cfg.RefreshGroupID)
		defer consumer.Close()
		go func() {
			if err := service.ConsumeRefreshEvents(rootCtx, consumer); err != nil && rootCtx.Err() == nil {
				logger.Log.WithError(err).Error("refresh consumer stopped")
			}
		}()
	}

	// Setup router
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(50, 100))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !service.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods("GET")
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	serving.NewHTTPHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Detection service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down detection service...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("Detection service stopped")
}
