// Package main runs the flowbase API server: workflow CRUD, executions
// with SSE streaming, custom executors, configs, schedules and the
// realtime websocket feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	configrepo "github.com/flowbase-io/flowbase/internal/config/adapters/repository/postgres"
	confighandlers "github.com/flowbase-io/flowbase/internal/config/adapters/http/handlers"
	configservice "github.com/flowbase-io/flowbase/internal/config/app/service"
	"github.com/flowbase-io/flowbase/internal/engine"
	execrepo "github.com/flowbase-io/flowbase/internal/execution/adapters/repository/postgres"
	exechandlers "github.com/flowbase-io/flowbase/internal/execution/adapters/http/handlers"
	execservice "github.com/flowbase-io/flowbase/internal/execution/app/service"
	"github.com/flowbase-io/flowbase/internal/gateway/realtime"
	nodehandlers "github.com/flowbase-io/flowbase/internal/node/adapters/http/handlers"
	noderepo "github.com/flowbase-io/flowbase/internal/node/adapters/repository/postgres"
	nodeservice "github.com/flowbase-io/flowbase/internal/node/app/service"
	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/node/runtime/nodes"
	"github.com/flowbase-io/flowbase/internal/platform/cache"
	"github.com/flowbase-io/flowbase/internal/platform/config"
	"github.com/flowbase-io/flowbase/internal/platform/database"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	"github.com/flowbase-io/flowbase/internal/platform/messaging/kafka"
	"github.com/flowbase-io/flowbase/internal/platform/metrics"
	"github.com/flowbase-io/flowbase/internal/platform/response"
	"github.com/flowbase-io/flowbase/internal/platform/telemetry"
	schedrepo "github.com/flowbase-io/flowbase/internal/schedule/adapters/repository/postgres"
	schedhandlers "github.com/flowbase-io/flowbase/internal/schedule/adapters/http/handlers"
	schedservice "github.com/flowbase-io/flowbase/internal/schedule/app/service"
	wfrepo "github.com/flowbase-io/flowbase/internal/workflow/adapters/repository/postgres"
	wfhandlers "github.com/flowbase-io/flowbase/internal/workflow/adapters/http/handlers"
	wfservice "github.com/flowbase-io/flowbase/internal/workflow/app/service"
	"github.com/flowbase-io/flowbase/pkg/expression"
)

func main() {
	cfg, err := config.Load("api")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store, redisClient := connectCache(ctx, cfg, log)
	defer store.Close()

	shutdownTracing, tracer, err := telemetry.Init(cfg.Telemetry, cfg.Service)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	publisher, err := kafka.NewPublisher(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	syncProducer := connectSyncProducer(cfg.Kafka, log)
	if syncProducer != nil {
		defer syncProducer.Close()
	}

	m := metrics.New()

	// Repositories.
	workflows := wfrepo.NewWorkflowRepository(db)
	journal := execrepo.NewJournal(db)
	configs := configrepo.NewConfigRepository(db)
	customExecutors := noderepo.NewCustomExecutorRepository(db)
	schedules := schedrepo.NewScheduleRepository(db)

	// Engine and registry. The runner closure lets stored workflows act
	// as node executors.
	registry := runtime.NewRegistry(customExecutors)
	nodes.RegisterBuiltins(registry, nodes.Deps{
		Logger:       log,
		RedisClient:  redisClient,
		SyncProducer: syncProducer,
		OpenAIKey:    cfg.Integrations.OpenAIAPIKey,
	})
	eng := engine.New(workflows, registry, expression.NewEvaluator(), cfg.Engine, log, m, tracer)
	registry.SetRunner(eng.Runner(journal))

	// Services.
	hub := realtime.NewHub(log)
	workflowSvc := wfservice.NewWorkflowService(workflows, log)
	configSvc := configservice.NewConfigService(configs, store, cfg.Redis.TTL, log)
	executorSvc := nodeservice.NewExecutorService(customExecutors, workflows, registry, log)
	executionSvc := execservice.NewExecutionService(
		workflows, journal, configSvc, eng, publisher, hub,
		cfg.Engine.StreamBufferSize, log)
	scheduleSvc := schedservice.NewScheduleService(schedules, workflows, executionSvc, log)

	if err := scheduleSvc.Start(ctx); err != nil {
		return err
	}
	defer scheduleSvc.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": cfg.Service.Name,
			"version": cfg.Service.Version,
		})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.Handle("/ws", hub).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	wfhandlers.NewWorkflowHandler(workflowSvc).RegisterRoutes(api)
	exechandlers.NewExecutionHandler(executionSvc, log).RegisterRoutes(api)
	confighandlers.NewConfigHandler(configSvc).RegisterRoutes(api)
	nodehandlers.NewExecutorHandler(executorSvc).RegisterRoutes(api)
	schedhandlers.NewScheduleHandler(scheduleSvc).RegisterRoutes(api)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      logger.HTTPMiddleware(log)(router),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", cfg.HTTP.Addr(), "environment", cfg.Service.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// connectCache prefers redis and falls back to the in-memory cache when
// redis is unreachable. The raw client is shared with the redis node
// executor.
func connectCache(ctx context.Context, cfg *config.Config, log logger.Logger) (cache.Cache, *redis.Client) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	store, err := cache.NewRedis(pingCtx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", "error", err)
		return cache.NewMemory(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return store, client
}

// connectSyncProducer backs the kafka publish node. Errors are logged,
// not fatal; the node reports itself unconfigured.
func connectSyncProducer(cfg config.KafkaConfig, log logger.Logger) sarama.SyncProducer {
	if !cfg.Enabled {
		return nil
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		log.Error("failed to create kafka sync producer", "error", err)
		return nil
	}
	return producer
}
