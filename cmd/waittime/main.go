package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/waittime/internal/adapters/cache"
	"github.com/zatekoja/waittime/internal/adapters/catalog"
	"github.com/zatekoja/waittime/internal/adapters/database"
	"github.com/zatekoja/waittime/internal/adapters/events"
	"github.com/zatekoja/waittime/internal/api/handlers"
	"github.com/zatekoja/waittime/internal/api/routes"
	"github.com/zatekoja/waittime/internal/application/services"
	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/domain/providers"
	"github.com/zatekoja/waittime/internal/estimation"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/mapservice"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/waittime/internal/infrastructure/clients/redis"
	"github.com/zatekoja/waittime/internal/infrastructure/observability"
	"github.com/zatekoja/waittime/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.Service.Name, cfg.Service.Environment, cfg.Service.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to setup OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	if err := database.EnsureSchema(ctx, pgClient.DB()); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare database schema")
	}

	// Initialize Redis client
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize adapters
	cacheProvider := cache.NewRedisAdapter(redisClient.Client())
	facilityRepo := database.NewFacilityAdapter(pgClient)
	queueStateRepo := database.NewCachedQueueStateAdapter(
		database.NewQueueStateAdapter(pgClient),
		cacheProvider,
		int(cfg.Redis.StateCacheTTL.Seconds()),
	)

	// Facility catalog: database, then map service, then the optional local file
	mapClient := mapservice.NewClient(cfg.Catalog.MapServiceURL, cfg.Catalog.MapServiceTimeout)
	sources := []services.CatalogSource{
		{Source: catalog.NewMapServiceSource(mapClient), Persist: true},
	}
	var fileSource *catalog.FileSource
	if cfg.Catalog.File != "" {
		fileSource = catalog.NewFileSource(cfg.Catalog.File)
		sources = append(sources, services.CatalogSource{Source: fileSource})
	}

	facilityService := services.NewFacilityService(facilityRepo, sources...)
	if err := facilityService.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Facility catalog is empty, events will be dropped until it loads")
	}
	if fileSource != nil {
		go func() {
			err := fileSource.Watch(ctx, func(facilities []*entities.Facility) {
				facilityService.ReplaceSource(fileSource.Name(), facilities)
			})
			if err != nil {
				log.Error().Err(err).Str("path", fileSource.Path()).Msg("Catalog watcher stopped")
			}
		}()
	}

	// Initialize event transport
	var eventBus providers.EventBus
	switch cfg.Broker.Transport {
	case config.BrokerKafka:
		eventBus = events.NewKafkaEventBus(cfg.Broker)
		log.Info().Strs("brokers", cfg.Broker.KafkaBrokers).Msg("Using Kafka event transport")
	default:
		eventBus = events.NewRedisEventBus(redisClient.Client(), cfg.Broker.QueueEventsChannel, cfg.Broker.UpdatesChannel)
		log.Info().Str("channel", cfg.Broker.QueueEventsChannel).Msg("Using Redis event transport")
	}

	// Initialize estimation
	pipelineCfg := estimation.DefaultPipelineConfig()
	pipelineCfg.Alpha = cfg.Estimation.Alpha
	pipelineCfg.ThresholdPct = cfg.Estimation.ThresholdPct

	waitTimeService := services.NewWaitTimeService(
		facilityService,
		estimation.NewArrivalWindow(cfg.Estimation.Window()),
		estimation.NewEstimationPipeline(pipelineCfg),
		queueStateRepo,
		eventBus,
	)
	dispatcher := services.NewDispatcher(waitTimeService, cfg.Estimation.Workers, cfg.Estimation.QueueSize)

	queueEvents, err := eventBus.Subscribe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to queue events")
	}
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx, queueEvents)
	}()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.Service.Name, eventBus.Status)
	waitTimeHandler := handlers.NewWaitTimeHandler(waitTimeService)
	poiHandler := handlers.NewPOIHandler(facilityService)
	debugHandler := handlers.NewDebugHandler(waitTimeService, eventBus.Status, dispatcher.Stats)

	router := routes.NewRouter(healthHandler, waitTimeHandler, poiHandler, debugHandler, metrics)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// Stop consuming, then let in-flight events finish
	cancel()
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Dispatcher did not drain before shutdown deadline")
	}

	stats := dispatcher.Stats()
	log.Info().
		Int64("processed", stats.Processed).
		Int64("failed", stats.Failed).
		Int64("published", stats.Published).
		Msg("Server stopped")
}
