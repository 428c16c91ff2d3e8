package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartcage-backend/internal/aggregator"
	"smartcage-backend/internal/api"
	"smartcage-backend/internal/cache"
	"smartcage-backend/internal/coordinator"
	"smartcage-backend/internal/database"
	"smartcage-backend/internal/decoder"
	"smartcage-backend/internal/ml"
	"smartcage-backend/internal/models"
	"smartcage-backend/internal/mqtt"
	"smartcage-backend/internal/services"
	"smartcage-backend/pkg/config"
)

func main() {
	log.Println("Starting SmartCage Backend...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	passwordHash, err := adminPasswordHash(cfg)
	if err != nil {
		log.Fatalf("Failed to prepare admin password: %v", err)
	}
	if len(passwordHash) == 0 {
		log.Println("Warning: ADMIN_PASSWORD not set, admin login disabled")
	}

	// === Redis (optional) ===
	var redisCache *cache.Service
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(cfg.RedisURL, 5)
		if err != nil {
			if cfg.SharedStore == "redis" {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			log.Printf("Warning: Redis unavailable, live feed disabled: %v", err)
		} else {
			defer redisCache.Close()
		}
	}

	// === Shared configuration store ===
	sharedStore, err := coordinator.OpenStore(coordinator.StoreOptions{
		Kind:          cfg.SharedStore,
		Dir:           cfg.SharedDir,
		SQLitePath:    cfg.SQLitePath,
		Cache:         redisCache,
		EtcdEndpoints: cfg.EtcdEndpoints,
		KeyPrefix:     cfg.EtcdPrefix,
		DialTimeout:   cfg.StoreTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to open %s shared store: %v", cfg.SharedStore, err)
	}
	defer sharedStore.Close()
	log.Printf("Shared store: %s", cfg.SharedStore)

	// === ClickHouse (optional) ===
	var db *database.ClickHouseDB
	if cfg.ClickHouseAddr != "" {
		db, err = database.NewClickHouseDB(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
		if err != nil {
			log.Fatalf("Failed to initialize ClickHouse: %v", err)
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			log.Fatalf("Failed to initialize ClickHouse schema: %v", err)
		}
		defer db.Close()
	}

	// === Classification ===
	registry := ml.NewRegistry(ml.DefaultFallbacks())
	store := aggregator.NewStore(cfg.LogCapacity)

	routes := decoder.Routes{
		cfg.TopicTempHumidity: models.ChannelTempHumidity,
		cfg.TopicGas:          models.ChannelGas,
		cfg.TopicLight:        models.ChannelLight,
	}
	outbound := map[models.Channel]string{
		models.ChannelTempHumidity: cfg.TopicTempHumidityPredict,
		models.ChannelGas:          cfg.TopicGasPredict,
		models.ChannelLight:        cfg.TopicLightPredict,
	}

	// === MQTT ===
	log.Println("Connecting to MQTT broker...")
	mqttClient := mqtt.NewClient(mqtt.ClientConfig{
		Broker:         cfg.MQTTBroker,
		ClientID:       cfg.MQTTClientID,
		Username:       cfg.MQTTUsername,
		Password:       cfg.MQTTPassword,
		ConnectTimeout: cfg.MQTTConnectTimeout,
	})
	defer mqttClient.Close()

	messages := make(chan models.Message, cfg.InboundBuffer)
	subscriber := mqtt.NewSubscriber(mqttClient, mqtt.SubscriberConfig{
		Topics: []string{cfg.TopicTempHumidity, cfg.TopicGas, cfg.TopicLight},
		QoS:    cfg.MQTTQoS,
	}, messages)
	if err := subscriber.SubscribeAll(); err != nil {
		log.Fatalf("Failed to register MQTT subscriptions: %v", err)
	}

	// The client keeps retrying in the background; inference runs without it
	if err := mqttClient.Connect(); err != nil {
		log.Printf("Warning: %v, continuing while the client retries", err)
	}

	publisher := mqtt.NewPublisher(mqttClient, mqtt.PublisherConfig{
		QoS:     cfg.MQTTQoS,
		Retain:  cfg.MQTTRetain,
		Timeout: cfg.MQTTPublishTimeout,
	})

	// === Pipeline and sinks ===
	hub := api.NewHub(64)
	pipeline := services.NewPipeline(services.PipelineConfig{
		Decoder:   decoder.New(routes),
		Engine:    services.NewInferenceEngine(registry),
		Store:     store,
		Publisher: publisher,
		Outbound:  outbound,
	})
	pipeline.AddSink(hub)
	// network sinks run off the processing loop
	addAsyncSink := func(sink services.Sink) {
		async := services.NewAsyncSink(sink, cfg.InboundBuffer, cfg.SinkTimeout)
		go async.Start(ctx)
		pipeline.AddSink(async)
	}
	if redisCache.Available() {
		addAsyncSink(services.NewLiveFeedSink(redisCache, cfg.LiveChannel))
	}

	stateConfig := services.StateConfig{
		Registry:        registry,
		Store:           store,
		Coordinator:     coordinator.New(sharedStore, cfg.StoreTimeout),
		Session:         coordinator.NewSession(sharedStore, passwordHash, cfg.StoreTimeout),
		Categories:      cfg.Categories,
		DefaultCategory: cfg.DefaultCategory,
		GasModelPath:    cfg.GasModelPath,
		LightModelPath:  cfg.LightModelPath,
	}
	if db != nil {
		addAsyncSink(services.NewClickHouseSink(db))
		stateConfig.Events = db
	}

	state := services.NewState(stateConfig)
	runner := services.NewRunner(state, pipeline, messages, services.RunnerConfig{
		DrainTimeout: cfg.DrainTimeout,
		LoopIdle:     cfg.LoopIdle,
	})

	// === HTTP API ===
	handler := api.NewHandler(api.HandlerConfig{
		Runner:     runner,
		Store:      store,
		Registry:   registry,
		Transport:  mqttClient,
		Categories: cfg.Categories,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler, hub, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	log.Println("=== SmartCage Backend is running ===")
	log.Printf("Categories: %v (default %s)", cfg.CategoryNames(), cfg.DefaultCategory)
	log.Printf("MQTT Topics:")
	log.Printf("  - Temperature/Humidity: %s -> %s", cfg.TopicTempHumidity, cfg.TopicTempHumidityPredict)
	log.Printf("  - Gas:                  %s -> %s", cfg.TopicGas, cfg.TopicGasPredict)
	log.Printf("  - Light:                %s -> %s", cfg.TopicLight, cfg.TopicLightPredict)
	log.Println("Press Ctrl+C to exit...")

	// Blocks until a shutdown signal
	runner.Start(ctx)

	log.Println("Shutdown signal received, stopping services...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	log.Println("Shutdown complete. Goodbye!")
}

// adminPasswordHash prefers a precomputed bcrypt hash over a plain password
func adminPasswordHash(cfg *config.Config) ([]byte, error) {
	if cfg.AdminPasswordHash != "" {
		return []byte(cfg.AdminPasswordHash), nil
	}
	if cfg.AdminPassword == "" {
		return nil, nil
	}
	return coordinator.HashPassword(cfg.AdminPassword)
}
