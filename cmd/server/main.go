package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"aggregator/internal/broker"
	"aggregator/internal/config"
	"aggregator/internal/dict"
	"aggregator/internal/geo"
	"aggregator/internal/logger"
	"aggregator/internal/metrics"
	"aggregator/internal/model"
	"aggregator/internal/pipeline"
	"aggregator/internal/server"
	"aggregator/internal/spool"
	chstore "aggregator/internal/storage/clickhouse"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Collaborator connections. Any failure here is fatal: the pipeline
	// tolerates every failure mode except starting without its stores.
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal().Err(err).Msg("mongo ping")
	}
	store := dict.NewStore(mongoClient.Database(cfg.MongoDatabase))
	if err := store.EnsureIndexes(ctx, cfg.Dictionaries); err != nil {
		log.Fatal().Err(err).Msg("dictionary indexes")
	}

	sink, err := chstore.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("clickhouse connect")
	}

	b, err := broker.Connect(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connect")
	}

	var resolver geo.Resolver = geo.Disabled{}
	if cfg.GeoDBPath != "" {
		mm, err := geo.Open(cfg.GeoDBPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.GeoDBPath).Msg("geo database unavailable, coordinates disabled")
		} else {
			resolver = mm
			defer mm.Close()
		}
	}

	sp, err := spool.New(cfg.SpoolDir, cfg.InstanceID, cfg.SpoolMaxAge, b.DeadLetter, m)
	if err != nil {
		log.Fatal().Err(err).Msg("spool init")
	}

	// Pipeline assembly: one buffer and one consumer goroutine per event
	// type, one scheduler driving cache refresh and flushes.
	buffers := make(map[model.Type]*pipeline.Buffer, len(model.Types()))
	for _, t := range model.Types() {
		buffers[t] = pipeline.NewBuffer()
	}

	enricher := pipeline.NewEnricher(resolver)
	writer := pipeline.NewWriter(sink, enricher, m, cfg.WriteRetries)
	consumer := pipeline.NewConsumer(pipeline.NewValidator(), buffers, b, sp, m)
	sched := pipeline.NewScheduler(cfg.FlushInterval, cfg.Dictionaries, store, buffers, writer, sp, m)

	var wg sync.WaitGroup
	for _, t := range model.Types() {
		msgs, err := b.Consume(t)
		if err != nil {
			log.Fatal().Err(err).Str("type", string(t)).Msg("consume")
		}
		wg.Add(1)
		go func(t model.Type, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			consumer.Run(ctx, t, msgs)
		}(t, msgs)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	mux := http.NewServeMux()
	server.NewHandler(cfg, m, store).Routes(mux)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("registration api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancel()

	// Consumers and scheduler observe ctx; the scheduler runs one final
	// cycle so buffered events get a last flush attempt before exit.
	wg.Wait()

	b.Close()
	sink.Close()
	disconnectCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	_ = mongoClient.Disconnect(disconnectCtx)
	cancel2()

	log.Info().Msg("shutdown complete")
}
