package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/voxmeet/voxmeet/internal/auth"
	"github.com/voxmeet/voxmeet/internal/bridge"
	"github.com/voxmeet/voxmeet/internal/config"
	"github.com/voxmeet/voxmeet/internal/events"
	"github.com/voxmeet/voxmeet/internal/handler"
	"github.com/voxmeet/voxmeet/internal/hub"
	"github.com/voxmeet/voxmeet/internal/registry"
	"github.com/voxmeet/voxmeet/internal/service"
	"github.com/voxmeet/voxmeet/internal/store"
	pkglog "github.com/voxmeet/voxmeet/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "meeting-coordinator",
	})
	l := pkglog.L()

	if cfg.Auth.Secret == "" {
		l.Fatal().Msg("auth.secret (JWT_SECRET) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mongo
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err == nil {
		err = mongoClient.Ping(connectCtx, readpref.Primary())
	}
	cancel()
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer mongoClient.Disconnect(context.Background())
	l.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	meetingStore := store.NewMongoStore(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.OpTimeout)

	// Redis: room directory + transcription bridge relay
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		l.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	l.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	advertiseAddress := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	directory := registry.NewRedisDirectory(redisClient, cfg.Redis, advertiseAddress)
	defer directory.Close()

	// Kafka event stream (optional)
	var producer events.Producer = events.NoopProducer{}
	if cfg.Kafka.Brokers != "" {
		kafkaProducer, err := events.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		producer = kafkaProducer
		l.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}
	defer producer.Close()

	wsHub := hub.NewHub(cfg.WebSocket)
	connections := registry.NewConnectionRegistry(cfg.Session.ReconnectGrace)
	coordinator := service.NewSessionCoordinator(wsHub, meetingStore, meetingStore, connections, directory, producer)

	verifier := auth.NewVerifier(cfg.Auth.Secret)
	wsHandler := handler.NewWSHandler(wsHub, coordinator, verifier)
	httpHandler := handler.NewHTTPHandler(wsHub, wsHandler)

	subscriber := bridge.NewSubscriber(redisClient, cfg.Redis.BridgeChannel, wsHub)

	if err := directory.StartHeartbeat(ctx); err != nil {
		l.Fatal().Err(err).Msg("failed to start directory heartbeat")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		subscriber.Run(ctx)
		return nil
	})

	g.Go(func() error {
		l.Info().Str("address", server.Addr).Msg("meeting coordinator listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		l.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Fatal().Err(err).Msg("coordinator terminated")
	}
	l.Info().Msg("meeting coordinator stopped")
}
