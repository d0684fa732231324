package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"newswire/archive"
	"newswire/cache"
	"newswire/config"
	"newswire/pipeline"
	"newswire/shared/kafka"
	"newswire/store"
	"newswire/tasks"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, pool, err := store.Connect(ctx, config.GetDatabaseURL())
	if err != nil {
		log.WithError(err).Fatal("❌ failed to connect to Postgres")
	}
	defer pool.Close()

	backend, err := cache.ConnectRedis(ctx, config.GetRedisAddr(), config.GetRedisPassword(), config.GetRedisDB())
	if err != nil {
		log.WithError(err).Fatal("❌ failed to connect to Redis")
	}
	defer backend.Close()

	producer, err := kafka.NewProducer(config.GetKafkaBrokers(), config.GetKafkaTopic())
	if err != nil {
		log.WithError(err).Fatal("❌ failed to create Kafka producer")
	}
	defer producer.Close()

	pipe := pipeline.New(st, cache.NewManager(backend), tasks.NewRegistry(backend), producer)

	archiver, err := archive.NewFromEnv(ctx)
	if err != nil {
		log.WithError(err).Warn("archiver disabled")
	} else if archiver != nil {
		pipe.WithArchiver(archiver)
	}

	handler := &kafka.TypedMessageHandler[pipeline.UnitMessage]{
		Validate: func(msg *pipeline.UnitMessage) bool { return msg.Valid() },
		Process: func(ctx context.Context, msg *pipeline.UnitMessage) error {
			return pipe.Process(ctx, msg)
		},
		AlwaysMark: true,
	}

	log.WithFields(log.Fields{
		"brokers": config.GetKafkaBrokers(),
		"topic":   config.GetKafkaTopic(),
		"group":   config.GetKafkaGroupID(),
	}).Info("🚀 pipeline worker starting")

	if err := kafka.StartConsumerWithGracefulShutdown(kafka.ConsumerConfig{
		Brokers: config.GetKafkaBrokers(),
		Topic:   config.GetKafkaTopic(),
		GroupID: config.GetKafkaGroupID(),
		Handler: handler,
	}); err != nil {
		log.WithError(err).Fatal("❌ Kafka consumer failed")
	}
}
