package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"newswire/api"
	"newswire/cache"
	"newswire/config"
	"newswire/newsapi"
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

	manager := cache.NewManager(backend)
	registry := tasks.NewRegistry(backend)
	pipe := pipeline.New(st, manager, registry, producer)

	router := api.NewRouter(api.Deps{
		Store:    st,
		Cache:    manager,
		Tasks:    registry,
		Pipeline: pipe,
		News:     newsapi.FromEnv(manager),
	})

	addr := ":" + config.GetServerPort()
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.WithField("addr", addr).Info("🚀 API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)
	<-sigterm

	log.Info("Shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
