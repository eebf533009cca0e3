package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"guarddog-backend/internal/bootstrap"
	"guarddog-backend/internal/shared/config"
	"guarddog-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if app.DB != nil && cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, app.DB); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
	}

	if app.EmbeddedRedis {
		log.Printf("worker: REDIS_URL empty; this worker only sees its own embedded queue. Set REDIS_URL to share the queue with the api, or run the api alone in dev (it runs the worker in-process)")
	}

	pool := app.NewWorkerPool()
	log.Printf("worker started transport=%s concurrency=%d", cfg.QueueTransport, pool.Concurrency)
	if err := pool.Run(ctx); err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Printf("worker stopped")
}
