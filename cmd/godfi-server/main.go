package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"godfi/adapters/postgres"
	"godfi/adapters/sem"
	"godfi/api"
	"godfi/app"
	"godfi/internal"
	"godfi/internal/config"
	"godfi/ports"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := internal.DefaultLogger

	var repo ports.RunRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("failed to prepare schema: %v", err)
		}
		repo = postgres.NewRunRepository(db)
		logger.Info("run persistence enabled")
	} else {
		logger.Info("DATABASE_URL not set; run persistence disabled")
	}

	pipeline := app.NewPipeline(sem.NewDeriver(), sem.NewNormalSampler(), sem.NewMLEstimator(), logger)
	server := api.NewServer(pipeline, repo, logger, api.Defaults{
		Reps:     cfg.Simulation.Reps,
		Parallel: cfg.Simulation.Parallel,
	})

	addr := ":" + cfg.Server.Port
	logger.Info("listening on %s", addr)
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
