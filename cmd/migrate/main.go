package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"productstudio/internal/infra"
	"productstudio/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "migrate")

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to reach database")
	}

	n, err := migrations.Apply(ctx, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Int("applied", n).Msg("migration failed")
	}
	logger.Info().Int("applied", n).Msg("schema up to date")
}
