package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/database"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/logger"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
)

func main() {
	_ = godotenv.Load()

	timeout := flag.Duration("timeout", time.Minute, "マイグレーションのタイムアウト時間")
	flag.Parse()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load config")
	}
	logger.Setup("sbcntr-rsvp-migrate", cfg.LogLevel, cfg.IsLocal())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to migrate database")
	}
	log.Info().Str("database", cfg.DB.DBName).Msg("Migration completed")
}
