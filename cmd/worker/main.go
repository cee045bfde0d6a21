package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/logger"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
	"github.com/uma-arai/sbcntr-rsvp/internal/queue"
)

const (
	projectName = "sbcntr-rsvp-worker"
)

// キューに積まれた通知を送信するワーカーです
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load config")
	}
	logger.Setup(projectName, cfg.LogLevel, cfg.IsLocal())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender, err := notifier.NewSender(ctx, cfg)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create sender")
	}

	server, err := queue.NewServer(cfg.RedisURL, cfg.QueueConcurrency, sender)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create worker")
	}

	log.Info().Int("concurrency", cfg.QueueConcurrency).Msg("Worker started")
	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Worker stopped with error")
	}
	log.Info().Msg("Worker stopped")
}
