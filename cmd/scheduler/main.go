package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/cache"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/logger"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
	"github.com/uma-arai/sbcntr-rsvp/internal/service/batch"
)

const (
	projectName = "sbcntr-rsvp-scheduler"
	// 1回のリマインダー送信に許す時間
	runTimeout = 10 * time.Minute
)

// Step Functionsを使わない常駐型のリマインダー送信です
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load config")
	}
	logger.Setup(projectName, cfg.LogLevel, cfg.IsLocal())

	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000",
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to configure X-Ray")
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender, err := notifier.NewSender(ctx, cfg)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create sender")
	}

	var guard cache.InFlightGuard
	if cfg.RedisURL != "" {
		g, err := cache.NewRedisGuard(ctx, cfg.RedisURL, cfg.Reminder.InFlightTTL, uuid.NewString())
		if err != nil {
			log.Warn().Err(err).Msg("In-flight guard is unavailable, continuing without it")
		} else {
			guard = g
			defer g.Close()
		}
	}

	// reporterがnilなのでStep Functionsへの報告は行わない
	service, err := batch.NewReminderBatchService(ctx, cfg, sender, guard, nil)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create reminder batch service")
	}
	defer service.Close()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(cfg.Reminder.CronSpec, func() {
		runCtx := ctx
		if cfg.EnableTracing {
			// 実行ごとにセグメントを分ける
			var seg *xray.Segment
			runCtx, seg = xray.BeginSegment(ctx, projectName)
			defer seg.Close(nil)
		}
		err := utils.RunWithTimeout(runCtx, runTimeout, func(ctx context.Context) error {
			summary, err := service.Dispatch(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("emails_sent", summary.EmailsSent).Int("errors", summary.Errors).Msg("Reminder run finished")
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("Reminder run failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Reminder.CronSpec).Msg("Invalid cron spec")
	}

	log.Info().Str("spec", cfg.Reminder.CronSpec).Msg("Scheduler started")
	c.Start()

	<-ctx.Done()
	log.Info().Msg("Shutting down scheduler")
	// 実行中のジョブの完了を待つ
	<-c.Stop().Done()
}
