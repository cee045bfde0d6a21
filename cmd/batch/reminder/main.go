package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/cache"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/logger"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
	"github.com/uma-arai/sbcntr-rsvp/internal/service/batch"
)

const (
	projectName = "sbcntr-rsvp-reminder"
)

func main() {
	// .envがあれば読み込む。本番では環境変数が直接設定される
	_ = godotenv.Load()

	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		taskToken = flag.Arg(flag.NArg() - 1)
		if taskToken == "" {
			log.Fatal().Msg("Task token is required")
		}
	}

	// 設定の読み込み
	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load config")
	}
	logger.Setup(projectName, cfg.LogLevel, cfg.IsLocal())

	// X-Ray設定
	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to configure X-Ray")
			// X-Ray設定失敗時はデフォルトの設定を使用
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatal().Err(configErr).Msg("Failed to configure default X-Ray settings")
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	// コンテキストを作成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step Functionsクライアントの初期化
	var sfnClient batch.SFNAPI
	if !cfg.IsLocal() {
		awsCfg, err := cfg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load AWS config")
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	sender, err := notifier.NewSender(ctx, cfg)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create sender")
	}

	// Redisがあれば送信中のゲストを共有し、重なった実行からの二重送信を防ぐ
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

	// リマインダーバッチサービスを作成
	reporter := batch.NewTaskReporter(sfnClient, taskToken)
	service, err := batch.NewReminderBatchService(ctx, cfg, sender, guard, reporter)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create reminder batch service")
	}
	defer service.Close()

	// X-Rayセグメントの作成
	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			log.Warn().Err(err).Msg("Failed to add timeout metadata")
		}
	}

	// シグナルハンドリング
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// バッチ処理の実行
	errChan := make(chan error, 1)
	go func() {
		errChan <- batch.RunTask(ctx, *timeout, reporter, "ReminderDispatchFailed", service.Run)
	}()

	// シグナルを待機
	select {
	case sig := <-sigChan:
		log.Warn().Str("signal", sig.String()).Msg("Received signal")
		cancel()
		// キャンセルを受けてタスク失敗が通知されるのを待つ
		if err := <-errChan; err != nil {
			log.Error().Err(err).Msg("Batch process interrupted")
		}
		service.Close()
		os.Exit(1)
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Batch process failed")
			service.Close()
			os.Exit(1)
		}
		summary := service.Summary()
		log.Info().Int("emails_sent", summary.EmailsSent).Int("errors", summary.Errors).Msg("Batch process completed successfully")
	}
}
