package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/logger"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
	"github.com/uma-arai/sbcntr-rsvp/internal/queue"
	"github.com/uma-arai/sbcntr-rsvp/internal/service/batch"
)

const (
	projectName = "sbcntr-rsvp-admission"
)

// rsvpInput はStep Functionsから渡される入力です
type rsvpInput struct {
	Submissions []batch.RSVPRequest `json:"submissions"`
}

func parseInput(raw string) ([]batch.RSVPRequest, error) {
	if raw == "" {
		return nil, fmt.Errorf("input is empty")
	}
	var input rsvpInput
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("failed to parse input: %w", err)
	}
	return input.Submissions, nil
}

func main() {
	_ = godotenv.Load()

	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	inputJSON := flag.String("input", "", `回答のJSON。例: {"submissions":[{"token":"...","status":"ATTENDING"}]}`)
	flag.Parse()

	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		taskToken = flag.Arg(flag.NArg() - 1)
		if taskToken == "" {
			log.Fatal().Msg("Task token is required")
		}
	}

	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load config")
	}
	logger.Setup(projectName, cfg.LogLevel, cfg.IsLocal())

	submissions, err := parseInput(*inputJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid input")
	}

	// X-Ray設定
	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to configure X-Ray")
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatal().Err(configErr).Msg("Failed to configure default X-Ray settings")
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sfnClient batch.SFNAPI
	if !cfg.IsLocal() {
		awsCfg, err := cfg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load AWS config")
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	// Redisがあれば通知はワーカーに任せ、なければこのプロセスで送る
	var dispatcher notifier.Dispatcher
	if cfg.RedisURL != "" {
		d, err := queue.NewAsynqDispatcher(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create notification queue")
		}
		defer d.Close()
		dispatcher = d
	} else {
		sender, err := notifier.NewSender(ctx, cfg)
		if err != nil {
			log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create sender")
		}
		dispatcher = notifier.NewInlineDispatcher(sender)
	}

	reporter := batch.NewTaskReporter(sfnClient, taskToken)
	service, err := batch.NewRSVPBatchService(ctx, cfg, dispatcher, reporter)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create rsvp batch service")
	}
	defer service.Close()
	service.SetArgs(submissions)

	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("submissions", len(submissions)); err != nil {
			log.Warn().Err(err).Msg("Failed to add submissions metadata")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- batch.RunTask(ctx, *timeout, reporter, "RSVPAdmissionFailed", service.Run)
	}()

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
		accepted := 0
		for _, r := range service.Results() {
			if r.Accepted {
				accepted++
			}
		}
		log.Info().Int("accepted", accepted).Int("total", len(submissions)).Msg("Batch process completed successfully")
	}
}
