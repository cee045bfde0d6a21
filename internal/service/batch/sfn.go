package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
)

// SendTaskFailure の Cause に入れられる最大文字数
const maxFailureCauseLength = 32768

// SFNAPI は TaskReporter が使う Step Functions クライアントの操作です
type SFNAPI interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

// TaskReporter はバッチの結果をStep Functionsのタスクトークンへ返します
// client が nil の場合 (ローカル実行) は何もしません。結果を返すのは最初の1回だけです
type TaskReporter struct {
	client    SFNAPI
	taskToken string

	mu       sync.Mutex
	reported bool
}

// NewTaskReporter は新しいTaskReporterを作成します
func NewTaskReporter(client SFNAPI, taskToken string) *TaskReporter {
	return &TaskReporter{client: client, taskToken: taskToken}
}

// ReportSuccess は output をJSONにしてタスク成功を通知します
func (r *TaskReporter) ReportSuccess(ctx context.Context, output any) error {
	if r == nil || r.client == nil {
		log.Info().Msg("Local environment detected. Skipping Step Functions task success notification")
		return nil
	}

	if r.taskToken == "" {
		return fmt.Errorf("SFN task token is not set in config")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reported {
		log.Warn().Msg("Task result was already sent. Skipping task success notification")
		return nil
	}

	body, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal task output: %w", err)
	}

	_, err = r.client.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(r.taskToken),
		Output:    aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}
	r.reported = true

	log.Info().RawJSON("output", body).Msg("Successfully sent task success")
	return nil
}

// ReportFailure はタスク失敗を通知します
func (r *TaskReporter) ReportFailure(ctx context.Context, errorCode string, cause error) error {
	if r == nil || r.client == nil {
		log.Info().Msg("Local environment detected. Skipping Step Functions task failure notification")
		return nil
	}

	if r.taskToken == "" {
		return fmt.Errorf("SFN task token is not set in config")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reported {
		log.Warn().Err(cause).Msg("Task result was already sent. Skipping task failure notification")
		return nil
	}

	msg := cause.Error()
	if len(msg) > maxFailureCauseLength {
		msg = msg[:maxFailureCauseLength]
	}

	_, err := r.client.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(r.taskToken),
		Error:     aws.String(errorCode),
		Cause:     aws.String(msg),
	})
	if err != nil {
		return fmt.Errorf("failed to send task failure: %w", err)
	}
	r.reported = true

	return nil
}

// RunTask は fn を timeout 付きで実行します
// タイムアウトやキャンセルで fn が結果を返せなかった場合は、ここでタスク失敗を通知します
func RunTask(ctx context.Context, timeout time.Duration, reporter *TaskReporter, errorCode string, fn func(context.Context) error) error {
	err := utils.RunWithTimeout(ctx, timeout, fn)
	if err == nil {
		return nil
	}

	// 元のコンテキストは期限切れやキャンセル済みの場合がある
	if reportErr := reporter.ReportFailure(context.WithoutCancel(ctx), errorCode, err); reportErr != nil {
		log.Error().Err(reportErr).Msg("Failed to report task failure")
	}
	return err
}
