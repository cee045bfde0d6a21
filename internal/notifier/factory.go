package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
)

// NewSender は設定から Sender を組み立てます
// ENV=LOCAL の場合は外部へ送信せずログへ出力します。Telegramはトークンがある場合だけ有効です
func NewSender(ctx context.Context, cfg *config.Config) (Sender, error) {
	if cfg.IsLocal() {
		log.Info().Msg("Local environment detected. Notifications are written to the log")
		return LogSender{}, nil
	}

	awsCfg, err := cfg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	email := NewEmailSender(sesv2.NewFromConfig(awsCfg), cfg.Mail.From)
	sms := NewSMSSender(sns.NewFromConfig(awsCfg), cfg.DefaultPhoneRegion)

	if cfg.TelegramBotToken == "" {
		return NewChannelSender(email, sms, nil), nil
	}

	chat, err := NewTelegramSender(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram sender: %w", err)
	}
	return NewChannelSender(email, sms, chat), nil
}
