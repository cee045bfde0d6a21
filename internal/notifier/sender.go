package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"go.uber.org/multierr"
)

// EmailChannel はメールの送信経路です
type EmailChannel interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSChannel はSMSの送信経路です
type SMSChannel interface {
	Send(ctx context.Context, phone, text string) error
}

// ChatChannel はチャットの送信経路です
type ChatChannel interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// ChannelSender はメール・SMS・チャットを組み合わせた Sender です
// sms と chat は nil の場合に無効になります
type ChannelSender struct {
	email EmailChannel
	sms   SMSChannel
	chat  ChatChannel
}

// NewChannelSender は新しいChannelSenderを作成します
func NewChannelSender(email EmailChannel, sms SMSChannel, chat ChatChannel) *ChannelSender {
	return &ChannelSender{email: email, sms: sms, chat: chat}
}

// SendReminder はゲストへリマインダーメールを送信します
func (s *ChannelSender) SendReminder(ctx context.Context, payload model.ReminderPayload) error {
	if payload.To == "" {
		return fmt.Errorf("guest %d has no email address", payload.GuestID)
	}
	return s.email.Send(ctx, payload.To, payload.Subject(), payload.Body())
}

// SendConfirmation はゲストへ回答確認メールを送信します
func (s *ChannelSender) SendConfirmation(ctx context.Context, payload model.ConfirmationPayload) error {
	if payload.To == "" {
		return fmt.Errorf("guest %d has no email address", payload.GuestID)
	}
	return s.email.Send(ctx, payload.To, payload.Subject(), payload.Body())
}

// NotifyHost は主催者の設定に従って全ての経路へ通知します
// 一部の経路が失敗しても残りの経路には送信し、失敗はまとめて返します
func (s *ChannelSender) NotifyHost(ctx context.Context, payload model.HostNotification) error {
	host := payload.Host
	var errs error

	if host.NotifyEmail && host.Email != "" {
		if err := s.email.Send(ctx, host.Email, payload.Subject(), payload.Body()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("email to host %d: %w", host.ID, err))
		}
	}

	if host.NotifySMS && host.Phone != "" && s.sms != nil {
		if err := s.sms.Send(ctx, host.Phone, payload.SMSText()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sms to host %d: %w", host.ID, err))
		}
	}

	if host.TelegramChatID != nil && s.chat != nil {
		text := payload.Subject() + "\n" + payload.Body()
		if err := s.chat.Send(ctx, *host.TelegramChatID, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("telegram to host %d: %w", host.ID, err))
		}
	}

	return errs
}

// LogSender はローカル実行用の Sender です。送信せずにログへ出力します
type LogSender struct{}

func (LogSender) SendReminder(ctx context.Context, payload model.ReminderPayload) error {
	log.Info().Int64("guest_id", payload.GuestID).Str("to", payload.To).Str("subject", payload.Subject()).
		Str("rule", model.FormatRule(payload.Rule)).Msg("Skip sending reminder in local environment")
	return nil
}

func (LogSender) SendConfirmation(ctx context.Context, payload model.ConfirmationPayload) error {
	log.Info().Int64("guest_id", payload.GuestID).Str("to", payload.To).Str("subject", payload.Subject()).
		Msg("Skip sending confirmation in local environment")
	return nil
}

func (LogSender) NotifyHost(ctx context.Context, payload model.HostNotification) error {
	log.Info().Int64("host_id", payload.Host.ID).Str("subject", payload.Subject()).
		Msg("Skip notifying host in local environment")
	return nil
}
