package notifier

import (
	"context"
	"fmt"

	"github.com/uma-arai/sbcntr-rsvp/internal/model"
)

// Sender はゲストと主催者へ通知を届けるインターフェースです
type Sender interface {
	SendReminder(ctx context.Context, payload model.ReminderPayload) error
	SendConfirmation(ctx context.Context, payload model.ConfirmationPayload) error
	NotifyHost(ctx context.Context, payload model.HostNotification) error
}

// Dispatcher は回答後の通知を受け付けます
// 実装によっては呼び出し元と切り離して非同期に送信します
type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification) error
}

// Deliver は通知の種類に応じて Sender を呼び分けます
func Deliver(ctx context.Context, sender Sender, n model.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	switch n.Type {
	case model.NotificationTypeConfirmation:
		return sender.SendConfirmation(ctx, *n.Confirmation)
	case model.NotificationTypeRSVPUpdate:
		return sender.NotifyHost(ctx, *n.Host)
	}
	return nil
}

// InlineDispatcher は呼び出しの中でそのまま送信します
type InlineDispatcher struct {
	sender Sender
}

// NewInlineDispatcher は新しいInlineDispatcherを作成します
func NewInlineDispatcher(sender Sender) *InlineDispatcher {
	return &InlineDispatcher{sender: sender}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	return Deliver(ctx, d.sender, n)
}
