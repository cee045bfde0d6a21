package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
)

// TaskTypeNotification は回答後の通知タスクの種類です
const TaskTypeNotification = "rsvp:notification"

const (
	queueName = "notifications"
	maxRetry  = 5
)

// Enqueuer は AsynqDispatcher が使う asynq クライアントの操作です
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqDispatcher は通知をRedis上のキューへ積む notifier.Dispatcher です
type AsynqDispatcher struct {
	client Enqueuer
}

var _ notifier.Dispatcher = (*AsynqDispatcher)(nil)

// NewAsynqDispatcher はREDIS_URL形式の接続先からAsynqDispatcherを作成します
func NewAsynqDispatcher(redisURL string) (*AsynqDispatcher, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqDispatcher{client: asynq.NewClient(opt)}, nil
}

// Dispatch は通知をタスクとして登録します
func (d *AsynqDispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	task := asynq.NewTask(TaskTypeNotification, payload)
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.TaskID(uuid.NewString()),
		asynq.Queue(queueName),
		asynq.MaxRetry(maxRetry),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	log.Debug().Str("task_id", info.ID).Str("type", string(n.Type)).Msg("Notification enqueued")
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// NewNotificationHandler はキューから取り出した通知を sender で送信するハンドラーを返します
// 壊れたペイロードは再試行しません
func NewNotificationHandler(sender notifier.Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var n model.Notification
		if err := json.Unmarshal(t.Payload(), &n); err != nil {
			return fmt.Errorf("failed to unmarshal notification: %v: %w", err, asynq.SkipRetry)
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("invalid notification: %v: %w", err, asynq.SkipRetry)
		}
		return notifier.Deliver(ctx, sender, n)
	}
}

// Server は通知タスクを処理するワーカーです
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer はワーカーを作成し、通知ハンドラーを登録します
func NewServer(redisURL string, concurrency int, sender notifier.Sender) (*Server, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("Failed to process task")
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeNotification, NewNotificationHandler(sender))

	return &Server{server: srv, mux: mux}, nil
}

// Run はワーカーを起動し、contextがキャンセルされるまでブロックします
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}
