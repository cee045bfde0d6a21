package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/cache"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/database"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
	"github.com/uma-arai/sbcntr-rsvp/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Summary は1回のリマインダー送信サイクルの集計です
type Summary struct {
	EmailsSent int `json:"emails_sent"`
	Errors     int `json:"errors"`
	Candidates int `json:"candidates"`
	Skipped    int `json:"skipped"`
}

type reminderOutcome int

const (
	outcomeSkipped reminderOutcome = iota
	outcomeSent
	outcomeFailed
)

type reminderJob struct {
	event    model.Event
	schedule []model.ReminderRule
	guest    model.Guest
}

// ReminderBatchService はリマインダー送信バッチを担当します
type ReminderBatchService struct {
	db        *database.DB
	eventRepo repository.EventRepository
	guestRepo repository.GuestRepository
	sender    notifier.Sender
	// nil の場合は送信中の重複チェックを行いません
	guard    cache.InFlightGuard
	reporter *TaskReporter
	cfg      *config.Config
	now      func() time.Time

	summary Summary
}

// NewReminderBatchService は新しいReminderBatchServiceを作成します
func NewReminderBatchService(ctx context.Context, cfg *config.Config, sender notifier.Sender, guard cache.InFlightGuard, reporter *TaskReporter) (*ReminderBatchService, error) {
	db, err := database.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	// database.DBをrepository.DBに変換
	repoDb := &repository.DB{DB: db.DB}

	return &ReminderBatchService{
		db:        db,
		eventRepo: repository.NewEventRepository(repoDb),
		guestRepo: repository.NewGuestRepository(repoDb),
		sender:    sender,
		guard:     guard,
		reporter:  reporter,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *ReminderBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Summary は最後に実行したサイクルの集計を返します
func (s *ReminderBatchService) Summary() Summary {
	return s.summary
}

// Run はリマインダー送信サイクルを1回実行し、結果をStep Functionsへ返します
func (s *ReminderBatchService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReminderBatchService.Run")
	defer seg.Close(nil)

	summary, err := s.Dispatch(ctx)
	if err != nil {
		if reportErr := s.reporter.ReportFailure(ctx, "ReminderDispatchFailed", err); reportErr != nil {
			log.Error().Err(reportErr).Msg("Failed to report task failure")
		}
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to dispatch reminders: %w", err))
	}

	if err := s.reporter.ReportSuccess(ctx, summary); err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	return nil
}

// Dispatch は送信対象のゲストを読み込み、期限を迎えたリマインダーを送信します
//
// 送信に失敗したゲストには送信済みの印を付けないため、次のサイクルで再送されます。
// 候補の読み込みに失敗した場合と、途中でキャンセルされた場合にエラーを返します
func (s *ReminderBatchService) Dispatch(ctx context.Context) (Summary, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReminderBatchService.Dispatch")
	defer seg.Close(nil)

	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	startTime := time.Now()
	now := s.now()

	candidates, err := s.eventRepo.GetReminderCandidates(ctx, now)
	if err != nil {
		seg.Close(err)
		return Summary{}, fmt.Errorf("failed to get reminder candidates: %w", err)
	}

	jobs := collectReminderJobs(candidates)
	logger.Info().Int("events", len(candidates)).Int("guests", len(jobs)).Msg("Starting reminder batch process")

	if err := seg.AddMetadata("candidate_count", len(jobs)); err != nil {
		logger.Warn().Err(err).Msg("Failed to add candidate_count metadata")
	}

	var (
		mu      sync.Mutex
		summary = Summary{Candidates: len(jobs)}
	)

	record := func(outcome reminderOutcome) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case outcomeSent:
			summary.EmailsSent++
		case outcomeFailed:
			summary.Errors++
		default:
			summary.Skipped++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, job := range jobs {
		// キャンセルやタイムアウト後は残りのゲストに手を付けない
		if gctx.Err() != nil {
			for range jobs[i:] {
				record(outcomeSkipped)
			}
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				record(outcomeSkipped)
				return nil
			}
			record(s.processGuest(gctx, logger, job, now))
			return nil
		})
	}
	// ワーカーはエラーを返さない
	_ = g.Wait()

	duration := time.Since(startTime)
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		logger.Warn().Err(err).Msg("Failed to add duration metadata")
	}

	s.summary = summary
	logger.Info().
		Int("emails_sent", summary.EmailsSent).
		Int("errors", summary.Errors).
		Int("skipped", summary.Skipped).
		Dur("duration", duration).
		Msg("Reminder batch process completed")

	if err := ctx.Err(); err != nil {
		seg.Close(err)
		return summary, fmt.Errorf("reminder dispatch interrupted: %w", err)
	}
	return summary, nil
}

func (s *ReminderBatchService) concurrency() int {
	if s.cfg == nil || s.cfg.Reminder.Concurrency < 1 {
		return 1
	}
	return s.cfg.Reminder.Concurrency
}

func (s *ReminderBatchService) baseURL() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Mail.BaseURL
}

// collectReminderJobs はイベントごとの候補をゲスト単位にし、同じゲストの重複を取り除きます
// スケジュールはイベントごとに1回だけ解釈します
func collectReminderJobs(candidates []model.EventWithGuests) []reminderJob {
	seen := make(map[int64]struct{})
	var jobs []reminderJob
	for _, c := range candidates {
		schedule := c.Event.Schedule()
		for _, guest := range c.Guests {
			if _, ok := seen[guest.ID]; ok {
				continue
			}
			seen[guest.ID] = struct{}{}
			jobs = append(jobs, reminderJob{event: c.Event, schedule: schedule, guest: guest})
		}
	}
	return jobs
}

// processGuest は1人のゲストについて、最初に期限を迎えたルールでリマインダーを送信します
func (s *ReminderBatchService) processGuest(ctx context.Context, logger zerolog.Logger, job reminderJob, now time.Time) reminderOutcome {
	ctx, seg := xray.BeginSubsegment(ctx, "ReminderBatchService.processGuest")
	defer seg.Close(nil)

	logger = logger.With().Int64("event_id", job.event.ID).Int64("guest_id", job.guest.ID).Logger()

	rule, ok := model.FirstDueRule(job.schedule, job.event.StartTime, now)
	if !ok {
		return outcomeSkipped
	}

	var sent bool

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, job.guest.ID)
		switch {
		case err != nil:
			// 重複チェックが使えなくても送信済みの印で重複は防げるので続行する
			logger.Warn().Err(err).Msg("In-flight guard is unavailable, continuing without it")
		case !acquired:
			logger.Info().Msg("Reminder is being sent by another run, skipping")
			return outcomeSkipped
		default:
			// 送信できた場合はTTLが切れるまで保持し、古い候補を持つ実行に再送させない
			defer func() {
				if sent {
					return
				}
				if err := s.guard.Release(context.WithoutCancel(ctx), job.guest.ID); err != nil {
					logger.Warn().Err(err).Msg("Failed to release in-flight guard")
				}
			}()
		}
	}

	// 候補の読み込み後に他の実行が送信を終えている場合がある
	pending, err := s.guestRepo.IsReminderPending(ctx, job.guest.ID)
	if err != nil {
		seg.Close(err)
		logger.Error().Err(err).Msg("Failed to check reminder marker")
		return outcomeFailed
	}
	if !pending {
		logger.Info().Msg("Reminder was already sent by another run, skipping")
		return outcomeSkipped
	}

	payload := model.NewReminderPayload(job.event, job.guest, rule, s.baseURL())
	if err := s.sender.SendReminder(ctx, payload); err != nil {
		seg.Close(err)
		logger.Error().Err(err).Str("rule", model.FormatRule(rule)).Msg("Failed to send reminder")
		return outcomeFailed
	}
	sent = true

	marked, err := s.guestRepo.MarkReminderSent(ctx, job.guest.ID, s.now())
	if err != nil {
		seg.Close(err)
		logger.Error().Err(err).Msg("Reminder was sent but failed to mark guest")
		return outcomeFailed
	}
	if !marked {
		logger.Warn().Msg("Guest was already marked by another run, not counting as sent")
		return outcomeSkipped
	}

	logger.Info().Str("rule", model.FormatRule(rule)).Msg("Reminder sent")
	return outcomeSent
}
