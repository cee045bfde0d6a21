package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/database"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"github.com/uma-arai/sbcntr-rsvp/internal/repository"
)

// ScheduleService は主催者によるリマインダースケジュールの参照と変更を担当します
type ScheduleService struct {
	db        *database.DB
	eventRepo repository.EventRepository
	now       func() time.Time
}

// NewScheduleService は新しいScheduleServiceを作成します
func NewScheduleService(ctx context.Context, cfg *config.Config) (*ScheduleService, error) {
	db, err := database.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	repoDb := &repository.DB{DB: db.DB}

	return &ScheduleService{
		db:        db,
		eventRepo: repository.NewEventRepository(repoDb),
		now:       time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *ScheduleService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get はイベントの現在のスケジュールを返します
func (s *ScheduleService) Get(ctx context.Context, eventID int64) ([]model.ReminderRule, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ScheduleService.Get")
	defer seg.Close(nil)

	event, err := s.eventRepo.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event.Schedule(), nil
}

// Update はスケジュールを検証し、正しければ保存します
// 検証に失敗した場合は何も保存せずに結果だけを返します
func (s *ScheduleService) Update(ctx context.Context, eventID int64, rules []model.ReminderRule) (model.ValidationResult, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ScheduleService.Update")
	defer seg.Close(nil)

	result := model.ValidateSchedule(rules)
	if !result.Valid {
		return result, nil
	}

	err := s.eventRepo.UpdateReminderSchedule(ctx, eventID, model.SerializeSchedule(rules), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return result, ErrEventNotFound
		}
		seg.Close(err)
		return result, fmt.Errorf("failed to update reminder schedule: %w", err)
	}

	log.Info().Int64("event_id", eventID).Int("rules", len(rules)).Msg("Reminder schedule updated")
	return result, nil
}
