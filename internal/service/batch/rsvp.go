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
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"github.com/uma-arai/sbcntr-rsvp/internal/notifier"
	"github.com/uma-arai/sbcntr-rsvp/internal/repository"
)

var (
	// ErrGuestNotFound はトークンに対応するゲストがいない場合のエラーです
	ErrGuestNotFound = errors.New("guest not found")
	// ErrEventNotFound はイベントが存在しない場合のエラーです
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidStatus は未知の出欠ステータスが指定された場合のエラーです
	ErrInvalidStatus = errors.New("invalid rsvp status")
)

// RSVPRequest はゲストからの回答です
type RSVPRequest struct {
	Token            string   `json:"token"`
	Status           string   `json:"status"`
	AdditionalGuests []string `json:"additional_guests"`
}

// RSVPResult は回答の受付結果です
// Accepted が false の場合、何も書き込まれていません
type RSVPResult struct {
	Token            string           `json:"token"`
	Accepted         bool             `json:"accepted"`
	Error            string           `json:"error,omitempty"`
	Status           model.RSVPStatus `json:"status,omitempty"`
	AdditionalGuests []string         `json:"additional_guests,omitempty"`
	// 追加で連れてこられる人数。nil は上限なし
	RemainingGuests *int `json:"remaining_guests,omitempty"`
}

// RSVPBatchService は回答の受付を担当します
type RSVPBatchService struct {
	args             []RSVPRequest
	results          []RSVPResult
	db               *database.DB
	guestRepo        repository.GuestRepository
	eventRepo        repository.EventRepository
	hostRepo         repository.HostRepository
	notificationRepo repository.NotificationRepository
	dispatcher       notifier.Dispatcher
	reporter         *TaskReporter
	cfg              *config.Config
	now              func() time.Time
}

// NewRSVPBatchService は新しいRSVPBatchServiceを作成します
func NewRSVPBatchService(ctx context.Context, cfg *config.Config, dispatcher notifier.Dispatcher, reporter *TaskReporter) (*RSVPBatchService, error) {
	db, err := database.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	// database.DBをrepository.DBに変換
	repoDb := &repository.DB{DB: db.DB}

	return &RSVPBatchService{
		db:               db,
		guestRepo:        repository.NewGuestRepository(repoDb),
		eventRepo:        repository.NewEventRepository(repoDb),
		hostRepo:         repository.NewHostRepository(repoDb),
		notificationRepo: repository.NewNotificationRepository(repoDb),
		dispatcher:       dispatcher,
		reporter:         reporter,
		cfg:              cfg,
		now:              time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *RSVPBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetArgs は受け付ける回答を設定します
func (s *RSVPBatchService) SetArgs(args []RSVPRequest) {
	s.args = args
}

// Results は最後の Run の結果を返します
func (s *RSVPBatchService) Results() []RSVPResult {
	return s.results
}

// Run は設定された回答を順に受け付け、結果をStep Functionsへ返します
// トークンやステータスの誤りは結果に記録して続行し、DBの障害では中断します
func (s *RSVPBatchService) Run(ctx context.Context) error {
	ctx, seg := xray.BeginSubsegment(ctx, "RSVPBatchService.Run")
	defer seg.Close(nil)

	log.Info().Int("count", len(s.args)).Msg("Starting rsvp batch process")
	startTime := time.Now()

	results := make([]RSVPResult, 0, len(s.args))
	for _, req := range s.args {
		result, err := s.Submit(ctx, req)
		switch {
		case errors.Is(err, ErrGuestNotFound), errors.Is(err, ErrEventNotFound), errors.Is(err, ErrInvalidStatus):
			log.Warn().Err(err).Msg("Rejected rsvp")
			results = append(results, RSVPResult{Token: req.Token, Accepted: false, Error: err.Error()})
		case err != nil:
			if reportErr := s.reporter.ReportFailure(ctx, "RSVPAdmissionFailed", err); reportErr != nil {
				log.Error().Err(reportErr).Msg("Failed to report task failure")
			}
			seg.Close(err)
			return utils.GetStackWithError(fmt.Errorf("failed to submit rsvp: %w", err))
		default:
			results = append(results, *result)
		}
	}
	s.results = results

	if err := s.reporter.ReportSuccess(ctx, map[string]any{"results": results}); err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	log.Info().Int("count", len(results)).Dur("duration", time.Since(startTime)).Msg("RSVP batch process completed successfully")
	return nil
}

// Submit は1件の回答を検証して保存します
//
// 出席で同伴者がいる場合は人数上限を検証し、超えていれば何も書き込まずに拒否します。
// 出席以外の回答では同伴者は破棄され、保存済みの同伴者も削除されます。
// 保存後の通知は失敗してもログに残すだけです
func (s *RSVPBatchService) Submit(ctx context.Context, req RSVPRequest) (*RSVPResult, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "RSVPBatchService.Submit")
	defer seg.Close(nil)

	guest, err := s.guestRepo.GetGuestByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuestNotFound
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}

	event, err := s.eventRepo.GetEvent(ctx, guest.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	status, err := model.ParseRSVPStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	names := model.NormalizeGuestNames(req.AdditionalGuests)
	if status != model.RSVPStatusAttending {
		names = []string{}
	}

	result := &RSVPResult{Token: req.Token, Status: status, AdditionalGuests: names}

	if status == model.RSVPStatusAttending {
		capacity := model.ValidateCapacity(event.MaxGuestsPerInvite, len(names), guest.MaxGuestsOverride)
		if !capacity.Valid && len(names) > 0 {
			return &RSVPResult{Token: req.Token, Accepted: false, Error: capacity.Error}, nil
		}
		if !capacity.IsUnlimited() {
			remaining := capacity.Remaining
			result.RemainingGuests = &remaining
		}
	}

	respondedAt := s.now()
	if err := s.guestRepo.ApplyRSVP(ctx, guest.ID, status, names, respondedAt); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to apply rsvp: %w", err)
	}
	result.Accepted = true

	s.notify(ctx, *event, *guest, status, names, respondedAt)

	return result, nil
}

// notify は主催者と回答したゲストへ通知します。失敗はログに残すだけです
// guest は更新前の状態です
func (s *RSVPBatchService) notify(ctx context.Context, event model.Event, guest model.Guest, status model.RSVPStatus, names []string, at time.Time) {
	ctx, seg := xray.BeginSubsegment(ctx, "RSVPBatchService.notify")
	defer seg.Close(nil)

	logger := log.With().Int64("event_id", event.ID).Int64("guest_id", guest.ID).Logger()

	hosts, err := s.hostRepo.ListHostsToNotify(ctx, event.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list hosts to notify")
	}

	records := make([]model.NotificationRecord, 0, len(hosts))
	for _, host := range hosts {
		hn := model.HostNotification{
			Host:             host,
			EventID:          event.ID,
			EventTitle:       event.Title,
			GuestID:          guest.ID,
			GuestName:        guest.Name,
			Status:           status,
			PreviousStatus:   guest.Status,
			AdditionalGuests: names,
			FirstResponse:    guest.RespondedAt == nil,
		}
		if err := s.dispatcher.Dispatch(ctx, model.NewHostRSVPNotification(hn, at)); err != nil {
			logger.Error().Err(err).Int64("host_id", host.ID).Msg("Failed to notify host")
		}
		records = append(records, hn.ToNotificationRecord(at))
	}

	if err := s.notificationRepo.CreateNotifications(ctx, records); err != nil {
		logger.Error().Err(err).Msg("Failed to create host notifications")
	}

	if !guest.NotifyByEmail || guest.Email == "" {
		return
	}

	confirmation := model.ConfirmationPayload{
		GuestID:          guest.ID,
		To:               guest.Email,
		GuestName:        guest.Name,
		EventTitle:       event.Title,
		EventLocation:    event.Location,
		EventStart:       event.StartTime,
		Status:           status,
		AdditionalGuests: names,
		ReplyURL:         model.ReplyURL(s.baseURL(), guest.Token),
	}
	if err := s.dispatcher.Dispatch(ctx, model.NewConfirmationNotification(confirmation, at)); err != nil {
		logger.Error().Err(err).Msg("Failed to send confirmation")
	}
}

func (s *RSVPBatchService) baseURL() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Mail.BaseURL
}
