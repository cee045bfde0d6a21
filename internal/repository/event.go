package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
)

// EventRepository はイベント情報の永続化を担当するインターフェースです
type EventRepository interface {
	GetReminderCandidates(ctx context.Context, now time.Time) ([]model.EventWithGuests, error)
	GetEvent(ctx context.Context, eventID int64) (*model.Event, error)
	UpdateReminderSchedule(ctx context.Context, eventID int64, schedule *string, at time.Time) error
}

// EventRepositoryImpl はEventRepositoryの実装です
type EventRepositoryImpl struct {
	db *DB
}

// NewEventRepository は新しいEventRepositoryを作成します
func NewEventRepository(db *DB) *EventRepositoryImpl {
	return &EventRepositoryImpl{db: db}
}

// GetReminderCandidates は未来に開始しスケジュールを持つイベントと、
// まだリマインダーを受け取っていないメール通知希望のゲストを取得します
// ゲストのステータスは問いません
func (r *EventRepositoryImpl) GetReminderCandidates(ctx context.Context, now time.Time) ([]model.EventWithGuests, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "EventRepository.GetReminderCandidates")
	defer seg.Close(nil)

	query := `
		SELECT
			e.id,
			e.title,
			e.location,
			e.start_time,
			e.reminder_schedule,
			e.max_guests_per_invite,
			g.id,
			g.name,
			g.email,
			g.token,
			g.status
		FROM events e
		JOIN guests g ON g.event_id = e.id
		WHERE e.start_time > $1
		AND e.reminder_schedule IS NOT NULL
		AND g.notify_by_email
		AND g.email <> ''
		AND g.reminder_sent_at IS NULL
		ORDER BY e.start_time ASC, e.id ASC, g.id ASC
	`

	rows, err := r.db.QueryxContext(ctx, query, now)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query reminder candidates: %w", err)
	}
	defer rows.Close()

	var candidates []model.EventWithGuests
	for rows.Next() {
		var e model.Event
		var g model.Guest
		err := rows.Scan(
			&e.ID,
			&e.Title,
			&e.Location,
			&e.StartTime,
			&e.ReminderSchedule,
			&e.MaxGuestsPerInvite,
			&g.ID,
			&g.Name,
			&g.Email,
			&g.Token,
			&g.Status,
		)
		if err != nil {
			seg.Close(err)
			return nil, fmt.Errorf("failed to scan reminder candidate row: %w", err)
		}
		g.EventID = e.ID
		g.NotifyByEmail = true

		// 行はイベント順に並んでいるので、直前のイベントと同じならゲストを追加する
		if n := len(candidates); n > 0 && candidates[n-1].Event.ID == e.ID {
			candidates[n-1].Guests = append(candidates[n-1].Guests, g)
			continue
		}
		candidates = append(candidates, model.EventWithGuests{Event: e, Guests: []model.Guest{g}})
	}

	if err = rows.Err(); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("error iterating reminder candidate rows: %w", err)
	}

	if err := seg.AddMetadata("event_count", len(candidates)); err != nil {
		log.Warn().Err(err).Msg("Failed to add event_count metadata")
	}

	return candidates, nil
}

// GetEvent は指定されたIDのイベントを取得します
func (r *EventRepositoryImpl) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "EventRepository.GetEvent")
	defer seg.Close(nil)

	query := `
		SELECT
			id,
			title,
			location,
			start_time,
			reminder_schedule,
			max_guests_per_invite,
			created_at,
			updated_at
		FROM events
		WHERE id = $1
	`

	var event model.Event
	if err := r.db.GetContext(ctx, &event, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %d: %w", eventID, ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &event, nil
}

// UpdateReminderSchedule はイベントのリマインダースケジュールを書き換えます
// schedule が nil の場合はリマインダーなしになります
func (r *EventRepositoryImpl) UpdateReminderSchedule(ctx context.Context, eventID int64, schedule *string, at time.Time) error {
	ctx, seg := xray.BeginSubsegment(ctx, "EventRepository.UpdateReminderSchedule")
	defer seg.Close(nil)

	query := `
		UPDATE events
		SET reminder_schedule = $1,
			updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, schedule, at, eventID)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update reminder schedule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("event %d: %w", eventID, ErrNotFound)
	}

	return nil
}
