package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
)

// GuestRepository はゲストと同伴者の永続化を担当するインターフェースです
type GuestRepository interface {
	GetGuestByToken(ctx context.Context, token string) (*model.Guest, error)
	IsReminderPending(ctx context.Context, guestID int64) (bool, error)
	MarkReminderSent(ctx context.Context, guestID int64, at time.Time) (bool, error)
	ApplyRSVP(ctx context.Context, guestID int64, status model.RSVPStatus, additionalGuests []string, at time.Time) error
}

// GuestRepositoryImpl はGuestRepositoryの実装です
type GuestRepositoryImpl struct {
	db *DB
}

// NewGuestRepository は新しいGuestRepositoryを作成します
func NewGuestRepository(db *DB) *GuestRepositoryImpl {
	return &GuestRepositoryImpl{db: db}
}

// GetGuestByToken は回答用トークンからゲストと同伴者を取得します
func (r *GuestRepositoryImpl) GetGuestByToken(ctx context.Context, token string) (*model.Guest, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "GuestRepository.GetGuestByToken")
	defer seg.Close(nil)

	query := `
		SELECT
			id,
			event_id,
			name,
			email,
			phone,
			token,
			status,
			max_guests_override,
			notify_by_email,
			responded_at,
			reminder_sent_at,
			created_at,
			updated_at
		FROM guests
		WHERE token = $1
	`

	var guest model.Guest
	if err := r.db.GetContext(ctx, &guest, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("guest: %w", ErrNotFound)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}

	additional, err := r.listAdditionalGuests(ctx, guest.ID)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	guest.AdditionalGuests = additional

	return &guest, nil
}

func (r *GuestRepositoryImpl) listAdditionalGuests(ctx context.Context, guestID int64) ([]model.AdditionalGuest, error) {
	query := `
		SELECT id, guest_id, name, position
		FROM additional_guests
		WHERE guest_id = $1
		ORDER BY position ASC
	`

	var additional []model.AdditionalGuest
	if err := r.db.SelectContext(ctx, &additional, query, guestID); err != nil {
		return nil, fmt.Errorf("failed to list additional guests: %w", err)
	}
	return additional, nil
}

// IsReminderPending はゲストにまだリマインダー送信済みの印が付いていないかを返します
// 存在しないゲストは false です
func (r *GuestRepositoryImpl) IsReminderPending(ctx context.Context, guestID int64) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "GuestRepository.IsReminderPending")
	defer seg.Close(nil)

	query := `
		SELECT COUNT(*)
		FROM guests
		WHERE id = $1
		AND reminder_sent_at IS NULL
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, guestID); err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to check reminder marker: %w", err)
	}
	return count > 0, nil
}

// MarkReminderSent はリマインダー送信済みの印を付けます
// すでに印が付いている場合は上書きせず false を返します
func (r *GuestRepositoryImpl) MarkReminderSent(ctx context.Context, guestID int64, at time.Time) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "GuestRepository.MarkReminderSent")
	defer seg.Close(nil)

	query := `
		UPDATE guests
		SET reminder_sent_at = $1,
			updated_at = $1
		WHERE id = $2
		AND reminder_sent_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, at, guestID)
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// ApplyRSVP は同伴者の入れ替えとステータス更新を1つのトランザクションで行います
// 失敗した場合は以前の同伴者とステータスがそのまま残ります
func (r *GuestRepositoryImpl) ApplyRSVP(ctx context.Context, guestID int64, status model.RSVPStatus, additionalGuests []string, at time.Time) (err error) {
	ctx, seg := xray.BeginSubsegment(ctx, "GuestRepository.ApplyRSVP")
	defer seg.Close(nil)

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		seg.Close(err)
		return err
	}

	// エラーが発生した場合のみロールバックを実行
	defer func() {
		if err != nil {
			err = rollback(tx, err)
			seg.Close(err)
		}
	}()

	if err = r.replaceAdditionalGuests(ctx, tx, guestID, additionalGuests, at); err != nil {
		return err
	}

	if err = r.updateStatus(ctx, tx, guestID, status, at); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// replaceAdditionalGuests は同伴者をすべて削除してから新しい一覧を登録します
func (r *GuestRepositoryImpl) replaceAdditionalGuests(ctx context.Context, tx *sqlx.Tx, guestID int64, names []string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM additional_guests WHERE guest_id = $1`, guestID); err != nil {
		return fmt.Errorf("failed to delete additional guests: %w", err)
	}

	query := `
		INSERT INTO additional_guests (
			guest_id,
			name,
			position,
			created_at
		) VALUES (
			$1,
			$2,
			$3,
			$4
		)
	`

	// PERF: 同伴者は数名程度なので1件ずつ登録する
	for i, name := range names {
		if _, err := tx.ExecContext(ctx, query, guestID, name, i, at); err != nil {
			return fmt.Errorf("failed to create additional guest: %w", err)
		}
	}

	return nil
}

func (r *GuestRepositoryImpl) updateStatus(ctx context.Context, tx *sqlx.Tx, guestID int64, status model.RSVPStatus, at time.Time) error {
	query := `
		UPDATE guests
		SET status = $1,
			responded_at = $2,
			updated_at = $2
		WHERE id = $3
	`

	result, err := tx.ExecContext(ctx, query, status, at, guestID)
	if err != nil {
		return fmt.Errorf("failed to update guest status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("guest %d: %w", guestID, ErrNotFound)
	}

	return nil
}
