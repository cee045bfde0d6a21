package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
)

// HostRepository は主催者情報の永続化を担当するインターフェースです
type HostRepository interface {
	ListHostsToNotify(ctx context.Context, eventID int64) ([]model.EventHost, error)
}

// HostRepositoryImpl はHostRepositoryの実装です
type HostRepositoryImpl struct {
	db *DB
}

// NewHostRepository は新しいHostRepositoryを作成します
func NewHostRepository(db *DB) HostRepository {
	return &HostRepositoryImpl{
		db: db,
	}
}

// ListHostsToNotify はRSVPの通知を希望している主催者・共同主催者を取得します
func (r *HostRepositoryImpl) ListHostsToNotify(ctx context.Context, eventID int64) ([]model.EventHost, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "HostRepository.ListHostsToNotify")
	defer seg.Close(nil)

	query := `
		SELECT
			id,
			event_id,
			name,
			email,
			phone,
			telegram_chat_id,
			role,
			notify_on_rsvp,
			notify_email,
			notify_sms
		FROM event_hosts
		WHERE event_id = $1
		AND notify_on_rsvp
		ORDER BY id ASC
	`

	var hosts []model.EventHost
	if err := r.db.SelectContext(ctx, &hosts, query, eventID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	return hosts, nil
}
