package model

import (
	"fmt"
	"strings"
	"time"
)

// RSVPStatus はゲストの出欠ステータスです
type RSVPStatus string

const (
	RSVPStatusPending      RSVPStatus = "PENDING"
	RSVPStatusAttending    RSVPStatus = "ATTENDING"
	RSVPStatusNotAttending RSVPStatus = "NOT_ATTENDING"
	RSVPStatusMaybe        RSVPStatus = "MAYBE"
)

// IsValid は既知のステータスかどうかを返します
func (s RSVPStatus) IsValid() bool {
	switch s {
	case RSVPStatusPending, RSVPStatusAttending, RSVPStatusNotAttending, RSVPStatusMaybe:
		return true
	}
	return false
}

// Label はメール本文用の表示名を返します
func (s RSVPStatus) Label() string {
	switch s {
	case RSVPStatusAttending:
		return "Attending"
	case RSVPStatusNotAttending:
		return "Not attending"
	case RSVPStatusMaybe:
		return "Maybe"
	default:
		return "Pending"
	}
}

// ParseRSVPStatus は入力文字列をステータスに変換します。大文字小文字とハイフンは区別しません
func ParseRSVPStatus(s string) (RSVPStatus, error) {
	status := RSVPStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown rsvp status %q", s)
	}
	return status, nil
}

// Event はリマインダーと人数上限に関係するイベントの項目です
type Event struct {
	ID                 int64     `db:"id"`
	Title              string    `db:"title"`
	Location           string    `db:"location"`
	StartTime          time.Time `db:"start_time"`
	ReminderSchedule   *string   `db:"reminder_schedule"`
	MaxGuestsPerInvite *int      `db:"max_guests_per_invite"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// Schedule は永続化されたスケジュールを解釈して返します
func (e Event) Schedule() []ReminderRule {
	return ParseSchedule(e.ReminderSchedule)
}

// Guest は招待されたゲストです
type Guest struct {
	ID                int64             `db:"id"`
	EventID           int64             `db:"event_id"`
	Name              string            `db:"name"`
	Email             string            `db:"email"`
	Phone             string            `db:"phone"`
	Token             string            `db:"token"`
	Status            RSVPStatus        `db:"status"`
	MaxGuestsOverride *int              `db:"max_guests_override"`
	NotifyByEmail     bool              `db:"notify_by_email"`
	RespondedAt       *time.Time        `db:"responded_at"`
	ReminderSentAt    *time.Time        `db:"reminder_sent_at"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
	AdditionalGuests  []AdditionalGuest `db:"-"`
}

// AdditionalGuestNames は同伴者の名前を順番通りに返します
func (g Guest) AdditionalGuestNames() []string {
	names := make([]string, len(g.AdditionalGuests))
	for i, ag := range g.AdditionalGuests {
		names[i] = ag.Name
	}
	return names
}

// AdditionalGuest はゲストが連れてくる同伴者です
type AdditionalGuest struct {
	ID       int64  `db:"id"`
	GuestID  int64  `db:"guest_id"`
	Name     string `db:"name"`
	Position int    `db:"position"`
}

// EventWithGuests はリマインダー候補としてまとめて読み込むイベントとゲストです
type EventWithGuests struct {
	Event  Event
	Guests []Guest
}

// HostRole はイベント主催者の種別です
type HostRole string

const (
	HostRoleHost   HostRole = "host"
	HostRoleCohost HostRole = "cohost"
)

// EventHost は主催者・共同主催者とその通知設定です
type EventHost struct {
	ID             int64    `db:"id"`
	EventID        int64    `db:"event_id"`
	Name           string   `db:"name"`
	Email          string   `db:"email"`
	Phone          string   `db:"phone"`
	TelegramChatID *int64   `db:"telegram_chat_id"`
	Role           HostRole `db:"role"`
	NotifyOnRSVP   bool     `db:"notify_on_rsvp"`
	NotifyEmail    bool     `db:"notify_email"`
	NotifySMS      bool     `db:"notify_sms"`
}

// NormalizeGuestNames は同伴者名の前後の空白を除き、空の名前を取り除きます
func NormalizeGuestNames(names []string) []string {
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			normalized = append(normalized, name)
		}
	}
	return normalized
}
