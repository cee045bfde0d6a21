package model

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeReminder はゲストへのリマインダーです
	NotificationTypeReminder NotificationType = "reminder"
	// NotificationTypeConfirmation はゲストへの回答確認です
	NotificationTypeConfirmation NotificationType = "confirmation"
	// NotificationTypeRSVPUpdate は主催者への回答通知です
	NotificationTypeRSVPUpdate NotificationType = "rsvp_update"
)

const displayTimeLayout = "2006-01-02 15:04"

// Notification は非同期キューで受け渡す通知イベントです
// Type に応じて Confirmation か Host のどちらかが設定されます
type Notification struct {
	Type         NotificationType     `json:"type"`
	CreatedAt    time.Time            `json:"created_at"`
	Confirmation *ConfirmationPayload `json:"confirmation,omitempty"`
	Host         *HostNotification    `json:"host,omitempty"`
}

// Validate は Type と本体の組み合わせを検証します
func (n Notification) Validate() error {
	switch n.Type {
	case NotificationTypeConfirmation:
		if n.Confirmation == nil {
			return fmt.Errorf("confirmation payload is missing")
		}
	case NotificationTypeRSVPUpdate:
		if n.Host == nil {
			return fmt.Errorf("host payload is missing")
		}
	default:
		return fmt.Errorf("unsupported notification type: %s", n.Type)
	}
	return nil
}

// NotificationRecord は主催者向けのアプリ内通知です
// データベースに永続化される通知レコードと一致しています
type NotificationRecord struct {
	ID        int              `db:"id"`
	HostID    int64            `db:"host_id"`
	EventID   int64            `db:"event_id"`
	GuestID   int64            `db:"guest_id"`
	Title     string           `db:"title"`
	Message   string           `db:"message"`
	IsRead    bool             `db:"is_read"`
	Type      NotificationType `db:"type"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}

// ReplyURL はゲストが回答するためのリンクを組み立てます
func ReplyURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/rsvp/" + token
}

// ReminderPayload はリマインダーメールの内容です
type ReminderPayload struct {
	GuestID       int64        `json:"guest_id"`
	To            string       `json:"to"`
	GuestName     string       `json:"guest_name"`
	EventTitle    string       `json:"event_title"`
	EventLocation string       `json:"event_location"`
	EventStart    time.Time    `json:"event_start"`
	ReplyToken    string       `json:"reply_token"`
	ReplyURL      string       `json:"reply_url"`
	Rule          ReminderRule `json:"rule"`
}

// NewReminderPayload はイベントとゲストからリマインダーを組み立てます
func NewReminderPayload(event Event, guest Guest, rule ReminderRule, baseURL string) ReminderPayload {
	return ReminderPayload{
		GuestID:       guest.ID,
		To:            guest.Email,
		GuestName:     guest.Name,
		EventTitle:    event.Title,
		EventLocation: event.Location,
		EventStart:    event.StartTime,
		ReplyToken:    guest.Token,
		ReplyURL:      ReplyURL(baseURL, guest.Token),
		Rule:          rule,
	}
}

func (p ReminderPayload) Subject() string {
	return fmt.Sprintf("Reminder: %s", p.EventTitle)
}

func (p ReminderPayload) Body() string {
	return fmt.Sprintf(`Hi %s,

This is a reminder that %s starts in %s.
When: %s
Where: %s

Let the host know if you can make it:
%s`, p.GuestName, p.EventTitle, strings.TrimSuffix(FormatRule(p.Rule), " before"),
		p.EventStart.Format(displayTimeLayout), p.EventLocation, p.ReplyURL)
}

// ConfirmationPayload はゲストへの回答確認メールの内容です
type ConfirmationPayload struct {
	GuestID          int64      `json:"guest_id"`
	To               string     `json:"to"`
	GuestName        string     `json:"guest_name"`
	EventTitle       string     `json:"event_title"`
	EventLocation    string     `json:"event_location"`
	EventStart       time.Time  `json:"event_start"`
	Status           RSVPStatus `json:"status"`
	AdditionalGuests []string   `json:"additional_guests,omitempty"`
	ReplyURL         string     `json:"reply_url"`
}

func (p ConfirmationPayload) Subject() string {
	return fmt.Sprintf("Your RSVP for %s", p.EventTitle)
}

func (p ConfirmationPayload) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nWe received your response for %s: %s.\n", p.GuestName, p.EventTitle, p.Status.Label())
	if len(p.AdditionalGuests) > 0 {
		fmt.Fprintf(&b, "Bringing: %s\n", strings.Join(p.AdditionalGuests, ", "))
	}
	fmt.Fprintf(&b, "When: %s\nWhere: %s\n\nYou can change your response at any time:\n%s",
		p.EventStart.Format(displayTimeLayout), p.EventLocation, p.ReplyURL)
	return b.String()
}

// HostNotification は主催者1人に届けるRSVP通知です
type HostNotification struct {
	Host             EventHost  `json:"host"`
	EventID          int64      `json:"event_id"`
	EventTitle       string     `json:"event_title"`
	GuestID          int64      `json:"guest_id"`
	GuestName        string     `json:"guest_name"`
	Status           RSVPStatus `json:"status"`
	PreviousStatus   RSVPStatus `json:"previous_status"`
	AdditionalGuests []string   `json:"additional_guests,omitempty"`
	FirstResponse    bool       `json:"first_response"`
}

func (n HostNotification) Subject() string {
	if n.FirstResponse {
		return fmt.Sprintf("New RSVP for %s", n.EventTitle)
	}
	return fmt.Sprintf("Updated RSVP for %s", n.EventTitle)
}

// Body はメールとTelegram向けの本文です
func (n HostNotification) Body() string {
	var b strings.Builder
	if n.FirstResponse {
		fmt.Fprintf(&b, "%s responded: %s.", n.GuestName, n.Status.Label())
	} else {
		fmt.Fprintf(&b, "%s changed their response from %s to %s.", n.GuestName, n.PreviousStatus.Label(), n.Status.Label())
	}
	if len(n.AdditionalGuests) > 0 {
		fmt.Fprintf(&b, "\nBringing %d: %s", len(n.AdditionalGuests), strings.Join(n.AdditionalGuests, ", "))
	}
	return b.String()
}

// SMSText はSMS向けの短い本文です
func (n HostNotification) SMSText() string {
	party := 1 + len(n.AdditionalGuests)
	if n.Status != RSVPStatusAttending {
		party = 0
	}
	return fmt.Sprintf("[%s] %s: %s (party of %d)", n.EventTitle, n.GuestName, n.Status.Label(), party)
}

// ToNotificationRecord はアプリ内通知のレコードに変換します
func (n HostNotification) ToNotificationRecord(now time.Time) NotificationRecord {
	return NotificationRecord{
		HostID:    n.Host.ID,
		EventID:   n.EventID,
		GuestID:   n.GuestID,
		Title:     n.Subject(),
		Message:   n.Body(),
		IsRead:    false,
		Type:      NotificationTypeRSVPUpdate,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewConfirmationNotification は回答確認をキュー用の通知に包みます
func NewConfirmationNotification(payload ConfirmationPayload, now time.Time) Notification {
	return Notification{
		Type:         NotificationTypeConfirmation,
		CreatedAt:    now,
		Confirmation: &payload,
	}
}

// NewHostRSVPNotification は主催者通知をキュー用の通知に包みます
func NewHostRSVPNotification(payload HostNotification, now time.Time) Notification {
	return Notification{
		Type:      NotificationTypeRSVPUpdate,
		CreatedAt: now,
		Host:      &payload,
	}
}
