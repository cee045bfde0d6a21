package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
)

func TestEventRepository_GetReminderCandidates(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestEventRepository_GetReminderCandidates")
	defer seg.Close(nil)

	db := newTestDB(t)
	repo := NewEventRepository(db)

	sent := testNow.Add(-time.Hour)
	schedule := strPtr(`[{"type":"day","value":2}]`)

	upcoming := insertEvent(t, db, "Upcoming", testNow.Add(48*time.Hour), schedule, nil)
	insertGuest(t, db, upcoming, guestFixture{name: "Alice", email: "alice@example.com", token: "a", notifyByEmail: true})
	insertGuest(t, db, upcoming, guestFixture{name: "Bob", email: "bob@example.com", token: "b", notifyByEmail: false})
	insertGuest(t, db, upcoming, guestFixture{name: "Carol", email: "", token: "c", notifyByEmail: true})
	insertGuest(t, db, upcoming, guestFixture{name: "Dave", email: "dave@example.com", token: "d", notifyByEmail: true, reminderSentAt: &sent})
	insertGuest(t, db, upcoming, guestFixture{name: "Erin", email: "erin@example.com", token: "e", notifyByEmail: true})

	// 開始済み、スケジュールなしのイベントは対象外
	past := insertEvent(t, db, "Past", testNow.Add(-time.Hour), schedule, nil)
	insertGuest(t, db, past, guestFixture{name: "Frank", email: "frank@example.com", token: "f", notifyByEmail: true})
	noSchedule := insertEvent(t, db, "NoSchedule", testNow.Add(24*time.Hour), nil, nil)
	insertGuest(t, db, noSchedule, guestFixture{name: "Grace", email: "grace@example.com", token: "g", notifyByEmail: true})

	later := insertEvent(t, db, "Later", testNow.Add(72*time.Hour), strPtr(`[3]`), model.IntPtr(2))
	insertGuest(t, db, later, guestFixture{name: "Heidi", email: "heidi@example.com", token: "h", notifyByEmail: true})

	candidates, err := repo.GetReminderCandidates(ctx, testNow)
	if err != nil {
		t.Fatalf("GetReminderCandidates() error = %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("GetReminderCandidates() returned %d events, want 2", len(candidates))
	}

	first := candidates[0]
	if first.Event.Title != "Upcoming" {
		t.Errorf("first event = %v, want Upcoming", first.Event.Title)
	}
	var names []string
	for _, g := range first.Guests {
		names = append(names, g.Name)
		if g.EventID != upcoming {
			t.Errorf("guest %s event_id = %d, want %d", g.Name, g.EventID, upcoming)
		}
	}
	if len(names) != 2 || names[0] != "Alice" || names[1] != "Erin" {
		t.Errorf("guests = %v, want [Alice Erin]", names)
	}

	second := candidates[1]
	if second.Event.Title != "Later" {
		t.Errorf("second event = %v, want Later", second.Event.Title)
	}
	if got := second.Event.Schedule(); len(got) != 1 || got[0] != (model.ReminderRule{Unit: model.ReminderUnitDay, Value: 3}) {
		t.Errorf("schedule = %v, want legacy 3 days", got)
	}
	if second.Event.MaxGuestsPerInvite == nil || *second.Event.MaxGuestsPerInvite != 2 {
		t.Errorf("max_guests_per_invite = %v, want 2", second.Event.MaxGuestsPerInvite)
	}
}

func TestEventRepository_UpdateReminderSchedule(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestEventRepository_UpdateReminderSchedule")
	defer seg.Close(nil)

	db := newTestDB(t)
	repo := NewEventRepository(db)

	eventID := insertEvent(t, db, "Party", testNow.Add(48*time.Hour), nil, nil)

	tests := []struct {
		name     string
		eventID  int64
		schedule *string
		want     []model.ReminderRule
		wantErr  error
	}{
		{
			name:     "スケジュールを設定",
			eventID:  eventID,
			schedule: model.SerializeSchedule([]model.ReminderRule{{Unit: model.ReminderUnitHour, Value: 3}}),
			want:     []model.ReminderRule{{Unit: model.ReminderUnitHour, Value: 3}},
		},
		{
			name:     "スケジュールを解除",
			eventID:  eventID,
			schedule: nil,
			want:     []model.ReminderRule{},
		},
		{
			name:    "存在しないイベント",
			eventID: 999,
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.UpdateReminderSchedule(ctx, tt.eventID, tt.schedule, testNow)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("UpdateReminderSchedule() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateReminderSchedule() error = %v", err)
			}

			event, err := repo.GetEvent(ctx, tt.eventID)
			if err != nil {
				t.Fatalf("GetEvent() error = %v", err)
			}
			got := event.Schedule()
			if len(got) != len(tt.want) {
				t.Fatalf("Schedule() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Schedule()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEventRepository_GetEvent_NotFound(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestEventRepository_GetEvent_NotFound")
	defer seg.Close(nil)

	repo := NewEventRepository(newTestDB(t))

	if _, err := repo.GetEvent(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEvent() error = %v, want %v", err, ErrNotFound)
	}
}
