package batch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"github.com/uma-arai/sbcntr-rsvp/internal/repository"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time {
	return testNow
}

// MockStore はイベントとゲストをメモリ上に保持するテスト用のリポジトリです
// EventRepository と GuestRepository の両方を満たします
type MockStore struct {
	mu     sync.Mutex
	events map[int64]*model.Event
	guests []*model.Guest

	// GetReminderCandidates が同じゲストを重ねて返すようにする
	duplicateCandidates bool

	// nil でなければ GetReminderCandidates は現在の状態ではなくこの候補を返す
	staleCandidates []model.EventWithGuests
	// 送信中に他の実行が印を付けた状態を再現する
	markedElsewhere bool

	candidatesErr error
	pendingErr    error
	markErr       error
	applyErr      error

	markCalls     int
	applyCalls    int
	scheduleCalls int
}

func newMockStore() *MockStore {
	return &MockStore{events: make(map[int64]*model.Event)}
}

func (m *MockStore) addEvent(e model.Event) {
	m.events[e.ID] = &e
}

func (m *MockStore) addGuest(g model.Guest) {
	m.guests = append(m.guests, &g)
}

func (m *MockStore) guest(id int64) *model.Guest {
	for _, g := range m.guests {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (m *MockStore) GetReminderCandidates(ctx context.Context, now time.Time) ([]model.EventWithGuests, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.candidatesErr != nil {
		return nil, m.candidatesErr
	}
	if m.staleCandidates != nil {
		return m.staleCandidates, nil
	}

	ids := make([]int64, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var result []model.EventWithGuests
	for _, id := range ids {
		e := m.events[id]
		if !e.StartTime.After(now) || e.ReminderSchedule == nil {
			continue
		}
		c := model.EventWithGuests{Event: *e}
		for _, g := range m.guests {
			if g.EventID != e.ID || !g.NotifyByEmail || g.Email == "" || g.ReminderSentAt != nil {
				continue
			}
			c.Guests = append(c.Guests, *g)
			if m.duplicateCandidates {
				c.Guests = append(c.Guests, *g)
			}
		}
		if len(c.Guests) > 0 {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockStore) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *MockStore) UpdateReminderSchedule(ctx context.Context, eventID int64, schedule *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scheduleCalls++
	e, ok := m.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	e.ReminderSchedule = schedule
	e.UpdatedAt = at
	return nil
}

func (m *MockStore) GetGuestByToken(ctx context.Context, token string) (*model.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.guests {
		if g.Token == token {
			copied := *g
			copied.AdditionalGuests = slices.Clone(g.AdditionalGuests)
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockStore) IsReminderPending(ctx context.Context, guestID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingErr != nil {
		return false, m.pendingErr
	}
	g := m.guest(guestID)
	return g != nil && g.ReminderSentAt == nil, nil
}

func (m *MockStore) MarkReminderSent(ctx context.Context, guestID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.markCalls++
	if m.markErr != nil {
		return false, m.markErr
	}
	g := m.guest(guestID)
	if g == nil || g.ReminderSentAt != nil || m.markedElsewhere {
		return false, nil
	}
	g.ReminderSentAt = &at
	return true, nil
}

func (m *MockStore) ApplyRSVP(ctx context.Context, guestID int64, status model.RSVPStatus, additionalGuests []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}
	g := m.guest(guestID)
	if g == nil {
		return repository.ErrNotFound
	}
	g.Status = status
	g.RespondedAt = &at
	g.AdditionalGuests = nil
	for i, name := range additionalGuests {
		g.AdditionalGuests = append(g.AdditionalGuests, model.AdditionalGuest{GuestID: guestID, Name: name, Position: i})
	}
	return nil
}

// MockHostRepository はテスト用のモックリポジトリです
type MockHostRepository struct {
	hosts []model.EventHost
	err   error
}

func (m *MockHostRepository) ListHostsToNotify(ctx context.Context, eventID int64) ([]model.EventHost, error) {
	if m.err != nil {
		return nil, m.err
	}
	var hosts []model.EventHost
	for _, h := range m.hosts {
		if h.EventID == eventID && h.NotifyOnRSVP {
			hosts = append(hosts, h)
		}
	}
	return hosts, nil
}

// MockNotificationRepository はテスト用のモックリポジトリです
type MockNotificationRepository struct {
	createNotificationsCalled bool
	createNotificationsError  error
	notifications             []model.NotificationRecord
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	m.createNotificationsCalled = true
	m.notifications = append(m.notifications, records...)
	return m.createNotificationsError
}

func (m *MockNotificationRepository) Create(ctx context.Context, tx *sqlx.Tx, record *model.NotificationRecord) error {
	return nil
}

func (m *MockNotificationRepository) GetByHostID(ctx context.Context, hostID int64) ([]model.NotificationRecord, error) {
	return nil, nil
}

// MockSender はテスト用の Sender です
type MockSender struct {
	mu        sync.Mutex
	reminders []model.ReminderPayload
	// 失敗させるゲストID
	failFor map[int64]bool
}

func (m *MockSender) SendReminder(ctx context.Context, payload model.ReminderPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFor[payload.GuestID] {
		return errors.New("smtp unavailable")
	}
	m.reminders = append(m.reminders, payload)
	return nil
}

func (m *MockSender) SendConfirmation(ctx context.Context, payload model.ConfirmationPayload) error {
	return nil
}

func (m *MockSender) NotifyHost(ctx context.Context, payload model.HostNotification) error {
	return nil
}

// MockDispatcher はテスト用の Dispatcher です
type MockDispatcher struct {
	notifications []model.Notification
	err           error
}

func (m *MockDispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	m.notifications = append(m.notifications, n)
	return m.err
}

func (m *MockDispatcher) count(t model.NotificationType) int {
	n := 0
	for _, notification := range m.notifications {
		if notification.Type == t {
			n++
		}
	}
	return n
}

// MockGuard はテスト用の InFlightGuard です
type MockGuard struct {
	mu       sync.Mutex
	held     map[int64]bool
	err      error
	released []int64
}

func (m *MockGuard) Acquire(ctx context.Context, guestID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.held[guestID] {
		return false, nil
	}
	if m.held == nil {
		m.held = make(map[int64]bool)
	}
	m.held[guestID] = true
	return true, nil
}

func (m *MockGuard) Release(ctx context.Context, guestID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.held, guestID)
	m.released = append(m.released, guestID)
	return nil
}

// MockSFNClient はテスト用のStep Functionsクライアントです
type MockSFNClient struct {
	mu           sync.Mutex
	successInput *sfn.SendTaskSuccessInput
	failureInput *sfn.SendTaskFailureInput
	calls        int
}

func (m *MockSFNClient) SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successInput = params
	m.calls++
	return &sfn.SendTaskSuccessOutput{}, nil
}

func (m *MockSFNClient) SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureInput = params
	m.calls++
	return &sfn.SendTaskFailureOutput{}, nil
}
