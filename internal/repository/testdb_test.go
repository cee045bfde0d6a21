package repository

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite向けのテスト用スキーマ。本番のマイグレーションと同じ列を持ちます
const testSchema = `
CREATE TABLE events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	start_time TIMESTAMP NOT NULL,
	reminder_schedule TEXT,
	max_guests_per_invite INTEGER,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE event_hosts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id INTEGER NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	telegram_chat_id INTEGER,
	role TEXT NOT NULL DEFAULT 'host',
	notify_on_rsvp BOOLEAN NOT NULL DEFAULT 1,
	notify_email BOOLEAN NOT NULL DEFAULT 1,
	notify_sms BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE guests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id INTEGER NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	token TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'PENDING',
	max_guests_override INTEGER,
	notify_by_email BOOLEAN NOT NULL DEFAULT 1,
	responded_at TIMESTAMP,
	reminder_sent_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE additional_guests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guest_id INTEGER NOT NULL REFERENCES guests (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	position INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	host_id INTEGER NOT NULL,
	event_id INTEGER NOT NULL,
	guest_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	is_read BOOLEAN NOT NULL DEFAULT 0,
	type TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestDB はインメモリのSQLiteでテスト用のDBを作成します
func newTestDB(t *testing.T) *DB {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// インメモリDBは接続ごとに別物になるため1本に固定する
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Exec(testSchema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return &DB{conn}
}

func insertEvent(t *testing.T, db *DB, title string, start time.Time, schedule *string, maxGuests *int) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowx(
		`INSERT INTO events (title, location, start_time, reminder_schedule, max_guests_per_invite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		title, "Hall", start, schedule, maxGuests, testNow, testNow,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}
	return id
}

type guestFixture struct {
	name           string
	email          string
	token          string
	notifyByEmail  bool
	reminderSentAt *time.Time
}

func insertGuest(t *testing.T, db *DB, eventID int64, g guestFixture) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowx(
		`INSERT INTO guests (event_id, name, email, token, notify_by_email, reminder_sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		eventID, g.name, g.email, g.token, g.notifyByEmail, g.reminderSentAt, testNow, testNow,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert guest: %v", err)
	}
	return id
}

func strPtr(s string) *string {
	return &s
}
