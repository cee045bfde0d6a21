package model

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	start := time.Date(2026, 6, 20, 18, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	weekRule := ReminderRule{Unit: ReminderUnitDay, Value: 7}

	tests := []struct {
		name string
		rule ReminderRule
		now  time.Time
		want bool
	}{
		{name: "ちょうど7日前", rule: weekRule, now: start.Add(-7 * day), want: true},
		{name: "6日23時間前は切り上げで7", rule: weekRule, now: start.Add(-6*day - 23*time.Hour), want: true},
		{name: "6日12時間前も切り上げで7", rule: weekRule, now: start.Add(-6*day - 12*time.Hour), want: true},
		{name: "ちょうど6日前", rule: weekRule, now: start.Add(-6 * day), want: false},
		{name: "8日前", rule: weekRule, now: start.Add(-8 * day), want: false},
		{name: "7日と1分前は8", rule: weekRule, now: start.Add(-7*day - time.Minute), want: false},
		{name: "90分前は2時間ルール", rule: ReminderRule{Unit: ReminderUnitHour, Value: 2}, now: start.Add(-90 * time.Minute), want: true},
		{name: "30分前は1時間ルール", rule: ReminderRule{Unit: ReminderUnitHour, Value: 1}, now: start.Add(-30 * time.Minute), want: true},
		{name: "開始後は正の値で発火しない", rule: ReminderRule{Unit: ReminderUnitDay, Value: 1}, now: start.Add(time.Hour), want: false},
		{name: "開始と同時刻は正の値で発火しない", rule: ReminderRule{Unit: ReminderUnitHour, Value: 1}, now: start, want: false},
		{name: "開始済みで値0", rule: ReminderRule{Unit: ReminderUnitDay, Value: 0}, now: start, want: true},
		{name: "開始後で値0", rule: ReminderRule{Unit: ReminderUnitHour, Value: 0}, now: start.Add(3 * day), want: true},
		{name: "開始前で値0", rule: ReminderRule{Unit: ReminderUnitDay, Value: 0}, now: start.Add(-time.Hour), want: false},
		{name: "未知の単位", rule: ReminderRule{Unit: "week", Value: 1}, now: start.Add(-time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(tt.rule, start, tt.now); got != tt.want {
				t.Errorf("IsDue(%v, %v, %v) = %v, want %v", tt.rule, start, tt.now, got, tt.want)
			}
		})
	}
}

func TestFirstDueRule(t *testing.T) {
	start := time.Date(2026, 6, 20, 18, 0, 0, 0, time.UTC)
	schedule := []ReminderRule{
		{Unit: ReminderUnitDay, Value: 7},
		{Unit: ReminderUnitHour, Value: 168},
		{Unit: ReminderUnitDay, Value: 1},
	}

	rule, ok := FirstDueRule(schedule, start, start.Add(-7*24*time.Hour))
	if !ok {
		t.Fatal("FirstDueRule() found no rule")
	}
	if rule != schedule[0] {
		t.Errorf("FirstDueRule() = %v, want %v", rule, schedule[0])
	}

	if _, ok := FirstDueRule(schedule, start, start.Add(-3*24*time.Hour)); ok {
		t.Error("FirstDueRule() should not find a rule 3 days before")
	}
	if _, ok := FirstDueRule(nil, start, start.Add(-24*time.Hour)); ok {
		t.Error("FirstDueRule() should not find a rule in an empty schedule")
	}
}
