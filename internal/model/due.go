package model

import "time"

// IsDue は now がそのルールを発火させるべき時刻かどうかを判定します
//
// イベント開始までの残り時間を単位で割り、切り上げた値がルールの値と一致したときに true です。
// 切り上げのため、7日ルールは開始の6日12時間前でも発火します。
// イベントが開始済み (eventStart <= now) の場合は値が0のルールだけが true になります
func IsDue(rule ReminderRule, eventStart, now time.Time) bool {
	if !eventStart.After(now) {
		return rule.Value == 0
	}

	unit := rule.Unit.Duration()
	if unit == 0 {
		return false
	}

	remaining := eventStart.Sub(now)
	units := remaining / unit
	if remaining%unit != 0 {
		units++
	}
	return int64(units) == int64(rule.Value)
}

// FirstDueRule はスケジュールを順に評価し、最初に発火するルールを返します
func FirstDueRule(schedule []ReminderRule, eventStart, now time.Time) (ReminderRule, bool) {
	for _, rule := range schedule {
		if IsDue(rule, eventStart, now) {
			return rule, true
		}
	}
	return ReminderRule{}, false
}
