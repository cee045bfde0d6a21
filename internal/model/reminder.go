package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReminderUnit はリマインダーの単位を表します
type ReminderUnit string

const (
	// ReminderUnitDay は日単位のリマインダーです
	ReminderUnitDay ReminderUnit = "day"
	// ReminderUnitHour は時間単位のリマインダーです
	ReminderUnitHour ReminderUnit = "hour"
)

// Duration は単位1つ分の長さを返します。未知の単位は0です
func (u ReminderUnit) Duration() time.Duration {
	switch u {
	case ReminderUnitDay:
		return 24 * time.Hour
	case ReminderUnitHour:
		return time.Hour
	default:
		return 0
	}
}

// IsValid は既知の単位かどうかを返します
func (u ReminderUnit) IsValid() bool {
	return u == ReminderUnitDay || u == ReminderUnitHour
}

// ReminderRule はイベント開始の何日前/何時間前に通知するかを表します
type ReminderRule struct {
	Unit  ReminderUnit `json:"type"`
	Value int          `json:"value"`
}

// ValidationResult はスケジュール検証の結果です
// エラーは返さず、呼び出し側が Valid で分岐します
type ValidationResult struct {
	Valid bool
	Error string
}

// encodedRule は現行フォーマットの要素です
// value の欠落を検出するためポインタで受けます
type encodedRule struct {
	Type  ReminderUnit `json:"type"`
	Value *int         `json:"value"`
}

// ParseSchedule は永続化されたスケジュール文字列をルールのリストに変換します
//
// 次の2形式を受け付けます
//   - 旧形式: 正の整数の配列。各要素は「N日前」を意味します (例: [7,3,1])
//   - 現行形式: {"type":"day"|"hour","value":n} の配列
//
// 不正な入力はすべて空のリストになります。壊れたスケジュールは「通知なし」として扱い、エラーにはしません
func ParseSchedule(raw *string) []ReminderRule {
	empty := []ReminderRule{}
	if raw == nil {
		return empty
	}
	s := strings.TrimSpace(*raw)
	if s == "" || s == "[]" {
		return empty
	}

	var legacy []*int
	if err := json.Unmarshal([]byte(s), &legacy); err == nil {
		rules := make([]ReminderRule, 0, len(legacy))
		for _, v := range legacy {
			if v == nil || *v <= 0 {
				return empty
			}
			rules = append(rules, ReminderRule{Unit: ReminderUnitDay, Value: *v})
		}
		return rules
	}

	var current []encodedRule
	if err := json.Unmarshal([]byte(s), &current); err != nil {
		return empty
	}
	rules := make([]ReminderRule, 0, len(current))
	for _, e := range current {
		if e.Value == nil || !e.Type.IsValid() {
			return empty
		}
		rules = append(rules, ReminderRule{Unit: e.Type, Value: *e.Value})
	}
	return rules
}

// SerializeSchedule はルールのリストを現行形式の文字列に変換します
// 空のリストは nil (DB上のNULL) になります
func SerializeSchedule(rules []ReminderRule) *string {
	if len(rules) == 0 {
		return nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// FormatRule はルールを表示用の文字列にします (例: "7 days before", "1 hour before")
func FormatRule(rule ReminderRule) string {
	unit := string(rule.Unit)
	if rule.Value != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s before", rule.Value, unit)
}

// ValidateSchedule はホストが編集したスケジュールを先頭から順に検証します
// エラーメッセージを決定的にするため、各要素について 値 → 単位 → 重複 の順でチェックします
func ValidateSchedule(rules []ReminderRule) ValidationResult {
	seen := make(map[ReminderRule]struct{}, len(rules))
	for _, rule := range rules {
		if rule.Value <= 0 {
			return ValidationResult{Error: "Reminder value must be positive"}
		}
		if !rule.Unit.IsValid() {
			return ValidationResult{Error: fmt.Sprintf("Invalid reminder type: %s", rule.Unit)}
		}
		if _, ok := seen[rule]; ok {
			return ValidationResult{Error: "Duplicate reminder: " + FormatRule(rule)}
		}
		seen[rule] = struct{}{}
	}
	return ValidationResult{Valid: true}
}
