package main

import (
	"reflect"
	"testing"

	"github.com/uma-arai/sbcntr-rsvp/internal/model"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []model.ReminderRule
		wantErr bool
	}{
		{
			name:  "日と時間",
			input: "7d,2h",
			want:  []model.ReminderRule{{Unit: model.ReminderUnitDay, Value: 7}, {Unit: model.ReminderUnitHour, Value: 2}},
		},
		{
			name:  "空白を含む",
			input: " 1d , 3h ",
			want:  []model.ReminderRule{{Unit: model.ReminderUnitDay, Value: 1}, {Unit: model.ReminderUnitHour, Value: 3}},
		},
		{
			name:  "空文字は空のスケジュール",
			input: "",
			want:  []model.ReminderRule{},
		},
		{
			name:  "未知の単位はそのまま渡す",
			input: "2w",
			want:  []model.ReminderRule{{Unit: "w", Value: 2}},
		},
		{
			name:  "負の値もそのまま渡す",
			input: "-1d",
			want:  []model.ReminderRule{{Unit: model.ReminderUnitDay, Value: -1}},
		},
		{
			name:    "数値がない",
			input:   "d",
			wantErr: true,
		},
		{
			name:    "単位がない",
			input:   "7",
			wantErr: true,
		},
		{
			name:    "数値として読めない",
			input:   "1-2d",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRules(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseRules() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseRules_ValidatedBySchedule(t *testing.T) {
	rules, err := parseRules("2w")
	if err != nil {
		t.Fatalf("parseRules() error = %v", err)
	}
	result := model.ValidateSchedule(rules)
	if result.Valid || result.Error != "Invalid reminder type: w" {
		t.Errorf("ValidateSchedule() = %+v", result)
	}
}

func TestPlanUpdate(t *testing.T) {
	tests := []struct {
		name       string
		rules      string
		clearAll   bool
		want       []model.ReminderRule
		wantUpdate bool
		wantErr    bool
	}{
		{
			name: "フラグなしは表示のみ",
		},
		{
			name:       "-rules で更新",
			rules:      "1d",
			want:       []model.ReminderRule{{Unit: model.ReminderUnitDay, Value: 1}},
			wantUpdate: true,
		},
		{
			name:       "-clear で空のスケジュールを保存",
			clearAll:   true,
			want:       []model.ReminderRule{},
			wantUpdate: true,
		},
		{
			name:     "-clear と -rules の併用はエラー",
			rules:    "7d,2h",
			clearAll: true,
			wantErr:  true,
		},
		{
			name:    "読めないルールはエラー",
			rules:   "x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, update, err := planUpdate(tt.rules, tt.clearAll)
			if (err != nil) != tt.wantErr {
				t.Fatalf("planUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if update != tt.wantUpdate {
				t.Errorf("planUpdate() update = %v, want %v", update, tt.wantUpdate)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("planUpdate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
