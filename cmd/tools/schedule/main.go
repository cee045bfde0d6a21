package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/config"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/logger"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
	"github.com/uma-arai/sbcntr-rsvp/internal/model"
	"github.com/uma-arai/sbcntr-rsvp/internal/service/batch"
)

// parseRules は "7d,2h" のような省略記法をルールに変換します
// d は日、h は時間。それ以外の単位はそのまま渡し、検証で弾きます
func parseRules(s string) ([]model.ReminderRule, error) {
	rules := []model.ReminderRule{}
	s = strings.TrimSpace(s)
	if s == "" {
		return rules, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		i := strings.IndexFunc(part, func(r rune) bool {
			return (r < '0' || r > '9') && r != '-'
		})
		if i <= 0 {
			return nil, fmt.Errorf("invalid rule %q", part)
		}
		value, err := strconv.Atoi(part[:i])
		if err != nil {
			return nil, fmt.Errorf("invalid rule %q: %w", part, err)
		}

		unit := model.ReminderUnit(part[i:])
		switch unit {
		case "d":
			unit = model.ReminderUnitDay
		case "h":
			unit = model.ReminderUnitHour
		}
		rules = append(rules, model.ReminderRule{Unit: unit, Value: value})
	}
	return rules, nil
}

// planUpdate はフラグから保存するスケジュールを決めます
// update が false の場合は現在のスケジュールを表示するだけです
func planUpdate(rulesFlag string, clearAll bool) (rules []model.ReminderRule, update bool, err error) {
	switch {
	case clearAll && rulesFlag != "":
		return nil, false, errors.New("-clear and -rules cannot be used together")
	case clearAll:
		return []model.ReminderRule{}, true, nil
	case rulesFlag == "":
		return nil, false, nil
	}

	rules, err = parseRules(rulesFlag)
	if err != nil {
		return nil, false, err
	}
	return rules, true, nil
}

func printSchedule(eventID int64, rules []model.ReminderRule) {
	if len(rules) == 0 {
		fmt.Printf("event %d: no reminders\n", eventID)
		return
	}
	fmt.Printf("event %d:\n", eventID)
	for _, rule := range rules {
		fmt.Printf("  - %s\n", model.FormatRule(rule))
	}
}

// イベントのリマインダースケジュールを参照・変更する運用ツールです
func main() {
	_ = godotenv.Load()

	eventID := flag.Int64("event", 0, "イベントID")
	rulesFlag := flag.String("rules", "", `新しいスケジュール。例: "7d,2h"`)
	clearAll := flag.Bool("clear", false, "リマインダーをすべて解除する")
	timeout := flag.Duration("timeout", 30*time.Second, "タイムアウト時間")
	flag.Parse()

	if *eventID <= 0 {
		fmt.Fprintln(os.Stderr, "-event is required")
		flag.Usage()
		os.Exit(2)
	}

	rules, update, err := planUpdate(*rulesFlag, *clearAll)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to load config")
	}
	logger.Setup("sbcntr-rsvp-schedule", cfg.LogLevel, cfg.IsLocal())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service, err := batch.NewScheduleService(ctx, cfg)
	if err != nil {
		log.Fatal().Err(utils.GetStackWithError(err)).Msg("Failed to create schedule service")
	}
	defer service.Close()

	// -rules も -clear もなければ現在のスケジュールを表示する
	if !update {
		current, err := service.Get(ctx, *eventID)
		if err != nil {
			exitOnError(err)
		}
		printSchedule(*eventID, current)
		return
	}

	result, err := service.Update(ctx, *eventID, rules)
	if err != nil {
		exitOnError(err)
	}
	if !result.Valid {
		fmt.Fprintln(os.Stderr, result.Error)
		os.Exit(1)
	}
	printSchedule(*eventID, rules)
}

func exitOnError(err error) {
	if errors.Is(err, batch.ErrEventNotFound) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Fatal().Err(err).Msg("Failed to access reminder schedule")
}
