package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/robfig/cron/v3"
)

// parser accepts 5-field expressions, 6-field expressions with leading seconds and descriptors.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron expression.
func ParseSchedule(expression string) (cron.Schedule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, apperr.New(apperr.KindInvalidSchedule, "empty schedule", nil)
	}
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidSchedule, fmt.Sprintf("invalid cron expression %q", expression), err)
	}
	return schedule, nil
}

// NextFire returns the first activation of expression after from.
func NextFire(expression string, from time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(expression)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}
