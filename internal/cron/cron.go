// Package cron runs periodic background jobs on cron schedules. chatrelay
// uses it to sweep idle sessions.
package cron

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Must be unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression ("*/5 * * * *") or a
	// descriptor such as "@every 10m".
	Schedule() string

	// Run executes one tick. Implementations should honor ctx.
	Run(ctx context.Context) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether expr is a schedule the Scheduler accepts.
func ValidateSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}
