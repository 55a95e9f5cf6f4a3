package cron

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepSchedule runs the idle sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// Sweeper is the part of the session store the sweep job needs.
type Sweeper interface {
	SweepIdle(timeout time.Duration) int
}

// SessionSweepJob removes sessions idle for longer than Timeout.
type SessionSweepJob struct {
	Store        Sweeper
	Timeout      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultSweepSchedule

	// OnSwept, when set, receives the number of sessions removed by each
	// tick, including zero.
	OnSwept func(n int)
}

var _ Job = (*SessionSweepJob)(nil)

// Name implements Job.
func (j *SessionSweepJob) Name() string { return "session_sweep" }

// Schedule implements Job.
func (j *SessionSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultSweepSchedule
}

// Run implements Job.
func (j *SessionSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := j.Store.SweepIdle(j.Timeout)
	if j.OnSwept != nil {
		j.OnSwept(n)
	}
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: swept idle sessions", "count", n, "timeout", j.Timeout)
	}
	return nil
}
