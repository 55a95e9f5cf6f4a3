package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	calls    atomic.Int32
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.calls.Add(1)
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.RegisterJob(&simpleJob{name: "sweep", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "sweep", schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_RunsEveryDescriptor(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	var once sync.Once
	job := &simpleJob{
		name:     "tick",
		schedule: "@every 1s",
		runFunc: func(_ context.Context) error {
			once.Do(func() { close(done) })
			return nil
		},
	}

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run within 5s")
	}
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	job := &simpleJob{
		name:     "slow",
		schedule: "* * * * *",
		runFunc: func(_ context.Context) error {
			<-release
			return nil
		},
	}

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(job)
	lock := s.locks["slow"]

	started := make(chan struct{})
	go func() {
		close(started)
		s.run(context.Background(), job, lock)
	}()
	<-started

	// Wait until the first run holds the lock.
	for job.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	s.run(context.Background(), job, lock)
	close(release)

	if got := job.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (overlapping tick should be skipped)", got)
	}
}

func TestScheduler_JobErrorDoesNotStopScheduler(t *testing.T) {
	t.Parallel()

	job := &simpleJob{
		name:     "failing",
		schedule: "* * * * *",
		runFunc:  func(_ context.Context) error { return errors.New("job failed") },
	}
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.run(context.Background(), job, s.locks["failing"])

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := NewScheduler(nil).Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	valid := []string{"*/5 * * * *", "0 0 * * *", "@every 10m", "@hourly"}
	for _, expr := range valid {
		if err := ValidateSchedule(expr); err != nil {
			t.Errorf("ValidateSchedule(%q) = %v, want nil", expr, err)
		}
	}

	invalid := []string{"", "invalid", "60 * * * *", "* * * * * *"}
	for _, expr := range invalid {
		if err := ValidateSchedule(expr); err == nil {
			t.Errorf("ValidateSchedule(%q) = nil, want error", expr)
		}
	}
}
