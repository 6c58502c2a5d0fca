package checkin

import (
	"context"
	"log/slog"
	"sisudaka/lib/chrono"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is what gets scheduled, Service implements it.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler fires a Runner on a cron spec. Runs never overlap, a firing that
// comes while a run is still going waits for it.
type Scheduler struct {
	cron       *chrono.Cron
	schedule   cron.Schedule
	spec       string
	clock      chrono.Clock
	window     time.Duration
	runOnStart bool
	runner     Runner
	// catchUp tracks the startup run, which cron does not know about.
	catchUp sync.WaitGroup
}

func NewScheduler(runner Runner, clock chrono.Clock, config ScheduleConfig) (*Scheduler, error) {
	spec := config.spec()
	schedule, err := chrono.ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cron:       chrono.NewCron(clock.Location()),
		schedule:   schedule,
		spec:       spec,
		clock:      clock,
		window:     config.catchupWindow(),
		runOnStart: config.RunOnStart,
		runner:     runner,
	}, nil
}

// shouldCatchUp decides on the extra run at startup.
func (s *Scheduler) shouldCatchUp(now time.Time) bool {
	return s.runOnStart || chrono.FiredWithin(s.schedule, now, s.window)
}

// Start schedules the runner and returns, runs get ctx. Call Stop to wait
// for a run in progress to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.cron.Serial(func() {
		// failures are logged and reported by the runner itself, the next
		// firing goes ahead regardless
		_ = s.runner.Run(ctx)
	})
	err := s.cron.Schedule(s.spec, job)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if s.shouldCatchUp(now) {
		slog.InfoContext(ctx, "running missed check-in now")
		s.catchUp.Add(1)
		go func() {
			defer s.catchUp.Done()
			job.Run()
		}()
	}
	s.cron.Start()
	slog.InfoContext(ctx, "waiting for the next check-in", "next", s.schedule.Next(now).Format(time.DateTime))
	return nil
}

func (s *Scheduler) Next() time.Time {
	return s.cron.Next()
}

// Stop stops scheduling and waits for running jobs, the startup run
// included, until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cron.Stop(ctx)

	done := make(chan struct{})
	go func() {
		s.catchUp.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
