package chrono

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Cron runs jobs on standard 5 field cron specs, in a fixed zone.
type Cron struct {
	cron   *cron.Cron
	logger cronLogger
}

func NewCron(location *time.Location) *Cron {
	logger := cronLogger{}
	return &Cron{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithLocation(location),
		),
		logger: logger,
	}
}

// Serial wraps fn into a job that never runs concurrently with itself, a
// firing that happens while the previous one is running waits for it. A
// panicking run is logged instead of taking the process down.
func (c *Cron) Serial(fn func()) cron.Job {
	return cron.NewChain(
		cron.Recover(c.logger),
		cron.DelayIfStillRunning(c.logger),
	).Then(cron.FuncJob(fn))
}

func (c *Cron) Schedule(spec string, job cron.Job) error {
	_, err := c.cron.AddJob(spec, job)
	return err
}

func (c *Cron) Start() {
	c.cron.Start()
}

// Stop stops scheduling new runs and waits for running jobs until ctx is
// done.
func (c *Cron) Stop(ctx context.Context) {
	select {
	case <-c.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next returns the time of the next scheduled run, the zero time if nothing
// is scheduled.
func (c *Cron) Next() time.Time {
	var next time.Time
	for _, entry := range c.cron.Entries() {
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next
}

// ParseSpec parses a standard 5 field cron spec or a descriptor like @daily.
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return schedule, nil
}

// FiredWithin reports whether the schedule had a run in the window that
// ends at now, this is what decides on catching up at startup.
func FiredWithin(schedule cron.Schedule, now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return !schedule.Next(now.Add(-window)).After(now)
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(fmt.Sprintf("cron: %s", msg), keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(fmt.Sprintf("cron: %s", msg), append(keysAndValues, "err", err)...)
}
