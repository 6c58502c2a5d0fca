package checkin

import (
	"context"
	"errors"
	"fmt"
	"sisudaka/lib/chrono"
	"sisudaka/lib/daka"
	"sisudaka/lib/history"
	"sisudaka/lib/notify"
	"sisudaka/lib/questionnaire"
	"sisudaka/lib/retry"
	"slices"
	"time"

	"github.com/mazen160/go-random"
)

const (
	DefaultCron          = "5 5,18 * * *"
	DefaultRetryTimes    = 5
	DefaultRetryInterval = 10
)

// RuleConfig is one entry of the ordered rule list, exactly one of Answer,
// OneOf and TimeLayout must be set.
type RuleConfig struct {
	Match string `json:"match"`
	// Answer is a pointer so that an explicit empty answer can be told apart
	// from a missing one.
	Answer *string `json:"answer"`
	// OneOf picks a random entry every time the answer is submitted.
	OneOf []string `json:"one_of"`
	// TimeLayout answers with the current time formatted with a Go layout.
	TimeLayout string `json:"time_layout"`
}

func (r RuleConfig) kinds() int {
	count := 0
	if r.Answer != nil {
		count++
	}
	if len(r.OneOf) > 0 {
		count++
	}
	if r.TimeLayout != "" {
		count++
	}
	return count
}

// Compile turns the rule into a questionnaire rule, deferred values read the
// time from clock.
func (r RuleConfig) Compile(clock chrono.Clock) questionnaire.Rule {
	rule := questionnaire.Rule{Fragment: r.Match}
	switch {
	case r.Answer != nil:
		rule.Value = questionnaire.Literal(*r.Answer)
	case len(r.OneOf) > 0:
		choices := r.OneOf
		rule.Value = questionnaire.Deferred(func() (string, error) {
			return random.Choice(choices)
		})
	default:
		layout := r.TimeLayout
		rule.Value = questionnaire.Deferred(func() (string, error) {
			return clock.Now().Format(layout), nil
		})
	}
	return rule
}

type RetryConfig struct {
	// Times is the total number of attempts.
	Times           int `json:"times"`
	// IntervalSeconds is a pointer so that an explicit 0 is kept, a missing
	// value means DefaultRetryInterval.
	IntervalSeconds *int `json:"interval_seconds"`
}

func (c RetryConfig) Policy() retry.Policy {
	times := c.Times
	if times == 0 {
		times = DefaultRetryTimes
	}
	interval := DefaultRetryInterval
	if c.IntervalSeconds != nil {
		interval = *c.IntervalSeconds
	}
	return retry.Policy{
		Attempts: times,
		Interval: time.Duration(interval) * time.Second,
		// every failure is retried, match failures included, the remote
		// form may change between attempts
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
}

type ScheduleConfig struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone"`
	// CatchupWindowMinutes makes the daemon run once at startup when a
	// scheduled run was missed within this many minutes.
	CatchupWindowMinutes int  `json:"catchup_window_minutes"`
	RunOnStart           bool `json:"run_on_start"`
}

func (c ScheduleConfig) spec() string {
	if c.Cron == "" {
		return DefaultCron
	}
	return c.Cron
}

func (c ScheduleConfig) catchupWindow() time.Duration {
	return time.Duration(c.CatchupWindowMinutes) * time.Minute
}

type RemoteConfig struct {
	BaseUrl               string  `json:"base_url"`
	ListPath              string  `json:"list_path"`
	DetailPath            string  `json:"detail_path"`
	SubmitPath            string  `json:"submit_path"`
	ConnectTimeoutSeconds int     `json:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int     `json:"read_timeout_seconds"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
}

func (c RemoteConfig) ClientOptions() daka.ClientOptions {
	return daka.ClientOptions{
		BaseUrl:           c.BaseUrl,
		ListPath:          c.ListPath,
		DetailPath:        c.DetailPath,
		SubmitPath:        c.SubmitPath,
		ConnectTimeout:    time.Duration(c.ConnectTimeoutSeconds) * time.Second,
		ReadTimeout:       time.Duration(c.ReadTimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

type Config struct {
	StudentId string         `json:"student_id"`
	Rules     []RuleConfig   `json:"rules"`
	Retry     RetryConfig    `json:"retry"`
	Schedule  ScheduleConfig `json:"schedule"`
	Remote    RemoteConfig   `json:"remote"`
	History   history.Config `json:"history"`
	Notify    notify.Config  `json:"notify"`
}

func (c *Config) Validate() error {
	var errs []error
	if c.StudentId == "" {
		errs = append(errs, errors.New("student_id is empty"))
	}
	if len(c.Rules) == 0 {
		errs = append(errs, errors.New("no rules configured"))
	}
	for i, rule := range c.Rules {
		if rule.Match == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: match is empty", i))
		}
		if rule.Answer != nil && *rule.Answer == "" {
			errs = append(errs, fmt.Errorf("rules[%d] (%q): answer is empty", i, rule.Match))
		}
		if slices.Contains(rule.OneOf, "") {
			errs = append(errs, fmt.Errorf("rules[%d] (%q): one_of contains an empty answer", i, rule.Match))
		}
		switch rule.kinds() {
		case 0:
			errs = append(errs, fmt.Errorf("rules[%d] (%q): one of answer, one_of or time_layout is required", i, rule.Match))
		case 1:
		default:
			errs = append(errs, fmt.Errorf("rules[%d] (%q): only one of answer, one_of or time_layout may be set", i, rule.Match))
		}
	}
	if c.Retry.Times < 0 || (c.Retry.IntervalSeconds != nil && *c.Retry.IntervalSeconds < 0) {
		errs = append(errs, errors.New("retry: times and interval_seconds must not be negative"))
	}
	if c.Schedule.CatchupWindowMinutes < 0 {
		errs = append(errs, errors.New("schedule: catchup_window_minutes must not be negative"))
	}
	if _, err := chrono.ParseSpec(c.Schedule.spec()); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if _, err := chrono.NewStandardClock(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule: timezone: %w", err))
	}
	return errors.Join(errs...)
}

// CompileRules returns the configured rules in order.
func (c Config) CompileRules(clock chrono.Clock) []questionnaire.Rule {
	rules := make([]questionnaire.Rule, len(c.Rules))
	for i, rule := range c.Rules {
		rules[i] = rule.Compile(clock)
	}
	return rules
}
