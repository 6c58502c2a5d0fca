// Package checkin runs the daily questionnaire check-in: it fetches the
// current questionnaire, answers it from the configured rules, submits it
// and confirms the submission went through.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sisudaka/lib/chrono"
	"sisudaka/lib/daka"
	"sisudaka/lib/history"
	"sisudaka/lib/questionnaire"
	"sisudaka/lib/retry"
	"strconv"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("sisudaka/services/checkin")
	meter  = otel.Meter("sisudaka/services/checkin")
)

type Outcome = history.Outcome

const (
	OutcomeSubmitted       = history.OutcomeSubmitted
	OutcomeAlreadyAnswered = history.OutcomeAlreadyAnswered
	OutcomeFailed          = history.OutcomeFailed
)

var ErrSubmissionNotConfirmed = errors.New("submission not confirmed, questionnaire is still unanswered")

// Remote is the questionnaire endpoint, *daka.Client implements it.
type Remote interface {
	ListQuestionnaires(ctx context.Context, userId string) (daka.Listing, error)
	GetQuestionnaire(ctx context.Context, questionnaireId, userId string) (*questionnaire.Questionnaire, error)
	Submit(ctx context.Context, q *questionnaire.Questionnaire, payload questionnaire.Payload) error
}

type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

type Options struct {
	Remote    Remote
	StudentId string
	Rules     []questionnaire.Rule
	Policy    retry.Policy
	Clock     chrono.Clock
	// Recorder and Notifier are optional.
	Recorder Recorder
	Notifier Notifier
}

type Service struct {
	remote     Remote
	studentId  string
	respondent questionnaire.Respondent
	policy     retry.Policy
	clock      chrono.Clock
	recorder   Recorder
	notifier   Notifier
	runs       metric.Int64Counter
}

func NewService(opts Options) (Service, error) {
	if opts.Remote == nil {
		return Service{}, errors.New("checkin: remote is required")
	}
	if opts.StudentId == "" {
		return Service{}, errors.New("checkin: student id is required")
	}
	clock := opts.Clock
	if clock == nil {
		standard, err := chrono.NewStandardClock("")
		if err != nil {
			return Service{}, err
		}
		clock = standard
	}

	runs, err := meter.Int64Counter(
		"checkin.runs",
		metric.WithDescription("Finished check-in runs by outcome."),
	)
	if err != nil {
		return Service{}, err
	}

	return Service{
		remote:     opts.Remote,
		studentId:  opts.StudentId,
		respondent: questionnaire.NewRespondent(opts.Rules),
		policy:     opts.Policy,
		clock:      clock,
		recorder:   opts.Recorder,
		notifier:   opts.Notifier,
		runs:       runs,
	}, nil
}

// Status reports the latest questionnaire and whether it has been answered.
func (s Service) Status(ctx context.Context) (daka.Listing, error) {
	return s.remote.ListQuestionnaires(ctx, s.studentId)
}

// Trigger runs a single check-in attempt without any retries.
func (s Service) Trigger(ctx context.Context) (Outcome, error) {
	return s.trigger(ctx, &history.Run{})
}

// trigger fills in what it learns about the questionnaire into run.
func (s Service) trigger(ctx context.Context, run *history.Run) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "checkin:Trigger")
	defer span.End()

	fail := func(err error, description string) (Outcome, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
		return OutcomeFailed, err
	}

	listing, err := s.remote.ListQuestionnaires(ctx, s.studentId)
	if err != nil {
		return fail(fmt.Errorf("fetch questionnaire id: %w", err), "failed to fetch questionnaire id")
	}
	run.QuestionnaireId = listing.ID
	run.Title = listing.Title
	span.SetAttributes(attribute.String("questionnaire.id", listing.ID))

	if listing.Answered {
		slog.InfoContext(ctx, "questionnaire already answered", "id", listing.ID, "title", listing.Title)
		return OutcomeAlreadyAnswered, nil
	}

	q, payload, err := s.prepare(ctx, listing)
	if err != nil {
		return fail(err, "failed to prepare answers")
	}

	err = s.remote.Submit(ctx, q, payload)
	if err != nil {
		return fail(fmt.Errorf("submit answers: %w", err), "failed to submit answers")
	}

	confirm, err := s.remote.ListQuestionnaires(ctx, s.studentId)
	if err != nil {
		return fail(fmt.Errorf("confirm submission: %w", err), "failed to confirm submission")
	}
	if !confirm.Answered {
		return fail(ErrSubmissionNotConfirmed, "submission not confirmed")
	}

	slog.InfoContext(ctx, "questionnaire submitted", "id", listing.ID, "title", listing.Title)
	return OutcomeSubmitted, nil
}

// prepare fetches the questionnaire behind listing, answers it and builds the
// payload that would be submitted.
func (s Service) prepare(ctx context.Context, listing daka.Listing) (*questionnaire.Questionnaire, questionnaire.Payload, error) {
	q, err := s.remote.GetQuestionnaire(ctx, listing.ID, s.studentId)
	if err != nil {
		return nil, questionnaire.Payload{}, fmt.Errorf("fetch questionnaire: %w", err)
	}
	err = s.respondent.Answer(ctx, q)
	if err != nil {
		return nil, questionnaire.Payload{}, fmt.Errorf("answer questionnaire: %w", err)
	}
	payload, err := questionnaire.BuildPayload(q)
	if err != nil {
		return nil, questionnaire.Payload{}, fmt.Errorf("build payload: %w", err)
	}
	return q, payload, nil
}

// Preview answers the current questionnaire like Trigger would, but never
// submits it. It works on answered questionnaires too.
func (s Service) Preview(ctx context.Context) (*questionnaire.Questionnaire, questionnaire.Payload, error) {
	ctx, span := tracer.Start(ctx, "checkin:Preview")
	defer span.End()

	listing, err := s.remote.ListQuestionnaires(ctx, s.studentId)
	if err != nil {
		err = fmt.Errorf("fetch questionnaire id: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch questionnaire id")
		return nil, questionnaire.Payload{}, err
	}
	q, payload, err := s.prepare(ctx, listing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prepare answers")
		return nil, questionnaire.Payload{}, err
	}
	return q, payload, nil
}

func newRunId(now time.Time) string {
	id, err := random.String(8)
	if err != nil {
		return strconv.FormatInt(now.UnixNano(), 36)
	}
	return id
}

// Run is a complete check-in: Trigger under the retry policy, with the result
// recorded and failures reported. The returned error is the one of the last
// attempt.
func (s Service) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "checkin:Run")
	defer span.End()

	started := s.clock.Now()
	run := history.Run{
		ID:        newRunId(started),
		StartedAt: started,
		StudentId: s.studentId,
	}
	slog.InfoContext(ctx, "starting check-in", "run", run.ID)

	outcome, err := retry.Do(ctx, s.policy, "check-in", func(ctx context.Context) (Outcome, error) {
		run.Attempts++
		return s.trigger(ctx, &run)
	})
	run.FinishedAt = s.clock.Now()
	run.Outcome = outcome
	if err != nil {
		run.Outcome = OutcomeFailed
		run.Error = err.Error()
	}

	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(run.Outcome))))
	s.record(ctx, run)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check-in failed")
		slog.ErrorContext(ctx, "check-in failed", "run", run.ID, "attempts", run.Attempts, "err", err)
		if !errors.Is(err, context.Canceled) {
			s.notifyFailure(ctx, run)
		}
		return err
	}

	slog.InfoContext(ctx, "check-in finished", "run", run.ID, "outcome", run.Outcome, "attempts", run.Attempts)
	return nil
}

func (s Service) record(ctx context.Context, run history.Run) {
	if s.recorder == nil {
		return
	}
	// the run is over by now, a cancelled ctx should still get it recorded
	err := s.recorder.Record(context.WithoutCancel(ctx), run)
	if err != nil {
		slog.WarnContext(ctx, "failed to record run", "run", run.ID, "err", err)
	}
}

func (s Service) notifyFailure(ctx context.Context, run history.Run) {
	if s.notifier == nil {
		return
	}
	subject := fmt.Sprintf("sisudaka: check-in failed for %s", run.StudentId)
	body := fmt.Sprintf(
		"Check-in run %s gave up after %d attempt(s).\n\nStarted:  %s\nFinished: %s\nQuestionnaire: %s %s\n\nLast error:\n%s\n",
		run.ID,
		run.Attempts,
		run.StartedAt.Format(time.DateTime),
		run.FinishedAt.Format(time.DateTime),
		run.QuestionnaireId,
		run.Title,
		run.Error,
	)
	err := s.notifier.Send(ctx, subject, body)
	if err != nil {
		slog.WarnContext(ctx, "failed to send failure notification", "run", run.ID, "err", err)
	}
}
