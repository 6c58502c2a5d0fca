package checkin

import (
	"context"
	"errors"
	"sisudaka/lib/daka"
	"sisudaka/lib/history"
	"sisudaka/lib/questionnaire"
	"sisudaka/lib/retry"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const detailRows = `[
	{"STATE": "进行中"},
	{
		"INDEX": 1, "ITEMID": "Q1", "TITLE": "今日体温", "REQUIRE": true, "TYPE": "radio",
		"OPTIONS": [
			{"OPTION": "36.5", "SUBID": "C1", "CHECKED": false, "INDEX": 1},
			{"OPTION": "37.0", "SUBID": "C2", "CHECKED": false, "INDEX": 2}
		]
	},
	{"INDEX": 2, "ITEMID": "Q2", "TITLE": "所在位置", "REQUIRE": true, "TYPE": "textFill"}
]`

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func (c fixedClock) Location() *time.Location {
	return c.now.Location()
}

// fakeRemote marks the questionnaire answered on submit unless
// ignoreSubmit is set. listErrs are returned by the first list calls.
type fakeRemote struct {
	mu           sync.Mutex
	answered     bool
	ignoreSubmit bool
	listErrs     []error
	detail       string

	lists    int
	details  int
	payloads []questionnaire.Payload
}

func (f *fakeRemote) ListQuestionnaires(ctx context.Context, userId string) (daka.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		return daka.Listing{}, err
	}
	return daka.Listing{ID: "QN1", Title: "每日健康打卡", Answered: f.answered}, nil
}

func (f *fakeRemote) GetQuestionnaire(ctx context.Context, questionnaireId, userId string) (*questionnaire.Questionnaire, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details++
	detail := f.detail
	if detail == "" {
		detail = detailRows
	}
	return questionnaire.New(gjson.Parse(detail).Array(), questionnaireId, userId)
}

func (f *fakeRemote) Submit(ctx context.Context, q *questionnaire.Questionnaire, payload questionnaire.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if !f.ignoreSubmit {
		f.answered = true
	}
	return nil
}

type memoryRecorder struct {
	runs []history.Run
}

func (r *memoryRecorder) Record(ctx context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

type memoryNotifier struct {
	subjects []string
	bodies   []string
}

func (n *memoryNotifier) Send(ctx context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

var testRules = []questionnaire.Rule{
	{Fragment: "体温", Value: questionnaire.Literal("36.5")},
	{Fragment: "位置", Value: questionnaire.Literal("上海")},
}

func newTestService(t testing.TB, remote Remote, policy retry.Policy) (Service, *memoryRecorder, *memoryNotifier) {
	t.Helper()
	recorder := &memoryRecorder{}
	notifier := &memoryNotifier{}
	service, err := NewService(Options{
		Remote:    remote,
		StudentId: "0123456789",
		Rules:     testRules,
		Policy:    policy,
		Clock:     fixedClock{now: time.Date(2024, time.March, 1, 5, 5, 0, 0, time.UTC)},
		Recorder:  recorder,
		Notifier:  notifier,
	})
	require.NoError(t, err)
	return service, recorder, notifier
}

func TestTriggerSubmits(t *testing.T) {
	remote := &fakeRemote{}
	service, _, _ := newTestService(t, remote, retry.Policy{})

	outcome, err := service.Trigger(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSubmitted, outcome)
	require.Equal(t, 2, remote.lists)
	require.Len(t, remote.payloads, 1)

	var values []string
	for _, item := range remote.payloads[0].AnswerData {
		values = append(values, item.AnswerArr...)
	}
	require.Equal(t, []string{"C1", "上海"}, values)
}

func TestTriggerAlreadyAnswered(t *testing.T) {
	remote := &fakeRemote{answered: true}
	service, _, _ := newTestService(t, remote, retry.Policy{})

	outcome, err := service.Trigger(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyAnswered, outcome)
	require.Equal(t, 1, remote.lists)
	require.Zero(t, remote.details)
	require.Empty(t, remote.payloads)
}

func TestTriggerNotConfirmed(t *testing.T) {
	remote := &fakeRemote{ignoreSubmit: true}
	service, _, _ := newTestService(t, remote, retry.Policy{})

	outcome, err := service.Trigger(context.Background())
	require.ErrorIs(t, err, ErrSubmissionNotConfirmed)
	require.Equal(t, OutcomeFailed, outcome)
	require.Len(t, remote.payloads, 1)
}

func TestTriggerWrapsRemoteErrors(t *testing.T) {
	transport := &daka.TransportError{Op: "list questionnaires", Err: errors.New("connection refused")}
	remote := &fakeRemote{listErrs: []error{transport}}
	service, _, _ := newTestService(t, remote, retry.Policy{})

	_, err := service.Trigger(context.Background())
	var transportErr *daka.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Contains(t, err.Error(), "fetch questionnaire id")
}

func TestTriggerMatchFailure(t *testing.T) {
	remote := &fakeRemote{detail: `[
		{"STATE": "进行中"},
		{"INDEX": 1, "ITEMID": "Q1", "TITLE": "联系电话", "REQUIRE": true, "TYPE": "textFill"}
	]`}
	service, _, _ := newTestService(t, remote, retry.Policy{})

	_, err := service.Trigger(context.Background())
	require.ErrorIs(t, err, questionnaire.ErrMatchFailure)
	require.Empty(t, remote.payloads)
}

func TestRunRetriesWholeSequence(t *testing.T) {
	flaky := errors.New("timeout")
	remote := &fakeRemote{listErrs: []error{flaky, flaky}}
	service, recorder, notifier := newTestService(t, remote, retry.Policy{Attempts: 3})

	err := service.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, remote.payloads, 1)

	require.Len(t, recorder.runs, 1)
	run := recorder.runs[0]
	require.Equal(t, OutcomeSubmitted, run.Outcome)
	require.Equal(t, 3, run.Attempts)
	require.Equal(t, "QN1", run.QuestionnaireId)
	require.Equal(t, "0123456789", run.StudentId)
	require.Len(t, run.ID, 8)
	require.Empty(t, run.Error)
	require.Empty(t, notifier.subjects)
}

func TestRunExhaustsAttempts(t *testing.T) {
	remote := &fakeRemote{ignoreSubmit: true}
	service, recorder, notifier := newTestService(t, remote, retry.Policy{Attempts: 3})

	err := service.Run(context.Background())
	require.ErrorIs(t, err, ErrSubmissionNotConfirmed)
	// every attempt starts over from the listing
	require.Equal(t, 6, remote.lists)
	require.Equal(t, 3, remote.details)
	require.Len(t, remote.payloads, 3)

	require.Len(t, recorder.runs, 1)
	require.Equal(t, OutcomeFailed, recorder.runs[0].Outcome)
	require.Equal(t, 3, recorder.runs[0].Attempts)
	require.Contains(t, recorder.runs[0].Error, "still unanswered")

	require.Len(t, notifier.subjects, 1)
	require.Contains(t, notifier.subjects[0], "0123456789")
	require.Contains(t, notifier.bodies[0], "3 attempt(s)")
}

func TestRunAlreadyAnswered(t *testing.T) {
	remote := &fakeRemote{answered: true}
	service, recorder, _ := newTestService(t, remote, retry.Policy{Attempts: 3})

	require.NoError(t, service.Run(context.Background()))
	require.Equal(t, 1, remote.lists)
	require.Equal(t, OutcomeAlreadyAnswered, recorder.runs[0].Outcome)
	require.Equal(t, 1, recorder.runs[0].Attempts)
}

func TestPreviewDoesNotSubmit(t *testing.T) {
	remote := &fakeRemote{answered: true}
	service, _, _ := newTestService(t, remote, retry.Policy{})

	q, payload, err := service.Preview(context.Background())
	require.NoError(t, err)
	require.Empty(t, remote.payloads)
	require.Equal(t, 1, remote.details)
	require.Empty(t, slices.Collect(q.Unanswered()))
	require.Len(t, payload.AnswerData, 2)
}

func TestNewServiceRequiresRemote(t *testing.T) {
	_, err := NewService(Options{StudentId: "0123456789"})
	require.Error(t, err)
	_, err = NewService(Options{Remote: &fakeRemote{}})
	require.Error(t, err)
}
