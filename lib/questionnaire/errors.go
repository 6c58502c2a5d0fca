package questionnaire

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaValidation is the family of errors caused by a malformed or closed
	// remote form.
	ErrSchemaValidation = errors.New("questionnaire schema validation")
	// ErrMatchFailure is the family of errors caused by a rule set that does not
	// cover a presented question.
	ErrMatchFailure = errors.New("questionnaire match failure")

	ErrMissingState = fmt.Errorf("%w: could not find questionnaire state", ErrSchemaValidation)
)

type NotInProgressError struct {
	State string
}

func (e *NotInProgressError) Error() string {
	return fmt.Sprintf("questionnaire cannot be submitted right now (state: %q)", e.State)
}

func (e *NotInProgressError) Unwrap() error {
	return ErrSchemaValidation
}

type UnknownQuestionTypeError struct {
	RawType string
}

func (e *UnknownQuestionTypeError) Error() string {
	return fmt.Sprintf("unknown question type %q", e.RawType)
}

func (e *UnknownQuestionTypeError) Unwrap() error {
	return ErrSchemaValidation
}

// MalformedRowError is returned when a question row lacks a field the question
// model cannot be built without.
type MalformedRowError struct {
	Field string
	Row   string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed question row, missing %s: %s", e.Field, e.Row)
}

func (e *MalformedRowError) Unwrap() error {
	return ErrSchemaValidation
}

type NoMatchingRuleError struct {
	Question string
	// Closest is the rule fragment most similar to the question text, it is
	// only a hint for whoever has to fix the rule set.
	Closest string
}

func (e *NoMatchingRuleError) Error() string {
	if e.Closest == "" {
		return fmt.Sprintf("no rule matches question %q", e.Question)
	}
	return fmt.Sprintf("no rule matches question %q (closest rule: %q)", e.Question, e.Closest)
}

func (e *NoMatchingRuleError) Unwrap() error {
	return ErrMatchFailure
}

type NoMatchingChoiceError struct {
	Question string
	Value    string
}

func (e *NoMatchingChoiceError) Error() string {
	return fmt.Sprintf("no choice of question %q contains %q", e.Question, e.Value)
}

func (e *NoMatchingChoiceError) Unwrap() error {
	return ErrMatchFailure
}

type UnansweredRequiredError struct {
	Question string
}

func (e *UnansweredRequiredError) Error() string {
	return fmt.Sprintf("required question has not been answered: %q", e.Question)
}

type WrongQuestionTypeError struct {
	Question string
	RawType  string
}

func (e *WrongQuestionTypeError) Error() string {
	return fmt.Sprintf("question %q is not a choice question (type: %s)", e.Question, e.RawType)
}
