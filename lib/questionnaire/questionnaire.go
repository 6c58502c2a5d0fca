// Package questionnaire models a fetched questionnaire, fills it from a rule
// set and turns it into the submission payload.
package questionnaire

import (
	"iter"

	"github.com/tidwall/gjson"
)

// StateInProgress is the STATE the remote reports for a questionnaire that
// currently accepts submissions.
const StateInProgress = "进行中"

type Questionnaire struct {
	id        string
	studentId string
	questions []*Question
}

// New builds a questionnaire out of the rows of a detail response. Rows that
// carry an INDEX are questions, all other rows are metadata.
func New(rows []gjson.Result, questionnaireId, studentId string) (*Questionnaire, error) {
	err := checkInProgress(rows)
	if err != nil {
		return nil, err
	}

	var questions []*Question
	for _, row := range rows {
		if !row.Get("INDEX").Exists() {
			continue
		}
		q, err := parseQuestion(row)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	return &Questionnaire{
		id:        questionnaireId,
		studentId: studentId,
		questions: questions,
	}, nil
}

func checkInProgress(rows []gjson.Result) error {
	for _, row := range rows {
		state := row.Get("STATE")
		if !state.Exists() {
			continue
		}
		if state.String() != StateInProgress {
			return &NotInProgressError{State: state.String()}
		}
		return nil
	}
	return ErrMissingState
}

// Unanswered yields the required questions that do not have an answer yet.
func (q *Questionnaire) Unanswered() iter.Seq[*Question] {
	return func(yield func(*Question) bool) {
		for _, question := range q.questions {
			if !question.IsRequired() || question.IsAnswered() {
				continue
			}
			if !yield(question) {
				return
			}
		}
	}
}

func (q *Questionnaire) All() iter.Seq[*Question] {
	return func(yield func(*Question) bool) {
		for _, question := range q.questions {
			if !yield(question) {
				return
			}
		}
	}
}

func (q *Questionnaire) Len() int {
	return len(q.questions)
}

func (q *Questionnaire) ID() string {
	return q.id
}

func (q *Questionnaire) StudentID() string {
	return q.studentId
}
