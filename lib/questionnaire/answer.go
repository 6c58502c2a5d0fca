package questionnaire

import "fmt"

type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerLiteral
	AnswerChoice
	AnswerDeferred
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerNone:
		return "none"
	case AnswerLiteral:
		return "literal"
	case AnswerChoice:
		return "choice"
	case AnswerDeferred:
		return "deferred"
	}
	return fmt.Sprintf("AnswerKind(%d)", int(k))
}

// Answer is the value held by a question, it is one of: nothing, a literal
// string, a reference to one of the question's choices, or a function that
// produces the string when the payload is built.
//
// The zero value is the empty answer.
type Answer struct {
	kind     AnswerKind
	literal  string
	choice   Choice
	deferred func() (string, error)
}

func Literal(text string) Answer {
	return Answer{kind: AnswerLiteral, literal: text}
}

// Deferred creates an answer whose value is computed every time it is
// resolved, for values like the current date that must not go stale between
// configuration and submission.
func Deferred(fn func() (string, error)) Answer {
	return Answer{kind: AnswerDeferred, deferred: fn}
}

func choiceAnswer(c Choice) Answer {
	return Answer{kind: AnswerChoice, choice: c}
}

func (a Answer) Kind() AnswerKind {
	return a.kind
}

func (a Answer) IsSet() bool {
	return a.kind != AnswerNone
}

// Choice returns the referenced choice, ok is false if the answer is not a
// choice reference.
func (a Answer) Choice() (Choice, bool) {
	return a.choice, a.kind == AnswerChoice
}

// Resolve turns the answer into the value that is sent over the wire.
func (a Answer) Resolve() (string, error) {
	switch a.kind {
	case AnswerNone:
		return "", nil
	case AnswerLiteral:
		return a.literal, nil
	case AnswerChoice:
		return a.choice.ID(), nil
	case AnswerDeferred:
		value, err := a.deferred()
		if err != nil {
			return "", fmt.Errorf("evaluate deferred answer: %w", err)
		}
		return value, nil
	}
	panic(fmt.Sprintf("unhandled answer kind: %v", a.kind))
}

// Text is the human readable form of the answer, used for matching against
// choice labels and for display. Deferred answers are evaluated.
func (a Answer) Text() (string, error) {
	if a.kind == AnswerChoice {
		return a.choice.Text(), nil
	}
	return a.Resolve()
}

func (a Answer) String() string {
	switch a.kind {
	case AnswerNone:
		return "<none>"
	case AnswerChoice:
		return a.choice.String()
	case AnswerDeferred:
		return "<deferred>"
	}
	return a.literal
}
