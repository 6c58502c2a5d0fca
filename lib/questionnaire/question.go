package questionnaire

import (
	"fmt"
	"iter"
	"sisudaka/lib/assert"
	"slices"

	"github.com/tidwall/gjson"
)

type Kind int

const (
	KindChoice Kind = iota + 1
	KindBlank
)

func (k Kind) String() string {
	switch k {
	case KindChoice:
		return "choice"
	case KindBlank:
		return "blank"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindOf derives the question kind from the type tag the remote reports.
func KindOf(rawType string) (Kind, error) {
	switch rawType {
	case "radio":
		return KindChoice, nil
	case "areaFill", "textFill":
		return KindBlank, nil
	}
	return 0, &UnknownQuestionTypeError{RawType: rawType}
}

type Question struct {
	id       string
	text     string
	required bool
	rawType  string
	kind     Kind
	choices  []Choice
	answer   Answer
}

func parseQuestion(row gjson.Result) (*Question, error) {
	id := row.Get("ITEMID")
	if !id.Exists() {
		return nil, &MalformedRowError{Field: "ITEMID", Row: row.Raw}
	}
	rawType := row.Get("TYPE")
	if !rawType.Exists() {
		return nil, &MalformedRowError{Field: "TYPE", Row: row.Raw}
	}
	kind, err := KindOf(rawType.String())
	if err != nil {
		return nil, err
	}

	q := &Question{
		id:       id.String(),
		text:     row.Get("TITLE").String(),
		required: row.Get("REQUIRE").Bool(),
		rawType:  rawType.String(),
		kind:     kind,
	}

	switch kind {
	case KindChoice:
		for _, option := range row.Get("OPTIONS").Array() {
			choice, err := parseChoice(option)
			if err != nil {
				return nil, err
			}
			q.choices = append(q.choices, choice)
		}
		slices.SortStableFunc(q.choices, func(a, b Choice) int {
			return a.index - b.index
		})
		for _, choice := range q.choices {
			if choice.isDefault {
				q.answer = choiceAnswer(choice)
				break
			}
		}
	case KindBlank:
		if text := row.Get("ANSWERTEXT").String(); text != "" {
			q.answer = Literal(text)
		}
	}

	return q, nil
}

// SelectChoice answers a choice question with the choice at the given
// position (in index order).
func (q *Question) SelectChoice(ordinal int) {
	assert.True(q.kind == KindChoice, "SelectChoice called on %s question %q", q.kind, q.text)
	assert.True(
		ordinal >= 0 && ordinal < len(q.choices),
		"choice ordinal %d out of range for question %q", ordinal, q.text,
	)
	q.answer = choiceAnswer(q.choices[ordinal])
}

// Fill answers a blank question with a literal or deferred value.
func (q *Question) Fill(value Answer) {
	assert.True(q.kind == KindBlank, "Fill called on %s question %q", q.kind, q.text)
	switch value.kind {
	case AnswerLiteral:
		assert.True(value.literal != "", "empty literal answer for question %q", q.text)
	case AnswerDeferred:
		assert.True(value.deferred != nil, "deferred answer without a function")
	default:
		panic(fmt.Sprintf("cannot fill question %q with a %s answer", q.text, value.kind))
	}
	q.answer = value
}

// Answer returns the current answer of the question, an unanswered optional
// question yields the empty answer.
func (q *Question) Answer() (Answer, error) {
	if q.required && !q.answer.IsSet() {
		return Answer{}, &UnansweredRequiredError{Question: q.text}
	}
	return q.answer, nil
}

// Choices yields each choice with its ordinal, the ordinal is what
// SelectChoice expects.
func (q *Question) Choices() (iter.Seq2[int, Choice], error) {
	if q.kind != KindChoice {
		return nil, &WrongQuestionTypeError{Question: q.text, RawType: q.rawType}
	}
	return slices.All(q.choices), nil
}

func (q *Question) IsAnswered() bool {
	return q.answer.IsSet()
}

func (q *Question) IsRequired() bool {
	return q.required
}

func (q *Question) IsChoice() bool {
	return q.kind == KindChoice
}

func (q *Question) IsBlank() bool {
	return q.kind == KindBlank
}

func (q *Question) Kind() Kind {
	return q.kind
}

func (q *Question) RawType() string {
	return q.rawType
}

func (q *Question) ID() string {
	return q.id
}

func (q *Question) Text() string {
	return q.text
}

func (q *Question) String() string {
	return q.text
}

func (q *Question) GoString() string {
	return fmt.Sprintf("<%s: %s>", q.id, q.text)
}
