package questionnaire

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"
)

// Rule maps a fragment of question text to the answer given to every
// question containing it.
type Rule struct {
	Fragment string
	Value    Answer
}

// Respondent fills unanswered questions from an ordered rule set. The first
// rule whose fragment is contained in the question text wins, so overlapping
// fragments resolve by rule order.
type Respondent struct {
	rules []Rule
}

func NewRespondent(rules []Rule) Respondent {
	return Respondent{rules: rules}
}

// Answer answers every required question that is still unanswered, the first
// question that cannot be answered aborts the whole questionnaire.
func (r Respondent) Answer(ctx context.Context, q *Questionnaire) error {
	for question := range q.Unanswered() {
		var err error
		switch question.Kind() {
		case KindChoice:
			err = r.answerChoice(ctx, question)
		case KindBlank:
			err = r.answerBlank(ctx, question)
		default:
			err = &UnknownQuestionTypeError{RawType: question.RawType()}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r Respondent) answerChoice(ctx context.Context, question *Question) error {
	value, err := r.MatchRule(ctx, question)
	if err != nil {
		return err
	}
	shouldChoose, err := value.Text()
	if err != nil {
		return fmt.Errorf("question %q: %w", question.Text(), err)
	}

	choices, err := question.Choices()
	if err != nil {
		return err
	}
	selected := -1
	var candidates []string
	for ordinal, choice := range choices {
		if !strings.Contains(choice.Text(), shouldChoose) {
			continue
		}
		if selected < 0 {
			selected = ordinal
		}
		candidates = append(candidates, choice.Text())
	}
	if selected < 0 {
		return &NoMatchingChoiceError{Question: question.Text(), Value: shouldChoose}
	}
	if len(candidates) > 1 {
		slog.WarnContext(
			ctx, "answer matches more than one choice, using the first",
			"question", question.Text(),
			"answer", shouldChoose,
			"choices", candidates,
		)
	}

	question.SelectChoice(selected)
	slog.DebugContext(ctx, "answered choice question", "question", question.Text(), "choice", candidates[0])
	return nil
}

func (r Respondent) answerBlank(ctx context.Context, question *Question) error {
	value, err := r.MatchRule(ctx, question)
	if err != nil {
		return err
	}
	question.Fill(value)
	slog.DebugContext(ctx, "answered blank question", "question", question.Text(), "answer", value)
	return nil
}

// MatchRule finds the answer for a question by rule order.
func (r Respondent) MatchRule(ctx context.Context, question *Question) (Answer, error) {
	text := question.Text()

	match := -1
	var fragments []string
	for i, rule := range r.rules {
		if !strings.Contains(text, rule.Fragment) {
			continue
		}
		if match < 0 {
			match = i
		}
		fragments = append(fragments, rule.Fragment)
	}
	if match < 0 {
		return Answer{}, &NoMatchingRuleError{
			Question: text,
			Closest:  r.closestFragment(text),
		}
	}
	if len(fragments) > 1 {
		slog.WarnContext(
			ctx, "question matches more than one rule, using the first",
			"question", text,
			"rules", fragments,
		)
	}

	return r.rules[match].Value, nil
}

func (r Respondent) closestFragment(text string) string {
	closest := ""
	best := 0.0
	for _, rule := range r.rules {
		similarity := matchr.JaroWinkler(text, rule.Fragment, false)
		if similarity > best {
			best = similarity
			closest = rule.Fragment
		}
	}
	return closest
}
