package questionnaire

import (
	"encoding/json"
	"fmt"
)

// ItemAnswer is the wire record of one answered question.
type ItemAnswer struct {
	ItemID    string   `json:"itemId"`
	ItemType  string   `json:"itemType"`
	AnswerArr []string `json:"answerArr"`
}

type Payload struct {
	AnswerData []ItemAnswer `json:"answerData"`
}

// BuildPayload resolves the answer of every question, including the ones the
// remote already answered, since the submission replaces the whole record.
// Deferred answers are evaluated here.
func BuildPayload(q *Questionnaire) (Payload, error) {
	payload := Payload{AnswerData: make([]ItemAnswer, 0, q.Len())}
	for question := range q.All() {
		answer, err := question.Answer()
		if err != nil {
			return Payload{}, err
		}
		value, err := answer.Resolve()
		if err != nil {
			return Payload{}, fmt.Errorf("question %q: %w", question.Text(), err)
		}
		payload.AnswerData = append(payload.AnswerData, ItemAnswer{
			ItemID:    question.ID(),
			ItemType:  question.RawType(),
			AnswerArr: []string{value},
		})
	}
	return payload, nil
}

func (p Payload) Encode() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
