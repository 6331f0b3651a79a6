package model

import (
	"strings"

	"github.com/google/uuid"
)

// AnswerKeys lists the option keys a question may use, in display order.
var AnswerKeys = []string{"A", "B", "C", "D", "E"}

// IsValidAnswerKey reports whether key is one of A–E.
func IsValidAnswerKey(key string) bool {
	for _, k := range AnswerKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Question represents a single multiple-choice question of a test.
type Question struct {
	ID             uuid.UUID `json:"id"`
	TestID         uuid.UUID `json:"test_id"`
	QuestionNumber int       `json:"question_number"`
	QuestionText   string    `json:"question_text"`
	SetName        *string   `json:"set_name,omitempty"`
	PassageText    *string   `json:"passage_text,omitempty"`
	OptionA        string    `json:"option_a"`
	OptionB        string    `json:"option_b"`
	OptionC        string    `json:"option_c"`
	OptionD        string    `json:"option_d"`
	OptionE        *string   `json:"option_e,omitempty"`
	CorrectAnswer  string    `json:"correct_answer"`
	Explanation    *string   `json:"explanation,omitempty"`
}

// Option is a single answer choice.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Options returns the answer choices; E is included only when present.
func (q *Question) Options() []Option {
	opts := []Option{
		{Key: "A", Text: q.OptionA},
		{Key: "B", Text: q.OptionB},
		{Key: "C", Text: q.OptionC},
		{Key: "D", Text: q.OptionD},
	}
	if q.OptionE != nil && strings.TrimSpace(*q.OptionE) != "" {
		opts = append(opts, Option{Key: "E", Text: *q.OptionE})
	}
	return opts
}

// HasOption reports whether key names one of the question's choices.
func (q *Question) HasOption(key string) bool {
	for _, o := range q.Options() {
		if o.Key == key {
			return true
		}
	}
	return false
}

// QuestionForCandidate is a question without its answer key or explanation.
type QuestionForCandidate struct {
	ID             uuid.UUID `json:"id"`
	QuestionNumber int       `json:"question_number"`
	QuestionText   string    `json:"question_text"`
	SetName        *string   `json:"set_name,omitempty"`
	PassageText    *string   `json:"passage_text,omitempty"`
	Options        []Option  `json:"options"`
}

// ForCandidate strips the answer key and explanation.
func (q *Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:             q.ID,
		QuestionNumber: q.QuestionNumber,
		QuestionText:   q.QuestionText,
		SetName:        q.SetName,
		PassageText:    q.PassageText,
		Options:        q.Options(),
	}
}
