// Package scoring computes exam score breakdowns.
//
// The default policy awards +1 per correct answer, deducts 0.25 per incorrect
// answer and 0.10 per unanswered question beyond the first eight.
package scoring

import (
	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// Default policy values.
const (
	DefaultCorrectMark       = 1.0
	DefaultIncorrectPenalty  = 0.25
	DefaultFreeUnanswered    = 8
	DefaultUnansweredPenalty = 0.10
)

// Outcome classifies a single response.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
)

// Policy holds the marking scheme.
type Policy struct {
	CorrectMark       float64 `json:"correct_mark"`
	IncorrectPenalty  float64 `json:"incorrect_penalty"`
	FreeUnanswered    int     `json:"free_unanswered"`
	UnansweredPenalty float64 `json:"unanswered_penalty"`
}

// DefaultPolicy returns the standard marking scheme.
func DefaultPolicy() Policy {
	return Policy{
		CorrectMark:       DefaultCorrectMark,
		IncorrectPenalty:  DefaultIncorrectPenalty,
		FreeUnanswered:    DefaultFreeUnanswered,
		UnansweredPenalty: DefaultUnansweredPenalty,
	}
}

// Breakdown is the result of scoring one attempt.
type Breakdown struct {
	Correct    int     `json:"correct"`
	Incorrect  int     `json:"incorrect"`
	Unanswered int     `json:"unanswered"`
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
}

// Classify compares a response against the question's answer key.
// A nil response counts as unanswered.
func Classify(q *model.Question, r *model.ExamResponse) Outcome {
	if !r.IsAnswered() {
		return OutcomeUnanswered
	}
	if *r.SelectedAnswer == q.CorrectAnswer {
		return OutcomeCorrect
	}
	return OutcomeIncorrect
}

// Score scores responses with the default policy.
func Score(questions []model.Question, responses map[uuid.UUID]model.ExamResponse) Breakdown {
	return DefaultPolicy().Score(questions, responses)
}

// Score walks the questions in order and classifies each response.
// The result depends only on the inputs, never on map iteration order.
func (p Policy) Score(questions []model.Question, responses map[uuid.UUID]model.ExamResponse) Breakdown {
	var b Breakdown
	for i := range questions {
		q := &questions[i]
		var rp *model.ExamResponse
		if r, ok := responses[q.ID]; ok {
			rp = &r
		}
		switch Classify(q, rp) {
		case OutcomeCorrect:
			b.Correct++
		case OutcomeIncorrect:
			b.Incorrect++
		default:
			b.Unanswered++
		}
	}

	penalised := b.Unanswered - p.FreeUnanswered
	if penalised < 0 {
		penalised = 0
	}
	unansweredPenalty := float64(penalised) * p.UnansweredPenalty

	b.TotalScore = float64(b.Correct)*p.CorrectMark - float64(b.Incorrect)*p.IncorrectPenalty - unansweredPenalty
	b.MaxScore = float64(len(questions)) * p.CorrectMark
	return b
}

// Percentage returns the total score as a share of the maximum, in percent.
func (b Breakdown) Percentage() float64 {
	return Percentage(b.TotalScore, b.MaxScore)
}

// Accuracy returns correct answers as a share of attempted answers, in percent.
func (b Breakdown) Accuracy() float64 {
	return Accuracy(b.Correct, b.Incorrect)
}

// Percentage returns total/max*100, or 0 when max is zero.
func Percentage(total, max float64) float64 {
	if max == 0 {
		return 0
	}
	return total / max * 100
}

// Accuracy returns correct/(correct+incorrect)*100, or 0 with no attempted answers.
func Accuracy(correct, incorrect int) float64 {
	attempted := correct + incorrect
	if attempted == 0 {
		return 0
	}
	return float64(correct) / float64(attempted) * 100
}

// Percentile returns the share of other scores strictly below score, in percent.
// ok is false when there is nothing to compare against.
func Percentile(score float64, others []float64) (pct float64, ok bool) {
	if len(others) == 0 {
		return 0, false
	}
	below := 0
	for _, s := range others {
		if s < score {
			below++
		}
	}
	return float64(below) / float64(len(others)) * 100, true
}
