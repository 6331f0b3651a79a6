package session

import "github.com/stemsi/mocktest-backend/internal/model"

// Status is the palette status of a question.
type Status string

const (
	StatusUnanswered Status = "unanswered"
	StatusVisited    Status = "visited"
	StatusAnswered   Status = "answered"
	StatusMarked     Status = "marked"
)

// StatusOf derives a question's status. Precedence is
// marked > answered > visited > unanswered.
func StatusOf(resp *model.ExamResponse, visited bool) Status {
	switch {
	case resp != nil && resp.IsMarkedForReview:
		return StatusMarked
	case resp.IsAnswered():
		return StatusAnswered
	case visited:
		return StatusVisited
	default:
		return StatusUnanswered
	}
}

// TimerLevel buckets the remaining seconds for the countdown display.
func TimerLevel(remaining int) string {
	switch {
	case remaining > 600:
		return "safe"
	case remaining > 300:
		return "warning"
	default:
		return "danger"
	}
}
