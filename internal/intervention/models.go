// Package intervention records spending-risk interventions, decides whether
// a proximity assessment becomes a notification, and closes the feedback
// loop into the personalization store.
package intervention

import (
	"errors"
	"time"

	"github.com/pigeonline/pigeon/internal/risk"
)

// Intervention errors.
var (
	ErrInterventionNotFound = errors.New("intervention not found")
	ErrAlreadyResponded     = errors.New("intervention already has a response")
	ErrInvalidResponse      = errors.New("invalid intervention response")
)

// Response is the user's reaction to an intervention notification.
type Response string

const (
	ResponseHelpful    Response = "helpful"
	ResponseSomewhat   Response = "somewhat"
	ResponseNotHelpful Response = "not_helpful"
	ResponseIgnored    Response = "ignored"
)

// Valid reports whether the response is one of the four allowed values.
func (r Response) Valid() bool {
	switch r {
	case ResponseHelpful, ResponseSomewhat, ResponseNotHelpful, ResponseIgnored:
		return true
	}
	return false
}

// FeedbackScore maps a response to its personalization feedback score.
// Ignored responses carry no score and perform no store update.
func (r Response) FeedbackScore() (float64, bool) {
	switch r {
	case ResponseHelpful:
		return 1.0, true
	case ResponseSomewhat:
		return 0.5, true
	case ResponseNotHelpful:
		return 0.0, true
	default:
		return 0, false
	}
}

// Intervention is one dispatched notification. Created only when a
// notification is actually delivered; mutated exactly once when the user
// responds, immutable history otherwise.
type Intervention struct {
	ID          string
	ZoneKey     string
	TriggeredAt time.Time
	Message     string
	Probability float64
	RiskLevel   risk.Level
	ModelType   risk.ModelType

	UserResponse *Response
	RespondedAt  *time.Time
}
