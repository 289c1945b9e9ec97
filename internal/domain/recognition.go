package domain

import "time"

type RecognitionStatus string

const (
	RecognitionEligible    RecognitionStatus = "Eligible"
	RecognitionNotEligible RecognitionStatus = "NotEligible"
	RecognitionDenied      RecognitionStatus = "Denied"
)

// RecognitionSignal is the bridge's verdict on whether a participant should be
// put in front of a human reviewer. It never creates a GMC.
type RecognitionSignal struct {
	EventID      string            `json:"event_id"`
	UserID       string            `json:"user_id"`
	Status       RecognitionStatus `json:"status"`
	Reason       ReasonCode        `json:"reason,omitempty"`
	RandomFactor float64           `json:"random_factor"`
	Threshold    float64           `json:"threshold"`
	Replayed     bool              `json:"replayed,omitempty"` // settled by an earlier evaluation
}

// RecognitionEvaluation is the settled signal for one participant. There is
// at most one per auction and user.
type RecognitionEvaluation struct {
	ID          string            `json:"id"`
	Signal      RecognitionSignal `json:"signal"`
	EvaluatedBy string            `json:"evaluated_by"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}
