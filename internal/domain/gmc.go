package domain

import "time"

type GMCCategory string

const (
	GMCLeadership    GMCCategory = "Leadership"
	GMCCollaboration GMCCategory = "Collaboration"
	GMCInnovation    GMCCategory = "Innovation"
	GMCMentorship    GMCCategory = "Mentorship"
	GMCCommunity     GMCCategory = "Community"
)

var GMCCategories = []GMCCategory{GMCLeadership, GMCCollaboration, GMCInnovation, GMCMentorship, GMCCommunity}

func (c GMCCategory) IsValid() bool {
	for _, known := range GMCCategories {
		if c == known {
			return true
		}
	}
	return false
}

const MinJustificationLength = 50

// GMCRecord is an immutable recognition credential. It is created once and never
// updated or deleted.
type GMCRecord struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	Amount        int64       `json:"amount"`
	RecognizedAt  time.Time   `json:"recognized_at"`
	RecognizedBy  string      `json:"recognized_by"`
	Category      GMCCategory `json:"category"`
	Justification string      `json:"justification"`
}
