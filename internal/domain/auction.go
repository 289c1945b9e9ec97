package domain

import "time"

type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "Scheduled"
	AuctionActive    AuctionStatus = "Active"
	AuctionCompleted AuctionStatus = "Completed"
	AuctionCancelled AuctionStatus = "Cancelled"
)

func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionCompleted || s == AuctionCancelled
}

type AuctionEvent struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Status         AuctionStatus `json:"status"`
	StartsAt       time.Time     `json:"starts_at"`
	EndsAt         time.Time     `json:"ends_at"`
	EntryCostMC    int64         `json:"entry_cost_mc"`
	WinProbability float64       `json:"win_probability"`
	CreatedBy      string        `json:"created_by"`
}

// AuctionContext is an event as seen at a specific evaluation time, with the
// caller-supplied random factor. Pure logic never draws randomness itself.
type AuctionContext struct {
	Event        AuctionEvent `json:"event"`
	EvaluatedAt  time.Time    `json:"evaluated_at"`
	RandomFactor float64      `json:"random_factor"`
}

// Participant is the entrant's fresh snapshot for a participation attempt.
type Participant struct {
	UserID              string     `json:"user_id"`
	TokenIDs            []string   `json:"token_ids"`
	Tokens              []MCRecord `json:"-"`
	AlreadyParticipated bool       `json:"already_participated"`
}

type ParticipationOutcome string

const (
	OutcomeWon    ParticipationOutcome = "Won"
	OutcomeLost   ParticipationOutcome = "Lost"
	OutcomeDenied ParticipationOutcome = "Denied"
)

// ParticipationDecision is the pure result of a participation attempt.
type ParticipationDecision struct {
	Outcome       ParticipationOutcome `json:"outcome"`
	Reason        ReasonCode           `json:"reason,omitempty"`
	SpentTokenIDs []string             `json:"spent_token_ids,omitempty"`
	StakedMC      int64                `json:"staked_mc"`
	RandomFactor  float64              `json:"random_factor"`
}

func (d ParticipationDecision) IsDenied() bool {
	return d.Outcome == OutcomeDenied
}

// ParticipationRecord is the persisted entry of one user in one auction.
type ParticipationRecord struct {
	ID           string               `json:"id"`
	EventID      string               `json:"event_id"`
	UserID       string               `json:"user_id"`
	Outcome      ParticipationOutcome `json:"outcome"`
	StakedMC     int64                `json:"staked_mc"`
	RandomFactor float64              `json:"random_factor"`
	TokenIDs     []string             `json:"token_ids"`
	CreatedAt    time.Time            `json:"created_at"`
}
