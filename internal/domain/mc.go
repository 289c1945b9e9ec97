package domain

import "time"

type MCSourceType string

const (
	SourceManualGrant        MCSourceType = "ManualGrant"
	SourceEventParticipation MCSourceType = "EventParticipation"
	SourcePeerTransfer       MCSourceType = "PeerTransfer"
)

func (s MCSourceType) IsValid() bool {
	switch s {
	case SourceManualGrant, SourceEventParticipation, SourcePeerTransfer:
		return true
	}
	return false
}

type MCState string

const (
	MCActive  MCState = "Active"
	MCFrozen  MCState = "Frozen"
	MCExpired MCState = "Expired"
	MCSpent   MCState = "Spent"
)

// IsTerminal reports whether no transition may ever leave the state.
func (s MCState) IsTerminal() bool {
	return s == MCExpired || s == MCSpent
}

const (
	MinMCTTL = 30 * 24 * time.Hour
	MaxMCTTL = 365 * 24 * time.Hour
)

// MCRecord is an ephemeral participation token.
type MCRecord struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner_id"`
	Amount         int64        `json:"amount"`
	IssuedAt       time.Time    `json:"issued_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	IsFrozen       bool         `json:"is_frozen"`
	SourceType     MCSourceType `json:"source_type"`
	SourceID       string       `json:"source_id"`
	LifecycleState MCState      `json:"lifecycle_state"`
	GrantedBy      string       `json:"granted_by"`
}

// IsExpiredAt reports whether the token is past its expiry at t, regardless of
// whether the Expired transition has been recorded yet.
func (m MCRecord) IsExpiredAt(t time.Time) bool {
	return m.LifecycleState == MCExpired || !t.Before(m.ExpiresAt)
}

// IsUsableAt reports whether the token can be spent at t.
func (m MCRecord) IsUsableAt(t time.Time) bool {
	return m.LifecycleState == MCActive && !m.IsFrozen && !m.IsExpiredAt(t)
}

// TokenSnapshot is a fresh read of one owner's MC records.
type TokenSnapshot struct {
	OwnerID string     `json:"owner_id"`
	Tokens  []MCRecord `json:"tokens"`
	TakenAt time.Time  `json:"taken_at"`
}

// UsableBalance sums the amounts of tokens that are neither frozen nor expired at t.
func UsableBalance(tokens []MCRecord, t time.Time) int64 {
	var total int64
	for _, tok := range tokens {
		if tok.IsUsableAt(t) {
			total += tok.Amount
		}
	}
	return total
}

// MCSummary is the read projection of one owner's tokens.
type MCSummary struct {
	OwnerID       string `json:"owner_id"`
	UsableBalance int64  `json:"usable_balance"`
	FrozenBalance int64  `json:"frozen_balance"`
	ActiveCount   int    `json:"active_count"`
	FrozenCount   int    `json:"frozen_count"`
	ExpiredCount  int    `json:"expired_count"`
	SpentCount    int    `json:"spent_count"`
}

func SummarizeMC(ownerID string, tokens []MCRecord, t time.Time) MCSummary {
	s := MCSummary{OwnerID: ownerID}
	for _, tok := range tokens {
		switch tok.LifecycleState {
		case MCActive:
			if tok.IsExpiredAt(t) {
				s.ExpiredCount++
				continue
			}
			s.ActiveCount++
			s.UsableBalance += tok.Amount
		case MCFrozen:
			s.FrozenCount++
			s.FrozenBalance += tok.Amount
		case MCExpired:
			s.ExpiredCount++
		case MCSpent:
			s.SpentCount++
		}
	}
	return s
}
