package domain

import "time"

type UsageDomain string

const (
	DomainStore       UsageDomain = "Store"
	DomainAuction     UsageDomain = "Auction"
	DomainTransfer    UsageDomain = "Transfer"
	DomainRecognition UsageDomain = "Recognition"
)

func (d UsageDomain) IsValid() bool {
	switch d {
	case DomainStore, DomainAuction, DomainTransfer, DomainRecognition:
		return true
	}
	return false
}

type GovernanceVerdict string

const (
	VerdictAllowed           GovernanceVerdict = "Allowed"
	VerdictAllowedWithReview GovernanceVerdict = "AllowedWithReview"
	VerdictDisallowed        GovernanceVerdict = "Disallowed"
)

type Restriction string

const (
	RestrictionNone           Restriction = "None"
	RestrictionFlagForAudit   Restriction = "FlagForAudit"
	RestrictionBlockOperation Restriction = "BlockOperation"
)

type ReviewLevel int

const (
	ReviewNone ReviewLevel = iota
	ReviewRoutine
	ReviewElevated
	ReviewCritical
)

func (l ReviewLevel) String() string {
	switch l {
	case ReviewRoutine:
		return "Routine"
	case ReviewElevated:
		return "Elevated"
	case ReviewCritical:
		return "Critical"
	default:
		return "None"
	}
}

func (l ReviewLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// EconomyUsageContext describes one attempt to use the economy.
type EconomyUsageContext struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Domain    UsageDomain       `json:"domain"`
	Operation string            `json:"operation"`
	Snapshot  *TokenSnapshot    `json:"snapshot"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// GovernanceViolation is the record attached to any non-Allowed decision.
type GovernanceViolation struct {
	Reason      ReasonCode `json:"reason"`
	Detail      string     `json:"detail"`
	Synthesized bool       `json:"synthesized"`
}

// GovernanceDecision is a value object; it is computed fresh for every attempt.
type GovernanceDecision struct {
	ContextID   string               `json:"context_id"`
	Verdict     GovernanceVerdict    `json:"verdict"`
	Restriction Restriction          `json:"restriction"`
	ReviewLevel ReviewLevel          `json:"review_level"`
	Violation   *GovernanceViolation `json:"violation,omitempty"`
	RulesFired  []string             `json:"rules_fired,omitempty"`
	EvaluatedAt time.Time            `json:"evaluated_at"`
}
