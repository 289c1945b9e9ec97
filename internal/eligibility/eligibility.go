// Package eligibility decides store access from a fresh token snapshot.
package eligibility

import (
	"time"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

// Evaluate computes the store-access decision for one owner. Maintenance and
// restriction short-circuit before any balance is computed.
func Evaluate(tokens []domain.MCRecord, now time.Time, isMaintenance, isRestricted bool) domain.EligibilityDecision {
	if isMaintenance {
		return deny(domain.ReasonStoreMaintenance, now)
	}
	if isRestricted {
		return deny(domain.ReasonUserRestricted, now)
	}

	balance := domain.UsableBalance(tokens, now)
	if balance > 0 {
		return domain.EligibilityDecision{
			Status:        domain.Eligible,
			UsableBalance: balance,
			EvaluatedAt:   now,
		}
	}

	if allFrozen(tokens, now) {
		return deny(domain.ReasonAllMCFrozen, now)
	}
	return deny(domain.ReasonNoActiveMC, now)
}

// allFrozen reports whether at least one live token exists and every live
// token is frozen. Spent and expired tokens are not live.
func allFrozen(tokens []domain.MCRecord, now time.Time) bool {
	live := 0
	for _, tok := range tokens {
		if tok.LifecycleState == domain.MCSpent || tok.IsExpiredAt(now) {
			continue
		}
		live++
		if !tok.IsFrozen && tok.LifecycleState != domain.MCFrozen {
			return false
		}
	}
	return live > 0
}

func deny(reason domain.ReasonCode, now time.Time) domain.EligibilityDecision {
	return domain.EligibilityDecision{
		Status:      domain.Ineligible,
		Reason:      reason,
		EvaluatedAt: now,
	}
}
