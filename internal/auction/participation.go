package auction

import (
	"time"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

// Participate decides one entry. Denials come back as a Denied decision with a
// reason code and never list tokens to spend. Won and Lost both spend every
// usable referenced token.
func Participate(ac domain.AuctionContext, p domain.Participant, access domain.EligibilityDecision) domain.ParticipationDecision {
	if reason := windowDenial(ac.Event, ac.EvaluatedAt); reason != "" {
		return denied(reason, ac.RandomFactor)
	}
	if !access.IsEligible() {
		return denied(domain.ReasonAccessDenied, ac.RandomFactor)
	}
	if p.AlreadyParticipated {
		return denied(domain.ReasonAlreadyParticipated, ac.RandomFactor)
	}
	if ac.RandomFactor < 0 || ac.RandomFactor >= 1 {
		return denied(domain.ReasonInvalidRandomFactor, ac.RandomFactor)
	}

	ids, stake := stakeOf(p, ac.EvaluatedAt)
	if stake < ac.Event.EntryCostMC {
		return denied(domain.ReasonInsufficientFunds, ac.RandomFactor)
	}

	outcome := domain.OutcomeLost
	if ac.RandomFactor < ac.Event.WinProbability {
		outcome = domain.OutcomeWon
	}

	return domain.ParticipationDecision{
		Outcome:       outcome,
		SpentTokenIDs: ids,
		StakedMC:      stake,
		RandomFactor:  ac.RandomFactor,
	}
}

func windowDenial(ev domain.AuctionEvent, now time.Time) domain.ReasonCode {
	switch ev.Status {
	case domain.AuctionScheduled:
		return domain.ReasonAuctionNotStarted
	case domain.AuctionCompleted, domain.AuctionCancelled:
		return domain.ReasonAuctionClosed
	}
	if now.Before(ev.StartsAt) {
		return domain.ReasonAuctionNotStarted
	}
	if !now.Before(ev.EndsAt) {
		return domain.ReasonAuctionClosed
	}
	return ""
}

// stakeOf sums the referenced tokens that belong to the participant and are
// usable at t. Unknown or unusable references contribute nothing.
func stakeOf(p domain.Participant, t time.Time) ([]string, int64) {
	byID := make(map[string]domain.MCRecord, len(p.Tokens))
	for _, tok := range p.Tokens {
		byID[tok.ID] = tok
	}

	var (
		ids   []string
		stake int64
		seen  = make(map[string]bool, len(p.TokenIDs))
	)
	for _, id := range p.TokenIDs {
		tok, ok := byID[id]
		if !ok || seen[id] || tok.OwnerID != p.UserID || !tok.IsUsableAt(t) {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		stake += tok.Amount
	}
	return ids, stake
}

func denied(reason domain.ReasonCode, randomFactor float64) domain.ParticipationDecision {
	return domain.ParticipationDecision{
		Outcome:      domain.OutcomeDenied,
		Reason:       reason,
		RandomFactor: randomFactor,
	}
}
