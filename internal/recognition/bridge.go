// Package recognition turns a closed auction into a human-review signal. It
// never creates a GMC; only the registry does, on an explicit human action.
package recognition

import (
	"github.com/vietanh2810/mc-economy/internal/domain"
)

const (
	DefaultMinStake int64   = 1
	DefaultRate     float64 = 0.1
)

// Policy holds the thresholds of the bridge. Rate is the share of eligible
// participants that get flagged, in [0, 1].
type Policy struct {
	MinStake int64   `mapstructure:"min_stake"`
	Rate     float64 `mapstructure:"rate"`
}

func DefaultPolicy() Policy {
	return Policy{MinStake: DefaultMinStake, Rate: DefaultRate}
}

// Evaluate decides the signal for one participant. The random factor comes
// from the caller and is echoed back so that it can be recorded verbatim.
func Evaluate(policy Policy, ev *domain.AuctionEvent, p *domain.ParticipationRecord, userID string, randomFactor float64) domain.RecognitionSignal {
	sig := domain.RecognitionSignal{
		UserID:       userID,
		RandomFactor: randomFactor,
		Threshold:    policy.Rate,
	}
	if ev != nil {
		sig.EventID = ev.ID
	}

	switch {
	case ev == nil || p == nil:
		return signal(sig, domain.RecognitionDenied, domain.ReasonMissingSnapshot)
	case ev.Status != domain.AuctionCompleted:
		return signal(sig, domain.RecognitionDenied, domain.ReasonAuctionNotClosed)
	case userID == "" || p.UserID != userID || p.EventID != ev.ID || p.Outcome == domain.OutcomeDenied:
		return signal(sig, domain.RecognitionDenied, domain.ReasonInvalidParticipant)
	case randomFactor < 0 || randomFactor >= 1:
		return signal(sig, domain.RecognitionDenied, domain.ReasonInvalidRandomFactor)
	case p.StakedMC < policy.MinStake:
		return signal(sig, domain.RecognitionNotEligible, domain.ReasonBelowThreshold)
	case randomFactor >= policy.Rate:
		return signal(sig, domain.RecognitionNotEligible, domain.ReasonNotSelected)
	}
	return signal(sig, domain.RecognitionEligible, "")
}

func signal(sig domain.RecognitionSignal, status domain.RecognitionStatus, reason domain.ReasonCode) domain.RecognitionSignal {
	sig.Status = status
	sig.Reason = reason
	return sig
}
