package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

func active() domain.AuctionEvent {
	ev := scheduled()
	ev.Status = domain.AuctionActive
	return ev
}

func tok(id, owner string, amount int64, state domain.MCState) domain.MCRecord {
	return domain.MCRecord{
		ID:             id,
		OwnerID:        owner,
		Amount:         amount,
		IssuedAt:       t0.Add(-24 * time.Hour),
		ExpiresAt:      t0.Add(40 * 24 * time.Hour),
		IsFrozen:       state == domain.MCFrozen,
		LifecycleState: state,
	}
}

func participant() domain.Participant {
	return domain.Participant{
		UserID:   "u-1",
		TokenIDs: []string{"m1", "m2", "m3", "m4", "missing"},
		Tokens: []domain.MCRecord{
			tok("m1", "u-1", 6, domain.MCActive),
			tok("m2", "u-1", 5, domain.MCActive),
			tok("m3", "u-1", 50, domain.MCFrozen),
			tok("m4", "u-2", 50, domain.MCActive),
		},
	}
}

var eligible = domain.EligibilityDecision{Status: domain.Eligible, UsableBalance: 11}

func TestParticipate(t *testing.T) {
	during := starts.Add(time.Minute)

	tests := []struct {
		name        string
		event       domain.AuctionEvent
		at          time.Time
		random      float64
		participant domain.Participant
		access      domain.EligibilityDecision
		want        domain.ParticipationOutcome
		reason      domain.ReasonCode
	}{
		{"won", active(), during, 0.10, participant(), eligible, domain.OutcomeWon, ""},
		{"lost at probability boundary", active(), during, 0.25, participant(), eligible, domain.OutcomeLost, ""},
		{"scheduled event", scheduled(), during, 0.1, participant(), eligible, domain.OutcomeDenied, domain.ReasonAuctionNotStarted},
		{"active before start", active(), t0, 0.1, participant(), eligible, domain.OutcomeDenied, domain.ReasonAuctionNotStarted},
		{"active after end", active(), ends, 0.1, participant(), eligible, domain.OutcomeDenied, domain.ReasonAuctionClosed},
		{
			"ineligible access", active(), during, 0.1, participant(),
			domain.EligibilityDecision{Status: domain.Ineligible, Reason: domain.ReasonAllMCFrozen},
			domain.OutcomeDenied, domain.ReasonAccessDenied,
		},
		{
			"already participated", active(), during, 0.1,
			func() domain.Participant { p := participant(); p.AlreadyParticipated = true; return p }(),
			eligible, domain.OutcomeDenied, domain.ReasonAlreadyParticipated,
		},
		{"random factor of one", active(), during, 1, participant(), eligible, domain.OutcomeDenied, domain.ReasonInvalidRandomFactor},
		{"negative random factor", active(), during, -0.1, participant(), eligible, domain.OutcomeDenied, domain.ReasonInvalidRandomFactor},
		{
			"stake below entry cost", active(), during, 0.1,
			func() domain.Participant { p := participant(); p.TokenIDs = []string{"m1", "m3", "m4"}; return p }(),
			eligible, domain.OutcomeDenied, domain.ReasonInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Participate(domain.AuctionContext{Event: tt.event, EvaluatedAt: tt.at, RandomFactor: tt.random}, tt.participant, tt.access)

			assert.Equal(t, tt.want, got.Outcome)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.random, got.RandomFactor)
			if got.IsDenied() {
				assert.Empty(t, got.SpentTokenIDs)
				assert.Zero(t, got.StakedMC)
			}
		})
	}
}

func TestParticipate_SpendsUsableTokensWhateverTheOutcome(t *testing.T) {
	during := starts.Add(time.Minute)

	for _, random := range []float64{0.01, 0.99} {
		got := Participate(domain.AuctionContext{Event: active(), EvaluatedAt: during, RandomFactor: random}, participant(), eligible)

		assert.False(t, got.IsDenied())
		assert.Equal(t, []string{"m1", "m2"}, got.SpentTokenIDs)
		assert.Equal(t, int64(11), got.StakedMC)
	}
}
