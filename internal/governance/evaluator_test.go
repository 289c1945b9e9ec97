package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
)

var at = time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC)

func snapshot(tokens ...domain.MCRecord) *domain.TokenSnapshot {
	return &domain.TokenSnapshot{OwnerID: "u-1", Tokens: tokens, TakenAt: at}
}

func live(amount int64) domain.MCRecord {
	return domain.MCRecord{
		ID: "mc", OwnerID: "u-1", Amount: amount,
		IssuedAt: at.Add(-40 * 24 * time.Hour), ExpiresAt: at.Add(24 * time.Hour),
		LifecycleState: domain.MCActive,
	}
}

func staleToken(amount int64) domain.MCRecord {
	tok := live(amount)
	tok.ExpiresAt = at.Add(-time.Hour)
	return tok
}

func usage(d domain.UsageDomain, op string, snap *domain.TokenSnapshot, meta map[string]string) domain.EconomyUsageContext {
	return domain.EconomyUsageContext{
		ID: "ctx-1", UserID: "u-1", Domain: d, Operation: op,
		Snapshot: snap, Timestamp: at, Metadata: meta,
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := NewEvaluator(Policy{TransferReviewRatio: 0.5, ElevatedAmount: 1000}, identity.MustDefault())

	tests := []struct {
		name        string
		ctx         domain.EconomyUsageContext
		verdict     domain.GovernanceVerdict
		restriction domain.Restriction
		level       domain.ReviewLevel
		reason      domain.ReasonCode
		synthesized bool
	}{
		{
			name:        "plain store purchase",
			ctx:         usage(domain.DomainStore, "purchase", snapshot(live(100)), map[string]string{"amount": "50"}),
			verdict:     domain.VerdictAllowed,
			restriction: domain.RestrictionNone,
		},
		{
			name:        "missing snapshot",
			ctx:         usage(domain.DomainStore, "purchase", nil, nil),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonMissingSnapshot,
			synthesized: true,
		},
		{
			name:        "unknown domain",
			ctx:         usage("Casino", "spend", snapshot(live(10)), nil),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonUnknownDomain,
			synthesized: true,
		},
		{
			name:        "missing operation",
			ctx:         usage(domain.DomainStore, " ", snapshot(live(10)), nil),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonMissingOperation,
			synthesized: true,
		},
		{
			name:        "unparseable amount",
			ctx:         usage(domain.DomainStore, "purchase", snapshot(live(10)), map[string]string{"amount": "ten"}),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonInvalidAmount,
			synthesized: true,
		},
		{
			name:        "automated flag",
			ctx:         usage(domain.DomainAuction, "participate", snapshot(live(10)), map[string]string{"automated": "TRUE"}),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonAutomatedUsage,
		},
		{
			name:        "cron initiator",
			ctx:         usage(domain.DomainStore, "purchase", snapshot(live(10)), map[string]string{"initiator": "nightly-cron"}),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonAutomatedUsage,
		},
		{
			name:        "spending recognition",
			ctx:         usage(domain.DomainRecognition, "Transfer", snapshot(live(10)), nil),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewCritical,
			reason:      domain.ReasonGMCNotSpendable,
		},
		{
			name:        "spend with nothing usable",
			ctx:         usage(domain.DomainStore, "purchase", snapshot(), nil),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewRoutine,
			reason:      domain.ReasonNoActiveMC,
		},
		{
			name:        "amount above balance",
			ctx:         usage(domain.DomainStore, "purchase", snapshot(live(10)), map[string]string{"amount": "11"}),
			verdict:     domain.VerdictDisallowed,
			restriction: domain.RestrictionBlockOperation,
			level:       domain.ReviewRoutine,
			reason:      domain.ReasonInsufficientFunds,
		},
		{
			name:        "stale tokens in snapshot",
			ctx:         usage(domain.DomainStore, "view", snapshot(live(10), staleToken(5)), nil),
			verdict:     domain.VerdictAllowedWithReview,
			restriction: domain.RestrictionFlagForAudit,
			level:       domain.ReviewRoutine,
			reason:      domain.ReasonStaleSnapshotTokens,
		},
		{
			name:        "transfer above ratio",
			ctx:         usage(domain.DomainTransfer, "transfer", snapshot(live(100), staleToken(5)), map[string]string{"amount": "60"}),
			verdict:     domain.VerdictAllowedWithReview,
			restriction: domain.RestrictionFlagForAudit,
			level:       domain.ReviewElevated,
			reason:      domain.ReasonElevatedTransfer,
		},
		{
			name:        "transfer within ratio",
			ctx:         usage(domain.DomainTransfer, "transfer", snapshot(live(100)), map[string]string{"amount": "50"}),
			verdict:     domain.VerdictAllowed,
			restriction: domain.RestrictionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Evaluate(tt.ctx)

			assert.Equal(t, "ctx-1", d.ContextID)
			assert.Equal(t, at, d.EvaluatedAt)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.restriction, d.Restriction)
			assert.Equal(t, tt.level, d.ReviewLevel)

			if tt.verdict == domain.VerdictAllowed {
				assert.Nil(t, d.Violation)
				return
			}
			require.NotNil(t, d.Violation)
			assert.Equal(t, tt.reason, d.Violation.Reason)
			assert.Equal(t, tt.synthesized, d.Violation.Synthesized)
			assert.NotEmpty(t, d.Violation.Detail)
		})
	}
}

func TestEvaluator_DecisionShape(t *testing.T) {
	e := NewEvaluator(DefaultPolicy(), identity.MustDefault())
	domains := []domain.UsageDomain{domain.DomainStore, domain.DomainAuction, domain.DomainTransfer, domain.DomainRecognition, "Other"}
	ops := []string{"purchase", "transfer", "view", ""}
	snaps := []*domain.TokenSnapshot{nil, snapshot(), snapshot(live(3)), snapshot(staleToken(4), live(900))}
	amounts := []string{"", "1", "600", "-2"}

	for _, d := range domains {
		for _, op := range ops {
			for _, snap := range snaps {
				for _, amount := range amounts {
					meta := map[string]string{}
					if amount != "" {
						meta["amount"] = amount
					}
					got := e.Evaluate(usage(d, op, snap, meta))

					switch got.Verdict {
					case domain.VerdictDisallowed:
						require.NotNil(t, got.Violation)
						assert.NotEmpty(t, got.Violation.Reason)
						assert.Equal(t, domain.RestrictionBlockOperation, got.Restriction)
					case domain.VerdictAllowedWithReview:
						assert.Greater(t, got.ReviewLevel, domain.ReviewNone)
					case domain.VerdictAllowed:
						assert.Equal(t, domain.ReviewNone, got.ReviewLevel)
					}
				}
			}
		}
	}
}

func TestEvaluator_MostSevereWins(t *testing.T) {
	e := NewEvaluator(DefaultPolicy(), identity.MustDefault())

	d := e.Evaluate(usage(domain.DomainTransfer, "transfer", snapshot(live(10), staleToken(1)), map[string]string{
		"amount":    "9",
		"automated": "true",
	}))

	assert.Equal(t, domain.VerdictDisallowed, d.Verdict)
	assert.Equal(t, domain.ReviewCritical, d.ReviewLevel)
	assert.Equal(t, domain.ReasonAutomatedUsage, d.Violation.Reason)
	assert.ElementsMatch(t, []string{"automated_usage", "stale_snapshot_tokens", "large_transfer"}, d.RulesFired)
}
