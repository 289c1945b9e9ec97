// Package governance computes Allowed / AllowedWithReview / Disallowed verdicts
// for usage attempts. Any input it cannot evaluate safely is Disallowed.
package governance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
)

// Operations that move value out of a balance.
var spendOperations = map[string]bool{
	"spend":       true,
	"purchase":    true,
	"participate": true,
	"transfer":    true,
	"redeem":      true,
}

const (
	MetaAmount    = "amount"
	MetaAutomated = "automated"
	MetaInitiator = "initiator"
)

type Policy struct {
	// TransferReviewRatio flags transfers larger than this share of the usable balance.
	TransferReviewRatio float64 `mapstructure:"transfer_review_ratio"`
	// ElevatedAmount flags transfers of at least this many MC regardless of balance.
	ElevatedAmount int64 `mapstructure:"elevated_amount"`
}

func DefaultPolicy() Policy {
	return Policy{TransferReviewRatio: 0.5, ElevatedAmount: 500}
}

type Evaluator struct {
	policy   Policy
	identity identity.Classifier
}

func NewEvaluator(policy Policy, classifier identity.Classifier) *Evaluator {
	return &Evaluator{policy: policy, identity: classifier}
}

type finding struct {
	rule        string
	verdict     domain.GovernanceVerdict
	restriction domain.Restriction
	level       domain.ReviewLevel
	reason      domain.ReasonCode
	detail      string
}

func (e *Evaluator) Evaluate(c domain.EconomyUsageContext) domain.GovernanceDecision {
	amount, err := guard(c)
	if err != nil {
		return domain.GovernanceDecision{
			ContextID:   c.ID,
			Verdict:     domain.VerdictDisallowed,
			Restriction: domain.RestrictionBlockOperation,
			ReviewLevel: domain.ReviewCritical,
			Violation: &domain.GovernanceViolation{
				Reason:      domain.ReasonOf(err),
				Detail:      err.Error(),
				Synthesized: true,
			},
			RulesFired:  []string{"guard"},
			EvaluatedAt: c.Timestamp,
		}
	}

	var findings []finding
	for _, rule := range []func(domain.EconomyUsageContext, int64) *finding{
		e.automatedUsage,
		e.recognitionNotSpendable,
		e.noUsableBalance,
		e.amountAboveBalance,
		e.staleSnapshot,
		e.largeTransfer,
	} {
		if f := rule(c, amount); f != nil {
			findings = append(findings, *f)
		}
	}

	d := domain.GovernanceDecision{
		ContextID:   c.ID,
		Verdict:     domain.VerdictAllowed,
		Restriction: domain.RestrictionNone,
		ReviewLevel: domain.ReviewNone,
		EvaluatedAt: c.Timestamp,
	}
	var worst *finding
	for i := range findings {
		f := &findings[i]
		d.RulesFired = append(d.RulesFired, f.rule)
		if worst == nil || moreSevere(*f, *worst) {
			worst = f
		}
	}
	if worst != nil {
		d.Verdict = worst.verdict
		d.Restriction = worst.restriction
		d.ReviewLevel = worst.level
		d.Violation = &domain.GovernanceViolation{Reason: worst.reason, Detail: worst.detail}
	}
	return d
}

// guard rejects structurally invalid contexts and returns the parsed amount.
func guard(c domain.EconomyUsageContext) (int64, error) {
	if !c.Domain.IsValid() {
		return 0, domain.NewViolation(domain.ReasonUnknownDomain, "unknown domain %q", c.Domain)
	}
	if c.Snapshot == nil {
		return 0, domain.NewViolation(domain.ReasonMissingSnapshot, "token snapshot is required")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return 0, domain.NewViolation(domain.ReasonInvalidRequest, "user is required")
	}
	if c.Snapshot.OwnerID != "" && c.Snapshot.OwnerID != c.UserID {
		return 0, domain.NewViolation(domain.ReasonMissingSnapshot, "snapshot belongs to %s, not %s", c.Snapshot.OwnerID, c.UserID)
	}
	if strings.TrimSpace(c.Operation) == "" {
		return 0, domain.NewViolation(domain.ReasonMissingOperation, "operation is required")
	}
	raw, ok := c.Metadata[MetaAmount]
	if !ok {
		return 0, nil
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount < 0 {
		return 0, domain.NewViolation(domain.ReasonInvalidAmount, "amount %q is not a non-negative integer", raw)
	}
	return amount, nil
}

func (e *Evaluator) automatedUsage(c domain.EconomyUsageContext, _ int64) *finding {
	automated := strings.EqualFold(c.Metadata[MetaAutomated], "true")
	if initiator, ok := c.Metadata[MetaInitiator]; ok && e.identity.IsForbidden(initiator) {
		automated = true
	}
	if !automated {
		return nil
	}
	return &finding{
		rule:        "automated_usage",
		verdict:     domain.VerdictDisallowed,
		restriction: domain.RestrictionBlockOperation,
		level:       domain.ReviewCritical,
		reason:      domain.ReasonAutomatedUsage,
		detail:      "economy usage must be initiated by a human",
	}
}

func (e *Evaluator) recognitionNotSpendable(c domain.EconomyUsageContext, _ int64) *finding {
	if c.Domain != domain.DomainRecognition || !isSpend(c.Operation) {
		return nil
	}
	return &finding{
		rule:        "gmc_not_spendable",
		verdict:     domain.VerdictDisallowed,
		restriction: domain.RestrictionBlockOperation,
		level:       domain.ReviewCritical,
		reason:      domain.ReasonGMCNotSpendable,
		detail:      fmt.Sprintf("recognition credentials cannot be used for %q", c.Operation),
	}
}

func (e *Evaluator) noUsableBalance(c domain.EconomyUsageContext, _ int64) *finding {
	if c.Domain == domain.DomainRecognition || !isSpend(c.Operation) {
		return nil
	}
	if domain.UsableBalance(c.Snapshot.Tokens, c.Timestamp) > 0 {
		return nil
	}
	return &finding{
		rule:        "no_usable_balance",
		verdict:     domain.VerdictDisallowed,
		restriction: domain.RestrictionBlockOperation,
		level:       domain.ReviewRoutine,
		reason:      domain.ReasonNoActiveMC,
		detail:      "no usable MC at evaluation time",
	}
}

func (e *Evaluator) amountAboveBalance(c domain.EconomyUsageContext, amount int64) *finding {
	if c.Domain == domain.DomainRecognition || !isSpend(c.Operation) || amount == 0 {
		return nil
	}
	usable := domain.UsableBalance(c.Snapshot.Tokens, c.Timestamp)
	if usable == 0 || amount <= usable {
		return nil
	}
	return &finding{
		rule:        "amount_above_balance",
		verdict:     domain.VerdictDisallowed,
		restriction: domain.RestrictionBlockOperation,
		level:       domain.ReviewRoutine,
		reason:      domain.ReasonInsufficientFunds,
		detail:      fmt.Sprintf("amount %d exceeds usable balance %d", amount, usable),
	}
}

// staleSnapshot flags tokens that are past expiry but still recorded as live.
func (e *Evaluator) staleSnapshot(c domain.EconomyUsageContext, _ int64) *finding {
	stale := 0
	for _, tok := range c.Snapshot.Tokens {
		if (tok.LifecycleState == domain.MCActive || tok.LifecycleState == domain.MCFrozen) && tok.IsExpiredAt(c.Timestamp) {
			stale++
		}
	}
	if stale == 0 {
		return nil
	}
	return &finding{
		rule:        "stale_snapshot_tokens",
		verdict:     domain.VerdictAllowedWithReview,
		restriction: domain.RestrictionFlagForAudit,
		level:       domain.ReviewRoutine,
		reason:      domain.ReasonStaleSnapshotTokens,
		detail:      fmt.Sprintf("%d expired tokens are not yet marked Expired", stale),
	}
}

func (e *Evaluator) largeTransfer(c domain.EconomyUsageContext, amount int64) *finding {
	if c.Domain != domain.DomainTransfer || amount == 0 {
		return nil
	}
	usable := domain.UsableBalance(c.Snapshot.Tokens, c.Timestamp)
	overRatio := float64(amount) > e.policy.TransferReviewRatio*float64(usable)
	overCap := e.policy.ElevatedAmount > 0 && amount >= e.policy.ElevatedAmount
	if !overRatio && !overCap {
		return nil
	}
	return &finding{
		rule:        "large_transfer",
		verdict:     domain.VerdictAllowedWithReview,
		restriction: domain.RestrictionFlagForAudit,
		level:       domain.ReviewElevated,
		reason:      domain.ReasonElevatedTransfer,
		detail:      fmt.Sprintf("transfer of %d against usable balance %d", amount, usable),
	}
}

func isSpend(operation string) bool {
	return spendOperations[strings.ToLower(strings.TrimSpace(operation))]
}

var verdictRank = map[domain.GovernanceVerdict]int{
	domain.VerdictAllowed:           0,
	domain.VerdictAllowedWithReview: 1,
	domain.VerdictDisallowed:        2,
}

func moreSevere(a, b finding) bool {
	if verdictRank[a.verdict] != verdictRank[b.verdict] {
		return verdictRank[a.verdict] > verdictRank[b.verdict]
	}
	return a.level > b.level
}
