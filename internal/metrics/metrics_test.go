package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Purchase(domain.PurchaseCompleted, "")
	m.Purchase(domain.PurchaseRolledBack, domain.ReasonOutOfStock)
	m.Purchase(domain.PurchaseRolledBack, domain.ReasonOutOfStock)
	m.PurchaseDenied(domain.ReasonConcurrentRequest)
	m.PurchaseDenied(domain.ReasonUserRestricted)
	m.Violation(domain.ErrInsufficientFunds)
	m.Violation(errors.New("connection reset"))
	m.Verdict(domain.GovernanceDecision{Verdict: domain.VerdictAllowedWithReview, ReviewLevel: domain.ReviewElevated})
	m.AuditAppended(domain.AuditEvent{EventType: domain.AuditMCGranted}, domain.AuditEvent{EventType: domain.AuditMCGranted})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("Completed", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.purchases.WithLabelValues("RolledBack", "OutOfStock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("Retryable", "ConcurrentRequest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("Rejected", "UserRestricted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.purchases.WithLabelValues("Rejected", "ConcurrentRequest")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.violations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("AllowedWithReview", "Elevated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.auditAppends.WithLabelValues("mc.granted")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Purchase(domain.PurchaseCompleted, "")
		m.PurchaseDenied(domain.ReasonConcurrentRequest)
		m.Participation(domain.OutcomeWon, "")
		m.Violation(domain.ErrOutOfStock)
		m.Verdict(domain.GovernanceDecision{})
		m.AuditAppended(domain.AuditEvent{})
	})
}
