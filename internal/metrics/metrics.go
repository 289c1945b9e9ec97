// Package metrics holds the Prometheus collectors of the economy core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

const namespace = "mc_economy"

// StatusRetryable labels purchase attempts the caller may safely repeat.
const StatusRetryable = "Retryable"

type Metrics struct {
	purchases     *prometheus.CounterVec
	participation *prometheus.CounterVec
	verdicts      *prometheus.CounterVec
	violations    *prometheus.CounterVec
	auditAppends  *prometheus.CounterVec
}

// New registers the collectors on reg. Registration errors panic, as with promauto.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "purchases_total",
			Help:      "Store purchase attempts by final status and reason code.",
		}, []string{"status", "reason"}),
		participation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "participations_total",
			Help:      "Auction participation attempts by outcome.",
		}, []string{"outcome", "reason"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "verdicts_total",
			Help:      "Governance decisions by verdict and review level.",
		}, []string{"verdict", "review_level"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Guard violations surfaced to callers, by reason code.",
		}, []string{"code"}),
		auditAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "appends_total",
			Help:      "Audit events appended to the ledger, by event type.",
		}, []string{"event_type"}),
	}

	reg.MustRegister(m.purchases, m.participation, m.verdicts, m.violations, m.auditAppends)
	return m
}

// The methods below are no-ops on a nil *Metrics so that services can run without them.

func (m *Metrics) Purchase(status domain.PurchaseStatus, reason domain.ReasonCode) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(string(status), string(reason)).Inc()
}

// PurchaseDenied counts an attempt refused before its transaction ran. A
// collision on an in-flight key is labelled Retryable rather than Rejected.
func (m *Metrics) PurchaseDenied(reason domain.ReasonCode) {
	if m == nil {
		return
	}
	status := string(domain.PurchaseRejected)
	if reason.IsRetryable() {
		status = StatusRetryable
	}
	m.purchases.WithLabelValues(status, string(reason)).Inc()
}

func (m *Metrics) Participation(outcome domain.ParticipationOutcome, reason domain.ReasonCode) {
	if m == nil {
		return
	}
	m.participation.WithLabelValues(string(outcome), string(reason)).Inc()
}

func (m *Metrics) Verdict(d domain.GovernanceDecision) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(string(d.Verdict), d.ReviewLevel.String()).Inc()
}

// Violation counts err when it is a domain violation and ignores anything else.
func (m *Metrics) Violation(err error) {
	if m == nil {
		return
	}
	if code := domain.ReasonOf(err); code != "" {
		m.violations.WithLabelValues(string(code)).Inc()
	}
}

func (m *Metrics) AuditAppended(events ...domain.AuditEvent) {
	if m == nil {
		return
	}
	for _, e := range events {
		m.auditAppends.WithLabelValues(string(e.EventType)).Inc()
	}
}
