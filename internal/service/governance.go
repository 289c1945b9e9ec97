package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/governance"
	"github.com/vietanh2810/mc-economy/internal/metrics"
)

type GovernanceService struct {
	evaluator *governance.Evaluator
	tokens    TokenReader
	audit     AuditLog
	ids       IDGenerator
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewGovernanceService(evaluator *governance.Evaluator, tokens TokenReader, audit AuditLog, ids IDGenerator, m *metrics.Metrics) *GovernanceService {
	return &GovernanceService{
		evaluator: evaluator,
		tokens:    tokens,
		audit:     audit,
		ids:       ids,
		metrics:   m,
		now:       time.Now,
	}
}

type UsageInput struct {
	UserID    string
	Domain    domain.UsageDomain
	Operation string
	Metadata  map[string]string
	Actor     domain.Actor
}

// Evaluate reads a fresh snapshot for the user and evaluates the attempt. A
// snapshot that cannot be read is passed on as missing, which the evaluator
// turns into a blocking decision.
func (s *GovernanceService) Evaluate(ctx context.Context, in UsageInput) (domain.GovernanceDecision, error) {
	now := s.now().UTC()

	c := domain.EconomyUsageContext{
		ID:        s.ids.NewID(),
		UserID:    in.UserID,
		Domain:    in.Domain,
		Operation: in.Operation,
		Timestamp: now,
		Metadata:  in.Metadata,
	}

	if in.UserID != "" {
		snap, err := snapshot(ctx, s.tokens, in.UserID, now)
		if err != nil {
			zap.L().Warn("governance snapshot unavailable, evaluating without it",
				zap.String("context_id", c.ID),
				zap.String("user_id", in.UserID),
				zap.Error(err))
		} else {
			c.Snapshot = &snap
		}
	}

	return s.EvaluateContext(ctx, c, in.Actor)
}

// EvaluateContext evaluates a caller-built context and records the decision.
func (s *GovernanceService) EvaluateContext(ctx context.Context, c domain.EconomyUsageContext, actor domain.Actor) (domain.GovernanceDecision, error) {
	if c.ID == "" {
		c.ID = s.ids.NewID()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now().UTC()
	}

	d := s.evaluator.Evaluate(c)
	s.metrics.Verdict(d)

	payload := map[string]any{
		"context_id":   d.ContextID,
		"user_id":      c.UserID,
		"domain":       string(c.Domain),
		"operation":    c.Operation,
		"verdict":      string(d.Verdict),
		"restriction":  string(d.Restriction),
		"review_level": d.ReviewLevel.String(),
		"rules_fired":  d.RulesFired,
	}
	if d.Violation != nil {
		payload["reason"] = string(d.Violation.Reason)
		payload["detail"] = d.Violation.Detail
		payload["synthesized"] = d.Violation.Synthesized
	}

	event := domain.NewAuditEvent(domain.AuditGovernanceEvaluated, actor, c.UserID, c.Timestamp, payload)
	if err := s.audit.Append(ctx, event); err != nil {
		return domain.GovernanceDecision{}, fmt.Errorf("s.audit.Append -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return d, nil
}
