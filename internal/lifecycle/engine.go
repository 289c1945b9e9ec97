// Package lifecycle is the MC state machine. It validates and computes
// transitions over MC records but never persists them; the caller stores the
// returned record and its audit event together.
package lifecycle

import (
	"strings"
	"time"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
)

type Engine struct {
	identity identity.Classifier
}

func NewEngine(classifier identity.Classifier) *Engine {
	return &Engine{identity: classifier}
}

// GrantRequest carries everything needed to create a token. ExpiresAt is a
// pointer so that a missing expiry is distinguishable from the zero time.
type GrantRequest struct {
	ID         string
	OwnerID    string
	Amount     int64
	IssuedAt   time.Time
	ExpiresAt  *time.Time
	SourceType domain.MCSourceType
	SourceID   string
	Actor      domain.Actor
}

// Transition is a successfully computed state change and the single audit
// record describing it.
type Transition struct {
	Record   domain.MCRecord
	Previous domain.MCState
	Audit    domain.AuditEvent
}

func (e *Engine) Grant(req GrantRequest) (Transition, error) {
	if err := identity.RequireHuman(e.identity, req.Actor.ID); err != nil {
		return Transition{}, err
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return Transition{}, domain.NewViolation(domain.ReasonMissingOwner, "owner is required")
	}
	if req.Amount <= 0 {
		return Transition{}, domain.NewViolation(domain.ReasonInvalidAmount, "amount must be positive, got %d", req.Amount)
	}
	if !req.SourceType.IsValid() {
		return Transition{}, domain.NewViolation(domain.ReasonInvalidSource, "source %q is not an allowed MC source", req.SourceType)
	}
	if req.ExpiresAt == nil || req.ExpiresAt.IsZero() {
		return Transition{}, domain.NewViolation(domain.ReasonMissingExpiry, "expiresAt is mandatory")
	}
	if err := ValidateTTL(req.IssuedAt, *req.ExpiresAt); err != nil {
		return Transition{}, err
	}

	mc := domain.MCRecord{
		ID:             req.ID,
		OwnerID:        req.OwnerID,
		Amount:         req.Amount,
		IssuedAt:       req.IssuedAt,
		ExpiresAt:      *req.ExpiresAt,
		SourceType:     req.SourceType,
		SourceID:       req.SourceID,
		LifecycleState: domain.MCActive,
		GrantedBy:      req.Actor.ID,
	}

	return Transition{
		Record: mc,
		Audit: domain.NewAuditEvent(domain.AuditMCGranted, req.Actor, mc.ID, req.IssuedAt, map[string]any{
			"owner_id":    mc.OwnerID,
			"amount":      mc.Amount,
			"issued_at":   mc.IssuedAt,
			"expires_at":  mc.ExpiresAt,
			"source_type": string(mc.SourceType),
			"source_id":   mc.SourceID,
			"to":          string(domain.MCActive),
		}),
	}, nil
}

// ValidateTTL enforces 30 <= expiresAt-issuedAt <= 365 days.
func ValidateTTL(issuedAt, expiresAt time.Time) error {
	ttl := expiresAt.Sub(issuedAt)
	if ttl < domain.MinMCTTL || ttl > domain.MaxMCTTL {
		return domain.NewViolation(domain.ReasonInvalidTTL, "ttl of %.1f days is outside [30, 365]", ttl.Hours()/24)
	}
	return nil
}

func (e *Engine) Freeze(mc domain.MCRecord, actor domain.Actor, now time.Time) (Transition, error) {
	if err := e.precheck(mc, actor); err != nil {
		return Transition{}, err
	}
	if mc.LifecycleState != domain.MCActive {
		return Transition{}, domain.NewViolation(domain.ReasonInvalidState, "cannot freeze token %s in state %s", mc.ID, mc.LifecycleState)
	}
	if mc.IsExpiredAt(now) {
		return Transition{}, domain.NewViolation(domain.ReasonTokenExpired, "token %s expired at %s", mc.ID, mc.ExpiresAt.Format(time.RFC3339))
	}

	next := mc
	next.LifecycleState = domain.MCFrozen
	next.IsFrozen = true
	return e.transition(domain.AuditMCFrozen, mc, next, actor, now, nil), nil
}

func (e *Engine) Unfreeze(mc domain.MCRecord, actor domain.Actor, now time.Time) (Transition, error) {
	if err := e.precheck(mc, actor); err != nil {
		return Transition{}, err
	}
	if mc.LifecycleState != domain.MCFrozen {
		return Transition{}, domain.NewViolation(domain.ReasonInvalidState, "cannot unfreeze token %s in state %s", mc.ID, mc.LifecycleState)
	}
	if mc.IsExpiredAt(now) {
		return Transition{}, domain.NewViolation(domain.ReasonTokenExpired, "token %s expired at %s and must be expired instead", mc.ID, mc.ExpiresAt.Format(time.RFC3339))
	}

	next := mc
	next.LifecycleState = domain.MCActive
	next.IsFrozen = false
	return e.transition(domain.AuditMCUnfrozen, mc, next, actor, now, nil), nil
}

// Spend consumes a token. reference names what the token was spent on.
func (e *Engine) Spend(mc domain.MCRecord, actor domain.Actor, now time.Time, reference string) (Transition, error) {
	if err := e.precheck(mc, actor); err != nil {
		return Transition{}, err
	}
	if mc.LifecycleState == domain.MCFrozen || mc.IsFrozen {
		return Transition{}, domain.NewViolation(domain.ReasonTokenFrozen, "token %s is frozen", mc.ID)
	}
	if mc.IsExpiredAt(now) {
		return Transition{}, domain.NewViolation(domain.ReasonTokenExpired, "token %s expired at %s", mc.ID, mc.ExpiresAt.Format(time.RFC3339))
	}

	next := mc
	next.LifecycleState = domain.MCSpent
	return e.transition(domain.AuditMCSpent, mc, next, actor, now, map[string]any{"reference": reference}), nil
}

func (e *Engine) Expire(mc domain.MCRecord, actor domain.Actor, now time.Time) (Transition, error) {
	if err := e.precheck(mc, actor); err != nil {
		return Transition{}, err
	}
	if now.Before(mc.ExpiresAt) {
		return Transition{}, domain.NewViolation(domain.ReasonNotYetExpired, "token %s expires at %s", mc.ID, mc.ExpiresAt.Format(time.RFC3339))
	}

	next := mc
	next.LifecycleState = domain.MCExpired
	return e.transition(domain.AuditMCExpired, mc, next, actor, now, nil), nil
}

func (e *Engine) precheck(mc domain.MCRecord, actor domain.Actor) error {
	if err := identity.RequireHuman(e.identity, actor.ID); err != nil {
		return err
	}
	if mc.LifecycleState.IsTerminal() {
		return domain.NewViolation(domain.ReasonTerminalState, "token %s is %s", mc.ID, mc.LifecycleState)
	}
	return nil
}

func (e *Engine) transition(eventType domain.AuditEventType, prev, next domain.MCRecord, actor domain.Actor, now time.Time, extra map[string]any) Transition {
	payload := map[string]any{
		"owner_id": next.OwnerID,
		"amount":   next.Amount,
		"from":     string(prev.LifecycleState),
		"to":       string(next.LifecycleState),
	}
	for k, v := range extra {
		payload[k] = v
	}

	return Transition{
		Record:   next,
		Previous: prev.LifecycleState,
		Audit:    domain.NewAuditEvent(eventType, actor, next.ID, now, payload),
	}
}
