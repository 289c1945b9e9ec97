package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/lifecycle"
	"github.com/vietanh2810/mc-economy/internal/metrics"
	"github.com/vietanh2810/mc-economy/internal/repository"
)

type MCRepository interface {
	FindByID(ctx context.Context, id string) (domain.MCRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.MCRecord, error)
	Atomic(ctx context.Context, fn func(tx repository.MCTx) error) error
}

type MCService struct {
	repo    MCRepository
	audit   AuditLog
	engine  *lifecycle.Engine
	ids     IDGenerator
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMCService(repo MCRepository, audit AuditLog, engine *lifecycle.Engine, ids IDGenerator, m *metrics.Metrics) *MCService {
	return &MCService{
		repo:    repo,
		audit:   audit,
		engine:  engine,
		ids:     ids,
		metrics: m,
		now:     time.Now,
	}
}

type GrantInput struct {
	OwnerID    string
	Amount     int64
	ExpiresAt  *time.Time
	SourceType domain.MCSourceType
	SourceID   string
	Actor      domain.Actor
}

func (s *MCService) Grant(ctx context.Context, in GrantInput) (domain.MCRecord, error) {
	now := s.now().UTC()

	tr, err := s.engine.Grant(lifecycle.GrantRequest{
		ID:         s.ids.NewID(),
		OwnerID:    in.OwnerID,
		Amount:     in.Amount,
		IssuedAt:   now,
		ExpiresAt:  in.ExpiresAt,
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		Actor:      in.Actor,
	})
	if err != nil {
		return domain.MCRecord{}, deny(ctx, s.audit, s.metrics,
			domain.DeniedEvent(domain.AuditMCDenied, in.Actor, in.OwnerID, now, err, map[string]any{
				"operation": "grant",
				"amount":    in.Amount,
			}), err)
	}

	err = s.repo.Atomic(ctx, func(tx repository.MCTx) error {
		if err := tx.InsertMC(ctx, tr.Record); err != nil {
			return fmt.Errorf("tx.InsertMC -> %w", err)
		}
		return tx.AppendAudit(ctx, tr.Audit)
	})
	if err != nil {
		return domain.MCRecord{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(tr.Audit)

	zap.L().Info("mc granted",
		zap.String("mc_id", tr.Record.ID),
		zap.String("owner_id", tr.Record.OwnerID),
		zap.Int64("amount", tr.Record.Amount),
		zap.String("actor_id", in.Actor.ID))

	return tr.Record, nil
}

func (s *MCService) Freeze(ctx context.Context, id string, actor domain.Actor) (domain.MCRecord, error) {
	return s.apply(ctx, "freeze", id, actor, func(mc domain.MCRecord, now time.Time) (lifecycle.Transition, error) {
		return s.engine.Freeze(mc, actor, now)
	})
}

func (s *MCService) Unfreeze(ctx context.Context, id string, actor domain.Actor) (domain.MCRecord, error) {
	return s.apply(ctx, "unfreeze", id, actor, func(mc domain.MCRecord, now time.Time) (lifecycle.Transition, error) {
		return s.engine.Unfreeze(mc, actor, now)
	})
}

func (s *MCService) Spend(ctx context.Context, id string, actor domain.Actor, reference string) (domain.MCRecord, error) {
	return s.apply(ctx, "spend", id, actor, func(mc domain.MCRecord, now time.Time) (lifecycle.Transition, error) {
		return s.engine.Spend(mc, actor, now, reference)
	})
}

func (s *MCService) Expire(ctx context.Context, id string, actor domain.Actor) (domain.MCRecord, error) {
	return s.apply(ctx, "expire", id, actor, func(mc domain.MCRecord, now time.Time) (lifecycle.Transition, error) {
		return s.engine.Expire(mc, actor, now)
	})
}

// apply runs guard, transition and persistence for one existing token. The
// update is conditional on the state that was read, so a concurrent change
// surfaces as StaleTransition instead of being overwritten.
func (s *MCService) apply(ctx context.Context, op, id string, actor domain.Actor,
	transition func(domain.MCRecord, time.Time) (lifecycle.Transition, error)) (domain.MCRecord, error) {
	now := s.now().UTC()
	denied := func(err error) error {
		return deny(ctx, s.audit, s.metrics,
			domain.DeniedEvent(domain.AuditMCDenied, actor, id, now, err, map[string]any{"operation": op}), err)
	}

	mc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMCNotFound) {
			return domain.MCRecord{}, denied(domain.NewViolation(domain.ReasonMCNotFound, "mc %s not found", id))
		}
		return domain.MCRecord{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	tr, err := transition(mc, now)
	if err != nil {
		return domain.MCRecord{}, denied(err)
	}

	err = s.repo.Atomic(ctx, func(tx repository.MCTx) error {
		if err := tx.TransitionMC(ctx, tr.Record, tr.Previous); err != nil {
			return fmt.Errorf("tx.TransitionMC -> %w", err)
		}
		return tx.AppendAudit(ctx, tr.Audit)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return domain.MCRecord{}, denied(domain.NewViolation(domain.ReasonStaleTransition, "mc %s changed while applying %s", id, op))
		}
		return domain.MCRecord{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(tr.Audit)

	return tr.Record, nil
}

func (s *MCService) ListByOwner(ctx context.Context, ownerID string) ([]domain.MCRecord, error) {
	tokens, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.ListByOwner -> %w", err)
	}
	return tokens, nil
}

func (s *MCService) Summary(ctx context.Context, ownerID string) (domain.MCSummary, error) {
	tokens, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return domain.MCSummary{}, err
	}
	return domain.SummarizeMC(ownerID, tokens, s.now().UTC()), nil
}
