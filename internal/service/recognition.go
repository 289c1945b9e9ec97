package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/gmc"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/metrics"
	"github.com/vietanh2810/mc-economy/internal/pkg/random"
	"github.com/vietanh2810/mc-economy/internal/recognition"
	"github.com/vietanh2810/mc-economy/internal/repository"
)

type GMCRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.GMCRecord, error)
	Atomic(ctx context.Context, fn func(tx repository.GMCTx) error) error
}

// BridgeStore is the part of the auction store used by the bridge. It also
// keeps the settled signal of every participant.
type BridgeStore interface {
	FindEvent(ctx context.Context, id string) (domain.AuctionEvent, error)
	FindParticipation(ctx context.Context, eventID, userID string) (domain.ParticipationRecord, error)
	FindRecognition(ctx context.Context, eventID, userID string) (domain.RecognitionEvaluation, error)
	Atomic(ctx context.Context, fn func(tx repository.AuctionTx) error) error
}

type RecognitionService struct {
	gmcRepo  GMCRepository
	auctions BridgeStore
	audit    AuditLog
	registry *gmc.Registry
	identity identity.Classifier
	policy   recognition.Policy
	random   random.Source
	ids      IDGenerator
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRecognitionService(gmcRepo GMCRepository, auctions BridgeStore, audit AuditLog, classifier identity.Classifier,
	policy recognition.Policy, rnd random.Source, ids IDGenerator, m *metrics.Metrics) *RecognitionService {
	return &RecognitionService{
		gmcRepo:  gmcRepo,
		auctions: auctions,
		audit:    audit,
		registry: gmc.NewRegistry(classifier),
		identity: classifier,
		policy:   policy,
		random:   rnd,
		ids:      ids,
		metrics:  m,
		now:      time.Now,
	}
}

// EvaluateBridge runs the post-auction bridge for one participant. The first
// Eligible or NotEligible signal is settled together with its audit records
// and returned unchanged by every later call, so the random factor is drawn
// once per participant. Denied signals settle nothing; the bridge may run
// again once the auction has closed.
func (s *RecognitionService) EvaluateBridge(ctx context.Context, eventID, userID string, actor domain.Actor) (domain.RecognitionSignal, error) {
	now := s.now().UTC()

	if err := identity.RequireHuman(s.identity, actor.ID); err != nil {
		return domain.RecognitionSignal{}, deny(ctx, s.audit, s.metrics,
			domain.DeniedEvent(domain.AuditRecognitionDenied, actor, eventID, now, err, map[string]any{"user_id": userID}), err)
	}

	if sig, ok, err := s.settled(ctx, eventID, userID); err != nil || ok {
		return sig, err
	}

	var ev *domain.AuctionEvent
	found, err := s.auctions.FindEvent(ctx, eventID)
	switch {
	case err == nil:
		ev = &found
	case !errors.Is(err, ErrAuctionNotFound):
		return domain.RecognitionSignal{}, fmt.Errorf("s.auctions.FindEvent -> %w", err)
	}

	var entry *domain.ParticipationRecord
	if ev != nil {
		p, err := s.auctions.FindParticipation(ctx, eventID, userID)
		switch {
		case err == nil:
			entry = &p
		case !errors.Is(err, ErrParticipationNotFound):
			return domain.RecognitionSignal{}, fmt.Errorf("s.auctions.FindParticipation -> %w", err)
		}
	}

	factor, err := s.random.Float64()
	if err != nil {
		return domain.RecognitionSignal{}, fmt.Errorf("s.random.Float64 -> %w", err)
	}

	sig := recognition.Evaluate(s.policy, ev, entry, userID, factor)
	sig.EventID = eventID

	payload := func() map[string]any {
		p := map[string]any{
			"user_id":       userID,
			"status":        string(sig.Status),
			"random_factor": formatFactor(sig.RandomFactor),
			"threshold":     formatFactor(sig.Threshold),
			"min_stake":     s.policy.MinStake,
		}
		if sig.Reason != "" {
			p["reason"] = string(sig.Reason)
		}
		return p
	}

	if sig.Status == domain.RecognitionDenied {
		event := domain.NewAuditEvent(domain.AuditRecognitionDenied, actor, eventID, now, payload())
		if err = s.audit.Append(ctx, event); err != nil {
			return domain.RecognitionSignal{}, fmt.Errorf("s.audit.Append -> %w", err)
		}
		s.metrics.AuditAppended(event)
		return sig, nil
	}

	events := []domain.AuditEvent{domain.NewAuditEvent(domain.AuditRecognitionEvaluated, actor, eventID, now, payload())}
	if sig.Status == domain.RecognitionEligible {
		events = append(events, domain.NewAuditEvent(domain.AuditRecognitionFlagged, actor, userID, now, payload()))
	}

	err = s.auctions.Atomic(ctx, func(tx repository.AuctionTx) error {
		err := tx.InsertRecognition(ctx, domain.RecognitionEvaluation{
			ID:          s.ids.NewID(),
			Signal:      sig,
			EvaluatedBy: actor.ID,
			EvaluatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("tx.InsertRecognition -> %w", err)
		}
		return tx.AppendAudit(ctx, events...)
	})
	if errors.Is(err, repository.ErrAlreadyEvaluated) {
		// A concurrent call settled first; its signal wins.
		prior, ok, err := s.settled(ctx, eventID, userID)
		if err == nil && !ok {
			err = fmt.Errorf("recognition for %s/%s vanished after a unique collision", eventID, userID)
		}
		return prior, err
	}
	if err != nil {
		return domain.RecognitionSignal{}, fmt.Errorf("s.auctions.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(events...)

	zap.L().Info("recognition bridge evaluated",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("status", string(sig.Status)),
		zap.String("reason", string(sig.Reason)))

	return sig, nil
}

// settled returns the signal stored by an earlier evaluation, if any.
func (s *RecognitionService) settled(ctx context.Context, eventID, userID string) (domain.RecognitionSignal, bool, error) {
	e, err := s.auctions.FindRecognition(ctx, eventID, userID)
	if errors.Is(err, repository.ErrRecognitionNotFound) {
		return domain.RecognitionSignal{}, false, nil
	}
	if err != nil {
		return domain.RecognitionSignal{}, false, fmt.Errorf("s.auctions.FindRecognition -> %w", err)
	}

	sig := e.Signal
	sig.Replayed = true
	return sig, true, nil
}

type RecognizeInput struct {
	UserID        string
	Amount        int64
	Category      domain.GMCCategory
	Justification string
	RecognizedBy  domain.Actor
}

// Recognize creates a GMC on an explicit human action.
func (s *RecognitionService) Recognize(ctx context.Context, in RecognizeInput) (domain.GMCRecord, error) {
	now := s.now().UTC()

	rec, event, err := s.registry.Recognize(gmc.RecognizeRequest{
		ID:            s.ids.NewID(),
		UserID:        in.UserID,
		Amount:        in.Amount,
		Category:      in.Category,
		Justification: in.Justification,
		RecognizedBy:  in.RecognizedBy,
		RecognizedAt:  now,
	})
	if err != nil {
		return domain.GMCRecord{}, deny(ctx, s.audit, s.metrics,
			domain.DeniedEvent(domain.AuditGMCDenied, in.RecognizedBy, in.UserID, now, err, map[string]any{
				"amount":   in.Amount,
				"category": string(in.Category),
			}), err)
	}

	err = s.gmcRepo.Atomic(ctx, func(tx repository.GMCTx) error {
		if err := tx.InsertGMC(ctx, rec); err != nil {
			return fmt.Errorf("tx.InsertGMC -> %w", err)
		}
		return tx.AppendAudit(ctx, event)
	})
	if err != nil {
		return domain.GMCRecord{}, fmt.Errorf("s.gmcRepo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return rec, nil
}

func (s *RecognitionService) ListGMC(ctx context.Context, userID string) ([]domain.GMCRecord, error) {
	recs, err := s.gmcRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.gmcRepo.ListByOwner -> %w", err)
	}
	return recs, nil
}
