package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/auction"
	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/metrics"
	"github.com/vietanh2810/mc-economy/internal/pkg/random"
	"github.com/vietanh2810/mc-economy/internal/repository"
)

var (
	ErrAuctionNotFound       = repository.ErrAuctionNotFound
	ErrParticipationNotFound = repository.ErrParticipationNotFound
)

type AuctionRepository interface {
	FindEvent(ctx context.Context, id string) (domain.AuctionEvent, error)
	FindParticipation(ctx context.Context, eventID, userID string) (domain.ParticipationRecord, error)
	Atomic(ctx context.Context, fn func(tx repository.AuctionTx) error) error
}

// AccessChecker supplies the store-access decision that gates participation.
type AccessChecker interface {
	AccessDecision(ctx context.Context, userID string) (domain.EligibilityDecision, error)
}

type AuctionService struct {
	repo     AuctionRepository
	tokens   TokenReader
	access   AccessChecker
	audit    AuditLog
	engine   *auction.Engine
	identity identity.Classifier
	random   random.Source
	ids      IDGenerator
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAuctionService(repo AuctionRepository, tokens TokenReader, access AccessChecker, audit AuditLog,
	classifier identity.Classifier, rnd random.Source, ids IDGenerator, m *metrics.Metrics) *AuctionService {
	return &AuctionService{
		repo:     repo,
		tokens:   tokens,
		access:   access,
		audit:    audit,
		engine:   auction.NewEngine(classifier),
		identity: classifier,
		random:   rnd,
		ids:      ids,
		metrics:  m,
		now:      time.Now,
	}
}

type ScheduleInput struct {
	Name           string
	StartsAt       time.Time
	EndsAt         time.Time
	EntryCostMC    int64
	WinProbability float64
	Actor          domain.Actor
}

func (s *AuctionService) Schedule(ctx context.Context, in ScheduleInput) (domain.AuctionEvent, error) {
	now := s.now().UTC()

	ch, err := s.engine.Schedule(auction.ScheduleRequest{
		ID:             s.ids.NewID(),
		Name:           in.Name,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		EntryCostMC:    in.EntryCostMC,
		WinProbability: in.WinProbability,
		Actor:          in.Actor,
	}, now)
	if err != nil {
		return domain.AuctionEvent{}, s.denyAdmin(ctx, "schedule", in.Actor, "", now, err)
	}

	err = s.repo.Atomic(ctx, func(tx repository.AuctionTx) error {
		if err := tx.InsertAuction(ctx, ch.Event); err != nil {
			return fmt.Errorf("tx.InsertAuction -> %w", err)
		}
		return tx.AppendAudit(ctx, ch.Audit)
	})
	if err != nil {
		return domain.AuctionEvent{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(ch.Audit)

	return ch.Event, nil
}

func (s *AuctionService) Open(ctx context.Context, id string, actor domain.Actor) (domain.AuctionEvent, error) {
	return s.transition(ctx, "open", id, actor, func(ev domain.AuctionEvent, now time.Time) (auction.Change, error) {
		return s.engine.Open(ev, actor, now)
	})
}

func (s *AuctionService) Close(ctx context.Context, id string, actor domain.Actor) (domain.AuctionEvent, error) {
	return s.transition(ctx, "close", id, actor, func(ev domain.AuctionEvent, now time.Time) (auction.Change, error) {
		return s.engine.Close(ev, actor, now)
	})
}

func (s *AuctionService) Cancel(ctx context.Context, id string, actor domain.Actor, reason string) (domain.AuctionEvent, error) {
	return s.transition(ctx, "cancel", id, actor, func(ev domain.AuctionEvent, now time.Time) (auction.Change, error) {
		return s.engine.Cancel(ev, actor, now, reason)
	})
}

func (s *AuctionService) transition(ctx context.Context, op, id string, actor domain.Actor,
	apply func(domain.AuctionEvent, time.Time) (auction.Change, error)) (domain.AuctionEvent, error) {
	now := s.now().UTC()

	ev, err := s.repo.FindEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return domain.AuctionEvent{}, s.denyAdmin(ctx, op, actor, id, now,
				domain.NewViolation(domain.ReasonAuctionNotFound, "auction %s not found", id))
		}
		return domain.AuctionEvent{}, fmt.Errorf("s.repo.FindEvent -> %w", err)
	}

	ch, err := apply(ev, now)
	if err != nil {
		return domain.AuctionEvent{}, s.denyAdmin(ctx, op, actor, id, now, err)
	}

	err = s.repo.Atomic(ctx, func(tx repository.AuctionTx) error {
		if err := tx.UpdateAuctionStatus(ctx, id, ev.Status, ch.Event.Status); err != nil {
			return fmt.Errorf("tx.UpdateAuctionStatus -> %w", err)
		}
		return tx.AppendAudit(ctx, ch.Audit)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return domain.AuctionEvent{}, s.denyAdmin(ctx, op, actor, id, now,
				domain.NewViolation(domain.ReasonStaleTransition, "auction %s changed while applying %s", id, op))
		}
		return domain.AuctionEvent{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(ch.Audit)

	zap.L().Info("auction status changed",
		zap.String("auction_id", id),
		zap.String("from", string(ev.Status)),
		zap.String("to", string(ch.Event.Status)),
		zap.String("actor_id", actor.ID))

	return ch.Event, nil
}

func (s *AuctionService) denyAdmin(ctx context.Context, op string, actor domain.Actor, subject string, now time.Time, err error) error {
	return deny(ctx, s.audit, s.metrics,
		domain.DeniedEvent(domain.AuditAuctionDenied, actor, subject, now, err, map[string]any{"operation": op}), err)
}

type ParticipateInput struct {
	EventID  string
	UserID   string
	TokenIDs []string
	Actor    domain.Actor
}

// Participate enters a user into an active auction. The random factor is
// drawn here, once, and recorded verbatim whatever the outcome.
func (s *AuctionService) Participate(ctx context.Context, in ParticipateInput) (domain.ParticipationRecord, error) {
	now := s.now().UTC()
	factor := 0.0
	denied := func(err error) error {
		s.metrics.Participation(domain.OutcomeDenied, domain.ReasonOf(err))
		return deny(ctx, s.audit, s.metrics,
			domain.DeniedEvent(domain.AuditParticipationDenied, in.Actor, in.EventID, now, err, map[string]any{
				"user_id":       in.UserID,
				"token_ids":     in.TokenIDs,
				"random_factor": formatFactor(factor),
			}), err)
	}

	if err := identity.RequireHuman(s.identity, in.Actor.ID); err != nil {
		return domain.ParticipationRecord{}, denied(err)
	}

	ev, err := s.repo.FindEvent(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return domain.ParticipationRecord{}, denied(domain.NewViolation(domain.ReasonAuctionNotFound, "auction %s not found", in.EventID))
		}
		return domain.ParticipationRecord{}, fmt.Errorf("s.repo.FindEvent -> %w", err)
	}

	already := true
	if _, err = s.repo.FindParticipation(ctx, in.EventID, in.UserID); err != nil {
		if !errors.Is(err, ErrParticipationNotFound) {
			return domain.ParticipationRecord{}, fmt.Errorf("s.repo.FindParticipation -> %w", err)
		}
		already = false
	}

	access, err := s.access.AccessDecision(ctx, in.UserID)
	if err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("s.access.AccessDecision -> %w", err)
	}

	snap, err := snapshot(ctx, s.tokens, in.UserID, now)
	if err != nil {
		return domain.ParticipationRecord{}, err
	}

	if factor, err = s.random.Float64(); err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("s.random.Float64 -> %w", err)
	}

	decision := auction.Participate(
		domain.AuctionContext{Event: ev, EvaluatedAt: now, RandomFactor: factor},
		domain.Participant{UserID: in.UserID, TokenIDs: in.TokenIDs, Tokens: snap.Tokens, AlreadyParticipated: already},
		access,
	)
	if decision.IsDenied() {
		return domain.ParticipationRecord{}, denied(domain.NewViolation(decision.Reason, "participation in %s refused", in.EventID))
	}

	rec := domain.ParticipationRecord{
		ID:           s.ids.NewID(),
		EventID:      ev.ID,
		UserID:       in.UserID,
		Outcome:      decision.Outcome,
		StakedMC:     decision.StakedMC,
		RandomFactor: decision.RandomFactor,
		TokenIDs:     decision.SpentTokenIDs,
		CreatedAt:    now,
	}

	events := make([]domain.AuditEvent, 0, len(rec.TokenIDs)+1)
	for _, id := range rec.TokenIDs {
		events = append(events, domain.NewAuditEvent(domain.AuditMCSpent, in.Actor, id, now, map[string]any{
			"from":      string(domain.MCActive),
			"to":        string(domain.MCSpent),
			"reference": "auction:" + ev.ID,
		}))
	}
	events = append(events, domain.NewAuditEvent(domain.AuditAuctionParticipated, in.Actor, ev.ID, now, map[string]any{
		"participation_id": rec.ID,
		"user_id":          rec.UserID,
		"outcome":          string(rec.Outcome),
		"staked_mc":        rec.StakedMC,
		"entry_cost_mc":    ev.EntryCostMC,
		"win_probability":  ev.WinProbability,
		"random_factor":    formatFactor(rec.RandomFactor),
		"token_ids":        rec.TokenIDs,
	}))

	err = s.repo.Atomic(ctx, func(tx repository.AuctionTx) error {
		if err := tx.SpendTokens(ctx, in.UserID, rec.TokenIDs, now); err != nil {
			return fmt.Errorf("tx.SpendTokens -> %w", err)
		}
		if err := tx.InsertParticipation(ctx, rec); err != nil {
			return fmt.Errorf("tx.InsertParticipation -> %w", err)
		}
		return tx.AppendAudit(ctx, events...)
	})
	switch {
	case errors.Is(err, repository.ErrStaleTransition):
		return domain.ParticipationRecord{}, denied(domain.NewViolation(domain.ReasonStaleTransition, "staked tokens changed during entry"))
	case errors.Is(err, repository.ErrAlreadyParticipated):
		return domain.ParticipationRecord{}, denied(domain.NewViolation(domain.ReasonAlreadyParticipated, "user %s already entered %s", in.UserID, ev.ID))
	case err != nil:
		return domain.ParticipationRecord{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}

	s.metrics.AuditAppended(events...)
	s.metrics.Participation(rec.Outcome, "")

	return rec, nil
}

// formatFactor keeps every bit of the factor so that a replay reproduces the
// same outcome.
func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
