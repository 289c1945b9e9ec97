package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/repository/dao"
)

var (
	ErrAuctionNotFound       = dao.ErrAuctionNotFound
	ErrParticipationNotFound = dao.ErrParticipationNotFound
	ErrAlreadyParticipated   = dao.ErrAlreadyParticipated
	ErrRecognitionNotFound   = dao.ErrRecognitionNotFound
	ErrAlreadyEvaluated      = dao.ErrAlreadyEvaluated
)

type AuctionRepository struct {
	db    *gorm.DB
	dao   *dao.AuctionDAO
	recog *dao.RecognitionDAO
}

func NewAuctionRepository(db *gorm.DB) *AuctionRepository {
	return &AuctionRepository{
		db:    db,
		dao:   dao.NewAuctionDAO(db),
		recog: dao.NewRecognitionDAO(db),
	}
}

func (r *AuctionRepository) FindEvent(ctx context.Context, id string) (domain.AuctionEvent, error) {
	ev, err := r.dao.FindEvent(ctx, id)
	if err != nil {
		return domain.AuctionEvent{}, fmt.Errorf("r.dao.FindEvent -> %w", err)
	}
	return auctionDaoToDomain(ev), nil
}

func (r *AuctionRepository) FindParticipation(ctx context.Context, eventID, userID string) (domain.ParticipationRecord, error) {
	p, err := r.dao.FindParticipation(ctx, eventID, userID)
	if err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("r.dao.FindParticipation -> %w", err)
	}

	var tokenIDs []string
	if err = json.Unmarshal(p.TokenIDs, &tokenIDs); err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("json.Unmarshal -> %w", err)
	}

	return domain.ParticipationRecord{
		ID:           p.ID,
		EventID:      p.EventID,
		UserID:       p.UserID,
		Outcome:      domain.ParticipationOutcome(p.Outcome),
		StakedMC:     p.StakedMC,
		RandomFactor: p.RandomFactor,
		TokenIDs:     tokenIDs,
		CreatedAt:    p.CreatedAt,
	}, nil
}

func (r *AuctionRepository) FindRecognition(ctx context.Context, eventID, userID string) (domain.RecognitionEvaluation, error) {
	e, err := r.recog.Find(ctx, eventID, userID)
	if err != nil {
		return domain.RecognitionEvaluation{}, fmt.Errorf("r.recog.Find -> %w", err)
	}

	return domain.RecognitionEvaluation{
		ID: e.ID,
		Signal: domain.RecognitionSignal{
			EventID:      e.EventID,
			UserID:       e.UserID,
			Status:       domain.RecognitionStatus(e.Status),
			Reason:       domain.ReasonCode(e.Reason),
			RandomFactor: e.RandomFactor,
			Threshold:    e.Threshold,
		},
		EvaluatedBy: e.EvaluatedBy,
		EvaluatedAt: e.EvaluatedAt,
	}, nil
}

func (r *AuctionRepository) Atomic(ctx context.Context, fn func(tx AuctionTx) error) error {
	return atomically(ctx, r.db, func(tx *gormTx) error { return fn(tx) })
}

func (t *gormTx) InsertAuction(ctx context.Context, ev domain.AuctionEvent) error {
	_, err := t.auction.InsertEvent(ctx, dao.AuctionEvent{
		ID:             ev.ID,
		Name:           ev.Name,
		Status:         string(ev.Status),
		StartsAt:       ev.StartsAt,
		EndsAt:         ev.EndsAt,
		EntryCostMC:    ev.EntryCostMC,
		WinProbability: ev.WinProbability,
		CreatedBy:      ev.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("t.auction.InsertEvent -> %w", err)
	}
	return nil
}

func (t *gormTx) UpdateAuctionStatus(ctx context.Context, id string, from, to domain.AuctionStatus) error {
	if err := t.auction.UpdateStatus(ctx, id, string(from), string(to)); err != nil {
		return fmt.Errorf("t.auction.UpdateStatus -> %w", err)
	}
	return nil
}

func (t *gormTx) InsertParticipation(ctx context.Context, p domain.ParticipationRecord) error {
	tokenIDs, err := json.Marshal(p.TokenIDs)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	_, err = t.auction.InsertParticipation(ctx, dao.AuctionParticipation{
		ID:           p.ID,
		EventID:      p.EventID,
		UserID:       p.UserID,
		Outcome:      string(p.Outcome),
		StakedMC:     p.StakedMC,
		RandomFactor: p.RandomFactor,
		TokenIDs:     datatypes.JSON(tokenIDs),
		CreatedAt:    p.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("t.auction.InsertParticipation -> %w", err)
	}
	return nil
}

func (t *gormTx) InsertRecognition(ctx context.Context, e domain.RecognitionEvaluation) error {
	_, err := t.recog.Insert(ctx, dao.RecognitionEvaluation{
		ID:           e.ID,
		EventID:      e.Signal.EventID,
		UserID:       e.Signal.UserID,
		Status:       string(e.Signal.Status),
		Reason:       string(e.Signal.Reason),
		RandomFactor: e.Signal.RandomFactor,
		Threshold:    e.Signal.Threshold,
		EvaluatedBy:  e.EvaluatedBy,
		EvaluatedAt:  e.EvaluatedAt,
	})
	if err != nil {
		return fmt.Errorf("t.recog.Insert -> %w", err)
	}
	return nil
}

func auctionDaoToDomain(ev dao.AuctionEvent) domain.AuctionEvent {
	return domain.AuctionEvent{
		ID:             ev.ID,
		Name:           ev.Name,
		Status:         domain.AuctionStatus(ev.Status),
		StartsAt:       ev.StartsAt,
		EndsAt:         ev.EndsAt,
		EntryCostMC:    ev.EntryCostMC,
		WinProbability: ev.WinProbability,
		CreatedBy:      ev.CreatedBy,
	}
}
