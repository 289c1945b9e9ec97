package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/repository/dao"
)

type GMCRepository struct {
	db  *gorm.DB
	dao *dao.GMCDAO
}

func NewGMCRepository(db *gorm.DB) *GMCRepository {
	return &GMCRepository{
		db:  db,
		dao: dao.NewGMCDAO(db),
	}
}

func (r *GMCRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.GMCRecord, error) {
	recs, err := r.dao.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByOwner -> %w", err)
	}

	out := make([]domain.GMCRecord, len(recs))
	for i, rec := range recs {
		out[i] = domain.GMCRecord{
			ID:            rec.ID,
			OwnerID:       rec.OwnerID,
			Amount:        rec.Amount,
			RecognizedAt:  rec.RecognizedAt,
			RecognizedBy:  rec.RecognizedBy,
			Category:      domain.GMCCategory(rec.Category),
			Justification: rec.Justification,
		}
	}
	return out, nil
}

func (r *GMCRepository) Atomic(ctx context.Context, fn func(tx GMCTx) error) error {
	return atomically(ctx, r.db, func(tx *gormTx) error { return fn(tx) })
}

func (t *gormTx) InsertGMC(ctx context.Context, rec domain.GMCRecord) error {
	_, err := t.gmc.Insert(ctx, dao.GMCRecord{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		Amount:        rec.Amount,
		RecognizedAt:  rec.RecognizedAt,
		RecognizedBy:  rec.RecognizedBy,
		Category:      string(rec.Category),
		Justification: rec.Justification,
	})
	if err != nil {
		return fmt.Errorf("t.gmc.Insert -> %w", err)
	}
	return nil
}
