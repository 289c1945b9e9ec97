package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/repository/dao"
)

var (
	ErrMCNotFound      = dao.ErrMCNotFound
	ErrStaleTransition = dao.ErrStaleTransition
)

type MCRepository struct {
	db  *gorm.DB
	dao *dao.MCDAO
}

func NewMCRepository(db *gorm.DB) *MCRepository {
	return &MCRepository{
		db:  db,
		dao: dao.NewMCDAO(db),
	}
}

func (r *MCRepository) FindByID(ctx context.Context, id string) (domain.MCRecord, error) {
	rec, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.MCRecord{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}
	return mcDaoToDomain(rec), nil
}

func (r *MCRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.MCRecord, error) {
	recs, err := r.dao.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByOwner -> %w", err)
	}

	tokens := make([]domain.MCRecord, len(recs))
	for i, rec := range recs {
		tokens[i] = mcDaoToDomain(rec)
	}
	return tokens, nil
}

func (r *MCRepository) Atomic(ctx context.Context, fn func(tx MCTx) error) error {
	return atomically(ctx, r.db, func(tx *gormTx) error { return fn(tx) })
}

func (t *gormTx) InsertMC(ctx context.Context, rec domain.MCRecord) error {
	if _, err := t.mc.Insert(ctx, mcDomainToDao(rec)); err != nil {
		return fmt.Errorf("t.mc.Insert -> %w", err)
	}
	return nil
}

func (t *gormTx) TransitionMC(ctx context.Context, rec domain.MCRecord, from domain.MCState) error {
	if err := t.mc.Transition(ctx, rec.ID, string(from), string(rec.LifecycleState), rec.IsFrozen); err != nil {
		return fmt.Errorf("t.mc.Transition -> %w", err)
	}
	return nil
}

func (t *gormTx) SpendTokens(ctx context.Context, ownerID string, ids []string, at time.Time) error {
	if err := t.mc.SpendTokens(ctx, ownerID, ids, at); err != nil {
		return fmt.Errorf("t.mc.SpendTokens -> %w", err)
	}
	return nil
}

func mcDomainToDao(m domain.MCRecord) dao.MCRecord {
	return dao.MCRecord{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		Amount:         m.Amount,
		IssuedAt:       m.IssuedAt,
		ExpiresAt:      m.ExpiresAt,
		IsFrozen:       m.IsFrozen,
		SourceType:     string(m.SourceType),
		SourceID:       m.SourceID,
		LifecycleState: string(m.LifecycleState),
		GrantedBy:      m.GrantedBy,
	}
}

func mcDaoToDomain(m dao.MCRecord) domain.MCRecord {
	return domain.MCRecord{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		Amount:         m.Amount,
		IssuedAt:       m.IssuedAt,
		ExpiresAt:      m.ExpiresAt,
		IsFrozen:       m.IsFrozen,
		SourceType:     domain.MCSourceType(m.SourceType),
		SourceID:       m.SourceID,
		LifecycleState: domain.MCState(m.LifecycleState),
		GrantedBy:      m.GrantedBy,
	}
}
