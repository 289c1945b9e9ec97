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
	ErrItemNotFound            = dao.ErrItemNotFound
	ErrWalletNotFound          = dao.ErrWalletNotFound
	ErrPurchaseNotFound        = dao.ErrPurchaseNotFound
	ErrDuplicateIdempotencyKey = dao.ErrDuplicateIdempotencyKey
	ErrPurchaseNotPending      = dao.ErrPurchaseNotPending
	ErrInsufficientBalance     = dao.ErrInsufficientBalance
	ErrOutOfStock              = dao.ErrOutOfStock
	ErrLimitReached            = dao.ErrLimitReached
)

type StoreRepository struct {
	db  *gorm.DB
	dao *dao.StoreDAO
}

func NewStoreRepository(db *gorm.DB) *StoreRepository {
	return &StoreRepository{
		db:  db,
		dao: dao.NewStoreDAO(db),
	}
}

func (r *StoreRepository) FindItem(ctx context.Context, itemID string) (domain.StoreItem, error) {
	item, err := r.dao.FindItem(ctx, itemID)
	if err != nil {
		return domain.StoreItem{}, fmt.Errorf("r.dao.FindItem -> %w", err)
	}
	return itemDaoToDomain(item), nil
}

func (r *StoreRepository) FindWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	w, err := r.dao.FindWallet(ctx, userID)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("r.dao.FindWallet -> %w", err)
	}
	return walletDaoToDomain(w), nil
}

func (r *StoreRepository) FindPurchaseByKey(ctx context.Context, userID, key string) (domain.StorePurchase, error) {
	p, err := r.dao.FindPurchaseByKey(ctx, userID, key)
	if err != nil {
		return domain.StorePurchase{}, fmt.Errorf("r.dao.FindPurchaseByKey -> %w", err)
	}
	return purchaseDaoToDomain(p), nil
}

// ReservePurchase inserts the pending row that claims (userID, idempotencyKey).
// It runs in its own statement so the claim survives a failed purchase.
func (r *StoreRepository) ReservePurchase(ctx context.Context, p domain.StorePurchase) (domain.StorePurchase, error) {
	row, err := r.dao.InsertPurchase(ctx, dao.StorePurchase{
		ID:             p.ID,
		UserID:         p.UserID,
		IdempotencyKey: p.IdempotencyKey,
		ItemID:         p.ItemID,
		PriceMC:        p.PriceMC,
		Status:         string(domain.PurchasePending),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.CreatedAt,
	})
	if err != nil {
		return domain.StorePurchase{}, fmt.Errorf("r.dao.InsertPurchase -> %w", err)
	}
	return purchaseDaoToDomain(row), nil
}

// MarkRolledBack is the reconciliation write issued after a failed purchase
// transaction.
func (r *StoreRepository) MarkRolledBack(ctx context.Context, purchaseID string, reason domain.ReasonCode) error {
	if err := r.dao.FinishPurchase(ctx, purchaseID, string(domain.PurchaseRolledBack), 0, string(reason)); err != nil {
		return fmt.Errorf("r.dao.FinishPurchase -> %w", err)
	}
	return nil
}

func (r *StoreRepository) IsRestricted(ctx context.Context, userID string) (bool, error) {
	restricted, err := r.dao.IsRestricted(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("r.dao.IsRestricted -> %w", err)
	}
	return restricted, nil
}

func (r *StoreRepository) Atomic(ctx context.Context, fn func(tx StoreTx) error) error {
	return atomically(ctx, r.db, func(tx *gormTx) error { return fn(tx) })
}

func (t *gormTx) FindItem(ctx context.Context, itemID string) (domain.StoreItem, error) {
	item, err := t.store.FindItem(ctx, itemID)
	if err != nil {
		return domain.StoreItem{}, fmt.Errorf("t.store.FindItem -> %w", err)
	}
	return itemDaoToDomain(item), nil
}

func (t *gormTx) IncrementPurchaseCounter(ctx context.Context, userID, itemID string, limit int64) error {
	if err := t.store.IncrementPurchaseCounter(ctx, userID, itemID, limit); err != nil {
		return fmt.Errorf("t.store.IncrementPurchaseCounter -> %w", err)
	}
	return nil
}

func (t *gormTx) DebitWallet(ctx context.Context, userID string, amount int64, at time.Time) error {
	if err := t.store.DebitWallet(ctx, userID, amount, at); err != nil {
		return fmt.Errorf("t.store.DebitWallet -> %w", err)
	}
	return nil
}

func (t *gormTx) DecrementStock(ctx context.Context, itemID string) error {
	if err := t.store.DecrementStock(ctx, itemID); err != nil {
		return fmt.Errorf("t.store.DecrementStock -> %w", err)
	}
	return nil
}

func (t *gormTx) CompletePurchase(ctx context.Context, purchaseID string, price int64) error {
	if err := t.store.FinishPurchase(ctx, purchaseID, string(domain.PurchaseCompleted), price, ""); err != nil {
		return fmt.Errorf("t.store.FinishPurchase -> %w", err)
	}
	return nil
}

func (t *gormTx) CreditWallet(ctx context.Context, userID string, amount int64, at time.Time) (domain.Wallet, error) {
	w, err := t.store.CreditWallet(ctx, userID, amount, at)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("t.store.CreditWallet -> %w", err)
	}
	return walletDaoToDomain(w), nil
}

func (t *gormTx) UpsertItem(ctx context.Context, item domain.StoreItem) (domain.StoreItem, error) {
	row, err := t.store.UpsertItem(ctx, dao.StoreItem{
		ID:           item.ID,
		Name:         item.Name,
		PriceMC:      item.PriceMC,
		IsActive:     item.IsActive,
		TracksStock:  item.TracksStock,
		Stock:        item.Stock,
		PerUserLimit: item.PerUserLimit,
	})
	if err != nil {
		return domain.StoreItem{}, fmt.Errorf("t.store.UpsertItem -> %w", err)
	}
	return itemDaoToDomain(row), nil
}

func (t *gormTx) SetRestriction(ctx context.Context, r domain.UserRestriction) error {
	err := t.store.SetRestriction(ctx, dao.UserRestriction{
		UserID:    r.UserID,
		Reason:    r.Reason,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("t.store.SetRestriction -> %w", err)
	}
	return nil
}

func (t *gormTx) ClearRestriction(ctx context.Context, userID string) (bool, error) {
	cleared, err := t.store.ClearRestriction(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("t.store.ClearRestriction -> %w", err)
	}
	return cleared, nil
}

func itemDaoToDomain(i dao.StoreItem) domain.StoreItem {
	return domain.StoreItem{
		ID:           i.ID,
		Name:         i.Name,
		PriceMC:      i.PriceMC,
		IsActive:     i.IsActive,
		TracksStock:  i.TracksStock,
		Stock:        i.Stock,
		PerUserLimit: i.PerUserLimit,
	}
}

func walletDaoToDomain(w dao.Wallet) domain.Wallet {
	return domain.Wallet{
		UserID:    w.UserID,
		BalanceMC: w.BalanceMC,
		UpdatedAt: w.UpdatedAt,
	}
}

func purchaseDaoToDomain(p dao.StorePurchase) domain.StorePurchase {
	return domain.StorePurchase{
		ID:             p.ID,
		UserID:         p.UserID,
		ItemID:         p.ItemID,
		PriceMC:        p.PriceMC,
		Status:         domain.PurchaseStatus(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
