package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrItemNotFound            = errors.New("store item not found")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrPurchaseNotFound        = errors.New("purchase not found")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrPurchaseNotPending      = errors.New("purchase is no longer pending")
	ErrInsufficientBalance     = errors.New("wallet balance below price")
	ErrOutOfStock              = errors.New("item out of stock")
	ErrLimitReached            = errors.New("per-user purchase limit reached")
)

const purchaseKeyConstraint = "idx_store_purchases_key"

type Wallet struct {
	UserID    string `gorm:"primaryKey"`
	BalanceMC int64  `gorm:"not null;default:0;check:chk_wallet_balance,balance_mc >= 0"`
	UpdatedAt time.Time
}

type StoreItem struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	PriceMC      int64  `gorm:"not null;check:chk_item_price,price_mc > 0"`
	IsActive     bool   `gorm:"not null;default:true"`
	TracksStock  bool   `gorm:"not null;default:false"`
	Stock        int64  `gorm:"not null;default:0;check:chk_item_stock,stock >= 0"`
	PerUserLimit int64  `gorm:"not null;default:0;check:chk_item_limit,per_user_limit >= 0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type StorePurchase struct {
	ID             string `gorm:"primaryKey;size:32"`
	UserID         string `gorm:"not null;uniqueIndex:idx_store_purchases_key,priority:1"`
	IdempotencyKey string `gorm:"not null;uniqueIndex:idx_store_purchases_key,priority:2"`
	ItemID         string `gorm:"not null;index"`
	PriceMC        int64  `gorm:"not null;default:0"`
	Status         string `gorm:"not null"`
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PurchaseCounter backs the per-user limit with a predicate-guarded upsert.
type PurchaseCounter struct {
	UserID string `gorm:"primaryKey"`
	ItemID string `gorm:"primaryKey"`
	Count  int64  `gorm:"not null"`
}

type UserRestriction struct {
	UserID    string `gorm:"primaryKey"`
	Reason    string `gorm:"not null"`
	CreatedBy string `gorm:"not null"`
	CreatedAt time.Time
}

type StoreDAO struct {
	db *gorm.DB
}

func NewStoreDAO(db *gorm.DB) *StoreDAO {
	return &StoreDAO{
		db: db,
	}
}

func (d *StoreDAO) FindItem(ctx context.Context, id string) (StoreItem, error) {
	var item StoreItem

	result := d.db.WithContext(ctx).First(&item, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return StoreItem{}, ErrItemNotFound
		}

		return StoreItem{}, result.Error
	}

	return item, nil
}

func (d *StoreDAO) UpsertItem(ctx context.Context, item StoreItem) (StoreItem, error) {
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price_mc", "is_active", "tracks_stock", "stock", "per_user_limit", "updated_at"}),
		}).
		Create(&item)
	if result.Error != nil {
		return StoreItem{}, result.Error
	}

	return d.FindItem(ctx, item.ID)
}

func (d *StoreDAO) FindWallet(ctx context.Context, userID string) (Wallet, error) {
	var w Wallet

	result := d.db.WithContext(ctx).First(&w, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Wallet{}, ErrWalletNotFound
		}

		return Wallet{}, result.Error
	}

	return w, nil
}

func (d *StoreDAO) CreditWallet(ctx context.Context, userID string, amount int64, at time.Time) (Wallet, error) {
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance_mc": gorm.Expr("wallets.balance_mc + EXCLUDED.balance_mc"),
				"updated_at": at,
			}),
		}).
		Create(&Wallet{UserID: userID, BalanceMC: amount, UpdatedAt: at})
	if result.Error != nil {
		return Wallet{}, result.Error
	}

	return d.FindWallet(ctx, userID)
}

// DebitWallet subtracts amount only where the balance covers it. The affected
// row count is the concurrency signal; the balance is never read first.
func (d *StoreDAO) DebitWallet(ctx context.Context, userID string, amount int64, at time.Time) error {
	result := d.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("user_id = ? AND balance_mc >= ?", userID, amount).
		Updates(map[string]any{
			"balance_mc": gorm.Expr("balance_mc - ?", amount),
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (d *StoreDAO) DecrementStock(ctx context.Context, itemID string) error {
	result := d.db.WithContext(ctx).
		Model(&StoreItem{}).
		Where("id = ? AND stock > 0", itemID).
		Update("stock", gorm.Expr("stock - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutOfStock
	}
	return nil
}

// IncrementPurchaseCounter bumps the user's count for the item unless it has
// already reached limit.
func (d *StoreDAO) IncrementPurchaseCounter(ctx context.Context, userID, itemID string, limit int64) error {
	result := d.db.WithContext(ctx).Exec(`
		INSERT INTO purchase_counters (user_id, item_id, count) VALUES (?, ?, 1)
		ON CONFLICT (user_id, item_id) DO UPDATE SET count = purchase_counters.count + 1
		WHERE purchase_counters.count < ?`,
		userID, itemID, limit)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLimitReached
	}
	return nil
}

func (d *StoreDAO) FindPurchaseByKey(ctx context.Context, userID, key string) (StorePurchase, error) {
	var p StorePurchase

	result := d.db.WithContext(ctx).First(&p, "user_id = ? AND idempotency_key = ?", userID, key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return StorePurchase{}, ErrPurchaseNotFound
		}

		return StorePurchase{}, result.Error
	}

	return p, nil
}

func (d *StoreDAO) InsertPurchase(ctx context.Context, p StorePurchase) (StorePurchase, error) {
	if err := d.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err, purchaseKeyConstraint) {
			return StorePurchase{}, ErrDuplicateIdempotencyKey
		}
		return StorePurchase{}, err
	}
	return p, nil
}

// FinishPurchase moves a pending purchase to a terminal status. A purchase
// that already left PendingApproval is never touched again.
func (d *StoreDAO) FinishPurchase(ctx context.Context, id, status string, price int64, failureReason string) error {
	updates := map[string]any{
		"status":         status,
		"failure_reason": failureReason,
	}
	if price > 0 {
		updates["price_mc"] = price
	}

	result := d.db.WithContext(ctx).
		Model(&StorePurchase{}).
		Where("id = ? AND status = ?", id, "PendingApproval").
		Updates(updates)
	if result.Error != nil {
		return mapWriteErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPurchaseNotPending
	}
	return nil
}

func (d *StoreDAO) IsRestricted(ctx context.Context, userID string) (bool, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&UserRestriction{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *StoreDAO) SetRestriction(ctx context.Context, r UserRestriction) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "created_by", "created_at"}),
		}).
		Create(&r).Error
}

func (d *StoreDAO) ClearRestriction(ctx context.Context, userID string) (bool, error) {
	result := d.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserRestriction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
