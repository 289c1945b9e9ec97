package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrMCNotFound      = errors.New("mc record not found")
	ErrStaleTransition = errors.New("record changed since it was read")
)

type MCRecord struct {
	ID             string    `gorm:"primaryKey;size:32"`
	OwnerID        string    `gorm:"not null;index"`
	Amount         int64     `gorm:"not null;check:chk_mc_amount,amount > 0"`
	IssuedAt       time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null;check:chk_mc_ttl,expires_at >= issued_at + interval '30 days' AND expires_at <= issued_at + interval '365 days'"`
	IsFrozen       bool      `gorm:"not null;default:false"`
	SourceType     string    `gorm:"not null"`
	SourceID       string
	LifecycleState string `gorm:"not null;index"`
	GrantedBy      string `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (MCRecord) TableName() string {
	return "mc_records"
}

// BeforeDelete refuses deletes issued through gorm. A trigger covers raw SQL.
func (m *MCRecord) BeforeDelete(*gorm.DB) error {
	return ErrImmutableRecord
}

type MCDAO struct {
	db *gorm.DB
}

func NewMCDAO(db *gorm.DB) *MCDAO {
	return &MCDAO{
		db: db,
	}
}

func (d *MCDAO) Insert(ctx context.Context, rec MCRecord) (MCRecord, error) {
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return MCRecord{}, err
	}
	return rec, nil
}

func (d *MCDAO) FindByID(ctx context.Context, id string) (MCRecord, error) {
	var rec MCRecord

	result := d.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return MCRecord{}, ErrMCNotFound
		}

		return MCRecord{}, result.Error
	}

	return rec, nil
}

func (d *MCDAO) ListByOwner(ctx context.Context, ownerID string) ([]MCRecord, error) {
	var recs []MCRecord

	result := d.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("expires_at, id").
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}

	return recs, nil
}

// Transition applies the new state only if the row is still in state from.
func (d *MCDAO) Transition(ctx context.Context, id, from, to string, isFrozen bool) error {
	result := d.db.WithContext(ctx).
		Model(&MCRecord{}).
		Where("id = ? AND lifecycle_state = ?", id, from).
		Updates(map[string]any{
			"lifecycle_state": to,
			"is_frozen":       isFrozen,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// SpendTokens marks every listed token Spent, provided each one is still
// usable at the given time. Either all rows change or the call fails.
func (d *MCDAO) SpendTokens(ctx context.Context, ownerID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	result := d.db.WithContext(ctx).
		Model(&MCRecord{}).
		Where("id IN ? AND owner_id = ? AND lifecycle_state = ? AND is_frozen = false AND expires_at > ?",
			ids, ownerID, "Active", at).
		Update("lifecycle_state", "Spent")
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return ErrStaleTransition
	}
	return nil
}
