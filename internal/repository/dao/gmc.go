package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type GMCRecord struct {
	ID            string    `gorm:"primaryKey;size:32"`
	OwnerID       string    `gorm:"not null;index"`
	Amount        int64     `gorm:"not null;check:chk_gmc_amount,amount > 0"`
	RecognizedAt  time.Time `gorm:"not null"`
	RecognizedBy  string    `gorm:"not null"`
	Category      string    `gorm:"not null"`
	Justification string    `gorm:"not null;check:chk_gmc_justification,char_length(justification) >= 50"`
	CreatedAt     time.Time
}

func (GMCRecord) TableName() string {
	return "gmc_records"
}

func (g *GMCRecord) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRecord
}

func (g *GMCRecord) BeforeDelete(*gorm.DB) error {
	return ErrImmutableRecord
}

type GMCDAO struct {
	db *gorm.DB
}

func NewGMCDAO(db *gorm.DB) *GMCDAO {
	return &GMCDAO{
		db: db,
	}
}

func (d *GMCDAO) Insert(ctx context.Context, rec GMCRecord) (GMCRecord, error) {
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return GMCRecord{}, mapWriteErr(err)
	}
	return rec, nil
}

func (d *GMCDAO) ListByOwner(ctx context.Context, ownerID string) ([]GMCRecord, error) {
	var recs []GMCRecord

	result := d.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("recognized_at DESC, id").
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}

	return recs, nil
}
