package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAuctionNotFound       = errors.New("auction not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrAlreadyParticipated   = errors.New("user already entered this auction")
)

const participationConstraint = "idx_auction_participations_entry"

type AuctionEvent struct {
	ID             string    `gorm:"primaryKey;size:32"`
	Name           string    `gorm:"not null"`
	Status         string    `gorm:"not null;index"`
	StartsAt       time.Time `gorm:"not null"`
	EndsAt         time.Time `gorm:"not null;check:chk_auction_window,ends_at > starts_at"`
	EntryCostMC    int64     `gorm:"not null;check:chk_auction_cost,entry_cost_mc > 0"`
	WinProbability float64   `gorm:"not null;check:chk_auction_probability,win_probability >= 0 AND win_probability <= 1"`
	CreatedBy      string    `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuctionParticipation keeps the random factor as float8, which round-trips
// a Go float64 exactly.
type AuctionParticipation struct {
	ID           string         `gorm:"primaryKey;size:32"`
	EventID      string         `gorm:"not null;uniqueIndex:idx_auction_participations_entry,priority:1"`
	UserID       string         `gorm:"not null;uniqueIndex:idx_auction_participations_entry,priority:2"`
	Outcome      string         `gorm:"not null"`
	StakedMC     int64          `gorm:"not null"`
	RandomFactor float64        `gorm:"not null;type:double precision"`
	TokenIDs     datatypes.JSON `gorm:"not null;type:jsonb"`
	CreatedAt    time.Time
}

type AuctionDAO struct {
	db *gorm.DB
}

func NewAuctionDAO(db *gorm.DB) *AuctionDAO {
	return &AuctionDAO{
		db: db,
	}
}

func (d *AuctionDAO) InsertEvent(ctx context.Context, ev AuctionEvent) (AuctionEvent, error) {
	if err := d.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return AuctionEvent{}, err
	}
	return ev, nil
}

func (d *AuctionDAO) FindEvent(ctx context.Context, id string) (AuctionEvent, error) {
	var ev AuctionEvent

	result := d.db.WithContext(ctx).First(&ev, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return AuctionEvent{}, ErrAuctionNotFound
		}

		return AuctionEvent{}, result.Error
	}

	return ev, nil
}

func (d *AuctionDAO) UpdateStatus(ctx context.Context, id, from, to string) error {
	result := d.db.WithContext(ctx).
		Model(&AuctionEvent{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (d *AuctionDAO) InsertParticipation(ctx context.Context, p AuctionParticipation) (AuctionParticipation, error) {
	if err := d.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err, participationConstraint) {
			return AuctionParticipation{}, ErrAlreadyParticipated
		}
		return AuctionParticipation{}, err
	}
	return p, nil
}

func (d *AuctionDAO) FindParticipation(ctx context.Context, eventID, userID string) (AuctionParticipation, error) {
	var p AuctionParticipation

	result := d.db.WithContext(ctx).First(&p, "event_id = ? AND user_id = ?", eventID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return AuctionParticipation{}, ErrParticipationNotFound
		}

		return AuctionParticipation{}, result.Error
	}

	return p, nil
}
