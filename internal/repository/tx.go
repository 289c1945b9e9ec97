package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/repository/dao"
)

// AuditAppender is available inside every transaction so that a state change
// and its audit record commit together.
type AuditAppender interface {
	AppendAudit(ctx context.Context, events ...domain.AuditEvent) error
}

type MCTx interface {
	AuditAppender
	InsertMC(ctx context.Context, rec domain.MCRecord) error
	TransitionMC(ctx context.Context, rec domain.MCRecord, from domain.MCState) error
}

type GMCTx interface {
	AuditAppender
	InsertGMC(ctx context.Context, rec domain.GMCRecord) error
}

type StoreTx interface {
	AuditAppender
	FindItem(ctx context.Context, itemID string) (domain.StoreItem, error)
	IncrementPurchaseCounter(ctx context.Context, userID, itemID string, limit int64) error
	DebitWallet(ctx context.Context, userID string, amount int64, at time.Time) error
	DecrementStock(ctx context.Context, itemID string) error
	CompletePurchase(ctx context.Context, purchaseID string, price int64) error
	CreditWallet(ctx context.Context, userID string, amount int64, at time.Time) (domain.Wallet, error)
	UpsertItem(ctx context.Context, item domain.StoreItem) (domain.StoreItem, error)
	SetRestriction(ctx context.Context, r domain.UserRestriction) error
	ClearRestriction(ctx context.Context, userID string) (bool, error)
}

type AuctionTx interface {
	AuditAppender
	InsertAuction(ctx context.Context, ev domain.AuctionEvent) error
	UpdateAuctionStatus(ctx context.Context, id string, from, to domain.AuctionStatus) error
	SpendTokens(ctx context.Context, ownerID string, ids []string, at time.Time) error
	InsertParticipation(ctx context.Context, p domain.ParticipationRecord) error
	InsertRecognition(ctx context.Context, e domain.RecognitionEvaluation) error
}

// gormTx implements every transaction interface over one *gorm.DB transaction.
type gormTx struct {
	mc      *dao.MCDAO
	gmc     *dao.GMCDAO
	store   *dao.StoreDAO
	auction *dao.AuctionDAO
	recog   *dao.RecognitionDAO
	audit   *dao.AuditDAO
}

func newGormTx(tx *gorm.DB) *gormTx {
	return &gormTx{
		mc:      dao.NewMCDAO(tx),
		gmc:     dao.NewGMCDAO(tx),
		store:   dao.NewStoreDAO(tx),
		auction: dao.NewAuctionDAO(tx),
		recog:   dao.NewRecognitionDAO(tx),
		audit:   dao.NewAuditDAO(tx),
	}
}

func atomically(ctx context.Context, db *gorm.DB, fn func(tx *gormTx) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGormTx(tx))
	})
}
