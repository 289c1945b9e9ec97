package domain

import "time"

type PurchaseStatus string

const (
	PurchasePending    PurchaseStatus = "PendingApproval"
	PurchaseCompleted  PurchaseStatus = "Completed"
	PurchaseRolledBack PurchaseStatus = "RolledBack"
	PurchaseRejected   PurchaseStatus = "Rejected"
)

func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseCompleted || s == PurchaseRolledBack || s == PurchaseRejected
}

type StoreItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceMC      int64  `json:"price_mc"`
	IsActive     bool   `json:"is_active"`
	TracksStock  bool   `json:"tracks_stock"`
	Stock        int64  `json:"stock"`
	PerUserLimit int64  `json:"per_user_limit"` // 0 means unlimited
}

type Wallet struct {
	UserID    string    `json:"user_id"`
	BalanceMC int64     `json:"balance_mc"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StorePurchase struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ItemID         string         `json:"item_id"`
	PriceMC        int64          `json:"price_mc"`
	Status         PurchaseStatus `json:"status"`
	IdempotencyKey string         `json:"idempotency_key"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Complete moves a pending purchase to Completed with the resolved price.
// Any other starting status is left untouched.
func (p *StorePurchase) Complete(price int64) bool {
	if p.Status != PurchasePending {
		return false
	}
	p.Status = PurchaseCompleted
	p.PriceMC = price
	return true
}

// RollBack marks a pending purchase whose transaction aborted.
func (p *StorePurchase) RollBack(reason string) bool {
	if p.Status != PurchasePending {
		return false
	}
	p.Status = PurchaseRolledBack
	p.FailureReason = reason
	return true
}

// PurchaseResult is what a caller of the purchase operation gets back.
type PurchaseResult struct {
	PurchaseID string         `json:"purchase_id"`
	Status     PurchaseStatus `json:"status"`
	PriceMC    int64          `json:"price_mc"`
	Replayed   bool           `json:"replayed"`
}

func (p StorePurchase) Result() PurchaseResult {
	return PurchaseResult{PurchaseID: p.ID, Status: p.Status, PriceMC: p.PriceMC}
}

type UserRestriction struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type EligibilityStatus string

const (
	Eligible   EligibilityStatus = "Eligible"
	Ineligible EligibilityStatus = "Ineligible"
)

// EligibilityDecision is the store-access gate. It is derived fresh and never persisted.
type EligibilityDecision struct {
	Status        EligibilityStatus `json:"status"`
	Reason        ReasonCode        `json:"reason,omitempty"`
	UsableBalance int64             `json:"usable_balance"`
	EvaluatedAt   time.Time         `json:"evaluated_at"`
}

func (d EligibilityDecision) IsEligible() bool {
	return d.Status == Eligible
}
