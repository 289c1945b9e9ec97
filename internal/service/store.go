package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/eligibility"
	"github.com/vietanh2810/mc-economy/internal/identity"
	"github.com/vietanh2810/mc-economy/internal/metrics"
	"github.com/vietanh2810/mc-economy/internal/repository"
)

var (
	ErrItemNotFound     = repository.ErrItemNotFound
	ErrPurchaseNotFound = repository.ErrPurchaseNotFound
	ErrDuplicateKey     = repository.ErrDuplicateIdempotencyKey
)

type StoreRepository interface {
	FindItem(ctx context.Context, itemID string) (domain.StoreItem, error)
	FindWallet(ctx context.Context, userID string) (domain.Wallet, error)
	FindPurchaseByKey(ctx context.Context, userID, key string) (domain.StorePurchase, error)
	ReservePurchase(ctx context.Context, p domain.StorePurchase) (domain.StorePurchase, error)
	MarkRolledBack(ctx context.Context, purchaseID string, reason domain.ReasonCode) error
	IsRestricted(ctx context.Context, userID string) (bool, error)
	Atomic(ctx context.Context, fn func(tx repository.StoreTx) error) error
}

// MaintenanceFlag is the operator toggle closing the store.
type MaintenanceFlag interface {
	Enabled() bool
}

type StoreService struct {
	repo        StoreRepository
	tokens      TokenReader
	audit       AuditLog
	identity    identity.Classifier
	maintenance MaintenanceFlag
	ids         IDGenerator
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewStoreService(repo StoreRepository, tokens TokenReader, audit AuditLog, classifier identity.Classifier,
	maintenance MaintenanceFlag, ids IDGenerator, m *metrics.Metrics) *StoreService {
	return &StoreService{
		repo:        repo,
		tokens:      tokens,
		audit:       audit,
		identity:    classifier,
		maintenance: maintenance,
		ids:         ids,
		metrics:     m,
		now:         time.Now,
	}
}

type PurchaseInput struct {
	UserID         string
	ItemID         string
	IdempotencyKey string
	Actor          domain.Actor
}

// AccessDecision evaluates store access for a user from a fresh snapshot.
func (s *StoreService) AccessDecision(ctx context.Context, userID string) (domain.EligibilityDecision, error) {
	return s.access(ctx, userID, s.now().UTC())
}

func (s *StoreService) access(ctx context.Context, userID string, now time.Time) (domain.EligibilityDecision, error) {
	snap, err := snapshot(ctx, s.tokens, userID, now)
	if err != nil {
		return domain.EligibilityDecision{}, err
	}

	restricted, err := s.repo.IsRestricted(ctx, userID)
	if err != nil {
		return domain.EligibilityDecision{}, fmt.Errorf("s.repo.IsRestricted -> %w", err)
	}

	return eligibility.Evaluate(snap.Tokens, now, s.maintenance.Enabled(), restricted), nil
}

// Purchase exchanges wallet balance for one unit of an item. The idempotency
// reservation and the rollback marker are written outside the transaction
// that moves balance and stock, so a failed attempt still burns its key.
func (s *StoreService) Purchase(ctx context.Context, in PurchaseInput) (domain.PurchaseResult, error) {
	now := s.now().UTC()
	denied := func(err error) error {
		s.metrics.PurchaseDenied(domain.ReasonOf(err))
		return deny(ctx, s.audit, s.metrics,
			domain.DeniedEvent(domain.AuditPurchaseDenied, in.Actor, in.UserID, now, err, map[string]any{
				"item_id":         in.ItemID,
				"idempotency_key": in.IdempotencyKey,
			}), err)
	}

	if err := identity.RequireHuman(s.identity, in.Actor.ID); err != nil {
		return domain.PurchaseResult{}, denied(err)
	}
	if err := validatePurchase(in); err != nil {
		return domain.PurchaseResult{}, denied(err)
	}

	prior, found, err := s.gate(ctx, in)
	if err != nil {
		if domain.ReasonOf(err) != "" {
			return domain.PurchaseResult{}, denied(err)
		}
		return domain.PurchaseResult{}, err
	}
	if found {
		return prior, nil
	}

	decision, err := s.access(ctx, in.UserID, now)
	if err != nil {
		return domain.PurchaseResult{}, err
	}
	if !decision.IsEligible() {
		return domain.PurchaseResult{}, denied(domain.NewViolation(decision.Reason, "user %s cannot access the store", in.UserID))
	}

	purchase, err := s.repo.ReservePurchase(ctx, domain.StorePurchase{
		ID:             s.ids.NewID(),
		UserID:         in.UserID,
		ItemID:         in.ItemID,
		Status:         domain.PurchasePending,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
	})
	if errors.Is(err, ErrDuplicateKey) {
		// Lost the race for the key: re-run the gate once. A row that is still
		// pending means the winner is in flight.
		prior, found, err = s.gate(ctx, in)
		switch {
		case err != nil && domain.ReasonOf(err) != "":
			return domain.PurchaseResult{}, denied(err)
		case err != nil:
			return domain.PurchaseResult{}, err
		case found:
			return prior, nil
		default:
			return domain.PurchaseResult{}, denied(domain.NewViolation(domain.ReasonConcurrentRequest, "key %q is being processed", in.IdempotencyKey))
		}
	}
	if err != nil {
		return domain.PurchaseResult{}, fmt.Errorf("s.repo.ReservePurchase -> %w", err)
	}

	var completed domain.AuditEvent
	err = s.repo.Atomic(ctx, func(tx repository.StoreTx) error {
		price, err := s.exchange(ctx, tx, in)
		if err != nil {
			return err
		}
		if err = tx.CompletePurchase(ctx, purchase.ID, price); err != nil {
			return fmt.Errorf("tx.CompletePurchase -> %w", err)
		}
		purchase.Complete(price)

		completed = domain.NewAuditEvent(domain.AuditPurchaseCompleted, in.Actor, purchase.ID, now, map[string]any{
			"user_id":         in.UserID,
			"item_id":         in.ItemID,
			"price_mc":        price,
			"idempotency_key": in.IdempotencyKey,
		})
		return tx.AppendAudit(ctx, completed)
	})
	if err != nil {
		return domain.PurchaseResult{}, s.rollBack(ctx, purchase, in.Actor, now, err)
	}

	s.metrics.AuditAppended(completed)
	s.metrics.Purchase(domain.PurchaseCompleted, "")
	zap.L().Info("purchase completed",
		zap.String("purchase_id", purchase.ID),
		zap.String("user_id", in.UserID),
		zap.String("item_id", in.ItemID),
		zap.Int64("price_mc", purchase.PriceMC))

	return purchase.Result(), nil
}

// exchange applies the predicate-guarded updates and returns the price paid.
// Every zero-row update is surfaced as the matching violation, which aborts
// the transaction.
func (s *StoreService) exchange(ctx context.Context, tx repository.StoreTx, in PurchaseInput) (int64, error) {
	item, err := tx.FindItem(ctx, in.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return 0, domain.NewViolation(domain.ReasonItemNotFound, "item %s not found", in.ItemID)
		}
		return 0, fmt.Errorf("tx.FindItem -> %w", err)
	}
	if !item.IsActive {
		return 0, domain.NewViolation(domain.ReasonItemInactive, "item %s is not on sale", item.ID)
	}
	if item.TracksStock && item.Stock <= 0 {
		return 0, domain.NewViolation(domain.ReasonOutOfStock, "item %s is out of stock", item.ID)
	}

	if item.PerUserLimit > 0 {
		err = tx.IncrementPurchaseCounter(ctx, in.UserID, item.ID, item.PerUserLimit)
		if errors.Is(err, repository.ErrLimitReached) {
			return 0, domain.NewViolation(domain.ReasonLimitExceeded, "limit of %d reached for item %s", item.PerUserLimit, item.ID)
		}
		if err != nil {
			return 0, fmt.Errorf("tx.IncrementPurchaseCounter -> %w", err)
		}
	}

	err = tx.DebitWallet(ctx, in.UserID, item.PriceMC, s.now().UTC())
	if errors.Is(err, repository.ErrInsufficientBalance) {
		return 0, domain.NewViolation(domain.ReasonInsufficientFunds, "balance below price %d", item.PriceMC)
	}
	if err != nil {
		return 0, fmt.Errorf("tx.DebitWallet -> %w", err)
	}

	if item.TracksStock {
		err = tx.DecrementStock(ctx, item.ID)
		if errors.Is(err, repository.ErrOutOfStock) {
			return 0, domain.NewViolation(domain.ReasonOutOfStock, "item %s is out of stock", item.ID)
		}
		if err != nil {
			return 0, fmt.Errorf("tx.DecrementStock -> %w", err)
		}
	}

	return item.PriceMC, nil
}

// gate inspects an earlier attempt with the same key. found is true only for
// a completed purchase, which is replayed unchanged.
func (s *StoreService) gate(ctx context.Context, in PurchaseInput) (domain.PurchaseResult, bool, error) {
	prior, err := s.repo.FindPurchaseByKey(ctx, in.UserID, in.IdempotencyKey)
	if errors.Is(err, ErrPurchaseNotFound) {
		return domain.PurchaseResult{}, false, nil
	}
	if err != nil {
		return domain.PurchaseResult{}, false, fmt.Errorf("s.repo.FindPurchaseByKey -> %w", err)
	}

	switch prior.Status {
	case domain.PurchaseCompleted:
		if prior.ItemID != in.ItemID {
			return domain.PurchaseResult{}, false, domain.NewViolation(domain.ReasonInvalidRequest,
				"key %q was used for item %s", in.IdempotencyKey, prior.ItemID)
		}
		res := prior.Result()
		res.Replayed = true
		return res, true, nil
	case domain.PurchaseRolledBack, domain.PurchaseRejected:
		return domain.PurchaseResult{}, false, domain.NewViolation(domain.ReasonIdempotencyRejected,
			"key %q already failed with %s", in.IdempotencyKey, prior.FailureReason)
	default:
		return domain.PurchaseResult{}, false, domain.NewViolation(domain.ReasonConcurrentRequest,
			"key %q is being processed", in.IdempotencyKey)
	}
}

// rollBack is the reconciliation write after an aborted transaction. The
// pending row must not outlive the attempt, so the writes run detached from
// the caller's cancellation.
func (s *StoreService) rollBack(ctx context.Context, p domain.StorePurchase, actor domain.Actor, now time.Time, cause error) error {
	ctx = context.WithoutCancel(ctx)

	reason := domain.ReasonOf(cause)
	if reason == "" {
		reason = domain.ReasonInfrastructure
	}

	if err := s.repo.MarkRolledBack(ctx, p.ID, reason); err != nil {
		zap.L().Error("failed to mark purchase rolled back",
			zap.String("purchase_id", p.ID),
			zap.String("reason", string(reason)),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return fmt.Errorf("s.repo.MarkRolledBack -> %w", errors.Join(err, cause))
	}
	s.metrics.Purchase(domain.PurchaseRolledBack, reason)

	event := domain.NewAuditEvent(domain.AuditPurchaseRolledBack, actor, p.ID, now, map[string]any{
		"user_id":         p.UserID,
		"item_id":         p.ItemID,
		"idempotency_key": p.IdempotencyKey,
		"reason":          string(reason),
		"detail":          cause.Error(),
	})

	if reason == domain.ReasonInfrastructure {
		if err := s.audit.Append(ctx, event); err != nil {
			zap.L().Error("failed to record rollback", zap.String("purchase_id", p.ID), zap.Error(err))
		} else {
			s.metrics.AuditAppended(event)
		}
		return fmt.Errorf("s.repo.Atomic -> %w", cause)
	}

	return deny(ctx, s.audit, s.metrics, event, cause)
}

func validatePurchase(in PurchaseInput) error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return domain.NewViolation(domain.ReasonMissingOwner, "user is required")
	case strings.TrimSpace(in.ItemID) == "":
		return domain.NewViolation(domain.ReasonInvalidRequest, "item is required")
	case strings.TrimSpace(in.IdempotencyKey) == "":
		return domain.NewViolation(domain.ReasonInvalidRequest, "idempotency key is required")
	}
	return nil
}

func (s *StoreService) Wallet(ctx context.Context, userID string) (domain.Wallet, error) {
	w, err := s.repo.FindWallet(ctx, userID)
	if errors.Is(err, repository.ErrWalletNotFound) {
		return domain.Wallet{UserID: userID}, nil
	}
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("s.repo.FindWallet -> %w", err)
	}
	return w, nil
}

// CreditWallet seeds the exchange balance a user spends in the store.
func (s *StoreService) CreditWallet(ctx context.Context, userID string, amount int64, actor domain.Actor) (domain.Wallet, error) {
	now := s.now().UTC()

	err := identity.RequireHuman(s.identity, actor.ID)
	if err == nil && strings.TrimSpace(userID) == "" {
		err = domain.NewViolation(domain.ReasonMissingOwner, "user is required")
	}
	if err == nil && amount <= 0 {
		err = domain.NewViolation(domain.ReasonInvalidAmount, "amount must be positive, got %d", amount)
	}
	if err != nil {
		return domain.Wallet{}, s.denyAdmin(ctx, "credit_wallet", actor, userID, now, err)
	}

	var wallet domain.Wallet
	var event domain.AuditEvent
	err = s.repo.Atomic(ctx, func(tx repository.StoreTx) error {
		w, err := tx.CreditWallet(ctx, userID, amount, now)
		if err != nil {
			return fmt.Errorf("tx.CreditWallet -> %w", err)
		}
		wallet = w

		event = domain.NewAuditEvent(domain.AuditWalletCredited, actor, userID, now, map[string]any{
			"amount":     amount,
			"balance_mc": w.BalanceMC,
		})
		return tx.AppendAudit(ctx, event)
	})
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return wallet, nil
}

func (s *StoreService) UpsertItem(ctx context.Context, item domain.StoreItem, actor domain.Actor) (domain.StoreItem, error) {
	now := s.now().UTC()

	err := identity.RequireHuman(s.identity, actor.ID)
	if err == nil {
		err = validateItem(item)
	}
	if err != nil {
		return domain.StoreItem{}, s.denyAdmin(ctx, "upsert_item", actor, item.ID, now, err)
	}

	var saved domain.StoreItem
	var event domain.AuditEvent
	err = s.repo.Atomic(ctx, func(tx repository.StoreTx) error {
		row, err := tx.UpsertItem(ctx, item)
		if err != nil {
			return fmt.Errorf("tx.UpsertItem -> %w", err)
		}
		saved = row

		event = domain.NewAuditEvent(domain.AuditItemUpserted, actor, item.ID, now, map[string]any{
			"name":           item.Name,
			"price_mc":       item.PriceMC,
			"is_active":      item.IsActive,
			"tracks_stock":   item.TracksStock,
			"stock":          item.Stock,
			"per_user_limit": item.PerUserLimit,
		})
		return tx.AppendAudit(ctx, event)
	})
	if err != nil {
		return domain.StoreItem{}, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return saved, nil
}

func validateItem(item domain.StoreItem) error {
	switch {
	case strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Name) == "":
		return domain.NewViolation(domain.ReasonInvalidRequest, "item id and name are required")
	case item.PriceMC <= 0:
		return domain.NewViolation(domain.ReasonInvalidAmount, "price must be positive, got %d", item.PriceMC)
	case item.Stock < 0 || item.PerUserLimit < 0:
		return domain.NewViolation(domain.ReasonInvalidAmount, "stock and limit cannot be negative")
	}
	return nil
}

func (s *StoreService) Restrict(ctx context.Context, userID, reason string, actor domain.Actor) error {
	now := s.now().UTC()

	err := identity.RequireHuman(s.identity, actor.ID)
	if err == nil && strings.TrimSpace(userID) == "" {
		err = domain.NewViolation(domain.ReasonMissingOwner, "user is required")
	}
	if err != nil {
		return s.denyAdmin(ctx, "restrict", actor, userID, now, err)
	}

	event := domain.NewAuditEvent(domain.AuditUserRestricted, actor, userID, now, map[string]any{"reason": reason})
	err = s.repo.Atomic(ctx, func(tx repository.StoreTx) error {
		err := tx.SetRestriction(ctx, domain.UserRestriction{
			UserID:    userID,
			Reason:    reason,
			CreatedBy: actor.ID,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("tx.SetRestriction -> %w", err)
		}
		return tx.AppendAudit(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return nil
}

// Unrestrict clears a restriction and reports whether one existed.
func (s *StoreService) Unrestrict(ctx context.Context, userID string, actor domain.Actor) (bool, error) {
	now := s.now().UTC()

	if err := identity.RequireHuman(s.identity, actor.ID); err != nil {
		return false, s.denyAdmin(ctx, "unrestrict", actor, userID, now, err)
	}

	var cleared bool
	var event domain.AuditEvent
	err := s.repo.Atomic(ctx, func(tx repository.StoreTx) error {
		ok, err := tx.ClearRestriction(ctx, userID)
		if err != nil {
			return fmt.Errorf("tx.ClearRestriction -> %w", err)
		}
		cleared = ok

		event = domain.NewAuditEvent(domain.AuditUserUnrestricted, actor, userID, now, map[string]any{"cleared": ok})
		return tx.AppendAudit(ctx, event)
	})
	if err != nil {
		return false, fmt.Errorf("s.repo.Atomic -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return cleared, nil
}

func (s *StoreService) denyAdmin(ctx context.Context, op string, actor domain.Actor, subject string, now time.Time, err error) error {
	return deny(ctx, s.audit, s.metrics,
		domain.DeniedEvent(domain.AuditStoreDenied, actor, subject, now, err, map[string]any{"operation": op}), err)
}
