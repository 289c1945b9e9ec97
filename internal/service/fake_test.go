package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/repository"
)

var clock = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return clock }

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

type toggle bool

func (t toggle) Enabled() bool { return bool(t) }

// memState mirrors the tables. Transactions work on a copy that replaces the
// live state only on success.
type memState struct {
	mc             map[string]domain.MCRecord
	gmc            []domain.GMCRecord
	wallets        map[string]int64
	items          map[string]domain.StoreItem
	purchases      map[string]domain.StorePurchase
	counters       map[string]int64
	restrictions   map[string]domain.UserRestriction
	auctions       map[string]domain.AuctionEvent
	participations map[string]domain.ParticipationRecord
	recognitions   map[string]domain.RecognitionEvaluation
	audit          []domain.AuditEvent
}

func newMemState() *memState {
	return &memState{
		mc:             map[string]domain.MCRecord{},
		wallets:        map[string]int64{},
		items:          map[string]domain.StoreItem{},
		purchases:      map[string]domain.StorePurchase{},
		counters:       map[string]int64{},
		restrictions:   map[string]domain.UserRestriction{},
		auctions:       map[string]domain.AuctionEvent{},
		participations: map[string]domain.ParticipationRecord{},
		recognitions:   map[string]domain.RecognitionEvaluation{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.mc {
		c.mc[k] = v
	}
	c.gmc = append(c.gmc, s.gmc...)
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.restrictions {
		c.restrictions[k] = v
	}
	for k, v := range s.auctions {
		c.auctions[k] = v
	}
	for k, v := range s.participations {
		c.participations[k] = v
	}
	for k, v := range s.recognitions {
		c.recognitions[k] = v
	}
	c.audit = append(c.audit, s.audit...)
	return c
}

type memDB struct {
	mu sync.Mutex
	st *memState

	// failDebit, when set, is returned by DebitWallet to simulate a storage failure.
	failDebit error
	// failAudit, when set, is returned by every audit append.
	failAudit error
}

func newMemDB() *memDB {
	return &memDB{st: newMemState()}
}

func (db *memDB) atomic(fn func(tx *memTx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx := &memTx{db: db, st: db.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	db.st = tx.st
	return nil
}

func (db *memDB) locked(fn func(st *memState)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.st)
}

// seed helpers bypass the services.

func (db *memDB) putMC(recs ...domain.MCRecord) {
	db.locked(func(st *memState) {
		for _, r := range recs {
			st.mc[r.ID] = r
		}
	})
}

func (db *memDB) putItem(item domain.StoreItem) {
	db.locked(func(st *memState) { st.items[item.ID] = item })
}

func (db *memDB) putWallet(userID string, balance int64) {
	db.locked(func(st *memState) { st.wallets[userID] = balance })
}

func (db *memDB) putAuction(ev domain.AuctionEvent) {
	db.locked(func(st *memState) { st.auctions[ev.ID] = ev })
}

func (db *memDB) putParticipation(p domain.ParticipationRecord) {
	db.locked(func(st *memState) { st.participations[p.EventID+"|"+p.UserID] = p })
}

func (db *memDB) balance(userID string) (b int64) {
	db.locked(func(st *memState) { b = st.wallets[userID] })
	return b
}

func (db *memDB) item(id string) (it domain.StoreItem) {
	db.locked(func(st *memState) { it = st.items[id] })
	return it
}

func (db *memDB) mcByID(id string) (rec domain.MCRecord) {
	db.locked(func(st *memState) { rec = st.mc[id] })
	return rec
}

func (db *memDB) events(types ...domain.AuditEventType) []domain.AuditEvent {
	var out []domain.AuditEvent
	db.locked(func(st *memState) {
		for _, e := range st.audit {
			if len(types) == 0 {
				out = append(out, e)
				continue
			}
			for _, t := range types {
				if e.EventType == t {
					out = append(out, e)
				}
			}
		}
	})
	return out
}

func appendAudit(st *memState, events []domain.AuditEvent) {
	for _, e := range events {
		e.Seq = int64(len(st.audit) + 1)
		if e.EventID == "" {
			e.EventID = fmt.Sprintf("evt-%d", e.Seq)
		}
		st.audit = append(st.audit, e)
	}
}

// AuditLog and AuditReader.

func (db *memDB) Append(_ context.Context, events ...domain.AuditEvent) error {
	if db.failAudit != nil {
		return db.failAudit
	}
	db.locked(func(st *memState) { appendAudit(st, events) })
	return nil
}

func (db *memDB) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	db.locked(func(st *memState) {
		for _, e := range st.audit {
			if e.Seq <= f.AfterSeq ||
				(f.EventType != "" && e.EventType != f.EventType) ||
				(f.SubjectID != "" && e.SubjectID != f.SubjectID) ||
				(f.ActorID != "" && e.ActorID != f.ActorID) {
				continue
			}
			out = append(out, e)
			if f.Limit > 0 && len(out) == f.Limit {
				return
			}
		}
	})
	return out, nil
}

// TokenReader.

func (db *memDB) ListByOwner(_ context.Context, ownerID string) ([]domain.MCRecord, error) {
	var out []domain.MCRecord
	db.locked(func(st *memState) {
		for _, r := range st.mc {
			if r.OwnerID == ownerID {
				out = append(out, r)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mcRepo struct{ *memDB }

func (r mcRepo) FindByID(_ context.Context, id string) (rec domain.MCRecord, err error) {
	r.locked(func(st *memState) {
		var ok bool
		if rec, ok = st.mc[id]; !ok {
			err = repository.ErrMCNotFound
		}
	})
	return rec, err
}

func (r mcRepo) Atomic(_ context.Context, fn func(tx repository.MCTx) error) error {
	return r.atomic(func(tx *memTx) error { return fn(tx) })
}

type gmcRepo struct{ *memDB }

func (r gmcRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.GMCRecord, error) {
	var out []domain.GMCRecord
	r.locked(func(st *memState) {
		for _, g := range st.gmc {
			if g.OwnerID == ownerID {
				out = append(out, g)
			}
		}
	})
	return out, nil
}

func (r gmcRepo) Atomic(_ context.Context, fn func(tx repository.GMCTx) error) error {
	return r.atomic(func(tx *memTx) error { return fn(tx) })
}

type storeRepo struct{ *memDB }

func (r storeRepo) FindItem(_ context.Context, itemID string) (item domain.StoreItem, err error) {
	r.locked(func(st *memState) {
		var ok bool
		if item, ok = st.items[itemID]; !ok {
			err = repository.ErrItemNotFound
		}
	})
	return item, err
}

func (r storeRepo) FindWallet(_ context.Context, userID string) (w domain.Wallet, err error) {
	r.locked(func(st *memState) {
		b, ok := st.wallets[userID]
		if !ok {
			err = repository.ErrWalletNotFound
			return
		}
		w = domain.Wallet{UserID: userID, BalanceMC: b}
	})
	return w, err
}

func (r storeRepo) FindPurchaseByKey(_ context.Context, userID, key string) (p domain.StorePurchase, err error) {
	err = repository.ErrPurchaseNotFound
	r.locked(func(st *memState) {
		for _, row := range st.purchases {
			if row.UserID == userID && row.IdempotencyKey == key {
				p, err = row, nil
				return
			}
		}
	})
	return p, err
}

func (r storeRepo) ReservePurchase(_ context.Context, p domain.StorePurchase) (domain.StorePurchase, error) {
	var err error
	r.locked(func(st *memState) {
		for _, row := range st.purchases {
			if row.UserID == p.UserID && row.IdempotencyKey == p.IdempotencyKey {
				err = repository.ErrDuplicateIdempotencyKey
				return
			}
		}
		p.Status = domain.PurchasePending
		p.UpdatedAt = p.CreatedAt
		st.purchases[p.ID] = p
	})
	return p, err
}

func (r storeRepo) MarkRolledBack(_ context.Context, purchaseID string, reason domain.ReasonCode) error {
	var err error
	r.locked(func(st *memState) {
		p := st.purchases[purchaseID]
		if !p.RollBack(string(reason)) {
			err = repository.ErrPurchaseNotPending
			return
		}
		st.purchases[purchaseID] = p
	})
	return err
}

func (r storeRepo) IsRestricted(_ context.Context, userID string) (restricted bool, _ error) {
	r.locked(func(st *memState) { _, restricted = st.restrictions[userID] })
	return restricted, nil
}

func (r storeRepo) Atomic(_ context.Context, fn func(tx repository.StoreTx) error) error {
	return r.atomic(func(tx *memTx) error { return fn(tx) })
}

func (r storeRepo) purchase(userID, key string) (p domain.StorePurchase) {
	p, _ = r.FindPurchaseByKey(context.Background(), userID, key)
	return p
}

type auctionRepo struct{ *memDB }

func (r auctionRepo) FindEvent(_ context.Context, id string) (ev domain.AuctionEvent, err error) {
	r.locked(func(st *memState) {
		var ok bool
		if ev, ok = st.auctions[id]; !ok {
			err = repository.ErrAuctionNotFound
		}
	})
	return ev, err
}

func (r auctionRepo) FindParticipation(_ context.Context, eventID, userID string) (p domain.ParticipationRecord, err error) {
	r.locked(func(st *memState) {
		var ok bool
		if p, ok = st.participations[eventID+"|"+userID]; !ok {
			err = repository.ErrParticipationNotFound
		}
	})
	return p, err
}

func (r auctionRepo) FindRecognition(_ context.Context, eventID, userID string) (e domain.RecognitionEvaluation, err error) {
	r.locked(func(st *memState) {
		var ok bool
		if e, ok = st.recognitions[eventID+"|"+userID]; !ok {
			err = repository.ErrRecognitionNotFound
		}
	})
	return e, err
}

func (r auctionRepo) Atomic(_ context.Context, fn func(tx repository.AuctionTx) error) error {
	return r.atomic(func(tx *memTx) error { return fn(tx) })
}

// memTx implements every transaction interface with the same predicates as
// the SQL statements.
type memTx struct {
	db *memDB
	st *memState
}

func (t *memTx) AppendAudit(_ context.Context, events ...domain.AuditEvent) error {
	if t.db.failAudit != nil {
		return t.db.failAudit
	}
	appendAudit(t.st, events)
	return nil
}

func (t *memTx) InsertMC(_ context.Context, rec domain.MCRecord) error {
	t.st.mc[rec.ID] = rec
	return nil
}

func (t *memTx) TransitionMC(_ context.Context, rec domain.MCRecord, from domain.MCState) error {
	cur, ok := t.st.mc[rec.ID]
	if !ok || cur.LifecycleState != from {
		return repository.ErrStaleTransition
	}
	t.st.mc[rec.ID] = rec
	return nil
}

func (t *memTx) InsertGMC(_ context.Context, rec domain.GMCRecord) error {
	t.st.gmc = append(t.st.gmc, rec)
	return nil
}

func (t *memTx) FindItem(_ context.Context, itemID string) (domain.StoreItem, error) {
	item, ok := t.st.items[itemID]
	if !ok {
		return domain.StoreItem{}, repository.ErrItemNotFound
	}
	return item, nil
}

func (t *memTx) IncrementPurchaseCounter(_ context.Context, userID, itemID string, limit int64) error {
	key := userID + "|" + itemID
	if t.st.counters[key] >= limit {
		return repository.ErrLimitReached
	}
	t.st.counters[key]++
	return nil
}

func (t *memTx) DebitWallet(_ context.Context, userID string, amount int64, _ time.Time) error {
	if t.db.failDebit != nil {
		return t.db.failDebit
	}
	b, ok := t.st.wallets[userID]
	if !ok || b < amount {
		return repository.ErrInsufficientBalance
	}
	t.st.wallets[userID] = b - amount
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, itemID string) error {
	item := t.st.items[itemID]
	if item.Stock <= 0 {
		return repository.ErrOutOfStock
	}
	item.Stock--
	t.st.items[itemID] = item
	return nil
}

func (t *memTx) CompletePurchase(_ context.Context, purchaseID string, price int64) error {
	p := t.st.purchases[purchaseID]
	if !p.Complete(price) {
		return repository.ErrPurchaseNotPending
	}
	t.st.purchases[purchaseID] = p
	return nil
}

func (t *memTx) CreditWallet(_ context.Context, userID string, amount int64, at time.Time) (domain.Wallet, error) {
	t.st.wallets[userID] += amount
	return domain.Wallet{UserID: userID, BalanceMC: t.st.wallets[userID], UpdatedAt: at}, nil
}

func (t *memTx) UpsertItem(_ context.Context, item domain.StoreItem) (domain.StoreItem, error) {
	t.st.items[item.ID] = item
	return item, nil
}

func (t *memTx) SetRestriction(_ context.Context, r domain.UserRestriction) error {
	t.st.restrictions[r.UserID] = r
	return nil
}

func (t *memTx) ClearRestriction(_ context.Context, userID string) (bool, error) {
	_, ok := t.st.restrictions[userID]
	delete(t.st.restrictions, userID)
	return ok, nil
}

func (t *memTx) InsertAuction(_ context.Context, ev domain.AuctionEvent) error {
	t.st.auctions[ev.ID] = ev
	return nil
}

func (t *memTx) UpdateAuctionStatus(_ context.Context, id string, from, to domain.AuctionStatus) error {
	ev, ok := t.st.auctions[id]
	if !ok || ev.Status != from {
		return repository.ErrStaleTransition
	}
	ev.Status = to
	t.st.auctions[id] = ev
	return nil
}

func (t *memTx) SpendTokens(_ context.Context, ownerID string, ids []string, at time.Time) error {
	for _, id := range ids {
		rec, ok := t.st.mc[id]
		if !ok || rec.OwnerID != ownerID || !rec.IsUsableAt(at) {
			return repository.ErrStaleTransition
		}
		rec.LifecycleState = domain.MCSpent
		t.st.mc[id] = rec
	}
	return nil
}

func (t *memTx) InsertParticipation(_ context.Context, p domain.ParticipationRecord) error {
	key := p.EventID + "|" + p.UserID
	if _, ok := t.st.participations[key]; ok {
		return repository.ErrAlreadyParticipated
	}
	t.st.participations[key] = p
	return nil
}

func (t *memTx) InsertRecognition(_ context.Context, e domain.RecognitionEvaluation) error {
	key := e.Signal.EventID + "|" + e.Signal.UserID
	if _, ok := t.st.recognitions[key]; ok {
		return repository.ErrAlreadyEvaluated
	}
	t.st.recognitions[key] = e
	return nil
}

func activeMC(id, owner string, amount int64) domain.MCRecord {
	return domain.MCRecord{
		ID:             id,
		OwnerID:        owner,
		Amount:         amount,
		IssuedAt:       clock.Add(-24 * time.Hour),
		ExpiresAt:      clock.Add(60 * 24 * time.Hour),
		SourceType:     domain.SourceManualGrant,
		LifecycleState: domain.MCActive,
		GrantedBy:      "hr.lead",
	}
}
