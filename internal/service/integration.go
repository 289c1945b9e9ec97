package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/metrics"
)

const (
	ScopeAuditRead   = "audit:read"
	ScopeAuditStream = "audit:stream"
	ScopeGMCRead     = "gmc:read"
	ScopeMCRead      = "mc:read"

	consumerRole = "consumer"

	defaultAuditLimit = 100
	maxAuditLimit     = 500

	DefaultStreamGapGrace = 30 * time.Second
)

// Consumer is one external reader and the scopes it was granted.
type Consumer struct {
	Name    string
	KeyHash string
	Scopes  []string
}

func (c Consumer) can(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type AuditReader interface {
	List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error)
}

type GMCReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.GMCRecord, error)
}

// IntegrationService is the read-only boundary for external consumers. Every
// read, allowed or not, leaves an audit record.
type IntegrationService struct {
	consumers map[string]Consumer
	ledger    AuditReader
	audit     AuditLog
	gmc       GMCReader
	tokens    TokenReader
	gapGrace  time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewIntegrationService(consumers []Consumer, ledger AuditReader, audit AuditLog, gmc GMCReader, tokens TokenReader,
	gapGrace time.Duration, m *metrics.Metrics) *IntegrationService {
	if gapGrace <= 0 {
		gapGrace = DefaultStreamGapGrace
	}
	byName := make(map[string]Consumer, len(consumers))
	for _, c := range consumers {
		byName[c.Name] = c
	}
	return &IntegrationService{
		consumers: byName,
		ledger:    ledger,
		audit:     audit,
		gmc:       gmc,
		tokens:    tokens,
		gapGrace:  gapGrace,
		metrics:   m,
		now:       time.Now,
	}
}

// Credentials identify a consumer on a boundary read.
type Credentials struct {
	Name string
	Key  string
}

func (s *IntegrationService) ListAudit(ctx context.Context, cred Credentials, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	if err := s.authorize(ctx, cred, ScopeAuditRead, f.SubjectID); err != nil {
		return nil, err
	}

	if f.Limit <= 0 {
		f.Limit = defaultAuditLimit
	}
	if f.Limit > maxAuditLimit {
		f.Limit = maxAuditLimit
	}

	events, err := s.ledger.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("s.ledger.List -> %w", err)
	}
	return events, nil
}

func (s *IntegrationService) ListGMC(ctx context.Context, cred Credentials, userID string) ([]domain.GMCRecord, error) {
	if err := s.authorize(ctx, cred, ScopeGMCRead, userID); err != nil {
		return nil, err
	}

	recs, err := s.gmc.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.gmc.ListByOwner -> %w", err)
	}
	return recs, nil
}

func (s *IntegrationService) MCSummary(ctx context.Context, cred Credentials, userID string) (domain.MCSummary, error) {
	if err := s.authorize(ctx, cred, ScopeMCRead, userID); err != nil {
		return domain.MCSummary{}, err
	}

	now := s.now().UTC()
	snap, err := snapshot(ctx, s.tokens, userID, now)
	if err != nil {
		return domain.MCSummary{}, err
	}
	return domain.SummarizeMC(userID, snap.Tokens, now), nil
}

// OpenStream authorizes a live audit feed.
func (s *IntegrationService) OpenStream(ctx context.Context, cred Credentials) error {
	return s.authorize(ctx, cred, ScopeAuditStream, "")
}

// StreamCursor is a consumer's position in the ledger. A seq is taken when
// its row is inserted, not when the transaction commits, so a hole below a
// visible entry may still fill. Delivery stops at the first hole until it
// fills or has been open for longer than the grace window.
type StreamCursor struct {
	AfterSeq int64

	holeSeq   int64
	holeSince time.Time
}

// Tail returns the entries a stream consumer may receive after cur, oldest
// first, and the cursor for the next call. Every non-empty batch is audited.
// Those batch records are skipped by the feed itself, otherwise each poll
// would produce the next one.
func (s *IntegrationService) Tail(ctx context.Context, consumer string, cur StreamCursor, limit int) ([]domain.AuditEvent, StreamCursor, error) {
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	events, err := s.ledger.List(ctx, domain.AuditFilter{AfterSeq: cur.AfterSeq, Limit: limit})
	if err != nil {
		return nil, cur, fmt.Errorf("s.ledger.List -> %w", err)
	}

	now := s.now().UTC()
	settled, next := cur.advance(events, now, s.gapGrace)

	batch := make([]domain.AuditEvent, 0, len(settled))
	for _, ev := range settled {
		if ev.EventType != domain.AuditIntegrationStreamed {
			batch = append(batch, ev)
		}
	}
	if len(batch) == 0 {
		return nil, next, nil
	}

	event := domain.NewAuditEvent(domain.AuditIntegrationStreamed, domain.Actor{ID: consumer, Role: consumerRole}, "", now, map[string]any{
		"scope":    ScopeAuditStream,
		"from_seq": batch[0].Seq,
		"to_seq":   batch[len(batch)-1].Seq,
		"count":    len(batch),
	})
	if err = s.audit.Append(ctx, event); err != nil {
		return nil, cur, fmt.Errorf("s.audit.Append -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return batch, next, nil
}

// advance keeps the contiguous prefix of events. A hole is skipped once it
// is older than grace. Its age counts from the entry above it when that
// entry is older than now, so holes left by long-aborted transactions do not
// stall a consumer catching up.
func (c StreamCursor) advance(events []domain.AuditEvent, now time.Time, grace time.Duration) ([]domain.AuditEvent, StreamCursor) {
	next := c
	var out []domain.AuditEvent
	for _, ev := range events {
		want := next.AfterSeq + 1
		if ev.Seq > want {
			if next.holeSeq != want {
				next.holeSeq, next.holeSince = want, now
				if ev.OccurredAt.Before(now) {
					next.holeSince = ev.OccurredAt
				}
			}
			if now.Sub(next.holeSince) < grace {
				break
			}
		}
		out = append(out, ev)
		next.AfterSeq = ev.Seq
		next.holeSeq, next.holeSince = 0, time.Time{}
	}
	return out, next
}

func (s *IntegrationService) authorize(ctx context.Context, cred Credentials, scope, subject string) error {
	now := s.now().UTC()
	actor := domain.Actor{ID: cred.Name, Role: consumerRole}
	payload := map[string]any{"scope": scope}

	c, ok := s.consumers[cred.Name]
	if !ok || cred.Key == "" || bcrypt.CompareHashAndPassword([]byte(c.KeyHash), []byte(cred.Key)) != nil {
		err := domain.NewViolation(domain.ReasonUnknownConsumer, "consumer %q could not be authenticated", cred.Name)
		return deny(ctx, s.audit, s.metrics, domain.DeniedEvent(domain.AuditIntegrationDenied, actor, subject, now, err, payload), err)
	}
	if !c.can(scope) {
		err := domain.NewViolation(domain.ReasonScopeDenied, "consumer %q lacks scope %s", cred.Name, scope)
		return deny(ctx, s.audit, s.metrics, domain.DeniedEvent(domain.AuditIntegrationDenied, actor, subject, now, err, payload), err)
	}

	event := domain.NewAuditEvent(domain.AuditIntegrationRead, actor, subject, now, payload)
	if err := s.audit.Append(ctx, event); err != nil {
		return fmt.Errorf("s.audit.Append -> %w", err)
	}
	s.metrics.AuditAppended(event)

	return nil
}
