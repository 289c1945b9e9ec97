package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/metrics"
)

// AuditLog appends events outside a business transaction.
type AuditLog interface {
	Append(ctx context.Context, events ...domain.AuditEvent) error
}

type IDGenerator interface {
	NewID() string
}

// TokenReader reads a fresh MC snapshot for one owner.
type TokenReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.MCRecord, error)
}

// deny records a denial in the ledger and returns the violation unchanged,
// unless the ledger write itself fails.
func deny(ctx context.Context, audit AuditLog, m *metrics.Metrics, event domain.AuditEvent, violation error) error {
	m.Violation(violation)

	if err := audit.Append(ctx, event); err != nil {
		zap.L().Error("failed to record denial",
			zap.String("event_type", string(event.EventType)),
			zap.String("reason", string(domain.ReasonOf(violation))),
			zap.Error(err))
		return fmt.Errorf("audit.Append -> %w", err)
	}
	m.AuditAppended(event)

	return violation
}

// snapshot builds the fresh token snapshot used by every decision.
func snapshot(ctx context.Context, tokens TokenReader, ownerID string, now time.Time) (domain.TokenSnapshot, error) {
	recs, err := tokens.ListByOwner(ctx, ownerID)
	if err != nil {
		return domain.TokenSnapshot{}, fmt.Errorf("tokens.ListByOwner -> %w", err)
	}
	return domain.TokenSnapshot{OwnerID: ownerID, Tokens: recs, TakenAt: now}, nil
}
