package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/pkg/idgen"
	"github.com/vietanh2810/mc-economy/internal/repository/dao"
)

var ErrImmutableRecord = dao.ErrImmutableRecord

type AuditRepository struct {
	dao *dao.AuditDAO
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{
		dao: dao.NewAuditDAO(db),
	}
}

// Append writes events outside any business transaction. It is used for
// denials, which have no state change to commit alongside.
func (r *AuditRepository) Append(ctx context.Context, events ...domain.AuditEvent) error {
	if err := r.dao.Append(ctx, auditDomainToDAO(events)...); err != nil {
		return fmt.Errorf("r.dao.Append -> %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	rows, err := r.dao.List(ctx, dao.AuditQuery{
		EventType: string(f.EventType),
		SubjectID: f.SubjectID,
		ActorID:   f.ActorID,
		Since:     f.Since,
		Until:     f.Until,
		AfterSeq:  f.AfterSeq,
		Limit:     f.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("r.dao.List -> %w", err)
	}

	events := make([]domain.AuditEvent, len(rows))
	for i, row := range rows {
		events[i] = domain.AuditEvent{
			EventID:    row.EventID,
			EventType:  domain.AuditEventType(row.EventType),
			ActorID:    row.ActorID,
			ActorRole:  row.ActorRole,
			SubjectID:  row.SubjectID,
			OccurredAt: row.OccurredAt,
			Payload:    row.Payload,
			Seq:        row.Seq,
		}
	}
	return events, nil
}

func (t *gormTx) AppendAudit(ctx context.Context, events ...domain.AuditEvent) error {
	if err := t.audit.Append(ctx, auditDomainToDAO(events)...); err != nil {
		return fmt.Errorf("t.audit.Append -> %w", err)
	}
	return nil
}

// auditDomainToDAO assigns event ids to events that do not carry one yet.
func auditDomainToDAO(events []domain.AuditEvent) []dao.AuditEvent {
	rows := make([]dao.AuditEvent, len(events))
	for i, e := range events {
		id := e.EventID
		if id == "" {
			id = idgen.NewEventID()
		}
		rows[i] = dao.AuditEvent{
			EventID:    id,
			EventType:  string(e.EventType),
			ActorID:    e.ActorID,
			ActorRole:  e.ActorRole,
			SubjectID:  e.SubjectID,
			OccurredAt: e.OccurredAt,
			Payload:    e.Payload,
		}
	}
	return rows
}
