package dao

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditEvent struct {
	EventID    string            `gorm:"primaryKey;type:uuid"`
	EventType  string            `gorm:"not null;index"`
	ActorID    string            `gorm:"not null;index"`
	ActorRole  string            `gorm:"not null;default:''"`
	SubjectID  string            `gorm:"index"`
	OccurredAt time.Time         `gorm:"not null;index"`
	Payload    datatypes.JSONMap `gorm:"not null;type:jsonb"`
	// Seq orders events appended within the same instant.
	Seq int64 `gorm:"autoIncrement;uniqueIndex;not null"`
}

func (a *AuditEvent) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRecord
}

func (a *AuditEvent) BeforeDelete(*gorm.DB) error {
	return ErrImmutableRecord
}

type AuditQuery struct {
	EventType string
	SubjectID string
	ActorID   string
	Since     *time.Time
	Until     *time.Time
	AfterSeq  int64
	Limit     int
}

type AuditDAO struct {
	db *gorm.DB
}

func NewAuditDAO(db *gorm.DB) *AuditDAO {
	return &AuditDAO{
		db: db,
	}
}

func (d *AuditDAO) Append(ctx context.Context, events ...AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	return mapWriteErr(d.db.WithContext(ctx).Omit("Seq").Create(&events).Error)
}

// List returns events in append order.
func (d *AuditDAO) List(ctx context.Context, q AuditQuery) ([]AuditEvent, error) {
	tx := d.db.WithContext(ctx).Model(&AuditEvent{})
	if q.EventType != "" {
		tx = tx.Where("event_type = ?", q.EventType)
	}
	if q.SubjectID != "" {
		tx = tx.Where("subject_id = ?", q.SubjectID)
	}
	if q.ActorID != "" {
		tx = tx.Where("actor_id = ?", q.ActorID)
	}
	if q.Since != nil {
		tx = tx.Where("occurred_at >= ?", *q.Since)
	}
	if q.Until != nil {
		tx = tx.Where("occurred_at < ?", *q.Until)
	}
	if q.AfterSeq > 0 {
		tx = tx.Where("seq > ?", q.AfterSeq)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var events []AuditEvent
	if err := tx.Order("seq").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
