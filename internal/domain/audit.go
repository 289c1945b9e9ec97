package domain

import "time"

type AuditEventType string

const (
	AuditMCGranted  AuditEventType = "mc.granted"
	AuditMCFrozen   AuditEventType = "mc.frozen"
	AuditMCUnfrozen AuditEventType = "mc.unfrozen"
	AuditMCSpent    AuditEventType = "mc.spent"
	AuditMCExpired  AuditEventType = "mc.expired"
	AuditMCDenied   AuditEventType = "mc.denied"

	AuditPurchaseCompleted  AuditEventType = "store.purchase.completed"
	AuditPurchaseRolledBack AuditEventType = "store.purchase.rolled_back"
	AuditPurchaseDenied     AuditEventType = "store.purchase.denied"
	AuditWalletCredited     AuditEventType = "store.wallet.credited"
	AuditItemUpserted       AuditEventType = "store.item.upserted"
	AuditUserRestricted     AuditEventType = "store.user.restricted"
	AuditUserUnrestricted   AuditEventType = "store.user.unrestricted"
	AuditStoreDenied        AuditEventType = "store.denied"

	AuditAuctionScheduled    AuditEventType = "auction.scheduled"
	AuditAuctionOpened       AuditEventType = "auction.opened"
	AuditAuctionClosed       AuditEventType = "auction.closed"
	AuditAuctionCancelled    AuditEventType = "auction.cancelled"
	AuditAuctionDenied       AuditEventType = "auction.denied"
	AuditAuctionParticipated AuditEventType = "auction.participation.recorded"
	AuditParticipationDenied AuditEventType = "auction.participation.denied"

	AuditRecognitionEvaluated AuditEventType = "gmc.recognition.evaluated"
	AuditRecognitionFlagged   AuditEventType = "gmc.recognition.flagged_for_review"
	AuditRecognitionDenied    AuditEventType = "gmc.recognition.denied"
	AuditGMCRecognized        AuditEventType = "gmc.recognized"
	AuditGMCDenied            AuditEventType = "gmc.denied"

	AuditGovernanceEvaluated AuditEventType = "governance.evaluated"

	AuditIntegrationRead     AuditEventType = "integration.read"
	AuditIntegrationDenied   AuditEventType = "integration.read.denied"
	AuditIntegrationStreamed AuditEventType = "integration.stream_batch"
)

// AuditEvent is one append-only ledger entry.
type AuditEvent struct {
	EventID    string         `json:"event_id"`
	EventType  AuditEventType `json:"event_type"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	SubjectID  string         `json:"subject_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
	// Seq is the ledger position, assigned on append.
	Seq int64 `json:"seq,omitempty"`
}

// Actor is the human identity behind an operation, as supplied by the identity resolver.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func NewAuditEvent(eventType AuditEventType, actor Actor, subjectID string, at time.Time, payload map[string]any) AuditEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return AuditEvent{
		EventType:  eventType,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		SubjectID:  subjectID,
		OccurredAt: at,
		Payload:    payload,
	}
}

// DeniedEvent builds the audit record for a violation surfaced inside an audited flow.
func DeniedEvent(eventType AuditEventType, actor Actor, subjectID string, at time.Time, err error, payload map[string]any) AuditEvent {
	e := NewAuditEvent(eventType, actor, subjectID, at, payload)
	e.Payload["reason"] = string(ReasonOf(err))
	e.Payload["detail"] = err.Error()
	return e
}

type AuditFilter struct {
	EventType AuditEventType
	SubjectID string
	ActorID   string
	Since     *time.Time
	Until     *time.Time
	AfterSeq  int64
	Limit     int
}
