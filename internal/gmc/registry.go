// Package gmc guards creation of recognition credentials. A GMC is created
// once by a human and never changes afterwards.
package gmc

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
)

type Registry struct {
	identity identity.Classifier
}

func NewRegistry(classifier identity.Classifier) *Registry {
	return &Registry{identity: classifier}
}

type RecognizeRequest struct {
	ID            string
	UserID        string
	Amount        int64
	Category      domain.GMCCategory
	Justification string
	RecognizedBy  domain.Actor
	RecognizedAt  time.Time
}

// Recognize validates a request and builds the credential and its audit record.
func (r *Registry) Recognize(req RecognizeRequest) (domain.GMCRecord, domain.AuditEvent, error) {
	if err := r.Validate(req); err != nil {
		return domain.GMCRecord{}, domain.AuditEvent{}, err
	}

	rec := domain.GMCRecord{
		ID:            req.ID,
		OwnerID:       req.UserID,
		Amount:        req.Amount,
		RecognizedAt:  req.RecognizedAt,
		RecognizedBy:  req.RecognizedBy.ID,
		Category:      req.Category,
		Justification: req.Justification,
	}
	audit := domain.NewAuditEvent(domain.AuditGMCRecognized, req.RecognizedBy, rec.ID, req.RecognizedAt, map[string]any{
		"owner_id":      rec.OwnerID,
		"amount":        rec.Amount,
		"category":      string(rec.Category),
		"justification": rec.Justification,
	})
	return rec, audit, nil
}

func (r *Registry) Validate(req RecognizeRequest) error {
	if err := identity.RequireHuman(r.identity, req.RecognizedBy.ID); err != nil {
		return err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return domain.NewViolation(domain.ReasonMissingOwner, "recipient is required")
	}
	if req.UserID == req.RecognizedBy.ID {
		return domain.NewViolation(domain.ReasonSelfRecognition, "%s cannot recognize themselves", req.UserID)
	}
	if req.Amount <= 0 {
		return domain.NewViolation(domain.ReasonInvalidAmount, "amount must be positive, got %d", req.Amount)
	}
	if !req.Category.IsValid() {
		return domain.NewViolation(domain.ReasonInvalidCategory, "unknown category %q", req.Category)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(req.Justification)); n < domain.MinJustificationLength {
		return domain.NewViolation(domain.ReasonJustificationTooShort, "justification has %d characters, at least %d required", n, domain.MinJustificationLength)
	}
	return nil
}
