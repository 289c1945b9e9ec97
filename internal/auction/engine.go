// Package auction holds the auction state machine and the participation rule.
// Nothing here reads a clock or draws randomness: evaluation time and the
// random factor always arrive from the caller.
package auction

import (
	"strings"
	"time"

	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/identity"
)

type Engine struct {
	identity identity.Classifier
}

func NewEngine(classifier identity.Classifier) *Engine {
	return &Engine{identity: classifier}
}

type ScheduleRequest struct {
	ID             string
	Name           string
	StartsAt       time.Time
	EndsAt         time.Time
	EntryCostMC    int64
	WinProbability float64
	Actor          domain.Actor
}

// Change is an accepted status change together with its audit record.
type Change struct {
	Event domain.AuctionEvent
	Audit domain.AuditEvent
}

func (e *Engine) Schedule(req ScheduleRequest, now time.Time) (Change, error) {
	if err := identity.RequireHuman(e.identity, req.Actor.ID); err != nil {
		return Change{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return Change{}, domain.NewViolation(domain.ReasonInvalidRequest, "auction name is required")
	}
	if !req.StartsAt.Before(req.EndsAt) {
		return Change{}, domain.NewViolation(domain.ReasonInvalidWindow, "startsAt must be before endsAt")
	}
	if !now.Before(req.StartsAt) {
		return Change{}, domain.NewViolation(domain.ReasonInvalidWindow, "window must start after %s", now.Format(time.RFC3339))
	}
	if req.EntryCostMC <= 0 {
		return Change{}, domain.NewViolation(domain.ReasonInvalidAmount, "entry cost must be positive, got %d", req.EntryCostMC)
	}
	if req.WinProbability < 0 || req.WinProbability > 1 {
		return Change{}, domain.NewViolation(domain.ReasonInvalidRequest, "win probability %v is outside [0, 1]", req.WinProbability)
	}

	ev := domain.AuctionEvent{
		ID:             req.ID,
		Name:           req.Name,
		Status:         domain.AuctionScheduled,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		EntryCostMC:    req.EntryCostMC,
		WinProbability: req.WinProbability,
		CreatedBy:      req.Actor.ID,
	}

	return Change{
		Event: ev,
		Audit: domain.NewAuditEvent(domain.AuditAuctionScheduled, req.Actor, ev.ID, now, map[string]any{
			"name":            ev.Name,
			"starts_at":       ev.StartsAt,
			"ends_at":         ev.EndsAt,
			"entry_cost_mc":   ev.EntryCostMC,
			"win_probability": ev.WinProbability,
		}),
	}, nil
}

// Open activates a scheduled event. It must happen before the window starts.
func (e *Engine) Open(ev domain.AuctionEvent, actor domain.Actor, now time.Time) (Change, error) {
	if err := identity.RequireHuman(e.identity, actor.ID); err != nil {
		return Change{}, err
	}
	if ev.Status != domain.AuctionScheduled {
		return Change{}, domain.NewViolation(domain.ReasonInvalidState, "cannot open auction %s in status %s", ev.ID, ev.Status)
	}
	if !now.Before(ev.StartsAt) {
		return Change{}, domain.NewViolation(domain.ReasonInvalidWindow, "auction %s window started at %s", ev.ID, ev.StartsAt.Format(time.RFC3339))
	}
	return e.change(domain.AuditAuctionOpened, ev, domain.AuctionActive, actor, now), nil
}

// Close completes an active event once its window has ended.
func (e *Engine) Close(ev domain.AuctionEvent, actor domain.Actor, now time.Time) (Change, error) {
	if err := identity.RequireHuman(e.identity, actor.ID); err != nil {
		return Change{}, err
	}
	if ev.Status != domain.AuctionActive {
		return Change{}, domain.NewViolation(domain.ReasonInvalidState, "cannot close auction %s in status %s", ev.ID, ev.Status)
	}
	if now.Before(ev.EndsAt) {
		return Change{}, domain.NewViolation(domain.ReasonInvalidWindow, "auction %s window ends at %s", ev.ID, ev.EndsAt.Format(time.RFC3339))
	}
	return e.change(domain.AuditAuctionClosed, ev, domain.AuctionCompleted, actor, now), nil
}

func (e *Engine) Cancel(ev domain.AuctionEvent, actor domain.Actor, now time.Time, reason string) (Change, error) {
	if err := identity.RequireHuman(e.identity, actor.ID); err != nil {
		return Change{}, err
	}
	if ev.Status.IsTerminal() {
		return Change{}, domain.NewViolation(domain.ReasonTerminalState, "auction %s is %s", ev.ID, ev.Status)
	}

	c := e.change(domain.AuditAuctionCancelled, ev, domain.AuctionCancelled, actor, now)
	c.Audit.Payload["reason"] = reason
	return c, nil
}

func (e *Engine) change(eventType domain.AuditEventType, ev domain.AuctionEvent, to domain.AuctionStatus, actor domain.Actor, now time.Time) Change {
	next := ev
	next.Status = to
	return Change{
		Event: next,
		Audit: domain.NewAuditEvent(eventType, actor, ev.ID, now, map[string]any{
			"from": string(ev.Status),
			"to":   string(to),
		}),
	}
}
